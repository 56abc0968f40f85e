package config

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/shirou/gopsutil/v3/host"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/ccledger/pkg/config"
	"github.com/sidkik/ccledger/pkg/errors"
)

const (
	machineIDHelp = "Enter a name for this machine.\n" +
		"Records synced on this machine are stored under this name, " +
		"so it must be unique across your machines.\n" +
		"It can't be changed later.\n" +
		"Machine ID:\n"
	cloudDirHelp = "Enter the shared directory used to exchange records " +
		"with your other machines.\n" +
		"It should be inside a folder synced by a cloud storage client.\n" +
		"Leave it empty to only keep records on this machine.\n" +
		"Cloud directory:\n"
	invalidMachineIDMsg = "The machine ID must start with a letter or number, and may " +
		"only contain letters, numbers, `.`, `_` and `-`. " +
		"Please pick another machine ID.\n"
)

func TestPromptUser(t *testing.T) {
	tests := []struct {
		name                                                 string
		helpString, prompt, defaultAnswer, currAnswer, stdin string
		expPrompt, expResult                                 string
	}{
		{
			name:       "No default or current answer",
			helpString: "explanation",
			prompt:     "prompt",
			stdin:      "user input\n",
			expPrompt: "explanation\n" +
				"prompt:\n" +
				"Please enter manually: \n",
			expResult: "user input",
		},
		{
			name:          "Default answer only, chose default answer",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			stdin:         "1\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: \n",
			expResult: "default answer",
		},
		{
			name:          "Empty choice picks the first option",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "current answer",
			stdin:         "\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. current answer\n" +
				"\t3. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-3]: \n",
			expResult: "default answer",
		},
		{
			name:          "Different default answer and current answer, chose current answer",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "current answer",
			stdin:         "2\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. current answer\n" +
				"\t3. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-3]: \n",
			expResult: "current answer",
		},
		{
			name:          "Same default answer and current answer, enter manually",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "default answer",
			stdin: "2\n" +
				"user input",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: " +
				"Please enter manually: \n",
			expResult: "user input",
		},
		{
			name:          "Invalid choice is asked again",
			helpString:    "explanation",
			prompt:        "prompt",
			defaultAnswer: "default answer",
			stdin: "7\n" +
				"1",
			expPrompt: "explanation\n" +
				"prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: " +
				"Please choose one [1-2]: \n",
			expResult: "default answer",
		},
	}

	type promptUserResult struct {
		resp string
		err  error
	}
	for _, test := range tests {
		// Setup mocks.
		out := bytes.NewBuffer(nil)
		stdinReader, stdinWriter := io.Pipe()
		stdout = out
		stdin = stdinReader

		// Start the promptUser function.
		resultChan := make(chan promptUserResult)
		go func() {
			resp, err := promptUser(test.helpString, test.prompt,
				test.defaultAnswer, test.currAnswer)
			resultChan <- promptUserResult{resp, err}
		}()

		// Provide the user input.
		fmt.Fprintln(stdinWriter, test.stdin)

		// Check that promptUser behaved as expected.
		result := <-resultChan
		assert.NoError(t, result.err, test.name)
		assert.Equal(t, test.expResult, result.resp, test.name)

		// Test the prompt after `promptUser` has exited so that we can be sure
		// we're not testing before `promptUser` has a chance to print to stdout.
		assert.Equal(t, test.expPrompt, out.String(), test.name)
	}
}

func TestMachineIDSanitization(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expOutput string
	}{
		{
			name:      "already valid",
			input:     "build-box.2",
			expOutput: "build-box.2",
		},
		{
			name:      "convert to lowercase",
			input:     "WorkStation",
			expOutput: "workstation",
		},
		{
			name:      "strip mDNS suffix",
			input:     "Alice's MacBook Pro.local",
			expOutput: "alice-s-macbook-pro",
		},
		{
			name:      "remove leading and trailing punctuation",
			input:     "-_laptop_.",
			expOutput: "laptop",
		},
		{
			name:      "nothing usable",
			input:     "???",
			expOutput: "",
		},
		{
			name:      "truncate",
			input:     "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyzabcdefghij-klmnop",
			expOutput: "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyzabcdefghij",
		},
	}

	for _, test := range tests {
		assert.Equal(t, test.expOutput, sanitizeMachineID(test.input), test.name)
	}
}

func TestGenerateConfig(t *testing.T) {
	tests := []struct {
		name              string
		cliOpts           config.Identity
		defaults          config.Identity
		mockParseIdentity func() (config.Identity, error)
		inputs            []string
		expPrompt         string
		expIdentity       config.Identity
	}{
		{
			name: "Initial setup -- ~/.ccledger.yaml doesn't exist yet",
			defaults: config.Identity{
				MachineID: "laptop",
				CloudDir:  "/home/alice/Dropbox/ccledger",
			},
			mockParseIdentity: func() (config.Identity, error) {
				return config.Identity{}, errors.FileNotFound{}
			},
			inputs: []string{"1\n", "1\n"},
			expPrompt: machineIDHelp +
				"\n" +
				"\t1. laptop (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: \n" +
				cloudDirHelp +
				"\n" +
				"\t1. /home/alice/Dropbox/ccledger (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: \n",
			expIdentity: config.Identity{
				MachineID: "laptop",
				CloudDir:  "/home/alice/Dropbox/ccledger",
			},
		},
		{
			name: "Existing machine ID is kept",
			defaults: config.Identity{
				MachineID: "laptop",
				CloudDir:  "/home/alice/Dropbox/ccledger",
			},
			mockParseIdentity: func() (config.Identity, error) {
				return config.Identity{
					MachineID:     "desk",
					CloudDir:      "/mnt/cloud",
					DataDir:       "/data",
					SourceCommand: []string{"ccusage", "session", "--json"},
				}, nil
			},
			inputs: []string{"2\n"},
			expPrompt: cloudDirHelp +
				"\n" +
				"\t1. /home/alice/Dropbox/ccledger (recommended)\n" +
				"\t2. /mnt/cloud\n" +
				"\t3. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-3]: \n",
			expIdentity: config.Identity{
				MachineID:     "desk",
				CloudDir:      "/mnt/cloud",
				DataDir:       "/data",
				SourceCommand: []string{"ccusage", "session", "--json"},
			},
		},
		{
			name: "Invalid machine ID is asked again",
			mockParseIdentity: func() (config.Identity, error) {
				return config.Identity{}, errors.FileNotFound{}
			},
			inputs: []string{"../bad\n", "good\n", "\n"},
			expPrompt: machineIDHelp +
				"Please enter manually: \n" +
				invalidMachineIDMsg +
				machineIDHelp +
				"Please enter manually: \n" +
				cloudDirHelp +
				"Please enter manually: \n",
			expIdentity: config.Identity{
				MachineID: "good",
			},
		},
		{
			name: "All fields set explicitly with CLI flags",
			cliOpts: config.Identity{
				MachineID: "cli-machine",
				CloudDir:  "/cli/cloud",
			},
			defaults: config.Identity{
				MachineID: "laptop",
				CloudDir:  "/home/alice/Dropbox/ccledger",
			},
			mockParseIdentity: func() (config.Identity, error) {
				return config.Identity{}, errors.FileNotFound{}
			},
			expIdentity: config.Identity{
				MachineID: "cli-machine",
				CloudDir:  "/cli/cloud",
			},
		},
		{
			name: "CLI machine ID matching the current one",
			cliOpts: config.Identity{
				MachineID: "desk",
				CloudDir:  "/cli/cloud",
			},
			mockParseIdentity: func() (config.Identity, error) {
				return config.Identity{MachineID: "desk", CloudDir: "/mnt/cloud"}, nil
			},
			expIdentity: config.Identity{
				MachineID: "desk",
				CloudDir:  "/cli/cloud",
			},
		},
	}

	type generateConfigResult struct {
		id  config.Identity
		err error
	}

	for _, test := range tests {
		test := test

		// Setup mocks.
		out := bytes.NewBuffer(nil)
		stdinReader, stdinWriter := io.Pipe()
		stdout = out
		stdin = stdinReader
		guessDefaults = func() config.Identity { return test.defaults }
		parseIdentity = test.mockParseIdentity

		// Start the generateConfig function.
		resultChan := make(chan generateConfigResult)
		go func() {
			resp, err := generateConfig(test.cliOpts)
			resultChan <- generateConfigResult{resp, err}
		}()

		// Provide the user input.
		for _, input := range test.inputs {
			fmt.Fprint(stdinWriter, input)
		}

		// Check that generateConfig behaved as expected.
		result := <-resultChan
		assert.NoError(t, result.err, test.name)
		assert.Equal(t, test.expIdentity, result.id, test.name)

		// Test the prompt after `generateConfig` has exited so that we can be sure
		// we're not testing before `generateConfig` has a chance to print to stdout.
		assert.Equal(t, test.expPrompt, out.String(), test.name)
	}
}

func TestGenerateConfigErrors(t *testing.T) {
	stdout = bytes.NewBuffer(nil)
	guessDefaults = func() config.Identity { return config.Identity{} }

	parseIdentity = func() (config.Identity, error) {
		return config.Identity{MachineID: "desk"}, nil
	}
	_, err := generateConfig(config.Identity{MachineID: "laptop", CloudDir: "/cloud"})
	require.Error(t, err)
	assert.Contains(t, errors.GetPrintableMessage(err), `already named "desk"`)

	parseIdentity = func() (config.Identity, error) {
		return config.Identity{}, errors.FileNotFound{}
	}
	_, err = generateConfig(config.Identity{MachineID: "../laptop", CloudDir: "/cloud"})
	require.Error(t, err)
	assert.Contains(t, errors.GetPrintableMessage(err), "Please pick another machine ID.")
}

func TestSetupConfig(t *testing.T) {
	out := bytes.NewBuffer(nil)
	stdout = out
	guessDefaults = func() config.Identity { return config.Identity{} }
	parseIdentity = func() (config.Identity, error) {
		return config.Identity{}, errors.FileNotFound{}
	}

	var written config.Identity
	writeIdentity = func(id config.Identity) error {
		written = id
		return nil
	}

	err := SetupConfig(config.Identity{MachineID: "laptop", CloudDir: "/cloud"})
	require.NoError(t, err)
	assert.Equal(t, config.Identity{MachineID: "laptop", CloudDir: "/cloud"}, written)
	assert.Contains(t, out.String(), "Wrote config to ")

	writeIdentity = func(config.Identity) error { return assert.AnError }
	err = SetupConfig(config.Identity{MachineID: "laptop", CloudDir: "/cloud"})
	assert.EqualError(t, err, "write config: "+assert.AnError.Error())
}

func TestGuessDefaults(t *testing.T) {
	home := afero.NewMemMapFs()
	require.NoError(t, home.MkdirAll("/home/alice/Google Drive", 0755))
	require.NoError(t, afero.WriteFile(home, "/home/alice/Dropbox", []byte("not a dir"), 0644))

	tests := []struct {
		name        string
		getHostInfo func() (*host.InfoStat, error)
		getHomeDir  func() (string, error)
		expID       config.Identity
		expLogs     []string
	}{
		{
			name: "Success case",
			getHostInfo: func() (*host.InfoStat, error) {
				return &host.InfoStat{Hostname: "Alice's MacBook Pro.local"}, nil
			},
			getHomeDir: func() (string, error) {
				return "/home/alice", nil
			},
			expID: config.Identity{
				MachineID: "alice-s-macbook-pro",
				CloudDir:  "/home/alice/Google Drive/ccledger",
			},
		},
		{
			name: "No cloud folders",
			getHostInfo: func() (*host.InfoStat, error) {
				return &host.InfoStat{Hostname: "build-01"}, nil
			},
			getHomeDir: func() (string, error) {
				return "/home/bob", nil
			},
			expID: config.Identity{
				MachineID: "build-01",
			},
		},
		{
			name: "Failure case",
			getHostInfo: func() (*host.InfoStat, error) {
				return nil, errors.New("error")
			},
			getHomeDir: func() (string, error) {
				return "", errors.New("error")
			},
			expLogs: []string{
				"Failed to guess machine ID",
				"Failed to guess cloud directory",
			},
		},
	}

	for _, test := range tests {
		// Setup mocks.
		getHostInfo = test.getHostInfo
		getHomeDir = test.getHomeDir
		stat = home.Stat
		logHook := logrusTest.NewGlobal()

		assert.Equal(t, test.expID, guessDefaultsImpl(), test.name)
		assert.Len(t, logHook.Entries, len(test.expLogs), test.name)
		for i, log := range test.expLogs {
			assert.Equal(t, log, logHook.Entries[i].Message, test.name)
		}
	}
}

func TestGetters(t *testing.T) {
	configCmd := New()
	machineIDCmd, _, err := configCmd.Find([]string{"get-machine-id"})
	assert.NoError(t, err)
	cloudDirCmd, _, err := configCmd.Find([]string{"get-cloud-dir"})
	assert.NoError(t, err)

	expMachineID := "laptop"
	expCloudDir := "/home/alice/Dropbox/ccledger"
	parseIdentity = func() (config.Identity, error) {
		return config.Identity{
			MachineID: expMachineID,
			CloudDir:  expCloudDir,
		}, nil
	}

	out := bytes.NewBuffer(nil)
	stdout = out

	machineIDCmd.Run(nil, nil)
	cloudDirCmd.Run(nil, nil)
	assert.Equal(t, fmt.Sprintf("%s\n%s\n", expMachineID, expCloudDir), out.String())
}
