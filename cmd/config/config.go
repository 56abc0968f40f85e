package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/shirou/gopsutil/v3/host"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/ccledger/cmd/util"
	"github.com/sidkik/ccledger/pkg/config"
	"github.com/sidkik/ccledger/pkg/errors"
	"github.com/sidkik/ccledger/pkg/record"
)

// Mocked for unit testing.
var (
	stdout        io.Writer = os.Stdout
	stdin         io.Reader = os.Stdin
	guessDefaults           = guessDefaultsImpl
	parseIdentity           = config.ParseIdentity
	writeIdentity           = config.WriteIdentity
	stat                    = os.Stat
	getHomeDir              = homedir.Dir
	getHostInfo             = host.Info
)

// cloudFolders are the synced folders, relative to the home directory, that
// are checked when guessing the cloud directory.
var cloudFolders = []string{
	"Dropbox",
	"Library/Mobile Documents/com~apple~CloudDocs",
	"Google Drive",
	"OneDrive",
}

// New creates a new `config` command.
func New() *cobra.Command {
	var cliOpts config.Identity
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Name this machine and choose the shared directory",
		Run: func(_ *cobra.Command, _ []string) {
			if err := SetupConfig(cliOpts); err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&cliOpts.MachineID, "machine-id", "",
		"Set the machine ID. It can't be changed once it's been set. "+
			"Optional: If not set, `ccledger config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.CloudDir, "cloud-dir", "",
		"Set the shared directory used to exchange records with other machines. "+
			"Optional: If not set, `ccledger config` will interactively prompt.")

	// Setup the commands for querying the contents of the identity file.
	type getterSpec struct {
		use, short string
		fn         func(config.Identity) string
	}

	getters := []getterSpec{
		{
			use:   "get-machine-id",
			short: "Get the ID of this machine",
			fn:    func(id config.Identity) string { return id.MachineID },
		},
		{
			use:   "get-cloud-dir",
			short: "Get the shared directory used to exchange records",
			fn:    func(id config.Identity) string { return id.CloudDir },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Run: func(_ *cobra.Command, _ []string) {
				id, err := parseIdentity()
				if err != nil {
					err = errors.WithContext(err, "read config")
					util.HandleFatalError(err)
				}

				fmt.Fprintln(stdout, getter.fn(id))
			},
		})
	}

	return cmd
}

// SetupConfig prompts for any identity fields not set in `cliOpts`, and
// writes the result to the identity file.
func SetupConfig(cliOpts config.Identity) error {
	id, err := generateConfig(cliOpts)
	if err != nil {
		return errors.WithContext(err, "generate config")
	}

	if err := writeIdentity(id); err != nil {
		return errors.WithContext(err, "write config")
	}

	path, err := config.GetIdentityPath()
	if err != nil {
		return errors.WithContext(err, "get identity path")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}

func machineIDValidationFn(machineID string) (string, bool) {
	if err := record.ValidateMachineID(machineID); err != nil {
		return "The machine ID must start with a letter or number, and may " +
			"only contain letters, numbers, `.`, `_` and `-`. " +
			"Please pick another machine ID.", false
	}
	return "", true
}

type prompt struct {
	helpString, prompt, defaultAnswer, currAnswer string
	field                                         *string
	validationFn                                  func(string) (string, bool)
}

// generateConfig interacts with the user to decide what the identity of
// this machine should be.
// It makes best guesses at reasonable defaults, and allows users to explicitly
// override them if desired. The machine ID is never changed once it's set.
func generateConfig(cliOpts config.Identity) (config.Identity, error) {
	defaults := guessDefaults()
	currID, err := parseIdentity()
	if err != nil {
		currID = config.Identity{}
		log.WithError(err).Debug("Failed to read current identity")
	}

	id := cliOpts
	id.DataDir = currID.DataDir
	id.SourceCommand = currID.SourceCommand

	if currID.MachineID != "" {
		if cliOpts.MachineID != "" && cliOpts.MachineID != currID.MachineID {
			return config.Identity{}, errors.NewFriendlyError(
				"This machine is already named %q. Machine IDs can't be changed, "+
					"since they determine which records this machine owns.",
				currID.MachineID)
		}
		id.MachineID = currID.MachineID
	} else if cliOpts.MachineID != "" {
		if msg, ok := machineIDValidationFn(cliOpts.MachineID); !ok {
			return config.Identity{}, errors.NewFriendlyError("%s", msg)
		}
	}

	var prompts []prompt
	if id.MachineID == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter a name for this machine.\n" +
				"Records synced on this machine are stored under this name, " +
				"so it must be unique across your machines.\n" +
				"It can't be changed later.",
			prompt:        "Machine ID",
			defaultAnswer: defaults.MachineID,
			field:         &id.MachineID,
			validationFn:  machineIDValidationFn,
		})
	}

	if cliOpts.CloudDir == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the shared directory used to exchange records " +
				"with your other machines.\n" +
				"It should be inside a folder synced by a cloud storage client.\n" +
				"Leave it empty to only keep records on this machine.",
			prompt:        "Cloud directory",
			defaultAnswer: defaults.CloudDir,
			currAnswer:    currID.CloudDir,
			field:         &id.CloudDir,
		})
	}

	for _, prompt := range prompts {
		var resp string
		for {
			resp, err = promptUser(prompt.helpString, prompt.prompt,
				prompt.defaultAnswer, prompt.currAnswer)
			if err != nil {
				return config.Identity{}, errors.WithContext(err, "read response")
			}

			if prompt.validationFn == nil {
				break
			}

			validationErr, ok := prompt.validationFn(resp)
			if ok {
				break
			}

			fmt.Fprintln(stdout, validationErr)
		}

		*prompt.field = resp
	}

	return id, nil
}

// guessDefaultsImpl tries to guess reasonable defaults for the fields in the
// identity file.
func guessDefaultsImpl() (id config.Identity) {
	if machineID, err := guessMachineID(); err == nil {
		id.MachineID = machineID
	} else {
		log.WithError(err).Info("Failed to guess machine ID")
	}

	if cloudDir, err := guessCloudDir(); err == nil {
		id.CloudDir = cloudDir
	} else {
		log.WithError(err).Info("Failed to guess cloud directory")
	}

	return id
}

// sanitizeMachineID converts a host name into a valid machine ID. It
// returns an empty string if nothing usable is left.
func sanitizeMachineID(original string) (sanitized string) {
	sanitized = strings.ToLower(original)
	sanitized = strings.TrimSuffix(sanitized, ".local")
	invalidChars := regexp.MustCompile(`[^a-z0-9._-]+`)
	sanitized = invalidChars.ReplaceAllString(sanitized, "-")
	noLeadingOrTrailingPunct := regexp.MustCompile(`^[._-]*(.*?)[._-]*$`)
	sanitized = noLeadingOrTrailingPunct.ReplaceAllString(sanitized, "$1")
	if len(sanitized) > 63 {
		sanitized = strings.TrimRight(sanitized[:63], "._-")
	}

	// As a sanity check, make sure the sanitized ID passes validation. This
	// should never fail unless there's a bug in the sanitization logic above.
	if _, ok := machineIDValidationFn(sanitized); !ok {
		return ""
	}
	return sanitized
}

func guessMachineID() (string, error) {
	info, err := getHostInfo()
	if err != nil {
		return "", errors.WithContext(err, "get host info")
	}
	return sanitizeMachineID(info.Hostname), nil
}

// guessCloudDir returns a directory inside the first cloud storage folder
// that exists in the home directory.
func guessCloudDir() (string, error) {
	home, err := getHomeDir()
	if err != nil {
		return "", errors.WithContext(err, "get home directory")
	}

	for _, folder := range cloudFolders {
		path := filepath.Join(home, folder)
		info, err := stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", errors.WithContext(err, "stat")
		}

		if info.IsDir() {
			return filepath.Join(path, "ccledger"), nil
		}
	}
	return "", nil
}

func promptUser(helpString, prompt, defaultAnswer, currAnswer string) (string, error) {
	// Display a new line at the end to separate different fields to make it
	// look clearer.
	defer fmt.Fprintln(stdout)

	options := []string{}
	if defaultAnswer != "" {
		options = append(options, defaultAnswer)
	}
	if currAnswer != "" && currAnswer != defaultAnswer {
		options = append(options, currAnswer)
	}
	options = append(options, "(Enter manually)")

	fmt.Fprintln(stdout, helpString+"\n"+prompt+":")

	stdinReader := bufio.NewReader(stdin)

	if nOptions := len(options); nOptions > 1 {
		// defaultAnswer or currAnswer exists.
		fmt.Fprintln(stdout)
		for i, option := range options {
			if i == 0 {
				option = fmt.Sprintf("%s (recommended)", option)
			}
			fmt.Fprintf(stdout, "\t%d. %s\n", i+1, option)
		}
		fmt.Fprintln(stdout)

		for {
			fmt.Fprintf(stdout, "Please choose one [1-%d]: ", nOptions)
			choiceStr, err := stdinReader.ReadString('\n')
			if err != nil {
				return "", err
			}

			var choice int
			choiceStr = strings.TrimSpace(choiceStr)

			// Default to the first choice if user doesn't enter anything.
			if choiceStr == "" {
				choice = 1
			} else {
				choice, err = strconv.Atoi(choiceStr)
				if err != nil || choice < 1 || choice > nOptions {
					// Try again if the input is invalid.
					continue
				}
			}

			if choice == nOptions {
				// Enter manually.
				break
			}

			return options[choice-1], nil
		}
	}

	fmt.Fprint(stdout, "Please enter manually: ")
	resp, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(resp), nil
}
