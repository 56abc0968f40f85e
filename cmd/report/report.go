package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/buger/goterm"
	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/sidkik/ccledger/cmd/util"
	"github.com/sidkik/ccledger/pkg/config"
	"github.com/sidkik/ccledger/pkg/errors"
	"github.com/sidkik/ccledger/pkg/record"
)

type aggregator interface {
	AggregateAll() (map[string]record.OwnedRecord, []record.Warning, error)
}

// Mocked for unit testing.
var (
	stdout      io.Writer = os.Stdout
	clock                 = clockwork.NewRealClock()
	getIdentity           = util.GetIdentity
	newLedger             = func(id config.Identity) aggregator { return util.NewLedger(id) }
)

// New creates a new `report` command.
func New() *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the combined usage of all machines",
		Long: "Show the usage recorded by this machine and pulled from every " +
			"other machine, grouped by project or by machine.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(record.GroupBy(by)); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&by, "by", string(record.ByProject),
		"Group usage by project or machine.")
	return cmd
}

func run(by record.GroupBy) error {
	if by != record.ByProject && by != record.ByMachine {
		return errors.NewFriendlyError("Unknown grouping %q. "+
			"Usage can be grouped by %q or %q.", by, record.ByProject, record.ByMachine)
	}

	id, err := getIdentity()
	if err != nil {
		return errors.WithContext(err, "read identity")
	}

	view, warnings, err := newLedger(id).AggregateAll()
	if err != nil {
		return errors.WithContext(err, "aggregate")
	}

	if len(view) == 0 {
		fmt.Fprintln(stdout, "No usage has been recorded yet. Run `ccledger sync` first.")
	} else {
		printSummaries(stdout, record.Summarize(view, by), by)
	}

	for _, warning := range warnings {
		fmt.Fprintln(stdout, goterm.Color(
			fmt.Sprintf("Skipped unreadable record file %s: %s", warning.Path, warning.Err),
			goterm.YELLOW))
	}
	return nil
}

func printSummaries(out io.Writer, summaries []record.Summary, by record.GroupBy) {
	fmt.Fprintln(out, goterm.Bold(fmt.Sprintf("Usage by %s", by)))

	table := goterm.NewTable(0, 4, 2, ' ', 0)
	fmt.Fprintf(table, "%s\tSESSIONS\tINPUT\tOUTPUT\tTOKENS\tCOST\tLAST ACTIVE\n",
		strings.ToUpper(string(by)))

	var total record.Summary
	now := clock.Now()
	for _, s := range summaries {
		fmt.Fprintf(table, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			s.Key, s.Sessions, humanize.Comma(s.InputTokens), humanize.Comma(s.OutputTokens),
			humanize.Comma(s.TotalTokens), formatCost(s.TotalCost),
			formatActivity(s.LastActivity, now))

		total.Sessions += s.Sessions
		total.InputTokens += s.InputTokens
		total.OutputTokens += s.OutputTokens
		total.TotalTokens += s.TotalTokens
		total.TotalCost += s.TotalCost
	}
	fmt.Fprintf(table, "TOTAL\t%d\t%s\t%s\t%s\t%s\t\n",
		total.Sessions, humanize.Comma(total.InputTokens), humanize.Comma(total.OutputTokens),
		humanize.Comma(total.TotalTokens), formatCost(total.TotalCost))

	fmt.Fprint(out, table.String())
}

func formatCost(cost float64) string {
	return "$" + humanize.FormatFloat("#,###.##", cost)
}

// formatActivity renders a timestamp relative to `now`. Timestamps that
// can't be parsed are shown as-is.
func formatActivity(timestamp string, now time.Time) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, timestamp); err == nil {
			return humanize.RelTime(t, now, "ago", "from now")
		}
	}
	return timestamp
}
