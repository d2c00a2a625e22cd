package harness

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

type Reporter interface {
	ScenarioStarted(scenario string)
	ScenarioPassed(scenario string)
	ScenarioSkipped(scenario string, reason string)
	ScenarioFailed(scenario string, err error)
	Summary(results Results)
}

type nullReporter struct{}

func (nullReporter) ScenarioStarted(string)         {}
func (nullReporter) ScenarioPassed(string)          {}
func (nullReporter) ScenarioSkipped(string, string) {}
func (nullReporter) ScenarioFailed(string, error)   {}
func (nullReporter) Summary(Results)                {}

// ConsoleReporter prints one line per scenario and a closing tally.
type ConsoleReporter struct {
	Out io.Writer
	Err io.Writer
}

func (c *ConsoleReporter) ScenarioStarted(scenario string) {
	fmt.Fprintf(c.Out, "[%s]\n", scenario)
}

func (c *ConsoleReporter) ScenarioPassed(scenario string) {
	fmt.Fprintf(c.Out, "  %s [%s]\n", color.GreenString("PASS"), scenario)
}

func (c *ConsoleReporter) ScenarioSkipped(scenario string, reason string) {
	fmt.Fprintf(c.Out, "  %s [%s] %s\n", color.YellowString("SKIP"), scenario, reason)
}

// ScenarioFailed writes to the error stream only, so the line names the
// scenario itself instead of relying on the header printed to Out.
func (c *ConsoleReporter) ScenarioFailed(scenario string, err error) {
	fmt.Fprintf(c.Err, "  %s [%s] %s\n", color.RedString("FAIL"), scenario, err)
}

func (c *ConsoleReporter) Summary(results Results) {
	var passed, failed, skipped int
	for _, s := range results.Scenarios {
		switch s.Outcome {
		case Passed:
			passed++
		case Failed:
			failed++
		case Skipped:
			skipped++
		}
	}
	fmt.Fprintf(c.Out, "%d passed, %d failed, %d skipped\n", passed, failed, skipped)
}
