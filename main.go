//go:build linux

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/eszlari/uringcheck/harness"
	"github.com/eszlari/uringcheck/sys"
	"github.com/eszlari/uringcheck/uring"
	"github.com/spf13/cobra"
)

var (
	flagHost    string
	flagPort    uint16
	flagDepth   int
	flagTimeout time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "uringcheck",
		Short:         "Verify asynchronous TCP connect semantics of the completion queue engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().StringVar(&flagHost, "host", "127.0.0.1", "IPv4 address the scenarios bind and connect to")
	root.Flags().Uint16Var(&flagPort, "port", sys.DefaultPort, "TCP port the scenarios bind and connect to")
	root.Flags().IntVar(&flagDepth, "depth", uring.DefaultDepth, "submission queue depth")
	root.Flags().DurationVar(&flagTimeout, "link-timeout", harness.LinkTimeout, "deadline linked to the stalled connect")
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	endpoint, err := sys.ParseEndpoint(flagHost, flagPort)
	if err != nil {
		return err
	}
	queue, err := uring.New(flagDepth)
	if err != nil {
		return err
	}
	defer queue.Close()
	reporter := &harness.ConsoleReporter{Out: os.Stdout, Err: os.Stderr}
	results := harness.NewRunner(queue, reporter, endpoint, flagTimeout).Run()
	reporter.Summary(results)
	if !results.OK() {
		return fmt.Errorf("verification failed")
	}
	return nil
}
