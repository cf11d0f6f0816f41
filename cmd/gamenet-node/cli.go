package main

import (
    "fmt"
    "os"

    "github.com/spf13/cobra"
)

// Options holds CLI options for the node.
type Options struct {
    ConfigPath string
    Echo       bool
}

func newRootCmd(code *int) *cobra.Command {
    var opts Options
    cmd := &cobra.Command{
        Use:           "gamenet-node",
        Short:         "Run a gamenet participant that listens on the configured endpoints",
        SilenceUsage:  true,
        SilenceErrors: true,
        Args:          cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            *code = run(opts)
            return nil
        },
    }
    cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
    cmd.Flags().BoolVar(&opts.Echo, "echo", true, "Send every received message back on its stream")
    return cmd
}

func execute(args []string) int {
    code := 0
    cmd := newRootCmd(&code)
    cmd.SetArgs(args)
    if err := cmd.Execute(); err != nil {
        fmt.Fprintln(os.Stderr, "Error:", err)
        return 2
    }
    return code
}
