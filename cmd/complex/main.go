// Command complex runs the environmental monitoring node. Readings stream to a
// local dashboard; a button press publishes them to the MQTT broker.
//
// Usage:
//
//	complex run [--config path] [--sim]   # run the node
//	complex read [--config path] [--sim]  # print one sensor and button sample
//	complex version                       # show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sweeney/complex-monitor/internal/config"
)

// Set at build time via -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "complex",
		Short:         "Environmental monitoring node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", config.DefaultPath, "path to config file")
	root.PersistentFlags().Bool("sim", false, "use simulated sensor, button and LEDs")

	root.AddCommand(newRunCmd(), newReadCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "complex %s (%s)\n", version, commit)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
