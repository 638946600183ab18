// cmd/web/main.go
//
// Lead service – command-line entry point.
//
// Commands
// --------
//
//	web serve            run the HTTP service (default)
//	web check FILE.json  validate a draft offline and print field errors
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/yanizio/adept-leads/components/contact"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:           "web",
		Short:         "Contact-lead service",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          serve.RunE,
	}
	root.AddCommand(serve, newCheckCmd())
	root.SetErrPrefix(fmt.Sprintf("%s:", root.Use))
	return root
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
