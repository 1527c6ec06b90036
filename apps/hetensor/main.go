//
// main.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var verbose bool

func main() {
	command := &cobra.Command{
		Use:   "hetensor",
		Short: "Secure elementwise tensor evaluation",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.WarnLevel)
			}
		},
		SilenceUsage: true,
	}
	command.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Verbose output")

	addRunCmd(command)
	addConfigCmd(command)
	addIOTestCmd(command)

	if err := command.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hetensor: %v\n", err)
		os.Exit(1)
	}
}
