//
// config.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"fmt"
	"os"

	"github.com/markkurossi/hetensor/aby"
	"github.com/markkurossi/hetensor/he"
	"github.com/spf13/cobra"
)

// addConfigCmd adds the command that validates and prints an
// executor configuration.
func addConfigCmd(command *cobra.Command) {
	var role, protocol string

	configCmd := &cobra.Command{
		Use:   "config [file]",
		Short: "Validate and print an executor configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var config *aby.Config
			var err error
			if len(args) > 0 {
				config, err = aby.LoadConfig(args[0])
				if err != nil {
					return err
				}
			} else {
				config = aby.NewConfig(role, protocol)
			}
			heCtx, err := he.NewContext(he.DefaultParams)
			if err != nil {
				return err
			}
			if err := config.Validate(heCtx); err != nil {
				return err
			}
			data, err := config.Marshal()
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "# %s\n", heCtx)
			os.Stdout.Write(data)
			return nil
		},
	}
	configCmd.Flags().StringVarP(&role, "role", "r", "server",
		"Default role")
	configCmd.Flags().StringVarP(&protocol, "protocol", "p", "yao",
		"Default protocol")

	command.AddCommand(configCmd)
}
