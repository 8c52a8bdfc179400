package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"worldclear/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long:  "validate checks the configuration against the CUE schema and lists values that would be corrected at startup.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ValidateWithCue(configPath, schemaPath); err != nil {
			return err
		}
		_, warns, err := config.Load(configPath, schemaPath)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, w := range warns {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		fmt.Fprintf(out, "%s: OK\n", configPath)
		return nil
	},
}
