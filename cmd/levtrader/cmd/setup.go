package cmd

import (
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/levtrader/internal/setup"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create a config file with an interactive wizard",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := setup.RunTUI(setupOutput)
		return err
	},
}

var setupOutput string

func init() {
	rootCmd.AddCommand(setupCmd)

	setupCmd.Flags().StringVarP(&setupOutput, "output", "o", setup.DefaultPath, "output config file path")
}
