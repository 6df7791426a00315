package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/labelscan/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			a.loader.PrintConfigInfo(out)
			data, err := json.MarshalIndent(a.cfg, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write a configuration file with the default values",
		Args:  cobra.MaximumNArgs(1),
		// must work while the existing file is broken
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			file := config.ConfigFileName + ".yaml"
			if len(args) == 1 {
				file = args[0]
			}
			if err := config.GenerateDefaultConfigFile(file); err != nil {
				return fmt.Errorf("failed to write %s: %w", file, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", file)
			return nil
		},
	}

	cmd.AddCommand(show, initCmd)
	return cmd
}
