package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/eringen/circlepress"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write an annotated sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; pass --force to overwrite", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("inspect %s: %w", path, err)
			}
			if err := circlepress.CreateSampleConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%s)\n", ctx.configPath())
			fmt.Fprint(out, renderTable([]string{"Setting", "Value"}, [][]string{
				{"site.name", cfg.Site.Name},
				{"site.timezone", cfg.Site.Timezone},
				{"server.addr", cfg.Server.Addr},
				{"database.path", cfg.Database.Path},
				{"llm.enabled", yesNo(cfg.LLM.APIKey != "")},
				{"mail.provider", cfg.Mail.Provider},
				{"storage.backend", cfg.Storage.Backend},
			}, nil))
			fmt.Fprintln(out)
			return nil
		},
	}

	configCmd.AddCommand(initCmd, validateCmd)
	return configCmd
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
