package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Wundero/shiritori/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "shiritori",
		Short:         "A multiplayer word-chain game server.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
	}

	fs := cmd.PersistentFlags()
	config.BindFlags(fs, cfg)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate(fmt.Sprintf("shiritori v%s\n", releaseVersion))

	cmd.AddCommand(newServeCmd(cfg))
	cmd.AddCommand(newUpdateDictionaryCmd(cfg))

	return cmd
}
