package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Wundero/shiritori/internal/config"
	"github.com/Wundero/shiritori/internal/dictionary"
)

func newUpdateDictionaryCmd(cfg *config.Config) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "update-dictionary <locale>...",
		Short: "Validate the dictionary for one or more locales and report word counts.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dict := dictionary.New()
			for _, locale := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "updating %s dictionary\n", locale)

				n, err := loadLocaleDictionary(dict, locale, path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "failed to update %s dictionary: %v\n", locale, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "successfully updated %s dictionary (%d words)\n", locale, n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "file", "", "word list file to load instead of the bundled default")

	return cmd
}

func loadLocaleDictionary(dict *dictionary.Dictionary, locale, path string) (int, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		return dict.Load(context.Background(), locale, f)
	}

	f, err := dictionary.DefaultWordList(locale)
	if err != nil {
		return 0, fmt.Errorf("no bundled word list for locale %q: %w", locale, err)
	}
	defer f.Close()
	return dict.Load(context.Background(), locale, f)
}
