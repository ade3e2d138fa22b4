package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/amishk599/hirewire/internal/browse"
	"github.com/amishk599/hirewire/internal/config"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse a source's jobs interactively (TUI)",
	Long:  "Shows the source picker, fetches the chosen board live and opens the split-pane view with matches marked per recipient. Nothing is persisted.",
	RunE:  runBrowseCmd,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowseCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return runBrowse(cfg)
}

func runBrowse(cfg *config.Config) error {
	enabled := cfg.EnabledSources()
	if len(enabled) == 0 {
		fmt.Println("No enabled sources in config.")
		return nil
	}

	// Logging here would corrupt the alt-screen, so errors go to stdout between screens.
	httpClient := &http.Client{Timeout: cfg.Fetch.Timeout}
	registry := buildRegistry(cfg)
	silent := slog.New(slog.NewTextHandler(io.Discard, nil))

	for {
		choice, err := browse.RunSourcePicker(enabled)
		if err != nil {
			return fmt.Errorf("picker: %w", err)
		}
		if choice < 0 {
			return nil
		}
		sc := enabled[choice]

		a, err := newAdapter(sc, cfg, httpClient, silent)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		jobs, err := browse.RunLoader(sc.Name, a, cfg.Fetch.Timeout)
		if err != nil {
			fmt.Printf("Error fetching jobs: %v\n", err)
			continue
		}

		var matches []browse.Match
		for _, j := range jobs {
			if ids := registry.MatchingRecipients(j); len(ids) > 0 {
				matches = append(matches, browse.Match{Job: j, Recipients: ids})
			}
		}

		wantQuit, err := browse.RunBrowseTUI(jobs, matches)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return nil
		}
	}
}
