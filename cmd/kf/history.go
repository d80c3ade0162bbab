package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/kernelfinder/internal/config"
	"github.com/steveyegge/kernelfinder/internal/events"
	"github.com/steveyegge/kernelfinder/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded registry events",
	Long: `Show the registry events recorded by earlier kf runs: finder
registrations, failures, change notifications and listing summaries.

Events are kept in the history database (default .kf/history.db).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		eventType, _ := cmd.Flags().GetString("type")
		session, _ := cmd.Flags().GetString("session")

		if eventType != "" && !events.EventType(eventType).IsValid() {
			return fmt.Errorf("invalid --type %q", eventType)
		}
		if limit < 1 {
			return fmt.Errorf("--limit must be at least 1")
		}

		regCfg, err := config.RegistryConfigFromEnv()
		if err != nil {
			return err
		}
		if !regCfg.HistoryEnabled {
			fmt.Println("History is disabled (KF_HISTORY_ENABLED=false)")
			return nil
		}

		findersCfg, err := config.LoadFindersFile(projectRoot, configPath)
		if err != nil {
			return err
		}
		if os.Getenv("KF_HISTORY_DB") == "" {
			if _, err := os.Stat(findersCfg.HistoryDB); os.IsNotExist(err) {
				yellow := color.New(color.FgYellow).SprintFunc()
				fmt.Printf("\n%s No history at %s\n\n", yellow("✨"), filepath.Clean(findersCfg.HistoryDB))
				return nil
			}
		}

		ctx := context.Background()
		store, err := storage.NewEventStore(ctx, &storage.Config{Path: findersCfg.HistoryDB})
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer func() { _ = store.Close() }()

		recorded, err := store.GetEvents(ctx, events.EventFilter{
			SessionID: session,
			Type:      events.EventType(eventType),
			Limit:     limit,
		})
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}

		if len(recorded) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No events found\n\n", yellow("✨"))
			return nil
		}

		// Newest last.
		for i := len(recorded) - 1; i >= 0; i-- {
			fmt.Println(formatEvent(recorded[i]))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of recent events to show")
	historyCmd.Flags().StringP("type", "t", "", "Only events of this type (e.g. finder_failed)")
	historyCmd.Flags().String("session", "", "Only events from this session ID")
	rootCmd.AddCommand(historyCmd)
}
