package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/guardian/internal/app"
	"github.com/markdave123-py/guardian/internal/config"
	"github.com/markdave123-py/guardian/internal/core"
	db "github.com/markdave123-py/guardian/internal/core/database"
	"github.com/markdave123-py/guardian/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var databaseURL string

	root := &cobra.Command{
		Use:           "guardianctl",
		Short:         "Inspect the guardian's sessions and leaderboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&databaseURL, "database-url", "", "overrides DATABASE_URL (postgres://... or sqlite:<path>)")

	root.AddCommand(newLeaderboardCmd(&databaseURL))
	root.AddCommand(newSessionCmd(&databaseURL))
	root.AddCommand(newBootstrapCmd(&databaseURL))
	return root
}

// open selects the store exactly as the server does, with an optional URL override.
func open(ctx context.Context, databaseURL string) (*config.Config, core.Store, error) {
	cfg := config.LoadConfig()
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	store, err := db.NewStore(ctx, cfg, logger.NewNop())
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func newLeaderboardCmd(databaseURL *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the ranked leaderboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			cfg, store, err := open(ctx, *databaseURL)
			if err != nil {
				return err
			}
			defer store.Close()

			svcs := app.NewServices(cfg, logger.NewNop(), app.Deps{Store: store})
			entries := svcs.Leaderboard.GetLeaderboard(ctx, limit)
			if len(entries) == 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "no entries (store: %s)\n", store.Mode())
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "RANK\tTOTAL\tWORTHY\tUSERNAME\tEXCERPT")
			for _, e := range entries {
				_, _ = fmt.Fprintf(tw, "%d\t%d/20\t%s\t%s\t%s\n", e.Rank, e.Total, e.Worthy, e.Username, e.StoryExcerpt)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of entries (0 uses LEADERBOARD_DEFAULT_LIMIT)")
	return cmd
}

func newSessionCmd(databaseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "session <id>",
		Short: "Print one session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			cfg, store, err := open(ctx, *databaseURL)
			if err != nil {
				return err
			}
			defer store.Close()

			svcs := app.NewServices(cfg, logger.NewNop(), app.Deps{Store: store})
			s := svcs.Sessions.GetSession(ctx, args[0])
			if s == nil {
				return fmt.Errorf("session %s not found in %s store", args[0], store.Mode())
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		},
	}
}

func newBootstrapCmd(databaseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the sessions and leaderboard tables if missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			_, store, err := open(ctx, *databaseURL)
			if err != nil {
				return err
			}
			defer store.Close()

			if store.Mode() == db.ModeMemory {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no database configured; nothing to bootstrap")
				return nil
			}
			if sqlStore, ok := store.(*db.SQLStore); ok {
				if err := sqlStore.Ready(ctx); err != nil {
					return err
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s schema ready\n", store.Mode())
			return nil
		},
	}
}
