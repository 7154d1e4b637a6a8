// Package main is the packrat inspection CLI. The engine itself is a
// library embedded in a host runtime; this binary reads the persisted state
// a session leaves behind.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/packrat-ai/packrat/internal/blockcache"
	"github.com/packrat-ai/packrat/internal/config"
	"github.com/packrat-ai/packrat/internal/history"
	"github.com/packrat-ai/packrat/internal/journal"
	"github.com/packrat-ai/packrat/internal/mcpserver"
	"github.com/packrat-ai/packrat/internal/storage"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "packrat",
		Short:         "Conversation memory compression engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("workspace", "w", ".", "Workspace root")
	root.AddCommand(versionCmd(), statusCmd(), eventsCmd(), mcpCmd(), configCmd())
	return root
}

func workspacePaths(cmd *cobra.Command) storage.Paths {
	ws, _ := cmd.Flags().GetString("workspace")
	return storage.NewPaths(ws)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("packrat %s (commit: %s)\n", version, commit)
		},
	}
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize a session's compressed memory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths := workspacePaths(cmd)
			session, _ := cmd.Flags().GetString("session")

			cache := blockcache.New(paths.CacheFile(), paths.LegacyCacheFile(), 0)
			if err := cache.Load(); err != nil {
				return err
			}
			fmt.Printf("cache entries:    %d\n", cache.Len())

			if session == "" {
				return nil
			}
			hist := history.New(paths.HistoryFile(session))
			if err := hist.Load(); err != nil {
				return err
			}
			fmt.Printf("history entries:  %d\n", hist.Len())
			fmt.Printf("visible tokens:   %d\n", hist.VisibleTokens())
			for i, e := range hist.Entries() {
				fmt.Printf("  segment %d: %s raw=%d compressed=%d\n",
					i+1, e.CreatedAt.Format("2006-01-02 15:04"), e.RawTokens, e.CompressedTokens)
			}
			return nil
		},
	}
	cmd.Flags().StringP("session", "s", "", "Session identifier")
	return cmd
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent compaction events from the journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths := workspacePaths(cmd)
			limit, _ := cmd.Flags().GetInt("limit")

			jnl, err := journal.Open(paths.JournalFile())
			if err != nil {
				return err
			}
			defer func() { _ = jnl.Close() }()

			events, err := jnl.List(context.Background(), limit)
			if err != nil {
				return err
			}
			for _, ev := range events {
				fmt.Printf("%s  %-8s session=%s blocks=%d tokens %d→%d hits=%d misses=%d took=%s\n",
					ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.Kind, ev.SessionID,
					ev.BlocksSwapped, ev.TokensBefore, ev.TokensAfter,
					ev.CacheHits, ev.CacheMisses, ev.Duration)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum events to list")
	return cmd
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve read-only inspection tools over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, _ := cmd.Flags().GetString("workspace")
			return mcpserver.NewInspector(ws).Serve(version)
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate the engine configuration and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths := workspacePaths(cmd)
			cfg, err := config.Load(paths.ConfigFile())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			out, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
