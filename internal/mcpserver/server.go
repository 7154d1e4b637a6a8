// Package mcpserver exposes read-only inspection tools over MCP stdio so
// other agent tooling can look inside the compressed memory: the narrative
// document, the visible history, the raw archive, and cache statistics.
// Nothing here mutates engine state.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/packrat-ai/packrat/internal/blockcache"
	"github.com/packrat-ai/packrat/internal/history"
	"github.com/packrat-ai/packrat/internal/storage"
)

// Inspector serves the tools over a workspace's persisted state. It reads
// straight from disk, so it works whether or not an engine is running.
type Inspector struct {
	paths storage.Paths
}

// NewInspector creates an inspector over the given workspace.
func NewInspector(workspace string) *Inspector {
	return &Inspector{paths: storage.NewPaths(workspace)}
}

// Serve runs the MCP server over stdio until the stream closes.
func (i *Inspector) Serve(version string) error {
	s := server.NewMCPServer("packrat", version, server.WithToolCapabilities(false))

	s.AddTool(
		mcp.NewTool("narrative_read",
			mcp.WithDescription("Read the session's evolving working-memory document."),
		),
		i.handleNarrativeRead,
	)
	s.AddTool(
		mcp.NewTool("history_list",
			mcp.WithDescription("List compacted history entries for a session."),
			mcp.WithString("session", mcp.Required(), mcp.Description("Session identifier.")),
		),
		i.handleHistoryList,
	)
	s.AddTool(
		mcp.NewTool("archive_get",
			mcp.WithDescription("Fetch an archived raw block by content hash."),
			mcp.WithString("hash", mcp.Required(), mcp.Description("Content hash (full or 12-char prefix).")),
		),
		i.handleArchiveGet,
	)
	s.AddTool(
		mcp.NewTool("cache_stats",
			mcp.WithDescription("Report the block cache entry count."),
		),
		i.handleCacheStats,
	)

	return server.ServeStdio(s)
}

func (i *Inspector) handleNarrativeRead(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := os.ReadFile(i.paths.NarrativeFile())
	if os.IsNotExist(err) {
		return mcp.NewToolResultText("(no narrative document yet)"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (i *Inspector) handleHistoryList(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := req.RequireString("session")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	hist := history.New(i.paths.HistoryFile(session))
	if err := hist.Load(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	type entrySummary struct {
		Index            int    `json:"index"`
		CreatedAt        string `json:"created_at"`
		RawTokens        int    `json:"raw_tokens"`
		CompressedTokens int    `json:"compressed_tokens"`
		Preview          string `json:"preview"`
	}
	summaries := make([]entrySummary, 0, hist.Len())
	for idx, e := range hist.Entries() {
		summaries = append(summaries, entrySummary{
			Index:            idx + 1,
			CreatedAt:        e.CreatedAt.Format("2006-01-02 15:04"),
			RawTokens:        e.RawTokens,
			CompressedTokens: e.CompressedTokens,
			Preview:          preview(e.Compressed, 160),
		})
	}

	out, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (i *Inspector) handleArchiveGet(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hash, err := req.RequireString("hash")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(hash) > 12 {
		hash = hash[:12]
	}

	path := filepath.Join(i.paths.RawArchiveDir(), hash+".md")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return mcp.NewToolResultError(fmt.Sprintf("no archive record for %s", hash)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (i *Inspector) handleCacheStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cache := blockcache.New(i.paths.CacheFile(), i.paths.LegacyCacheFile(), 0)
	if err := cache.Load(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(`{"entries": %d}`, cache.Len())), nil
}

func preview(text string, n int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) <= n {
		return text
	}
	return text[:n] + "…"
}
