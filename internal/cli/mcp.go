package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lazypower/memvault/internal/mcpserver"
	"github.com/lazypower/memvault/internal/vault"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve memory tools over MCP stdio",
	Long:  "Run an MCP server on stdin/stdout so assistants such as Claude Desktop can add, search and chat with memories.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			srv := mcpserver.New(a.engine, VersionString(), vault.NewHistory(a.cfg.Chat.HistoryTurns), slog.Default())
			return srv.ServeStdio()
		})
	},
}
