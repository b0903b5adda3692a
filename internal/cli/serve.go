package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/memvault/internal/server"
	"github.com/lazypower/memvault/internal/vault"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app) error {
		srv := server.New(a.engine, VersionString(),
			server.WithMetrics(a.metrics),
			server.WithHistory(vault.NewHistory(a.cfg.Chat.HistoryTurns)),
		)
		addr := a.cfg.ListenAddr()

		httpServer := &http.Server{
			Addr:              addr,
			Handler:           srv,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		done := make(chan os.Signal, 1)
		signal.Notify(done, os.Interrupt, syscall.SIGTERM)
		errCh := make(chan error, 1)

		go func() {
			fmt.Fprintf(os.Stderr, "memvault serving on %s\n", addr)
			fmt.Fprintf(os.Stderr, "  store: %s (%s)\n", a.cfg.Store.Backend, a.storeAt)
			fmt.Fprintf(os.Stderr, "  index: %s\n", a.cfg.Index.Backend)
			fmt.Fprintf(os.Stderr, "  embedder: %s (%d dims)\n", a.engine.Model(), a.engine.Dimensions())
			if a.engine.ChatEnabled() {
				fmt.Fprintf(os.Stderr, "  llm: %s (%s)\n", a.cfg.LLM.Provider, a.cfg.LLM.Model)
			}
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-done:
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		}
		fmt.Fprintln(os.Stderr, "\nshutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	})
}
