package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/memvault/internal/store"
	"github.com/lazypower/memvault/internal/vault"
)

// --- dump command ---

var dumpCmd = &cobra.Command{
	Use:   "dump [file]",
	Short: "Export all memories to a JSON file (.zst to compress), or stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			if len(args) == 0 || args[0] == "-" {
				return a.engine.Dump(cmd.Context(), cmd.OutOrStdout())
			}
			f, err := store.CreateDumpFile(args[0])
			if err != nil {
				return err
			}
			if err := a.engine.Dump(cmd.Context(), f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", args[0], err)
			}
			fmt.Fprintf(os.Stderr, "wrote %s\n", args[0])
			return nil
		})
	},
}

// --- load command ---

var loadCmd = &cobra.Command{
	Use:   "load [file]",
	Short: "Import memories from a dump file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			f, err := store.OpenDumpFile(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			n, err := a.engine.Load(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d memories\n", n)
			return nil
		})
	},
}

// --- reindex command ---

var reindexReembed bool

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the vector index from the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			n, err := a.engine.Reindex(cmd.Context(), vault.ReindexOptions{Reembed: reindexReembed})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d memories\n", n)
			return nil
		})
	},
}

// --- stats command ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record and index counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			st, err := a.engine.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "records:    %d\n", st.Records)
			fmt.Fprintf(out, "indexed:    %d\n", st.Indexed)
			fmt.Fprintf(out, "model:      %s\n", st.Model)
			fmt.Fprintf(out, "dimensions: %d\n", st.Dimensions)
			fmt.Fprintf(out, "store:      %s (%s)\n", a.cfg.Store.Backend, a.storeAt)
			fmt.Fprintf(out, "index:      %s\n", a.cfg.Index.Backend)
			if st.Records != st.Indexed {
				fmt.Fprintln(out, "warning: store and index disagree, run `memvault reindex`")
			}
			return nil
		})
	},
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexReembed, "reembed", false, "Embed every memory again, not only stale ones")
}
