package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazypower/memvault/internal/memory"
	"github.com/lazypower/memvault/internal/vault"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseMeta turns key=value pairs into metadata. Values that parse as
// bool, integer or float keep that type.
func parseMeta(pairs []string) (memory.Metadata, error) {
	meta := memory.Metadata{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --meta %q, want key=value", p)
		}
		switch {
		case v == "true" || v == "false":
			meta[k] = v == "true"
		default:
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				meta[k] = i
			} else if f, err := strconv.ParseFloat(v, 64); err == nil {
				meta[k] = f
			} else {
				meta[k] = v
			}
		}
	}
	return meta, nil
}

// --- add command ---

var (
	addType   string
	addSource string
	addTags   string
	addMeta   []string
)

var addCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Store a memory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		meta, err := parseMeta(addMeta)
		if err != nil {
			return err
		}
		if addType != "" {
			meta[memory.MetaType] = addType
		}
		if addSource != "" {
			meta[memory.MetaSource] = addSource
		}
		if addTags != "" {
			meta[memory.MetaTags] = addTags
		}
		return withApp(cmd, func(a *app) error {
			id, err := a.engine.Add(cmd.Context(), strings.Join(args, " "), meta)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

// --- search command ---

var (
	searchTopK     int
	searchMinScore float64
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search memories by similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := vault.SearchOptions{TopK: searchTopK}
		if cmd.Flags().Changed("min-score") {
			opts.MinScore = &searchMinScore
		}
		return withApp(cmd, func(a *app) error {
			results, err := a.engine.Search(cmd.Context(), strings.Join(args, " "), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if searchJSON {
				return printJSON(out, results)
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(out, "%d. [%.3f] %s\n", i+1, r.Score, r.Record.Text)
				fmt.Fprintf(out, "   %s\n", r.Record.ID)
			}
			return nil
		})
	},
}

// --- get command ---

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			rec, err := a.engine.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rec.Embedding = nil
			return printJSON(cmd.OutOrStdout(), rec)
		})
	},
}

// --- delete command ---

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete one memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			if err := a.engine.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		})
	},
}

// --- list command ---

var (
	listLimit int
	listOrder string
	listJSON  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List memories",
	RunE: func(cmd *cobra.Command, args []string) error {
		order, err := memory.ParseOrder(listOrder)
		if err != nil {
			return err
		}
		return withApp(cmd, func(a *app) error {
			recs, err := a.engine.List(cmd.Context(), memory.ListOptions{Limit: listLimit, Order: order})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if listJSON {
				for _, r := range recs {
					r.Embedding = nil
				}
				return printJSON(out, recs)
			}
			if len(recs) == 0 {
				fmt.Fprintln(out, "No memories stored.")
				return nil
			}
			for _, r := range recs {
				text := r.Text
				if rs := []rune(text); len(rs) > 80 {
					text = string(rs[:80]) + "..."
				}
				fmt.Fprintf(out, "%s  %s  %s\n", r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), text)
			}
			return nil
		})
	},
}

// --- clear command ---

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return fmt.Errorf("refusing to clear without --yes")
		}
		return withApp(cmd, func(a *app) error {
			n, err := a.engine.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d memories\n", n)
			return nil
		})
	},
}

// --- chat command ---

var (
	chatTopK   int
	chatSystem string
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask a question with relevant memories as context",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			answer, err := a.engine.Chat(cmd.Context(), strings.Join(args, " "), vault.ChatOptions{
				TopK:         chatTopK,
				SystemPrompt: chatSystem,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		})
	},
}

func init() {
	addCmd.Flags().StringVarP(&addType, "type", "t", "", "Memory type (fact, preference, event, opinion, procedure, personal)")
	addCmd.Flags().StringVar(&addSource, "source", "manual", "Memory source")
	addCmd.Flags().StringVar(&addTags, "tags", "", "Comma-separated tags")
	addCmd.Flags().StringArrayVar(&addMeta, "meta", nil, "Extra metadata as key=value (repeatable)")

	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "Maximum number of results (default from config)")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0, "Drop results scoring below this")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print results as JSON")

	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum number of memories (0 for all)")
	listCmd.Flags().StringVar(&listOrder, "order", "newest", "newest or oldest")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print memories as JSON")

	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm deleting every memory")

	chatCmd.Flags().IntVarP(&chatTopK, "top-k", "k", 0, "Memories to use as context (default from config)")
	chatCmd.Flags().StringVar(&chatSystem, "system", "", "System prompt; {memories} marks where context goes")
}
