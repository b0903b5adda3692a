package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazypower/memvault/internal/memory"
	"github.com/lazypower/memvault/internal/vault"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive memory shell",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			return runShell(cmd.Context(), a.engine, vault.NewHistory(a.cfg.Chat.HistoryTurns), cmd.InOrStdin(), cmd.OutOrStdout())
		})
	},
}

const shellHelp = `Commands:
  add <text>     - Add a memory
  search <query> - Search memories
  chat <message> - Chat with memory context
  list           - List recent memories
  clear          - Clear all memories
  quit           - Exit`

// runShell reads commands from in until EOF or quit. Command errors are
// printed and the loop continues.
func runShell(ctx context.Context, eng *vault.Engine, history *vault.History, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "memvault interactive shell")
	fmt.Fprintln(out, "Commands: add <text>, search <query>, chat <message>, list, clear, quit")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		command, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch strings.ToLower(command) {
		case "quit", "exit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "help":
			fmt.Fprintln(out, shellHelp)
		case "add":
			if arg == "" {
				fmt.Fprintln(out, "Usage: add <memory text>")
				continue
			}
			id, err := eng.Add(ctx, arg, memory.Metadata{memory.MetaSource: "manual"})
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Added memory: %s\n", id)
		case "search":
			if arg == "" {
				fmt.Fprintln(out, "Usage: search <query>")
				continue
			}
			results, err := eng.Search(ctx, arg, vault.SearchOptions{})
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "No memories found")
				continue
			}
			fmt.Fprintf(out, "Found %d memories:\n", len(results))
			for _, r := range results {
				fmt.Fprintf(out, "  - [%.3f] %s\n", r.Score, r.Record.Text)
			}
		case "chat":
			if arg == "" {
				fmt.Fprintln(out, "Usage: chat <message>")
				continue
			}
			answer, err := eng.Chat(ctx, arg, vault.ChatOptions{History: history})
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "\nAssistant: %s\n", answer)
		case "list":
			total, err := eng.Count(ctx)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			if total == 0 {
				fmt.Fprintln(out, "No memories stored")
				continue
			}
			recs, err := eng.List(ctx, memory.ListOptions{Limit: 10})
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Total memories: %d\n", total)
			for _, r := range recs {
				text := r.Text
				if rs := []rune(text); len(rs) > 80 {
					text = string(rs[:80]) + "..."
				}
				fmt.Fprintf(out, "  - %s\n", text)
			}
			if total > len(recs) {
				fmt.Fprintf(out, "  ... and %d more\n", total-len(recs))
			}
		case "clear":
			n, err := eng.Clear(ctx)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			history.Reset()
			fmt.Fprintf(out, "Cleared %d memories\n", n)
		default:
			fmt.Fprintf(out, "Unknown command: %s\n", command)
			fmt.Fprintln(out, "Type 'help' for available commands")
		}
	}
}
