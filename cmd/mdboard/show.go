package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mschirtzinger/mdboard/internal/index"
	"github.com/mschirtzinger/mdboard/internal/ui"
)

var showCmd = &cobra.Command{
	Use:     "show",
	GroupID: "views",
	Short:   "Draw the board",
	Long: `Draw every column side by side with its cards in order. Cards whose column
is missing from board.md are shown in an extra "Unknown column" box.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if archived, _ := cmd.Flags().GetBool("archived"); archived {
			cards, err := st.Archived()
			if err != nil {
				return err
			}
			if len(cards) == 0 {
				fmt.Fprintln(out, ui.RenderMuted("No archived cards"))
				return nil
			}
			for _, c := range cards {
				fmt.Fprintf(out, "• %s %s\n", c.Title, ui.RenderMuted(c.CreatedAt.Format("2006-01-02")))
			}
			return nil
		}

		fmt.Fprintln(out, ui.RenderBoard(st.Board(), st.Cards(), terminalWidth()))
		return nil
	},
}

var findCmd = &cobra.Command{
	Use:     "find [text]",
	GroupID: "views",
	Short:   "Search cards by title and body",
	Long: `Search cards through the SQLite index in .mdboard/index.db. The index is
refreshed from the card files before every search.

Examples:
  mdboard find login
  mdboard find --column doing
  mdboard find --label bug release`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}

		db, err := index.Open(st.Layout().IndexPath())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Rebuild(rootCtx, st.Board(), st.Cards()); err != nil {
			return err
		}

		q := index.Query{}
		if len(args) == 1 {
			q.Text = args[0]
		}
		q.Column, _ = cmd.Flags().GetString("column")
		q.Label, _ = cmd.Flags().GetString("label")
		q.Limit, _ = cmd.Flags().GetInt("limit")

		results, err := db.Find(rootCtx, q)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, ui.RenderMuted("No matching cards"))
			return nil
		}
		board := st.Board()
		for _, r := range results {
			chips := make([]string, 0, len(r.Labels))
			for _, id := range r.Labels {
				chips = append(chips, ui.RenderLabel(board, id))
			}
			fmt.Fprintf(out, "%s %s %s\n", ui.RenderMuted(r.Column+"/"), r.Title, strings.Join(chips, " "))
		}
		return nil
	},
}

// terminalWidth returns stdout's width, or 0 when stdout is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}

func init() {
	showCmd.Flags().Bool("archived", false, "List archived cards instead")
	findCmd.Flags().String("column", "", "Only cards in this column")
	findCmd.Flags().String("label", "", "Only cards with this label")
	findCmd.Flags().Int("limit", 0, "Maximum number of results (0 = no limit)")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(findCmd)
}
