package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/mschirtzinger/mdboard/internal/ui"
)

var cardCmd = &cobra.Command{
	Use:     "card",
	GroupID: "board",
	Short:   "Create, edit, move and archive cards",
	Long: `Work with cards. A card can be referred to by its title, its ID or its
file name without the .md extension.`,
}

var cardAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a card at the end of a column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		column, _ := cmd.Flags().GetString("column")
		if column == "" {
			column = st.Board().Columns[0].ID
		}
		body, _ := cmd.Flags().GetString("body")
		labels, _ := cmd.Flags().GetStringSlice("label")

		card, err := st.CreateCard(column, args[0], body, labels)
		if err != nil {
			return err
		}
		path, _ := st.Path(card.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "%s Added %q to %s\n   %s\n", ui.RenderPass("✓"), card.Title, column, ui.RenderMuted(path))
		return nil
	},
}

var cardShowCmd = &cobra.Command{
	Use:   "show <card>",
	Short: "Print a card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		card, err := st.Card(args[0])
		if err != nil {
			return err
		}
		path, _ := st.Path(card.ID)
		board := st.Board()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", ui.RenderAccent(card.Title))
		column := card.Column
		if c, ok := board.Column(card.Column); ok {
			column = c.Name
		} else {
			column = ui.RenderWarn(column + " (not on board)")
		}
		fmt.Fprintf(out, "Column:  %s\n", column)
		if len(card.Labels) > 0 {
			chips := make([]string, 0, len(card.Labels))
			for _, id := range card.Labels {
				chips = append(chips, ui.RenderLabel(board, id))
			}
			fmt.Fprintf(out, "Labels:  %s\n", strings.Join(chips, " "))
		}
		fmt.Fprintf(out, "Created: %s\n", card.CreatedAt.Local().Format("2006-01-02 15:04"))
		fmt.Fprintf(out, "ID:      %s\n", ui.RenderMuted(card.ID))
		fmt.Fprintf(out, "File:    %s\n", ui.RenderMuted(path))
		if card.Body != "" {
			fmt.Fprintf(out, "\n%s\n", strings.TrimRight(card.Body, "\n"))
		}
		return nil
	},
}

var cardRenameCmd = &cobra.Command{
	Use:   "rename <card> <new title>",
	Short: "Rename a card and its file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		card, err := st.RenameCard(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Renamed to %q\n", ui.RenderPass("✓"), card.Title)
		return nil
	},
}

var cardEditCmd = &cobra.Command{
	Use:   "edit <card>",
	Short: "Replace a card's body",
	Long: `Replace a card's body with --body, with the contents of --file ("-" reads
stdin), or, on a terminal, with an inline editor.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		card, err := st.Card(args[0])
		if err != nil {
			return err
		}

		body, err := editedBody(cmd, card.Title, card.Body)
		if err != nil {
			return err
		}
		if err := st.UpdateCardBody(card.ID, body); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Updated %q\n", ui.RenderPass("✓"), card.Title)
		return nil
	},
}

// editedBody returns the new body from flags, or asks for it on a terminal.
func editedBody(cmd *cobra.Command, title, current string) (string, error) {
	if cmd.Flags().Changed("body") {
		return cmd.Flags().GetString("body")
	}
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		var data []byte
		var err error
		if file == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(file)
		}
		if err != nil {
			return "", fmt.Errorf("failed to read body: %w", err)
		}
		return string(data), nil
	}
	if !interactive(cmd) {
		return "", errors.New("no body given: use --body or --file")
	}

	body := current
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title(title).
				Lines(12).
				Value(&body),
		),
	).Run()
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}

var cardMoveCmd = &cobra.Command{
	Use:   "move <card> <column>",
	Short: "Move a card to a column",
	Long: `Move a card to a column, at the end or at --index (0 is the top). Moving
within the same column reorders it.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		index, _ := cmd.Flags().GetInt("index")
		if err := st.MoveCard(args[0], args[1], index); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Moved %q to %s\n", ui.RenderPass("✓"), args[0], args[1])
		return nil
	},
}

var cardLabelCmd = &cobra.Command{
	Use:   "label <card> [label...]",
	Short: "Set a card's labels",
	Long:  `Replace a card's labels. With no labels given, every label is removed.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		if err := st.SetCardLabels(args[0], args[1:]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Labels of %q set\n", ui.RenderPass("✓"), args[0])
		return nil
	},
}

var cardArchiveCmd = &cobra.Command{
	Use:   "archive <card>",
	Short: "Move a card to the archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		if err := st.ArchiveCard(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Archived %q\n", ui.RenderPass("✓"), args[0])
		return nil
	},
}

var cardUnarchiveCmd = &cobra.Command{
	Use:   "unarchive <card>",
	Short: "Restore an archived card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		column, _ := cmd.Flags().GetString("column")
		card, err := st.UnarchiveCard(args[0], column)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Restored %q to %s\n", ui.RenderPass("✓"), card.Title, card.Column)
		return nil
	},
}

var cardDeleteCmd = &cobra.Command{
	Use:   "delete <card>",
	Short: "Delete a card file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		card, err := st.Card(args[0])
		if err != nil {
			return err
		}

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			if !interactive(cmd) {
				return errors.New("refusing to delete without --yes")
			}
			err := huh.NewConfirm().
				Title(fmt.Sprintf("Delete %q?", card.Title)).
				Description("The file is removed. Use archive to keep it.").
				Value(&yes).
				Run()
			if err != nil {
				return err
			}
			if !yes {
				return nil
			}
		}

		if err := st.DeleteCard(card.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %q\n", ui.RenderPass("✓"), card.Title)
		return nil
	},
}

func init() {
	cardAddCmd.Flags().StringP("column", "c", "", "Column ID (default: first column)")
	cardAddCmd.Flags().StringP("body", "b", "", "Card body (default: the board's card template)")
	cardAddCmd.Flags().StringSliceP("label", "l", nil, "Label ID (repeatable)")

	cardEditCmd.Flags().StringP("body", "b", "", "New body")
	cardEditCmd.Flags().StringP("file", "f", "", `Read the body from a file ("-" for stdin)`)

	cardMoveCmd.Flags().IntP("index", "i", -1, "Position in the column (-1 = end)")

	cardUnarchiveCmd.Flags().StringP("column", "c", "", "Column to restore into (default: first column)")

	cardDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	cardCmd.AddCommand(cardAddCmd, cardShowCmd, cardRenameCmd, cardEditCmd, cardMoveCmd,
		cardLabelCmd, cardArchiveCmd, cardUnarchiveCmd, cardDeleteCmd)
	rootCmd.AddCommand(cardCmd)
}
