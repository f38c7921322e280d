package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/mdboard/internal/ui"
)

var columnCmd = &cobra.Command{
	Use:     "column",
	GroupID: "board",
	Short:   "Add, rename, remove and reorder columns",
}

var columnAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a column at the right end",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		col, err := st.AddColumn(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Added column %q (%s)\n", ui.RenderPass("✓"), col.Name, col.ID)
		return nil
	},
}

var columnRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Change a column's display name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		if err := st.RenameColumn(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Column %s is now %q\n", ui.RenderPass("✓"), args[0], args[1])
		return nil
	},
}

var columnRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an empty column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		if err := st.RemoveColumn(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Removed column %s\n", ui.RenderPass("✓"), args[0])
		return nil
	},
}

var columnReorderCmd = &cobra.Command{
	Use:   "reorder <id>...",
	Short: "Set the column order",
	Long:  `Set the left-to-right column order. Every column ID must be given once.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		if err := st.ReorderColumns(args); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Columns reordered\n", ui.RenderPass("✓"))
		return nil
	},
}

var labelCmd = &cobra.Command{
	Use:     "label",
	GroupID: "board",
	Short:   "Manage the board's labels",
}

var labelAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Define a label",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		color, _ := cmd.Flags().GetString("color")
		label, err := st.AddLabel(args[0], color)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Added label %s (%s)\n", ui.RenderPass("✓"), ui.RenderLabel(st.Board(), label.ID), label.ID)
		return nil
	},
}

var labelRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Change a label's display name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		if err := st.RenameLabel(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Label %s is now %s\n", ui.RenderPass("✓"), args[0], ui.RenderLabel(st.Board(), args[0]))
		return nil
	},
}

var labelRecolorCmd = &cobra.Command{
	Use:   "recolor <id> <color>",
	Short: "Change a label's color (#rrggbb, or empty for none)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		if err := st.RecolorLabel(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Recolored %s\n", ui.RenderPass("✓"), ui.RenderLabel(st.Board(), args[0]))
		return nil
	},
}

var labelRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a label definition",
	Long: `Delete a label definition. Cards that carry the label keep the reference
and show it muted until they are relabeled.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		if err := st.RemoveLabel(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Removed label %s\n", ui.RenderPass("✓"), args[0])
		return nil
	},
}

var boardCmd = &cobra.Command{
	Use:     "board",
	GroupID: "board",
	Short:   "Change board-wide settings",
}

var boardTitleCmd = &cobra.Command{
	Use:   "title <title>",
	Short: "Rename the board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		if err := st.SetTitle(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Board is now %q\n", ui.RenderPass("✓"), args[0])
		return nil
	},
}

var boardTemplateCmd = &cobra.Command{
	Use:   "template [text]",
	Short: "Set the body new cards start with",
	Long: `Set the body new cards start with when created without one. Pass the
text as an argument, or use --file ("-" reads stdin). An empty argument
clears the template.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}

		var template string
		file, _ := cmd.Flags().GetString("file")
		switch {
		case len(args) == 1:
			template = args[0]
		case file == "-":
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			template = string(data)
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			template = string(data)
		default:
			fmt.Fprint(cmd.OutOrStdout(), st.Board().CardTemplate)
			return nil
		}

		if err := st.SetCardTemplate(template); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Card template updated\n", ui.RenderPass("✓"))
		return nil
	},
}

func init() {
	labelAddCmd.Flags().String("color", "", "Color as #rrggbb")
	boardTemplateCmd.Flags().StringP("file", "f", "", `Read the template from a file ("-" for stdin)`)

	columnCmd.AddCommand(columnAddCmd, columnRenameCmd, columnRemoveCmd, columnReorderCmd)
	labelCmd.AddCommand(labelAddCmd, labelRenameCmd, labelRecolorCmd, labelRemoveCmd)
	boardCmd.AddCommand(boardTitleCmd, boardTemplateCmd)
	rootCmd.AddCommand(columnCmd, labelCmd, boardCmd)
}
