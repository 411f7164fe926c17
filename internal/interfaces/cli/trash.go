package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pms/billing/internal/domain/recyclebin"
	"github.com/pms/billing/internal/domain/shared"
)

type pageFlags struct {
	Number int `flag:"page" validate:"gte=0"`
	Size   int `flag:"size" validate:"gte=0,lte=100"`
}

func (f pageFlags) page() shared.Page {
	return shared.Page{Number: f.Number, Size: f.Size}.Normalize()
}

func bindPage(cmd *cobra.Command, f *pageFlags, size int) {
	cmd.Flags().IntVar(&f.Number, "page", 1, "Page number")
	cmd.Flags().IntVar(&f.Size, "size", size, "Page size")
}

// TrashCmd groups the recycle bin commands
func TrashCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "trash",
		Aliases: []string{"recycle-bin"},
		Short:   "List, restore and permanently delete soft-deleted records",
	}
	cmd.AddCommand(
		trashListCmd(app),
		trashActionCmd(app, recyclebin.ActionRestore, "Restore soft-deleted records"),
		trashActionCmd(app, recyclebin.ActionDelete, "Permanently delete soft-deleted records"),
	)
	return cmd
}

func trashListCmd(app *App) *cobra.Command {
	var flags pageFlags

	cmd := &cobra.Command{
		Use:   "list <properties|tenants|landlords>",
		Short: "List soft-deleted records of a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFlags(flags); err != nil {
				return err
			}
			kind, err := recyclebin.ParseKind(args[0])
			if err != nil {
				return err
			}
			result, err := app.RecycleBin.List(app.context(cmd), kind, flags.page())
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			out := cmd.OutOrStdout()
			printEntities(out, result.Items)
			fmt.Fprintf(out, "Page %d of %d, %d deleted %s\n", result.Page, result.TotalPages, result.Total, plural(kind))
			return nil
		},
	}
	bindPage(cmd, &flags, shared.DefaultPage().Size)
	return cmd
}

// trashActionCmd acts on one id directly. Several ids, or --all, go through a
// bin loaded with the requested page: the first id arms bulk mode and every
// further id toggles its check, then the whole selection is committed.
func trashActionCmd(app *App, action recyclebin.Action, short string) *cobra.Command {
	var flags pageFlags
	var all bool

	cmd := &cobra.Command{
		Use:   string(action) + " <properties|tenants|landlords> [id...]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFlags(flags); err != nil {
				return err
			}
			kind, err := recyclebin.ParseKind(args[0])
			if err != nil {
				return err
			}
			ids := uniqueIDs(args[1:])
			if len(ids) == 0 && !all {
				return shared.NewValidationError("ids", recyclebin.CodeIDRequired, "Pass at least one id or --all")
			}

			ctx := app.context(cmd)
			out := cmd.OutOrStdout()
			bin := recyclebin.NewBin(kind)

			if len(ids) == 1 && !all {
				if err := app.RecycleBin.ApplyOne(ctx, bin, action, ids[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s %s\n", pastTense(action), kind, ids[0])
				return nil
			}

			if _, err := app.RecycleBin.Load(ctx, bin, flags.page()); err != nil {
				return err
			}
			if all {
				entities := bin.Entities()
				if len(entities) == 0 {
					fmt.Fprintf(out, "No deleted %s on this page\n", plural(kind))
					return nil
				}
				ids = []string{entities[0].ID}
			}
			for _, id := range ids {
				if _, err := bin.Arm(action, id); err != nil {
					return err
				}
			}
			if all {
				bin.SelectAll()
			}

			result, err := app.RecycleBin.Commit(ctx, bin)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(out, result)
			}
			fmt.Fprintf(out, "%s %d %s: %s\n", pastTense(action), len(result.Succeeded), plural(kind), strings.Join(result.Succeeded, ", "))
			return nil
		},
	}
	bindPage(cmd, &flags, 100)
	cmd.Flags().BoolVar(&all, "all", false, "Act on every record of the page")
	return cmd
}

func plural(kind recyclebin.Kind) string {
	if d, ok := recyclebin.DescriptorFor(kind); ok {
		return strings.ToLower(d.Label)
	}
	return kind.String()
}

func uniqueIDs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func pastTense(action recyclebin.Action) string {
	if action == recyclebin.ActionRestore {
		return "Restored"
	}
	return "Deleted"
}

func printEntities(out io.Writer, entities []recyclebin.RecyclableEntity) {
	if len(entities) == 0 {
		fmt.Fprintln(out, "The recycle bin is empty.")
		return
	}
	fmt.Fprintf(out, "%-10s  %-30s  %-20s\n", "ID", "Name", "Deleted At")
	for _, e := range entities {
		deletedAt := "-"
		if e.DeletedAt != nil {
			deletedAt = e.DeletedAt.Format(time.DateTime)
		}
		fmt.Fprintf(out, "%-10s  %-30s  %-20s\n", e.ID, e.Name, deletedAt)
	}
}
