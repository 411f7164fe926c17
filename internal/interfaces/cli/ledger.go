package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	ledgerapp "github.com/pms/billing/internal/application/ledger"
	"github.com/pms/billing/internal/domain/ledger"
	"github.com/pms/billing/internal/domain/shared"
)

type tenancyFlags struct {
	TenantID string `flag:"tenant" validate:"required,max=64"`
	UnitID   string `flag:"unit" validate:"required,max=64"`
}

func (f tenancyFlags) tenancy() ledgerapp.Tenancy {
	return ledgerapp.Tenancy{TenantID: f.TenantID, UnitID: f.UnitID}
}

func bindTenancy(cmd *cobra.Command, f *tenancyFlags) {
	cmd.Flags().StringVar(&f.TenantID, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&f.UnitID, "unit", "", "Unit ID")
}

type ledgerView struct {
	TenantID  string            `json:"tenant_id"`
	UnitID    string            `json:"unit_id"`
	Items     []ledger.BillItem `json:"items"`
	Totals    ledger.Totals     `json:"totals"`
	BillTypes []string          `json:"bill_types"`
}

// LedgerCmd groups the bill item commands
func LedgerCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List and edit the bill items of a tenancy",
	}
	cmd.AddCommand(
		ledgerListCmd(app),
		ledgerAddCmd(app),
		ledgerPatchCmd(app),
		ledgerDeleteCmd(app),
	)
	return cmd
}

func ledgerListCmd(app *App) *cobra.Command {
	var flags tenancyFlags
	var onlyApplicable bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the active bill items with totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFlags(flags); err != nil {
				return err
			}
			l, err := app.Ledger.List(app.context(cmd), flags.tenancy())
			if err != nil {
				return err
			}
			return renderLedger(cmd, l, onlyApplicable)
		},
	}
	bindTenancy(cmd, &flags)
	cmd.Flags().BoolVar(&onlyApplicable, "applicable", false, "Only show items applicable to the tenancy")
	return cmd
}

func ledgerAddCmd(app *App) *cobra.Command {
	var flags struct {
		Tenancy  tenancyFlags
		BillType string `flag:"type" validate:"required"`
		Amount   string `flag:"amount"`
	}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a charge to the tenancy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFlags(flags); err != nil {
				return err
			}
			amount, err := parseAmount("amount", flags.Amount)
			if err != nil {
				return err
			}
			l, err := app.Ledger.Add(app.context(cmd), ledgerapp.AddBillItemRequest{
				Tenancy:  flags.Tenancy.tenancy(),
				BillType: flags.BillType,
				Amount:   amount,
			})
			if err != nil {
				return err
			}
			return renderMutation(cmd, l)
		},
	}
	bindTenancy(cmd, &flags.Tenancy)
	cmd.Flags().StringVar(&flags.BillType, "type", "", "Bill type, e.g. rent or garbage")
	cmd.Flags().StringVar(&flags.Amount, "amount", "", "Amount expected")
	return cmd
}

func ledgerPatchCmd(app *App) *cobra.Command {
	var flags struct {
		Tenancy tenancyFlags
		Amount  string `flag:"amount"`
	}

	cmd := &cobra.Command{
		Use:   "patch <bill_item_id>",
		Short: "Override the expected amount of a bill item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFlags(flags); err != nil {
				return err
			}
			amount, err := parseAmount("amount", flags.Amount)
			if err != nil {
				return err
			}
			l, err := app.Ledger.Patch(app.context(cmd), ledgerapp.PatchBillItemRequest{
				Tenancy:        flags.Tenancy.tenancy(),
				BillItemID:     args[0],
				AmountExpected: amount,
			})
			if err != nil {
				return err
			}
			return renderMutation(cmd, l)
		},
	}
	bindTenancy(cmd, &flags.Tenancy)
	cmd.Flags().StringVar(&flags.Amount, "amount", "", "New amount expected")
	return cmd
}

func ledgerDeleteCmd(app *App) *cobra.Command {
	var flags tenancyFlags

	cmd := &cobra.Command{
		Use:   "delete <bill_item_id>",
		Short: "Remove a bill item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFlags(flags); err != nil {
				return err
			}
			l, err := app.Ledger.Delete(app.context(cmd), ledgerapp.DeleteBillItemRequest{
				Tenancy:    flags.tenancy(),
				BillItemID: args[0],
			})
			if err != nil {
				return err
			}
			return renderMutation(cmd, l)
		},
	}
	bindTenancy(cmd, &flags)
	return cmd
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, shared.NewValidationError(field, ledger.CodeAmountInvalid, "Amount must be a number")
	}
	return d, nil
}

// renderMutation prints the ledger after a write; a nil ledger means the write
// was applied but the ledger could not be refetched
func renderMutation(cmd *cobra.Command, l *ledger.Ledger) error {
	if l == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Change applied; the ledger could not be refreshed. Run 'ledger list' instead of retrying.")
		return nil
	}
	return renderLedger(cmd, l, false)
}

func renderLedger(cmd *cobra.Command, l *ledger.Ledger, onlyApplicable bool) error {
	applicable, other := l.GroupByApplicable()
	items := l.Items()
	totals := l.Totals()
	if onlyApplicable {
		items, other = applicable, nil
		totals = ledger.SumItems(applicable)
	}

	if jsonOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), ledgerView{
			TenantID:  l.TenantID,
			UnitID:    l.UnitID,
			Items:     items,
			Totals:    totals,
			BillTypes: l.BillTypes(),
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ledger of tenant %s, unit %s\n", l.TenantID, l.UnitID)
	printBillItems(out, applicable)
	if len(other) > 0 {
		fmt.Fprintln(out, "Not applicable:")
		printBillItems(out, other)
	}
	fmt.Fprintf(out, "Expected %s, paid %s, due %s\n", totals.Expected, totals.Paid, totals.Due)
	return nil
}

func printBillItems(out io.Writer, items []ledger.BillItem) {
	if len(items) == 0 {
		fmt.Fprintln(out, "No bill items.")
		return
	}
	fmt.Fprintf(out, "%-8s  %-20s  %-12s  %-12s  %-12s  %-8s\n", "ID", "Item", "Expected", "Paid", "Due", "Status")
	for _, item := range items {
		fmt.Fprintf(out, "%-8s  %-20s  %-12s  %-12s  %-12s  %-8s\n",
			item.ID, item.Label(), item.AmountExpected, item.AmountPaid, item.AmountDue(), item.Status())
	}
}
