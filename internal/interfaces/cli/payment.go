package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	paymentapp "github.com/pms/billing/internal/application/payment"
	"github.com/pms/billing/internal/domain/payment"
	"github.com/pms/billing/internal/domain/shared"
)

// QuoteCmd totals a selection of bill items without paying anything
func QuoteCmd(app *App) *cobra.Command {
	var flags tenancyFlags

	cmd := &cobra.Command{
		Use:   "quote <bill_item_id>...",
		Short: "Total the amount due of the selected bill items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFlags(flags); err != nil {
				return err
			}
			quote, err := app.Payments.Quote(app.context(cmd), flags.TenantID, flags.UnitID, args)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), quote)
			}
			out := cmd.OutOrStdout()
			printBillItems(out, quote.Items)
			fmt.Fprintf(out, "Selected total: %s (%s)\n", quote.Total, strings.Join(quote.Descriptions, ", "))
			return nil
		},
	}
	bindTenancy(cmd, &flags)
	return cmd
}

// PayCmd submits one payment against the selected bill items
func PayCmd(app *App) *cobra.Command {
	var flags struct {
		Tenancy   tenancyFlags
		Method    string `flag:"method" validate:"required"`
		Amount    string `flag:"amount"`
		Reference string `flag:"reference"`
		Phone     string `flag:"phone"`
		Datetime  string `flag:"datetime"`
		Notes     string `flag:"notes"`
	}

	cmd := &cobra.Command{
		Use:   "pay <bill_item_id>...",
		Short: "Pay the selected bill items through one payment method",
		Long: "Pay the selected bill items through one payment method.\n" +
			"Methods: " + methodList() + ".\n" +
			"mpesa_express pushes a prompt to --phone and completes asynchronously.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFlags(flags); err != nil {
				return err
			}
			datetime, err := parseDatetime(flags.Datetime)
			if err != nil {
				return err
			}

			allocation, err := app.Payments.Allocate(app.context(cmd), paymentapp.AllocateRequest{
				TenantID:    flags.Tenancy.TenantID,
				UnitID:      flags.Tenancy.UnitID,
				BillItemIDs: args,
				Method:      payment.Method(strings.ToLower(strings.TrimSpace(flags.Method))),
				Fields: payment.Fields{
					Amount:    flags.Amount,
					Reference: flags.Reference,
					Phone:     flags.Phone,
					Datetime:  datetime,
					Notes:     flags.Notes,
				},
			})
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), allocation.Result)
			}
			out := cmd.OutOrStdout()
			receipt := allocation.Receipt
			if receipt.Route == payment.RouteExpress {
				fmt.Fprintf(out, "Payment prompt sent (checkout %s); it completes once the tenant approves it\n", receipt.CheckoutRequestID)
			} else {
				fmt.Fprintf(out, "Payment recorded (transaction %s)\n", receipt.TransactionID)
			}
			fmt.Fprintf(out, "Paid %s by %s for %s\n", allocation.Amount, allocation.Method, strings.Join(allocation.Descriptions, ", "))
			if allocation.Mismatch {
				fmt.Fprintf(out, "Warning: amount differs from the selected total %s\n", allocation.SelectedTotal)
			}
			if allocation.Ledger != nil {
				return renderLedger(cmd, allocation.Ledger, false)
			}
			return nil
		},
	}
	bindTenancy(cmd, &flags.Tenancy)
	cmd.Flags().StringVar(&flags.Method, "method", "", "Payment method")
	cmd.Flags().StringVar(&flags.Amount, "amount", "", "Amount paid")
	cmd.Flags().StringVar(&flags.Reference, "reference", "", "Transaction reference")
	cmd.Flags().StringVar(&flags.Phone, "phone", "", "Payer phone number")
	cmd.Flags().StringVar(&flags.Datetime, "datetime", "", "When the payment was made (RFC 3339); defaults to now")
	cmd.Flags().StringVar(&flags.Notes, "notes", "", "Free-text notes")
	return cmd
}

func methodList() string {
	methods := payment.AllMethods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.String()
	}
	return strings.Join(names, ", ")
}

func parseDatetime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, shared.NewValidationError("datetime", shared.ErrInvalidInput.Code, "Date must be RFC 3339, e.g. 2026-03-01T09:30:00Z")
	}
	return &t, nil
}
