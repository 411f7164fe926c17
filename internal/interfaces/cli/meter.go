package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	meteringapp "github.com/pms/billing/internal/application/metering"
	"github.com/pms/billing/internal/domain/metering"
	"github.com/pms/billing/internal/domain/shared"
)

type recordFlags struct {
	TenantID  string `flag:"tenant" validate:"required,max=64"`
	Reading   string `flag:"reading"`
	UnitPrice string `flag:"unit-price"`
}

// MeterCmd groups the meter reading commands
func MeterCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meter",
		Short: "Read and record utility meter readings",
	}
	cmd.AddCommand(meterHistoryCmd(app), meterRecordCmd(app))
	return cmd
}

func meterHistoryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history <water|electricity> <unit_id>",
		Short: "Show the readings of a unit, most recent first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			utility, err := parseUtility(args[0])
			if err != nil {
				return err
			}

			history, err := app.Readings.History(app.context(cmd), utility, args[1])
			if err != nil {
				return err
			}

			view := meteringapp.NewHistoryView(history)
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			printHistory(cmd, view)
			return nil
		},
	}
}

func meterRecordCmd(app *App) *cobra.Command {
	var flags recordFlags

	cmd := &cobra.Command{
		Use:   "record <water|electricity> <unit_id>",
		Short: "Record a reading; it must not be below the previous one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFlags(flags); err != nil {
				return err
			}
			utility, err := parseUtility(args[0])
			if err != nil {
				return err
			}

			var errs shared.ValidationErrors
			reading, err := metering.ParseReading("reading", flags.Reading)
			if err != nil {
				errs = append(errs, shared.FieldErrors(err)...)
			}
			unitPrice, err := metering.ParseUnitPrice(flags.UnitPrice)
			if err != nil {
				errs = append(errs, shared.FieldErrors(err)...)
			}
			if err := errs.OrNil(); err != nil {
				return err
			}

			result, err := app.Readings.RecordReading(app.context(cmd), meteringapp.RecordReadingRequest{
				Utility:   utility,
				UnitID:    args[1],
				TenantID:  flags.TenantID,
				Reading:   reading,
				UnitPrice: unitPrice,
			})
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recorded %s reading %s %s (previous %s, consumed %s)\n",
				utility, reading, utility.Unit(), result.Previous, result.UnitsConsumed)
			if result.EstimatedAmount != nil {
				fmt.Fprintf(out, "Estimated amount: %s\n", result.EstimatedAmount)
			}
			if result.History != nil {
				printHistory(cmd, result.History)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.TenantID, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&flags.Reading, "reading", "", "Meter reading")
	cmd.Flags().StringVar(&flags.UnitPrice, "unit-price", "", "Unit price; blank uses the backend default")
	return cmd
}

func parseUtility(raw string) (metering.UtilityType, error) {
	utility, err := metering.ParseUtilityType(raw)
	if err != nil {
		return "", shared.NewValidationError("utility", metering.CodeUtilityTypeInvalid, "Utility must be water or electricity")
	}
	return utility, nil
}

func printHistory(cmd *cobra.Command, view *meteringapp.HistoryView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s readings for unit %s (previous %s %s)\n", view.Utility, view.UnitID, view.Previous, view.Unit)
	if len(view.Readings) == 0 {
		fmt.Fprintln(out, "No readings recorded yet.")
		return
	}
	fmt.Fprintf(out, "%-10s  %-12s  %-12s  %-12s  %-20s\n", "ID", "Reading", "Consumed", "Amount", "Recorded")
	for _, r := range view.Readings {
		fmt.Fprintf(out, "%-10s  %-12s  %-12s  %-12s  %-20s\n",
			r.ID, r.Reading, r.UnitsConsumed, r.AmountDue, r.DateRecorded.Format(time.DateTime))
	}
	fmt.Fprintf(out, "Total consumed %s, billed %s\n", view.TotalConsumed, view.TotalBilled)
}
