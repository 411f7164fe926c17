// Package cli is the operator command line over the billing engine. Every
// command drives the same application services as the HTTP API.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	ledgerapp "github.com/pms/billing/internal/application/ledger"
	meteringapp "github.com/pms/billing/internal/application/metering"
	paymentapp "github.com/pms/billing/internal/application/payment"
	recyclebinapp "github.com/pms/billing/internal/application/recyclebin"
	"github.com/pms/billing/internal/domain/recyclebin"
	"github.com/pms/billing/internal/domain/shared"
	"github.com/pms/billing/internal/infrastructure/backend"
)

// App carries the services the commands drive
type App struct {
	Readings   *meteringapp.ReadingService
	Ledger     *ledgerapp.LedgerService
	Payments   *paymentapp.AllocationService
	RecycleBin *recyclebinapp.RecycleBinService
	// Token is forwarded to the backend as the operator's bearer token
	Token  string
	Logger *zap.Logger
}

// NewRootCmd builds the billingctl command tree
func NewRootCmd(app *App) *cobra.Command {
	if app.Logger == nil {
		app.Logger = zap.NewNop()
	}

	rootCmd := &cobra.Command{
		Use:           "billingctl",
		Short:         "Tenant billing and recycle bin operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Bool("json", false, "Print results as JSON")

	rootCmd.AddCommand(
		MeterCmd(app),
		LedgerCmd(app),
		QuoteCmd(app),
		PayCmd(app),
		TrashCmd(app),
	)
	return rootCmd
}

func (a *App) context(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return backend.WithToken(ctx, a.Token)
}

var flagValidator = newFlagValidator()

func newFlagValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("flag")
		if name == "" || name == "-" {
			return fld.Name
		}
		return "--" + name
	})
	return v
}

// validateFlags checks a flag struct and reports every offending flag
func validateFlags(s any) error {
	err := flagValidator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s needs at least %s value(s)", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Describe renders an engine error for the terminal
func Describe(err error) string {
	if err == nil {
		return ""
	}

	if fields := shared.FieldErrors(err); len(fields) > 0 {
		lines := make([]string, len(fields))
		for i, fe := range fields {
			lines[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
		}
		return strings.Join(lines, "\n")
	}

	var batchErr *recyclebin.BatchError
	if errors.As(err, &batchErr) {
		return fmt.Sprintf("%s: nothing was removed from the list, failed ids: %s",
			batchErr.Action, strings.Join(batchErr.FailedIDs(), ", "))
	}

	var reqErr *backend.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.UserMessage()
	}

	if errors.Is(err, shared.ErrConflict) {
		return "Another submission for this record is still in flight"
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

func jsonOutput(cmd *cobra.Command) bool {
	asJSON, _ := cmd.Flags().GetBool("json")
	return asJSON
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
