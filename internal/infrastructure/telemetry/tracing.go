package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of billing spans
const TracerName = "pms-billing"

// Span attribute keys. Tenancy keys match the ones the HTTP middleware sets on
// the server span so a trace can be filtered by tenant end to end.
const (
	AttrTenantID   = attribute.Key("tenant_id")
	AttrUnitID     = attribute.Key("unit_id")
	AttrBillItemID = attribute.Key("bill_item_id")
	AttrBillType   = attribute.Key("bill_type")
	AttrUtility    = attribute.Key("utility")
	AttrAmount     = attribute.Key("amount")
	AttrMethod     = attribute.Key("payment_method")
	AttrRoute      = attribute.Key("payment_route")
	AttrKind       = attribute.Key("entity_kind")
	AttrEntityID   = attribute.Key("entity_id")
	AttrAction     = attribute.Key("action")
	AttrItemCount  = attribute.Key("item_count")
	AttrOperation  = attribute.Key("backend_operation")
	AttrHTTPStatus = attribute.Key("http_status")
	AttrOutcome    = attribute.Key("outcome")
)

// Tenancy returns the attributes identifying a tenant's occupancy of a unit
func Tenancy(tenantID, unitID string) []attribute.KeyValue {
	return []attribute.KeyValue{AttrTenantID.String(tenantID), AttrUnitID.String(unitID)}
}

// StartServiceSpan starts an internal span named {service}.{operation}, e.g.
// "ledger.add_bill_item". The caller ends it.
func StartServiceSpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, service+"."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartBackendSpan starts a client span for one call to the property backend
func StartBackendSpan(ctx context.Context, operation, method, route string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "backend."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrOperation.String(operation),
			attribute.String("http.method", method),
			attribute.String("http.route", route),
		),
	)
}

// RecordError marks the span with the outcome of err. Input the service
// rejected is recorded as an event only; the span stays unset so error-rate
// views show backend and guard failures, not operator typos.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	outcome := Outcome(err)
	span.SetAttributes(AttrOutcome.String(outcome))
	if outcome == OutcomeRejected {
		span.AddEvent("rejected", trace.WithAttributes(attribute.String("reason", err.Error())))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span as a completed operation
func SetOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetAttributes(AttrOutcome.String(OutcomeSuccess))
	span.SetStatus(codes.Ok, "")
}
