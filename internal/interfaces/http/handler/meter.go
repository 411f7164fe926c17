package handler

import (
	"github.com/gin-gonic/gin"
	meteringapp "github.com/pms/billing/internal/application/metering"
	"github.com/pms/billing/internal/domain/metering"
	"github.com/pms/billing/internal/domain/shared"
)

// MeterHandler handles meter reading API endpoints
type MeterHandler struct {
	BaseHandler
	readingService *meteringapp.ReadingService
}

// NewMeterHandler creates a new MeterHandler
func NewMeterHandler(readingService *meteringapp.ReadingService) *MeterHandler {
	return &MeterHandler{
		readingService: readingService,
	}
}

// RecordReadingRequest represents an operator-entered meter reading.
// Numbers travel as strings so that blank and non-numeric input is reported
// per field instead of failing the whole body.
type RecordReadingRequest struct {
	TenantID     string `json:"tenant_id" binding:"required,max=64"`
	MeterReading string `json:"meter_reading"`
	UnitPrice    string `json:"unit_price"`
}

// parseUtility reads the :utility path parameter
func parseUtility(c *gin.Context) (metering.UtilityType, error) {
	utility, err := metering.ParseUtilityType(c.Param("utility"))
	if err != nil {
		return "", shared.NewValidationError("utility", metering.CodeUtilityTypeInvalid, "Utility must be water or electricity")
	}
	return utility, nil
}

// History serves the readings of a unit for one utility, most recent first
func (h *MeterHandler) History(c *gin.Context) {
	utility, err := parseUtility(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	history, err := h.readingService.History(c.Request.Context(), utility, c.Param("unit_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, meteringapp.NewHistoryView(history))
}

// Record checks a reading against the latest stored one and submits it.
// A reading below the previous one is rejected without any write.
func (h *MeterHandler) Record(c *gin.Context) {
	utility, err := parseUtility(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req RecordReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	var errs shared.ValidationErrors
	reading, err := metering.ParseReading("meter_reading", req.MeterReading)
	if err != nil {
		errs = append(errs, shared.FieldErrors(err)...)
	}
	unitPrice, err := metering.ParseUnitPrice(req.UnitPrice)
	if err != nil {
		errs = append(errs, shared.FieldErrors(err)...)
	}
	if err := errs.OrNil(); err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.readingService.RecordReading(c.Request.Context(), meteringapp.RecordReadingRequest{
		Utility:   utility,
		UnitID:    c.Param("unit_id"),
		TenantID:  req.TenantID,
		Reading:   reading,
		UnitPrice: unitPrice,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}
