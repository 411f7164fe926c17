package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	ledgerapp "github.com/pms/billing/internal/application/ledger"
	"github.com/pms/billing/internal/domain/ledger"
	"github.com/pms/billing/internal/domain/shared"
	"github.com/pms/billing/internal/infrastructure/backend"
	"github.com/pms/billing/internal/interfaces/http/dto"
)

func newLedgerRouter(repo ledger.Repository) *gin.Engine {
	svc := ledgerapp.NewLedgerService(repo, nil, shared.InFlightConfig{}, nil, zap.NewNop())
	h := NewLedgerHandler(svc)

	router := gin.New()
	router.GET("/ledger", h.List)
	router.POST("/ledger/items", h.Add)
	router.PATCH("/ledger/items/:id", h.Patch)
	router.DELETE("/ledger/items/:id", h.Delete)
	return router
}

func tenancySnapshot() *ledger.Snapshot {
	return &ledger.Snapshot{
		Items: []ledger.BillItem{
			{ID: "1", BillType: "rent", AmountExpected: dec("10000"), AmountPaid: dec("4000"), Applicable: true},
			{ID: "2", BillType: "water", AmountExpected: dec("500"), AmountPaid: dec("500"), Applicable: true},
			{ID: "3", BillType: "fine", AmountExpected: dec("200"), AmountPaid: dec("0"), Applicable: false},
		},
		BillTypes: []string{"Rent", "water", "fine", "rent"},
	}
}

type ledgerBody struct {
	Items []struct {
		ID        string          `json:"bill_item_id"`
		AmountDue decimal.Decimal `json:"amount_due"`
		Status    string          `json:"status"`
		Label     string          `json:"label"`
	} `json:"items"`
	Totals struct {
		Expected decimal.Decimal `json:"expected"`
		Paid     decimal.Decimal `json:"paid"`
		Due      decimal.Decimal `json:"due"`
	} `json:"totals"`
	CountByStatus map[string]int `json:"count_by_status"`
	BillTypes     []string       `json:"bill_types"`
}

func TestLedgerHandler_List(t *testing.T) {
	repo := new(MockLedgerRepository)
	repo.On("ListActive", mock.Anything, "7", "12").Return(tenancySnapshot(), nil)

	w := httptest.NewRecorder()
	newLedgerRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ledger?tenant_id=7&unit_id=12", nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body ledgerBody
	decodeData(t, w, &body)
	require.Len(t, body.Items, 3)
	assert.Equal(t, "Partial", body.Items[0].Status)
	assert.True(t, dec("6000").Equal(body.Items[0].AmountDue))
	assert.Equal(t, "Rent", body.Items[0].Label)
	assert.Equal(t, "Paid", body.Items[1].Status)
	assert.Equal(t, "Unpaid", body.Items[2].Status)
	assert.True(t, dec("10700").Equal(body.Totals.Expected))
	assert.True(t, dec("6200").Equal(body.Totals.Due))
	assert.Equal(t, map[string]int{"Unpaid": 1, "Partial": 1, "Paid": 1}, body.CountByStatus)
	assert.Equal(t, []string{"rent", "water", "fine"}, body.BillTypes)
}

func TestLedgerHandler_List_ApplicableOnly(t *testing.T) {
	repo := new(MockLedgerRepository)
	repo.On("ListActive", mock.Anything, "7", "12").Return(tenancySnapshot(), nil)

	w := httptest.NewRecorder()
	newLedgerRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ledger?tenant_id=7&unit_id=12&applicable=true", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body ledgerBody
	decodeData(t, w, &body)
	assert.Len(t, body.Items, 2)
	assert.True(t, dec("6000").Equal(body.Totals.Due))
}

func TestLedgerHandler_List_MissingTenancy(t *testing.T) {
	repo := new(MockLedgerRepository)

	w := httptest.NewRecorder()
	newLedgerRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ledger?unit_id=12", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "tenant_id", resp.Error.Details[0].Field)
	repo.AssertNotCalled(t, "ListActive", mock.Anything, mock.Anything, mock.Anything)
}

func TestLedgerHandler_List_BackendFailure(t *testing.T) {
	repo := new(MockLedgerRepository)
	repo.On("ListActive", mock.Anything, "7", "12").Return(nil, &backend.RequestError{
		Operation: "list_bills", Method: http.MethodGet, Path: "/bills", StatusCode: http.StatusInternalServerError,
	})

	w := httptest.NewRecorder()
	newLedgerRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ledger?tenant_id=7&unit_id=12", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, dto.ErrCodeBackend, decodeResponse(t, w).Error.Code)
}

func TestLedgerHandler_Add(t *testing.T) {
	repo := new(MockLedgerRepository)
	repo.On("Add", mock.Anything, mock.MatchedBy(func(d *ledger.BillItemDraft) bool {
		return d.BillType == "garbage" && d.Amount.Equal(dec("300")) && d.TenantID == "7" && d.UnitID == "12"
	})).Return(nil).Once()
	refetched := tenancySnapshot()
	refetched.Items = append(refetched.Items, ledger.BillItem{ID: "4", BillType: "garbage", AmountExpected: dec("300"), AmountPaid: dec("0"), Applicable: true})
	repo.On("ListActive", mock.Anything, "7", "12").Return(refetched, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ledger/items", jsonBody(t, map[string]string{
		"tenant_id": "7",
		"unit_id":   "12",
		"bill_type": " Garbage ",
		"amount":    "300",
	}))
	newLedgerRouter(repo).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body ledgerBody
	decodeData(t, w, &body)
	assert.Len(t, body.Items, 4)
	repo.AssertExpectations(t)
}

func TestLedgerHandler_Add_InvalidAmount(t *testing.T) {
	repo := new(MockLedgerRepository)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ledger/items", jsonBody(t, map[string]string{
		"tenant_id": "7",
		"unit_id":   "12",
		"bill_type": "garbage",
		"amount":    "three hundred",
	}))
	newLedgerRouter(repo).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "amount", resp.Error.Details[0].Field)
	assert.Equal(t, ledger.CodeAmountInvalid, resp.Error.Details[0].Code)
	repo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
}

func TestLedgerHandler_Patch(t *testing.T) {
	repo := new(MockLedgerRepository)
	repo.On("PatchExpected", mock.Anything, mock.MatchedBy(func(p *ledger.AmountPatch) bool {
		return p.BillItemID == "1" && p.AmountExpected.Equal(dec("4000"))
	})).Return(nil).Once()
	refetched := tenancySnapshot()
	refetched.Items[0].AmountExpected = dec("4000")
	repo.On("ListActive", mock.Anything, "7", "12").Return(refetched, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/ledger/items/1", jsonBody(t, map[string]string{
		"tenant_id":       "7",
		"unit_id":         "12",
		"amount_expected": "4000",
	}))
	newLedgerRouter(repo).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body ledgerBody
	decodeData(t, w, &body)
	assert.Equal(t, "Paid", body.Items[0].Status, "status is rederived from the refetch")
	repo.AssertExpectations(t)
}

func TestLedgerHandler_Patch_RefetchFailure(t *testing.T) {
	repo := new(MockLedgerRepository)
	repo.On("PatchExpected", mock.Anything, mock.Anything).Return(nil).Once()
	repo.On("ListActive", mock.Anything, "7", "12").Return(nil, &backend.RequestError{
		Operation: "list_bills", Method: http.MethodGet, Path: "/bills", Err: assert.AnError,
	}).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/ledger/items/1", jsonBody(t, map[string]string{
		"tenant_id":       "7",
		"unit_id":         "12",
		"amount_expected": "4000",
	}))
	newLedgerRouter(repo).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		TenantID string `json:"tenant_id"`
		Items    []any  `json:"items"`
		Warning  string `json:"warning"`
	}
	decodeData(t, w, &body)
	assert.Equal(t, "7", body.TenantID)
	assert.Empty(t, body.Items)
	assert.Equal(t, staleLedgerWarning, body.Warning)
	repo.AssertNumberOfCalls(t, "PatchExpected", 1)
}

func TestLedgerHandler_Delete(t *testing.T) {
	repo := new(MockLedgerRepository)
	repo.On("Delete", mock.Anything, "3").Return(nil).Once()
	refetched := tenancySnapshot()
	refetched.Items = refetched.Items[:2]
	repo.On("ListActive", mock.Anything, "7", "12").Return(refetched, nil).Once()

	w := httptest.NewRecorder()
	newLedgerRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/ledger/items/3?tenant_id=7&unit_id=12", nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body ledgerBody
	decodeData(t, w, &body)
	assert.Len(t, body.Items, 2)
	repo.AssertExpectations(t)
}

func TestLedgerHandler_Delete_BackendRejects(t *testing.T) {
	repo := new(MockLedgerRepository)
	repo.On("Delete", mock.Anything, "3").Return(&backend.RequestError{
		Operation: "delete_bill", Method: http.MethodDelete, Path: "/bills/3", StatusCode: http.StatusConflict, Message: "Bill has payments",
	}).Once()

	w := httptest.NewRecorder()
	newLedgerRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/ledger/items/3?tenant_id=7&unit_id=12", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "Bill has payments", resp.Error.Message)
	repo.AssertNotCalled(t, "ListActive", mock.Anything, mock.Anything, mock.Anything)
}
