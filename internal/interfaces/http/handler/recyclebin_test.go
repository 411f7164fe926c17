package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	recyclebinapp "github.com/pms/billing/internal/application/recyclebin"
	"github.com/pms/billing/internal/domain/recyclebin"
	"github.com/pms/billing/internal/domain/shared"
	"github.com/pms/billing/internal/infrastructure/backend"
	"github.com/pms/billing/internal/interfaces/http/dto"
)

func newRecycleBinRouter(repo recyclebin.Repository) *gin.Engine {
	svc := recyclebinapp.NewRecycleBinService(repo, nil, shared.InFlightConfig{}, 4, nil, zap.NewNop())
	h := NewRecycleBinHandler(svc)

	router := gin.New()
	router.GET("/recycle-bin/:kind", h.List)
	router.POST("/recycle-bin/:kind/:id/restore", h.Restore)
	router.POST("/recycle-bin/:kind/:id/delete", h.Delete)
	router.POST("/recycle-bin/:kind/bulk", h.Bulk)
	return router
}

func TestRecycleBinHandler_List(t *testing.T) {
	deletedAt := time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC)
	repo := new(MockTrashRepository)
	page := shared.NewPaginated([]recyclebin.RecyclableEntity{
		{Kind: recyclebin.KindTenant, ID: "3", Name: "Jane Wanjiku", DeletedAt: &deletedAt, Checked: true},
		{Kind: recyclebin.KindTenant, ID: "9", Name: "Otieno Ouma"},
	}, 12, 2, 10)
	repo.On("ListDeleted", mock.Anything, recyclebin.KindTenant, shared.Page{Number: 2, Size: 10}).Return(&page, nil)

	w := httptest.NewRecorder()
	newRecycleBinRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/recycle-bin/tenants?page=2&page_size=10", nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(12), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)

	var items []recyclebin.RecyclableEntity
	decodeData(t, w, &items)
	require.Len(t, items, 2)
	assert.False(t, items[0].Checked, "listing never carries checks")
	assert.Equal(t, "Jane Wanjiku", items[0].Name)
}

func TestRecycleBinHandler_List_DefaultPage(t *testing.T) {
	repo := new(MockTrashRepository)
	page := shared.NewPaginated([]recyclebin.RecyclableEntity{}, 0, 1, 20)
	repo.On("ListDeleted", mock.Anything, recyclebin.KindProperty, shared.DefaultPage()).Return(&page, nil)

	w := httptest.NewRecorder()
	newRecycleBinRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/recycle-bin/properties", nil))

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	repo.AssertExpectations(t)
}

func TestRecycleBinHandler_List_UnknownKind(t *testing.T) {
	repo := new(MockTrashRepository)

	w := httptest.NewRecorder()
	newRecycleBinRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/recycle-bin/invoices", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, recyclebin.CodeKindInvalid, resp.Error.Details[0].Code)
}

func TestRecycleBinHandler_List_PageSizeTooLarge(t *testing.T) {
	repo := new(MockTrashRepository)

	w := httptest.NewRecorder()
	newRecycleBinRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/recycle-bin/tenants?page_size=500", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "page_size", resp.Error.Details[0].Field)
}

func TestRecycleBinHandler_RestoreAndDelete(t *testing.T) {
	repo := new(MockTrashRepository)
	repo.On("Restore", mock.Anything, recyclebin.KindLandlord, "5").Return(nil).Once()
	repo.On("Delete", mock.Anything, recyclebin.KindLandlord, "6").Return(nil).Once()
	router := newRecycleBinRouter(repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/recycle-bin/landlord/5/restore", nil))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/recycle-bin/landlord/6/delete", nil))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	repo.AssertExpectations(t)
}

func TestRecycleBinHandler_Restore_BackendFailure(t *testing.T) {
	repo := new(MockTrashRepository)
	repo.On("Restore", mock.Anything, recyclebin.KindTenant, "3").Return(&backend.RequestError{
		Operation: "restore_tenant", Method: http.MethodPatch, Path: "/tenants/3/restore", StatusCode: http.StatusNotFound,
	})

	w := httptest.NewRecorder()
	newRecycleBinRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/recycle-bin/tenant/3/restore", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, dto.ErrCodeBackend, decodeResponse(t, w).Error.Code)
}

func TestRecycleBinHandler_Bulk(t *testing.T) {
	repo := new(MockTrashRepository)
	for _, id := range []string{"3", "9", "11"} {
		repo.On("Delete", mock.Anything, recyclebin.KindTenant, id).Return(nil).Once()
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/recycle-bin/tenants/bulk", jsonBody(t, map[string]any{
		"action": "delete",
		"ids":    []string{"3", "9", "11"},
	}))
	newRecycleBinRouter(repo).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result recyclebinapp.BulkResult
	decodeData(t, w, &result)
	assert.Equal(t, recyclebin.ActionDelete, result.Action)
	assert.Equal(t, []string{"3", "9", "11"}, result.Succeeded)
	repo.AssertExpectations(t)
}

func TestRecycleBinHandler_Bulk_PartialFailure(t *testing.T) {
	repo := new(MockTrashRepository)
	repo.On("Restore", mock.Anything, recyclebin.KindProperty, "1").Return(nil).Once()
	repo.On("Restore", mock.Anything, recyclebin.KindProperty, "2").Return(&backend.RequestError{StatusCode: http.StatusInternalServerError}).Once()
	repo.On("Restore", mock.Anything, recyclebin.KindProperty, "4").Return(nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/recycle-bin/property/bulk", jsonBody(t, map[string]any{
		"action": "restore",
		"ids":    []string{"1", "2", "4"},
	}))
	newRecycleBinRouter(repo).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeBatchFailed, resp.Error.Code)
	assert.Equal(t, []string{"2"}, resp.Error.FailedIDs)
	repo.AssertExpectations(t)
}

func TestRecycleBinHandler_Bulk_InvalidBody(t *testing.T) {
	repo := new(MockTrashRepository)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/recycle-bin/tenants/bulk", jsonBody(t, map[string]any{
		"action": "purge",
		"ids":    []string{},
	}))
	newRecycleBinRouter(repo).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Len(t, resp.Error.Details, 2)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Restore", mock.Anything, mock.Anything, mock.Anything)
}
