package handler

import (
	"github.com/gin-gonic/gin"

	recyclebinapp "github.com/pms/billing/internal/application/recyclebin"
	"github.com/pms/billing/internal/domain/recyclebin"
	"github.com/pms/billing/internal/interfaces/http/dto"
)

// RecycleBinHandler handles the recycle bin API endpoints
type RecycleBinHandler struct {
	BaseHandler
	binService *recyclebinapp.RecycleBinService
}

// NewRecycleBinHandler creates a new RecycleBinHandler
func NewRecycleBinHandler(binService *recyclebinapp.RecycleBinService) *RecycleBinHandler {
	return &RecycleBinHandler{
		binService: binService,
	}
}

// BulkRequest represents one bulk restore or permanent delete
type BulkRequest struct {
	Action string   `json:"action" binding:"required,oneof=restore delete"`
	IDs    []string `json:"ids" binding:"required,min=1,max=500,dive,required"`
}

// List serves one page of soft-deleted entities of a kind
func (h *RecycleBinHandler) List(c *gin.Context) {
	kind, err := recyclebin.ParseKind(c.Param("kind"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.binService.List(c.Request.Context(), kind, req.ToPage())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Restore restores one entity
func (h *RecycleBinHandler) Restore(c *gin.Context) {
	h.applyOne(c, recyclebin.ActionRestore)
}

// Delete permanently deletes one entity
func (h *RecycleBinHandler) Delete(c *gin.Context) {
	h.applyOne(c, recyclebin.ActionDelete)
}

func (h *RecycleBinHandler) applyOne(c *gin.Context, action recyclebin.Action) {
	kind, err := recyclebin.ParseKind(c.Param("kind"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BindError(c, err)
		return
	}

	if err := h.binService.ApplyOne(c.Request.Context(), recyclebin.NewBin(kind), action, uri.ID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"kind": kind, "action": action, "id": uri.ID})
}

// Bulk restores or deletes many entities. Failed ids are reported and the
// batch counts as committed only when every item succeeded.
func (h *RecycleBinHandler) Bulk(c *gin.Context) {
	kind, err := recyclebin.ParseKind(c.Param("kind"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	action, err := recyclebin.ParseAction(req.Action)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.binService.CommitBulk(c.Request.Context(), kind, action, req.IDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
