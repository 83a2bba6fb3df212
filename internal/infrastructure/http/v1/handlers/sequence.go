package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"facturio/internal/core/sequence"
	"facturio/internal/domain/document"
	"facturio/internal/domain/totals"
	"facturio/internal/infrastructure/http/v1/dto"
)

// SequenceHandler exposes the non-consuming number preview.
type SequenceHandler struct {
	*BaseHandler
	allocator sequence.Allocator
}

// NewSequenceHandler creates a new sequence handler.
func NewSequenceHandler(base *BaseHandler, allocator sequence.Allocator) *SequenceHandler {
	return &SequenceHandler{
		BaseHandler: base,
		allocator:   allocator,
	}
}

// Peek handles GET /sequences/peek?kind=INVOICE
// The preview is advisory only: another writer may consume the shown
// number before the caller saves.
func (h *SequenceHandler) Peek(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := h.UserID(c)
	if !ok {
		return
	}

	kind, err := document.ParseKind(c.Query("kind"))
	if err != nil {
		h.Error(c, err)
		return
	}

	number, err := h.allocator.Peek(ctx, userID, document.NumberingConfig(kind), time.Now().UTC())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"kind": kind, "next": number})
}

// TotalsHandler exposes the monetary calculator for live preview.
type TotalsHandler struct {
	*BaseHandler
}

// NewTotalsHandler creates a new totals handler.
func NewTotalsHandler(base *BaseHandler) *TotalsHandler {
	return &TotalsHandler{BaseHandler: base}
}

// Preview handles POST /totals/preview
// The response is computed by the same function that stamps documents at
// save time, so what the form shows is what the document will carry.
func (h *TotalsHandler) Preview(c *gin.Context) {
	var req dto.TotalsPreviewRequest
	if !h.BindJSON(c, &req) {
		return
	}

	breakdown, err := totals.Compute(req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, breakdown)
}
