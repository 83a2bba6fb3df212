package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"facturio/internal/core/apperror"
	appctx "facturio/internal/core/context"
	"facturio/internal/core/id"
	"facturio/internal/domain/document"
	"facturio/internal/infrastructure/http/v1/dto"
	"facturio/internal/infrastructure/storage/postgres"
)

// AuditHistory reads the recorded mutation trail of an entity.
type AuditHistory interface {
	GetEntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]postgres.AuditEntry, error)
}

// DocumentHandler handles document endpoints.
type DocumentHandler struct {
	*BaseHandler
	service *document.Service
	history AuditHistory
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(base *BaseHandler, service *document.Service, history AuditHistory) *DocumentHandler {
	return &DocumentHandler{
		BaseHandler: base,
		service:     service,
		history:     history,
	}
}

// Create handles POST /documents
func (h *DocumentHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := h.UserID(c)
	if !ok {
		return
	}

	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := req.ToDocument(userID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromDocument(doc))
}

// Get handles GET /documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// List handles GET /documents
func (h *DocumentHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := h.UserID(c)
	if !ok {
		return
	}

	var req dto.DocumentFilterRequest
	if !h.BindQuery(c, &req) {
		return
	}
	req.Defaults()

	filter := document.ListFilter{}
	filter.UserID = &userID
	filter.Search = req.Search
	filter.OrderBy = req.OrderBy
	filter.Limit = req.Limit
	filter.Offset = req.Offset
	filter.DateFrom = req.DateFrom
	filter.DateTo = req.DateTo

	if req.ClientID != "" {
		clientID, err := id.Parse(req.ClientID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid client id").WithDetail("field", "clientId"))
			return
		}
		filter.ClientID = &clientID
	}
	if req.Kind != "" {
		kind, err := document.ParseKind(req.Kind)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.Kind = &kind
	}
	if req.Status != "" {
		status := document.Status(req.Status)
		filter.Status = &status
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(result, dto.FromDocument))
}

// Update handles PUT /documents/:id
func (h *DocumentHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}

	var req dto.UpdateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.Apply(doc)

	if err := h.service.Update(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(doc))
}

// Delete handles DELETE /documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, doc.ID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Send handles POST /documents/:id/send
func (h *DocumentHandler) Send(c *gin.Context) {
	ctx := c.Request.Context()

	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}

	sent, err := h.service.Send(ctx, doc.ID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(sent))
}

// MarkViewed handles POST /documents/:id/mark-viewed
func (h *DocumentHandler) MarkViewed(c *gin.Context) {
	h.transition(c, document.StatusViewed)
}

// Cancel handles POST /documents/:id/cancel
func (h *DocumentHandler) Cancel(c *gin.Context) {
	h.transition(c, document.StatusCancelled)
}

// Accept handles POST /documents/:id/accept (owner recording an
// out-of-band acceptance, e.g. by phone).
func (h *DocumentHandler) Accept(c *gin.Context) {
	h.transition(c, document.StatusAccepted)
}

// Refuse handles POST /documents/:id/refuse
func (h *DocumentHandler) Refuse(c *gin.Context) {
	h.transition(c, document.StatusRejected)
}

// MarkPaid handles POST /documents/:id/mark-paid
func (h *DocumentHandler) MarkPaid(c *gin.Context) {
	ctx := c.Request.Context()

	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}

	receipt, err := h.service.MarkPaid(ctx, doc.ID)
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := gin.H{"success": true}
	if receipt != nil {
		resp["receipt"] = dto.FromDocument(receipt)
	}
	h.OK(c, resp)
}

// Convert handles POST /documents/:id/convert — spawns an invoice from
// an accepted quote.
func (h *DocumentHandler) Convert(c *gin.Context) {
	ctx := c.Request.Context()

	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}

	invoice, err := h.service.ConvertToInvoice(ctx, doc.ID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromDocument(invoice))
}

// historyLimit caps one history page; documents see at most a few dozen
// mutations over their life.
const historyLimit = 100

// History handles GET /documents/:id/history — the audit trail of the
// document's mutations and transitions, most recent first.
func (h *DocumentHandler) History(c *gin.Context) {
	ctx := c.Request.Context()

	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}

	entries, err := h.history.GetEntityHistory(ctx, "document", doc.ID, historyLimit)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.FromAuditEntry(entry))
	}
	h.OK(c, gin.H{"items": items})
}

func (h *DocumentHandler) transition(c *gin.Context, target document.Status) {
	ctx := c.Request.Context()

	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}

	if err := h.service.Transition(ctx, doc.ID, target); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "document transitioned to "+string(target))
}

// ownedDocument loads the document from the :id param and enforces that
// it belongs to the caller. Admins can reach any document.
func (h *DocumentHandler) ownedDocument(c *gin.Context) (*document.Document, bool) {
	ctx := c.Request.Context()

	docID, ok := h.ParseID(c, "id")
	if !ok {
		return nil, false
	}
	userID, ok := h.UserID(c)
	if !ok {
		return nil, false
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return nil, false
	}

	user := appctx.GetUser(ctx)
	if doc.UserID != userID && (user == nil || !user.IsAdmin) {
		// Report not-found, not forbidden: existence of another
		// account's document is not disclosed.
		h.Error(c, apperror.NewNotFound("documents", docID.String()))
		return nil, false
	}

	return doc, true
}
