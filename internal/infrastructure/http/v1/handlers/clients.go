package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"facturio/internal/core/apperror"
	"facturio/internal/domain/clients"
	"facturio/internal/infrastructure/http/v1/dto"
)

// ClientHandler handles client catalog endpoints.
type ClientHandler struct {
	*BaseHandler
	service *clients.Service
}

// NewClientHandler creates a new client handler.
func NewClientHandler(base *BaseHandler, service *clients.Service) *ClientHandler {
	return &ClientHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /clients
func (h *ClientHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := h.UserID(c)
	if !ok {
		return
	}

	var req dto.CreateClientRequest
	if !h.BindJSON(c, &req) {
		return
	}

	client := req.ToClient(userID)
	if err := h.service.Create(ctx, client); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromClient(client))
}

// Get handles GET /clients/:id
func (h *ClientHandler) Get(c *gin.Context) {
	client, ok := h.ownedClient(c)
	if !ok {
		return
	}
	h.OK(c, dto.FromClient(client))
}

// List handles GET /clients
func (h *ClientHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := h.UserID(c)
	if !ok {
		return
	}

	var req dto.ClientFilterRequest
	if !h.BindQuery(c, &req) {
		return
	}
	req.Defaults()

	filter := clients.ListFilter{}
	filter.UserID = &userID
	filter.Search = req.Search
	filter.OrderBy = req.OrderBy
	filter.Limit = req.Limit
	filter.Offset = req.Offset

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(result, dto.FromClient))
}

// Update handles PUT /clients/:id
func (h *ClientHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	client, ok := h.ownedClient(c)
	if !ok {
		return
	}

	var req dto.UpdateClientRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.Apply(client)

	if err := h.service.Update(ctx, client); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromClient(client))
}

// Delete handles DELETE /clients/:id
func (h *ClientHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	clientID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.UserID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, userID, clientID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

func (h *ClientHandler) ownedClient(c *gin.Context) (*clients.Client, bool) {
	ctx := c.Request.Context()

	clientID, ok := h.ParseID(c, "id")
	if !ok {
		return nil, false
	}
	userID, ok := h.UserID(c)
	if !ok {
		return nil, false
	}

	client, err := h.service.GetByID(ctx, clientID)
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	if client.UserID != userID {
		h.Error(c, apperror.NewNotFound("clients", clientID.String()))
		return nil, false
	}

	return client, true
}
