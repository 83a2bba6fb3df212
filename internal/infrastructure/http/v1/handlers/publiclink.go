package handlers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"facturio/internal/domain/publiclink"
	"facturio/pkg/logger"
)

// PublicLinkHandler handles the unauthenticated quote response links
// embedded in outgoing quote emails. Every outcome ends in a redirect to
// a frontend page; the API never renders HTML itself.
type PublicLinkHandler struct {
	service     *publiclink.Service
	frontendURL string
}

// NewPublicLinkHandler creates a new public link handler.
func NewPublicLinkHandler(service *publiclink.Service, frontendURL string) *PublicLinkHandler {
	return &PublicLinkHandler{
		service:     service,
		frontendURL: frontendURL,
	}
}

// Accept handles GET /public/quotes/accept/:token
func (h *PublicLinkHandler) Accept(c *gin.Context) {
	ctx := c.Request.Context()

	result, err := h.service.Accept(ctx, c.Param("token"))
	if err != nil {
		logger.Error(ctx, "quote accept link failed", "error", err)
		h.redirect(c, "/quote/error", "")
		return
	}

	h.finish(c, result, "/quote/accepted")
}

// Refuse handles GET /public/quotes/refuse/:token
// An optional note query parameter carries the client's refusal reason.
func (h *PublicLinkHandler) Refuse(c *gin.Context) {
	ctx := c.Request.Context()

	result, err := h.service.Refuse(ctx, c.Param("token"), c.Query("note"))
	if err != nil {
		logger.Error(ctx, "quote refuse link failed", "error", err)
		h.redirect(c, "/quote/error", "")
		return
	}

	h.finish(c, result, "/quote/refused")
}

// finish maps the service outcome to the landing page. A settled quote
// sends the visitor to the page matching its actual state, so clicking
// the same link twice shows "already accepted" rather than a failure.
func (h *PublicLinkHandler) finish(c *gin.Context, result publiclink.Result, okPage string) {
	switch result.Outcome {
	case publiclink.OutcomeOK:
		h.redirect(c, okPage, "")
	case publiclink.OutcomeAlreadyAccepted:
		h.redirect(c, "/quote/accepted", "already_accepted")
	case publiclink.OutcomeAlreadyRefused:
		h.redirect(c, "/quote/refused", "already_refused")
	case publiclink.OutcomeInvalidStatus:
		h.redirect(c, "/quote/error", "invalid_status")
	default:
		// Unknown and malformed tokens land on the same page with no
		// hint of which it was.
		h.redirect(c, "/quote/error", "invalid_token")
	}
}

func (h *PublicLinkHandler) redirect(c *gin.Context, page, reason string) {
	target := h.frontendURL + page
	if reason != "" {
		target += "?reason=" + url.QueryEscape(reason)
	}
	c.Redirect(http.StatusFound, target)
}
