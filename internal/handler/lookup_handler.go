package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Emino08/school-results-api/internal/service"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
	"github.com/Emino08/school-results-api/pkg/response"
)

// LookupHandler exposes the anonymous pin-gated result check.
type LookupHandler struct {
	lookups *service.LookupService
}

// NewLookupHandler constructs handler.
func NewLookupHandler(lookups *service.LookupService) *LookupHandler {
	return &LookupHandler{lookups: lookups}
}

// Check godoc
// @Summary Check a published result with a pin
// @Tags Lookup
// @Accept json
// @Produce json
// @Param payload body service.LookupRequest true "Lookup payload"
// @Success 200 {object} response.Envelope
// @Router /lookup [post]
func (h *LookupHandler) Check(c *gin.Context) {
	var req service.LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	view, err := h.lookups.Check(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
