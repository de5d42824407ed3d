package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Emino08/school-results-api/internal/service"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
	"github.com/Emino08/school-results-api/pkg/response"
)

// GradingHandler exposes grading scale endpoints.
type GradingHandler struct {
	grading *service.GradingService
}

// NewGradingHandler constructs handler.
func NewGradingHandler(grading *service.GradingService) *GradingHandler {
	return &GradingHandler{grading: grading}
}

func yearIDFromQuery(c *gin.Context) *string {
	if yearID := c.Query("academicYearId"); yearID != "" {
		return &yearID
	}
	return nil
}

// List godoc
// @Summary List active grading ranges
// @Tags Grading
// @Produce json
// @Param academicYearId query string false "Scope to an academic year"
// @Success 200 {object} response.Envelope
// @Router /grading/ranges [get]
func (h *GradingHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	ranges, err := h.grading.ListRanges(c.Request.Context(), claims.SchoolID, yearIDFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ranges, nil)
}

// Create godoc
// @Summary Create a grading range
// @Tags Grading
// @Accept json
// @Produce json
// @Param payload body service.CreateRangeRequest true "Range payload"
// @Success 201 {object} response.Envelope
// @Router /grading/ranges [post]
func (h *GradingHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SchoolID = claims.SchoolID
	rng, err := h.grading.CreateRange(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rng)
}

// Update godoc
// @Summary Update a grading range
// @Tags Grading
// @Accept json
// @Produce json
// @Param id path string true "Range ID"
// @Param payload body service.UpdateRangeRequest true "Range payload"
// @Success 200 {object} response.Envelope
// @Router /grading/ranges/{id} [put]
func (h *GradingHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	rng, err := h.grading.UpdateRange(c.Request.Context(), claims.SchoolID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rng, nil)
}

// Deactivate godoc
// @Summary Deactivate a grading range
// @Tags Grading
// @Param id path string true "Range ID"
// @Success 204
// @Router /grading/ranges/{id} [delete]
func (h *GradingHandler) Deactivate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.grading.DeactivateRange(c.Request.Context(), claims.SchoolID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Resolve godoc
// @Summary Resolve a score to a grade
// @Tags Grading
// @Produce json
// @Param score query number true "Score to resolve"
// @Param academicYearId query string false "Scope to an academic year"
// @Success 200 {object} response.Envelope
// @Router /grading/resolve [get]
func (h *GradingHandler) Resolve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	score, err := strconv.ParseFloat(c.Query("score"), 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "score must be a number"))
		return
	}
	grade, err := h.grading.Resolve(c.Request.Context(), score, claims.SchoolID, yearIDFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}
