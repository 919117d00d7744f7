package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kenny1934/tutoring-management-system-sub000/internal/models"
	"github.com/kenny1934/tutoring-management-system-sub000/internal/service"
	appErrors "github.com/kenny1934/tutoring-management-system-sub000/pkg/errors"
	"github.com/kenny1934/tutoring-management-system-sub000/pkg/response"
)

// ExtensionRequestHandler exposes the deadline extension workflow.
type ExtensionRequestHandler struct {
	requests *service.ExtensionRequestService
}

// NewExtensionRequestHandler constructs ExtensionRequestHandler.
func NewExtensionRequestHandler(requests *service.ExtensionRequestService) *ExtensionRequestHandler {
	return &ExtensionRequestHandler{requests: requests}
}

// List godoc
// @Summary List extension requests
// @Tags ExtensionRequests
// @Produce json
// @Param sessionId query string false "Filter by session"
// @Param enrollmentId query string false "Filter by enrollment"
// @Param status query string false "Comma-separated statuses"
// @Param requestedBy query string false "Filter by requester"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /extension-requests [get]
func (h *ExtensionRequestHandler) List(c *gin.Context) {
	var filter models.ExtensionRequestFilter
	filter.SessionID = c.Query("sessionId")
	filter.EnrollmentID = c.Query("enrollmentId")
	filter.RequestedBy = c.Query("requestedBy")
	if statuses := c.Query("status"); statuses != "" {
		for _, s := range strings.Split(statuses, ",") {
			filter.Status = append(filter.Status, models.ExtensionRequestStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	filter.Page, filter.PageSize = paginationFromQuery(c)

	requests, total, err := h.requests.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, buildPagination(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get an extension request
// @Tags ExtensionRequests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /extension-requests/{id} [get]
func (h *ExtensionRequestHandler) Get(c *gin.Context) {
	request, err := h.requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Create godoc
// @Summary Request a deadline extension for a session
// @Tags ExtensionRequests
// @Accept json
// @Produce json
// @Param payload body service.CreateExtensionRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /extension-requests [post]
func (h *ExtensionRequestHandler) Create(c *gin.Context) {
	var req service.CreateExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.requests.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Approve godoc
// @Summary Approve an extension request
// @Tags ExtensionRequests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.ReviewExtensionRequest false "Review payload"
// @Success 200 {object} response.Envelope
// @Router /extension-requests/{id}/approve [post]
func (h *ExtensionRequestHandler) Approve(c *gin.Context) {
	var review service.ReviewExtensionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&review); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	request, err := h.requests.Approve(c.Request.Context(), actorFromContext(c), c.Param("id"), review)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Reject godoc
// @Summary Reject an extension request
// @Tags ExtensionRequests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.ReviewExtensionRequest false "Review payload"
// @Success 200 {object} response.Envelope
// @Router /extension-requests/{id}/reject [post]
func (h *ExtensionRequestHandler) Reject(c *gin.Context) {
	var review service.ReviewExtensionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&review); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	request, err := h.requests.Reject(c.Request.Context(), actorFromContext(c), c.Param("id"), review)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// MarkRescheduled godoc
// @Summary Flag an approved request as consumed by a rebooking
// @Tags ExtensionRequests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /extension-requests/{id}/mark-rescheduled [post]
func (h *ExtensionRequestHandler) MarkRescheduled(c *gin.Context) {
	request, err := h.requests.MarkRescheduled(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
