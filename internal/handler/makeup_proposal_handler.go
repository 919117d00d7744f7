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

// MakeupProposalHandler exposes the make-up proposal protocol.
type MakeupProposalHandler struct {
	proposals *service.MakeupProposalService
}

// NewMakeupProposalHandler constructs MakeupProposalHandler.
func NewMakeupProposalHandler(proposals *service.MakeupProposalService) *MakeupProposalHandler {
	return &MakeupProposalHandler{proposals: proposals}
}

// List godoc
// @Summary List make-up proposals
// @Tags MakeupProposals
// @Produce json
// @Param sessionId query string false "Filter by original session"
// @Param proposedBy query string false "Filter by proposing tutor"
// @Param targetTutorId query string false "Filter by slot target tutor"
// @Param status query string false "Comma-separated statuses"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /makeup-proposals [get]
func (h *MakeupProposalHandler) List(c *gin.Context) {
	var filter models.MakeupProposalFilter
	filter.OriginalSessionID = c.Query("sessionId")
	filter.ProposedBy = c.Query("proposedBy")
	filter.TargetTutorID = c.Query("targetTutorId")
	if statuses := c.Query("status"); statuses != "" {
		for _, s := range strings.Split(statuses, ",") {
			filter.Status = append(filter.Status, models.MakeupProposalStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	filter.Page, filter.PageSize = paginationFromQuery(c)

	proposals, total, err := h.proposals.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposals, buildPagination(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get a proposal with its slots
// @Tags MakeupProposals
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Router /makeup-proposals/{id} [get]
func (h *MakeupProposalHandler) Get(c *gin.Context) {
	detail, err := h.proposals.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Propose make-up slots for a vacated session
// @Tags MakeupProposals
// @Accept json
// @Produce json
// @Param payload body service.CreateProposalRequest true "Proposal payload"
// @Success 201 {object} response.Envelope
// @Router /makeup-proposals [post]
func (h *MakeupProposalHandler) Create(c *gin.Context) {
	var req service.CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.proposals.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// ApproveSlot godoc
// @Summary Approve one proposed slot, booking the make-up
// @Tags MakeupProposals
// @Produce json
// @Param id path string true "Proposal ID"
// @Param slotId path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /makeup-proposals/{id}/slots/{slotId}/approve [post]
func (h *MakeupProposalHandler) ApproveSlot(c *gin.Context) {
	detail, err := h.proposals.ApproveSlot(c.Request.Context(), actorFromContext(c), c.Param("id"), c.Param("slotId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

type rejectSlotRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectSlot godoc
// @Summary Reject one proposed slot with a reason
// @Tags MakeupProposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param slotId path string true "Slot ID"
// @Param payload body rejectSlotRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /makeup-proposals/{id}/slots/{slotId}/reject [post]
func (h *MakeupProposalHandler) RejectSlot(c *gin.Context) {
	var req rejectSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.proposals.RejectSlot(c.Request.Context(), actorFromContext(c), c.Param("id"), c.Param("slotId"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Reject godoc
// @Summary Reject a NEEDS_INPUT proposal
// @Tags MakeupProposals
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Router /makeup-proposals/{id}/reject [post]
func (h *MakeupProposalHandler) Reject(c *gin.Context) {
	detail, err := h.proposals.Reject(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Cancel godoc
// @Summary Withdraw a pending proposal
// @Tags MakeupProposals
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 204
// @Router /makeup-proposals/{id} [delete]
func (h *MakeupProposalHandler) Cancel(c *gin.Context) {
	if err := h.proposals.Cancel(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
