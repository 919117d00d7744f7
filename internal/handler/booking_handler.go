package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kenny1934/tutoring-management-system-sub000/internal/models"
	"github.com/kenny1934/tutoring-management-system-sub000/internal/service"
	appErrors "github.com/kenny1934/tutoring-management-system-sub000/pkg/errors"
	"github.com/kenny1934/tutoring-management-system-sub000/pkg/response"
)

// BookingHandler exposes the booking validation endpoint used to
// pre-check a candidate make-up slot before proposing it.
type BookingHandler struct {
	validator *service.BookingValidator
}

// NewBookingHandler constructs BookingHandler.
func NewBookingHandler(validator *service.BookingValidator) *BookingHandler {
	return &BookingHandler{validator: validator}
}

type validateBookingRequest struct {
	StudentID          string `json:"student_id" binding:"required"`
	ReplacingSessionID string `json:"replacing_session_id" binding:"required"`
	Date               string `json:"date" binding:"required"`
	TimeSlot           string `json:"time_slot" binding:"required"`
	Location           string `json:"location" binding:"required"`
}

// Validate godoc
// @Summary Validate a candidate make-up booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body validateBookingRequest true "Candidate booking"
// @Success 200 {object} response.Envelope
// @Router /bookings/validate [post]
func (h *BookingHandler) Validate(c *gin.Context) {
	var req validateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	date, err := time.Parse(models.HolidayDateFormat, req.Date)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD"))
		return
	}

	actor := actorFromContext(c)
	err = h.validator.Validate(c.Request.Context(), service.BookingCheck{
		StudentID:          req.StudentID,
		ReplacingSessionID: req.ReplacingSessionID,
		Date:               date,
		TimeSlot:           req.TimeSlot,
		Location:           req.Location,
		Privileged:         actor.Privileged(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"bookable": true}, nil)
}
