package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/slotbook/internal/app/models/dto"
	"github.com/yigit/slotbook/internal/app/services"
	"github.com/yigit/slotbook/internal/middleware"
)

// BookingController handles booking endpoints
type BookingController struct {
	bookingService services.BookingService
}

// NewBookingController creates a new BookingController
func NewBookingController(bookingService services.BookingService) *BookingController {
	return &BookingController{bookingService: bookingService}
}

// ReplaceBookings saves the complete slot selection of a student
// @Summary Replace a student's bookings
// @Description Makes the given slots the student's complete booking set. Slots the student no longer selects are released.
// @Tags bookings
// @Accept json
// @Produce json
// @Param request body dto.ReplaceBookingsRequest true "Student and selected slots"
// @Success 200 {object} dto.APIResponse{data=[]dto.BookingResponse} "Bookings saved"
// @Failure 400 {object} dto.ErrorResponse "Invalid selection, quota exceeded or slot taken"
// @Failure 404 {object} dto.ErrorResponse "Student or slot not found"
// @Failure 429 {object} dto.ErrorResponse "Too many requests"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /bookings [post]
func (c *BookingController) ReplaceBookings(ctx *gin.Context) {
	var req dto.ReplaceBookingsRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	bookings, err := c.bookingService.ReplaceBookings(ctx.Request.Context(), req.StudentID, req.SlotIDs)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewBookingResponses(bookings), "Bookings saved"))
}

// ListBookings returns every booking
// @Summary List all bookings
// @Description Lists all bookings with their slot and student, newest first
// @Tags bookings
// @Produce json
// @Security AdminSession
// @Success 200 {object} dto.APIResponse{data=[]dto.BookingResponse} "Bookings retrieved"
// @Failure 401 {object} dto.ErrorResponse "Admin session required"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /bookings [get]
func (c *BookingController) ListBookings(ctx *gin.Context) {
	bookings, err := c.bookingService.ListBookings(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewBookingResponses(bookings), ""))
}

// CancelBooking deletes one booking and frees its slot
// @Summary Cancel a booking
// @Tags bookings
// @Produce json
// @Security AdminSession
// @Param id path int true "Booking ID" Format(int64) minimum(1)
// @Success 200 {object} dto.SuccessResponse "Booking cancelled"
// @Failure 400 {object} dto.ErrorResponse "Invalid booking ID"
// @Failure 401 {object} dto.ErrorResponse "Admin session required"
// @Failure 404 {object} dto.ErrorResponse "Booking does not exist"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /bookings/{id} [delete]
func (c *BookingController) CancelBooking(ctx *gin.Context) {
	id, ok := middleware.ParseIDParam(ctx, "id", "Booking")
	if !ok {
		return
	}

	if err := c.bookingService.CancelBooking(ctx.Request.Context(), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: "Booking cancelled"})
}
