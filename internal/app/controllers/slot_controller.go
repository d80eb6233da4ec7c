package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/slotbook/internal/app/models/dto"
	"github.com/yigit/slotbook/internal/app/services"
	"github.com/yigit/slotbook/internal/middleware"
)

// SlotController serves the slot catalog
type SlotController struct {
	slotService services.SlotService
}

// NewSlotController creates a new SlotController
func NewSlotController(slotService services.SlotService) *SlotController {
	return &SlotController{slotService: slotService}
}

// ListFreeSlots lists the slots that can still be booked
// @Summary List free slots
// @Description Free slots ordered by day of week, then hour
// @Tags slots
// @Produce json
// @Success 200 {object} dto.APIResponse{data=[]dto.SlotResponse} "Free slots"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /slots [get]
func (c *SlotController) ListFreeSlots(ctx *gin.Context) {
	slots, err := c.slotService.ListFreeSlots(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewSlotResponses(slots), ""))
}

// ListAllSlots lists the whole grid with holders
// @Summary List all slots
// @Description The whole weekly grid; booked slots carry the holder's name
// @Tags slots
// @Produce json
// @Security AdminSession
// @Success 200 {object} dto.APIResponse{data=[]dto.SlotResponse} "All slots"
// @Failure 401 {object} dto.ErrorResponse "Admin session required"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /slots/all [get]
func (c *SlotController) ListAllSlots(ctx *gin.Context) {
	slots, err := c.slotService.ListAllSlots(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewSlotResponses(slots), ""))
}
