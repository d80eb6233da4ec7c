package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/slotbook/internal/app/models/dto"
	"github.com/yigit/slotbook/internal/app/services"
	"github.com/yigit/slotbook/internal/middleware"
)

// StudentController handles the student directory endpoints
type StudentController struct {
	studentService services.StudentService
}

// NewStudentController creates a new StudentController
func NewStudentController(studentService services.StudentService) *StudentController {
	return &StudentController{studentService: studentService}
}

// CreateStudent handles student creation
// @Summary Create a student
// @Description Creates a student and generates its private booking link
// @Tags students
// @Accept json
// @Produce json
// @Security AdminSession
// @Param request body dto.CreateStudentRequest true "Student information"
// @Success 201 {object} dto.APIResponse{data=dto.StudentResponse} "Student created"
// @Failure 400 {object} dto.ErrorResponse "Invalid student data"
// @Failure 401 {object} dto.ErrorResponse "Admin session required"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /students [post]
func (c *StudentController) CreateStudent(ctx *gin.Context) {
	var req dto.CreateStudentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	student, err := c.studentService.CreateStudent(ctx.Request.Context(), req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.NewStudentResponse(student), "Student created"))
}

// ListStudents lists all students
// @Summary List students
// @Description Lists all students, newest first, with their bookings and booking count
// @Tags students
// @Produce json
// @Security AdminSession
// @Success 200 {object} dto.APIResponse{data=[]dto.StudentResponse} "Students retrieved"
// @Failure 401 {object} dto.ErrorResponse "Admin session required"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /students [get]
func (c *StudentController) ListStudents(ctx *gin.Context) {
	students, err := c.studentService.ListStudents(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewStudentResponses(students), ""))
}

// GetStudent retrieves a student by ID
// @Summary Get student by ID
// @Tags students
// @Produce json
// @Security AdminSession
// @Param id path int true "Student ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse} "Student retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid student ID"
// @Failure 401 {object} dto.ErrorResponse "Admin session required"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /students/{id} [get]
func (c *StudentController) GetStudent(ctx *gin.Context) {
	id, ok := middleware.ParseIDParam(ctx, "id", "Student")
	if !ok {
		return
	}

	student, err := c.studentService.GetStudent(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewStudentResponse(student), ""))
}

// GetStudentByLink resolves a private booking link
// @Summary Get student by booking link
// @Description Public endpoint used by the booking page behind a student's private link
// @Tags students
// @Produce json
// @Param link path string true "Unique student link"
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse} "Student retrieved"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /students/link/{link} [get]
func (c *StudentController) GetStudentByLink(ctx *gin.Context) {
	student, err := c.studentService.GetStudentByLink(ctx.Request.Context(), ctx.Param("link"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewStudentResponse(student), ""))
}

// UpdateStudent applies a partial update
// @Summary Update a student
// @Description Updates name and/or slot quota. The quota cannot drop below the number of slots the student holds.
// @Tags students
// @Accept json
// @Produce json
// @Security AdminSession
// @Param id path int true "Student ID" Format(int64) minimum(1)
// @Param request body dto.UpdateStudentRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse} "Student updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid data or quota below current bookings"
// @Failure 401 {object} dto.ErrorResponse "Admin session required"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /students/{id} [patch]
func (c *StudentController) UpdateStudent(ctx *gin.Context) {
	id, ok := middleware.ParseIDParam(ctx, "id", "Student")
	if !ok {
		return
	}

	var req dto.UpdateStudentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	student, err := c.studentService.UpdateStudent(ctx.Request.Context(), id, req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewStudentResponse(student), "Student updated"))
}

// DeleteStudent removes a student and releases its slots
// @Summary Delete a student
// @Tags students
// @Produce json
// @Security AdminSession
// @Param id path int true "Student ID" Format(int64) minimum(1)
// @Success 200 {object} dto.SuccessResponse "Student deleted"
// @Failure 400 {object} dto.ErrorResponse "Invalid student ID"
// @Failure 401 {object} dto.ErrorResponse "Admin session required"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /students/{id} [delete]
func (c *StudentController) DeleteStudent(ctx *gin.Context) {
	id, ok := middleware.ParseIDParam(ctx, "id", "Student")
	if !ok {
		return
	}

	if err := c.studentService.DeleteStudent(ctx.Request.Context(), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: "Student deleted"})
}
