package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/yigit/slotbook/docs"
	"github.com/yigit/slotbook/internal/app/controllers"
	"github.com/yigit/slotbook/internal/middleware"
	"github.com/yigit/slotbook/internal/pkg/websocket"
)

// HealthCheck reports whether the backing services are reachable
type HealthCheck func(ctx context.Context) error

// Handlers groups everything the router mounts
type Handlers struct {
	Auth     *controllers.AuthController
	Bookings *controllers.BookingController
	Students *controllers.StudentController
	Slots    *controllers.SlotController
	SlotFeed *websocket.Handler

	AuthMiddleware *middleware.AuthMiddleware
	BookingLimiter *middleware.RateLimiter
	LoginLimiter   *middleware.RateLimiter

	Metrics http.Handler
	Health  HealthCheck
}

// SetupRouter configures all application routes
func SetupRouter(router *gin.Engine, h Handlers) {
	api := router.Group("/api")
	admin := h.AuthMiddleware.AdminRequired()

	// --- Auth routes ---
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", h.LoginLimiter.Middleware(), h.Auth.Login)
		authGroup.POST("/logout", h.Auth.Logout)
		authGroup.GET("/session", admin, h.Auth.Session)
	}

	// --- Booking routes ---
	bookings := api.Group("/bookings")
	{
		bookings.POST("", h.BookingLimiter.Middleware(), h.Bookings.ReplaceBookings)
		bookings.GET("", admin, h.Bookings.ListBookings)
		bookings.DELETE("/:id", admin, h.Bookings.CancelBooking)
	}

	// --- Student routes ---
	students := api.Group("/students")
	{
		// Public: the private booking link is the credential
		students.GET("/link/:link", h.Students.GetStudentByLink)

		students.GET("", admin, h.Students.ListStudents)
		students.POST("", admin, h.Students.CreateStudent)
		students.GET("/:id", admin, h.Students.GetStudent)
		students.PATCH("/:id", admin, h.Students.UpdateStudent)
		students.DELETE("/:id", admin, h.Students.DeleteStudent)
	}

	// --- Slot routes ---
	slots := api.Group("/slots")
	{
		slots.GET("", h.Slots.ListFreeSlots)
		slots.GET("/all", admin, h.Slots.ListAllSlots)
		slots.GET("/ws", admin, h.SlotFeed.HandleConnection)
	}

	// --- Ops ---
	router.GET("/health", healthHandler(h.Health))
	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics))
	}
}

// healthHandler godoc
// @Summary Health check
// @Tags ops
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func healthHandler(check HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// SetupSwagger serves the generated API docs under /swagger
func SetupSwagger(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger/doc.json"),
		ginSwagger.DefaultModelsExpandDepth(1),
	))
}
