package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/devcamper/bootcamp-api/internal/middleware"
	"github.com/devcamper/bootcamp-api/internal/models"
)

// Register mounts the versioned API on api.
func (h *Handler) Register(api *gin.RouterGroup) {
	protect := middleware.Protect(h.tokens, h.users)
	publishers := middleware.Authorize(models.RolePublisher, models.RoleAdmin)
	reviewers := middleware.Authorize(models.RoleUser, models.RoleAdmin)
	admins := middleware.Authorize(models.RoleAdmin)

	auth := api.Group("/auth")
	auth.POST("/register", h.RegisterUser)
	auth.POST("/login", h.Login)
	auth.GET("/me", protect, h.GetCurrentUser)

	bootcamps := api.Group("/bootcamps")
	bootcamps.GET("", h.GetBootcamps)
	bootcamps.POST("", protect, publishers, h.CreateBootcamp)
	bootcamps.GET("/radius/:zipcode/:distance", h.GetBootcampsInRadius)
	bootcamps.GET("/:id", h.GetBootcamp)
	bootcamps.PUT("/:id", protect, publishers, h.UpdateBootcamp)
	bootcamps.DELETE("/:id", protect, publishers, h.DeleteBootcamp)
	bootcamps.PUT("/:id/photo", protect, publishers, h.UploadBootcampPhoto)
	bootcamps.GET("/:id/courses", h.GetCourses)
	bootcamps.POST("/:id/courses", protect, publishers, h.AddCourse)
	bootcamps.GET("/:id/reviews", h.GetReviews)
	bootcamps.POST("/:id/reviews", protect, reviewers, h.AddReview)

	courses := api.Group("/courses")
	courses.GET("", h.GetCourses)
	courses.GET("/:id", h.GetCourse)
	courses.PUT("/:id", protect, publishers, h.UpdateCourse)
	courses.DELETE("/:id", protect, publishers, h.DeleteCourse)

	reviews := api.Group("/reviews")
	reviews.GET("", h.GetReviews)
	reviews.GET("/:id", h.GetReview)
	reviews.PUT("/:id", protect, reviewers, h.UpdateReview)
	reviews.DELETE("/:id", protect, reviewers, h.DeleteReview)

	users := api.Group("/user", protect, admins)
	users.GET("", h.GetUsers)
	users.POST("", h.CreateUser)
	users.GET("/:id", h.GetUser)
	users.PUT("/:id", h.UpdateUser)
	users.DELETE("/:id", h.DeleteUser)
}

// NewRouter builds the engine with the shared middleware chain, health
// checks and the API under /api/v1. extra runs after the request id is set.
func NewRouter(h *Handler, extra ...gin.HandlerFunc) *gin.Engine {
	middleware.UseJSONFieldNames()

	r := gin.New()
	r.Use(middleware.Recovery(h.log), middleware.RequestID())
	r.Use(extra...)
	r.Use(middleware.RequestLogger(h.log), middleware.ErrorHandler(h.log))

	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	h.Register(r.Group("/api/v1"))
	return r
}
