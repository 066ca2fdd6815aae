package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/devcamper/bootcamp-api/internal/apperror"
	"github.com/devcamper/bootcamp-api/internal/middleware"
	"github.com/devcamper/bootcamp-api/internal/models"
	"github.com/devcamper/bootcamp-api/internal/query"
	"github.com/devcamper/bootcamp-api/internal/repo/mongodb"
	"github.com/devcamper/bootcamp-api/internal/services"
	"github.com/devcamper/bootcamp-api/internal/utils"
)

type BootcampStore interface {
	Create(ctx context.Context, b *models.Bootcamp) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Bootcamp, error)
	Summary(ctx context.Context, id primitive.ObjectID) (*models.BootcampSummary, error)
	CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Bootcamp, error)
	SetPhoto(ctx context.Context, id primitive.ObjectID, name string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	WithinRadius(ctx context.Context, lng, lat, radius float64) ([]models.Bootcamp, error)
}

type CourseStore interface {
	Create(ctx context.Context, c *models.Course) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Course, error)
	ListByBootcamp(ctx context.Context, bootcampID primitive.ObjectID) ([]models.Course, error)
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Course, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByBootcamp(ctx context.Context, bootcampID primitive.ObjectID) error
}

type ReviewStore interface {
	Create(ctx context.Context, r *models.Review) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error)
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Review, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByBootcamp(ctx context.Context, bootcampID primitive.ObjectID) error
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// PasswordHasher is implemented by utils.PasswordHasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
	NeedsRehash(hash string) bool
}

// Lister runs translated list queries; *query.Executor implements it.
type Lister interface {
	List(ctx context.Context, collection string, q query.Query, opts query.ListOptions) (query.Page, error)
}

type AggregateNotifier interface {
	NotifyCourseChanged(bootcampID primitive.ObjectID)
	NotifyReviewChanged(bootcampID primitive.ObjectID)
}

type TokenManager interface {
	GenerateJWT(userID, role string) (string, error)
	ValidateJWT(token string) (*utils.Claims, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Bootcamps  BootcampStore
	Courses    CourseStore
	Reviews    ReviewStore
	Users      UserStore
	Lister     Lister
	Aggregates AggregateNotifier
	Geocoder   services.Geocoder
	Photos     services.PhotoStore
	Tokens     TokenManager
	Passwords  PasswordHasher
	DB         Pinger
	Log        *logrus.Logger

	MaxFileUpload int64
}

// Handler holds every collaborator the HTTP layer calls into.
type Handler struct {
	bootcamps  BootcampStore
	courses    CourseStore
	reviews    ReviewStore
	users      UserStore
	lister     Lister
	aggregates AggregateNotifier
	geocoder   services.Geocoder
	photos     services.PhotoStore
	tokens     TokenManager
	passwords  PasswordHasher
	db         Pinger
	log        *logrus.Logger

	maxFileUpload int64
}

func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		bootcamps:     d.Bootcamps,
		courses:       d.Courses,
		reviews:       d.Reviews,
		users:         d.Users,
		lister:        d.Lister,
		aggregates:    d.Aggregates,
		geocoder:      d.Geocoder,
		photos:        d.Photos,
		tokens:        d.Tokens,
		passwords:     d.Passwords,
		db:            d.DB,
		log:           log,
		maxFileUpload: d.MaxFileUpload,
	}
}

// fail records err for middleware.ErrorHandler.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// objectIDParam parses a path id. Malformed ids are reported as not found.
func objectIDParam(c *gin.Context, name, resource string) (primitive.ObjectID, error) {
	raw := c.Param(name)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, notFound(resource, raw)
	}
	return id, nil
}

func notFound(resource, id string) error {
	return apperror.NotFound("%s not found with id of %s", resource, id)
}

// lookupErr turns a repository miss into the resource's not-found error.
func lookupErr(err error, resource string, id primitive.ObjectID) error {
	if errors.Is(err, mongodb.ErrNotFound) {
		return notFound(resource, id.Hex())
	}
	return err
}

func currentUser(c *gin.Context) (*models.User, error) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, apperror.Unauthorized("Not authorized to access this route")
	}
	return u, nil
}

func forbidden(user *models.User, action string) error {
	return apperror.Forbidden("User %s is not authorized to %s", user.ID.Hex(), action)
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Readyz(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			h.log.WithContext(c.Request.Context()).WithError(err).Warn("readiness check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
