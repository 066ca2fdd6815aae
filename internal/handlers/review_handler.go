package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/devcamper/bootcamp-api/internal/apperror"
	"github.com/devcamper/bootcamp-api/internal/models"
	"github.com/devcamper/bootcamp-api/internal/query"
	"github.com/devcamper/bootcamp-api/internal/repo/mongodb"
)

type CreateReviewRequest struct {
	Title  string `json:"title" binding:"required,max=100"`
	Text   string `json:"text" binding:"required"`
	Rating int    `json:"rating" binding:"required,min=1,max=10"`
}

type UpdateReviewRequest struct {
	Title  *string `json:"title" binding:"omitempty,min=1,max=100"`
	Text   *string `json:"text" binding:"omitempty,min=1"`
	Rating *int    `json:"rating" binding:"omitempty,min=1,max=10"`
}

type reviewView struct {
	*models.Review
	Bootcamp *models.BootcampSummary `json:"bootcamp"`
}

// GetReviews lists all reviews, or those of one bootcamp when nested.
func (h *Handler) GetReviews(c *gin.Context) {
	ctx := c.Request.Context()
	opts := query.ListOptions{Expand: []query.Expansion{expandBootcamp}}

	if c.Param("id") != "" {
		id, err := objectIDParam(c, "id", "Bootcamp")
		if err != nil {
			fail(c, err)
			return
		}
		if _, err := h.bootcamps.FindByID(ctx, id); err != nil {
			fail(c, lookupErr(err, "Bootcamp", id))
			return
		}
		opts.Scope = bson.M{"bootcamp": id}
	}

	q := query.Parse(c.Request.URL.Query(), reviewSchema)
	page, err := h.lister.List(ctx, mongodb.ReviewsCollection, q, opts)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetReview(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := objectIDParam(c, "id", "Review")
	if err != nil {
		fail(c, err)
		return
	}

	review, err := h.reviews.FindByID(ctx, id)
	if err != nil {
		fail(c, lookupErr(err, "Review", id))
		return
	}

	summary, err := h.bootcamps.Summary(ctx, review.Bootcamp)
	if err != nil && !errors.Is(err, mongodb.ErrNotFound) {
		fail(c, err)
		return
	}

	respondData(c, http.StatusOK, reviewView{Review: review, Bootcamp: summary})
}

// AddReview creates the caller's review of the bootcamp in the path.
func (h *Handler) AddReview(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := currentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	bootcampID, err := objectIDParam(c, "id", "Bootcamp")
	if err != nil {
		fail(c, err)
		return
	}

	if _, err := h.bootcamps.FindByID(ctx, bootcampID); err != nil {
		fail(c, lookupErr(err, "Bootcamp", bootcampID))
		return
	}

	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, err)
		return
	}

	review := &models.Review{
		Title:    req.Title,
		Text:     req.Text,
		Rating:   req.Rating,
		Bootcamp: bootcampID,
		User:     user.ID,
	}
	if err := h.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, mongodb.ErrDuplicate) {
			fail(c, apperror.Wrap(apperror.KindConflict, err, "You have already reviewed this bootcamp"))
			return
		}
		fail(c, err)
		return
	}
	h.aggregates.NotifyReviewChanged(bootcampID)

	respondData(c, http.StatusCreated, review)
}

func (h *Handler) UpdateReview(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := currentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	id, err := objectIDParam(c, "id", "Review")
	if err != nil {
		fail(c, err)
		return
	}

	existing, err := h.reviews.FindByID(ctx, id)
	if err != nil {
		fail(c, lookupErr(err, "Review", id))
		return
	}
	if !user.CanModify(existing.User) {
		fail(c, forbidden(user, "update review "+id.Hex()))
		return
	}

	var req UpdateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, err)
		return
	}

	set := bson.M{}
	if req.Title != nil {
		set["title"] = *req.Title
	}
	if req.Text != nil {
		set["text"] = *req.Text
	}
	if req.Rating != nil {
		set["rating"] = *req.Rating
	}
	if len(set) == 0 {
		respondData(c, http.StatusOK, existing)
		return
	}

	review, err := h.reviews.Update(ctx, id, set)
	if err != nil {
		fail(c, lookupErr(err, "Review", id))
		return
	}
	h.aggregates.NotifyReviewChanged(review.Bootcamp)

	respondData(c, http.StatusOK, review)
}

func (h *Handler) DeleteReview(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := currentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	id, err := objectIDParam(c, "id", "Review")
	if err != nil {
		fail(c, err)
		return
	}

	existing, err := h.reviews.FindByID(ctx, id)
	if err != nil {
		fail(c, lookupErr(err, "Review", id))
		return
	}
	if !user.CanModify(existing.User) {
		fail(c, forbidden(user, "delete review "+id.Hex()))
		return
	}

	if err := h.reviews.Delete(ctx, id); err != nil {
		fail(c, lookupErr(err, "Review", id))
		return
	}
	h.aggregates.NotifyReviewChanged(existing.Bootcamp)

	respondData(c, http.StatusOK, gin.H{})
}
