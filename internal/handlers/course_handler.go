package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/devcamper/bootcamp-api/internal/models"
	"github.com/devcamper/bootcamp-api/internal/query"
	"github.com/devcamper/bootcamp-api/internal/repo/mongodb"
)

type CreateCourseRequest struct {
	Title                string  `json:"title" binding:"required"`
	Description          string  `json:"description" binding:"required"`
	Weeks                string  `json:"weeks" binding:"required"`
	Tuition              float64 `json:"tuition" binding:"required,gt=0"`
	MinimumSkill         string  `json:"minimumSkill" binding:"required,oneof=beginner intermediate advanced"`
	ScholarshipAvailable bool    `json:"scholarshipAvailable"`
}

type UpdateCourseRequest struct {
	Title                *string  `json:"title" binding:"omitempty,min=1"`
	Description          *string  `json:"description" binding:"omitempty,min=1"`
	Weeks                *string  `json:"weeks" binding:"omitempty,min=1"`
	Tuition              *float64 `json:"tuition" binding:"omitempty,gt=0"`
	MinimumSkill         *string  `json:"minimumSkill" binding:"omitempty,oneof=beginner intermediate advanced"`
	ScholarshipAvailable *bool    `json:"scholarshipAvailable"`
}

type courseView struct {
	*models.Course
	Bootcamp *models.BootcampSummary `json:"bootcamp"`
}

// GetCourses lists all courses, or those of one bootcamp when nested.
func (h *Handler) GetCourses(c *gin.Context) {
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

	q := query.Parse(c.Request.URL.Query(), courseSchema)
	page, err := h.lister.List(ctx, mongodb.CoursesCollection, q, opts)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetCourse(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := objectIDParam(c, "id", "Course")
	if err != nil {
		fail(c, err)
		return
	}

	course, err := h.courses.FindByID(ctx, id)
	if err != nil {
		fail(c, lookupErr(err, "Course", id))
		return
	}

	summary, err := h.bootcamps.Summary(ctx, course.Bootcamp)
	if err != nil && !errors.Is(err, mongodb.ErrNotFound) {
		fail(c, err)
		return
	}

	respondData(c, http.StatusOK, courseView{Course: course, Bootcamp: summary})
}

// AddCourse creates a course under the bootcamp in the path. The bootcamp and
// owner always come from the route and the session.
func (h *Handler) AddCourse(c *gin.Context) {
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

	bootcamp, err := h.bootcamps.FindByID(ctx, bootcampID)
	if err != nil {
		fail(c, lookupErr(err, "Bootcamp", bootcampID))
		return
	}
	if !user.CanModify(bootcamp.User) {
		fail(c, forbidden(user, "add a course to bootcamp "+bootcampID.Hex()))
		return
	}

	var req CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, err)
		return
	}

	course := &models.Course{
		Title:                req.Title,
		Description:          req.Description,
		Weeks:                req.Weeks,
		Tuition:              req.Tuition,
		MinimumSkill:         models.Skill(req.MinimumSkill),
		ScholarshipAvailable: req.ScholarshipAvailable,
		Bootcamp:             bootcampID,
		User:                 user.ID,
	}
	if err := h.courses.Create(ctx, course); err != nil {
		fail(c, err)
		return
	}
	h.aggregates.NotifyCourseChanged(bootcampID)

	respondData(c, http.StatusCreated, course)
}

func (h *Handler) UpdateCourse(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := currentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	id, err := objectIDParam(c, "id", "Course")
	if err != nil {
		fail(c, err)
		return
	}

	existing, err := h.courses.FindByID(ctx, id)
	if err != nil {
		fail(c, lookupErr(err, "Course", id))
		return
	}
	if !user.CanModify(existing.User) {
		fail(c, forbidden(user, "update course "+id.Hex()))
		return
	}

	var req UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, err)
		return
	}

	set := bson.M{}
	if req.Title != nil {
		set["title"] = *req.Title
	}
	if req.Description != nil {
		set["description"] = *req.Description
	}
	if req.Weeks != nil {
		set["weeks"] = *req.Weeks
	}
	if req.Tuition != nil {
		set["tuition"] = *req.Tuition
	}
	if req.MinimumSkill != nil {
		set["minimumSkill"] = *req.MinimumSkill
	}
	if req.ScholarshipAvailable != nil {
		set["scholarshipAvailable"] = *req.ScholarshipAvailable
	}
	if len(set) == 0 {
		respondData(c, http.StatusOK, existing)
		return
	}

	course, err := h.courses.Update(ctx, id, set)
	if err != nil {
		fail(c, lookupErr(err, "Course", id))
		return
	}
	h.aggregates.NotifyCourseChanged(course.Bootcamp)

	respondData(c, http.StatusOK, course)
}

func (h *Handler) DeleteCourse(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := currentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	id, err := objectIDParam(c, "id", "Course")
	if err != nil {
		fail(c, err)
		return
	}

	existing, err := h.courses.FindByID(ctx, id)
	if err != nil {
		fail(c, lookupErr(err, "Course", id))
		return
	}
	if !user.CanModify(existing.User) {
		fail(c, forbidden(user, "delete course "+id.Hex()))
		return
	}

	if err := h.courses.Delete(ctx, id); err != nil {
		fail(c, lookupErr(err, "Course", id))
		return
	}
	h.aggregates.NotifyCourseChanged(existing.Bootcamp)

	respondData(c, http.StatusOK, gin.H{})
}
