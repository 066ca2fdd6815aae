package handlers

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/devcamper/bootcamp-api/internal/apperror"
	"github.com/devcamper/bootcamp-api/internal/models"
	"github.com/devcamper/bootcamp-api/internal/query"
	"github.com/devcamper/bootcamp-api/internal/repo/mongodb"
	"github.com/devcamper/bootcamp-api/internal/services"
)

// EarthRadiusMiles converts a radius search distance to radians.
const EarthRadiusMiles = 3963.2

type CreateBootcampRequest struct {
	Name          string   `json:"name" binding:"required,max=50"`
	Description   string   `json:"description" binding:"required,max=500"`
	Website       string   `json:"website" binding:"omitempty,url"`
	Phone         string   `json:"phone" binding:"omitempty,max=20"`
	Email         string   `json:"email" binding:"omitempty,email"`
	Address       string   `json:"address" binding:"required"`
	Careers       []string `json:"careers" binding:"required,min=1"`
	Housing       bool     `json:"housing"`
	JobAssistance bool     `json:"jobAssistance"`
	JobGuarantee  bool     `json:"jobGuarantee"`
	AcceptGi      bool     `json:"acceptGi"`
}

type UpdateBootcampRequest struct {
	Name          *string  `json:"name" binding:"omitempty,min=1,max=50"`
	Description   *string  `json:"description" binding:"omitempty,min=1,max=500"`
	Website       *string  `json:"website" binding:"omitempty,url"`
	Phone         *string  `json:"phone" binding:"omitempty,max=20"`
	Email         *string  `json:"email" binding:"omitempty,email"`
	Address       *string  `json:"address" binding:"omitempty,min=1"`
	Careers       []string `json:"careers" binding:"omitempty,min=1"`
	Housing       *bool    `json:"housing"`
	JobAssistance *bool    `json:"jobAssistance"`
	JobGuarantee  *bool    `json:"jobGuarantee"`
	AcceptGi      *bool    `json:"acceptGi"`
}

type bootcampView struct {
	*models.Bootcamp
	Courses []models.Course `json:"courses"`
}

func checkCareers(careers []string) error {
	for _, c := range careers {
		ok := false
		for _, allowed := range models.Careers {
			if c == allowed {
				ok = true
				break
			}
		}
		if !ok {
			return apperror.BadRequest("%q is not a valid career", c)
		}
	}
	return nil
}

// GetBootcamps lists bootcamps with their courses inlined.
func (h *Handler) GetBootcamps(c *gin.Context) {
	q := query.Parse(c.Request.URL.Query(), bootcampSchema)
	page, err := h.lister.List(c.Request.Context(), mongodb.BootcampsCollection, q, query.ListOptions{
		Expand: []query.Expansion{expandCourses},
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetBootcamp(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := objectIDParam(c, "id", "Bootcamp")
	if err != nil {
		fail(c, err)
		return
	}

	b, err := h.bootcamps.FindByID(ctx, id)
	if err != nil {
		fail(c, lookupErr(err, "Bootcamp", id))
		return
	}
	courses, err := h.courses.ListByBootcamp(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}

	respondData(c, http.StatusOK, bootcampView{Bootcamp: b, Courses: courses})
}

func (h *Handler) CreateBootcamp(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := currentUser(c)
	if err != nil {
		fail(c, err)
		return
	}

	var req CreateBootcampRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, err)
		return
	}
	if err := checkCareers(req.Careers); err != nil {
		fail(c, err)
		return
	}

	if !user.IsAdmin() {
		n, err := h.bootcamps.CountByUser(ctx, user.ID)
		if err != nil {
			fail(c, err)
			return
		}
		if n > 0 {
			fail(c, apperror.BadRequest("The user with ID %s has already published a bootcamp", user.ID.Hex()))
			return
		}
	}

	loc, err := h.geocode(c, req.Address)
	if err != nil {
		fail(c, err)
		return
	}

	b := &models.Bootcamp{
		Name:          req.Name,
		Slug:          models.Slugify(req.Name),
		Description:   req.Description,
		Website:       req.Website,
		Phone:         req.Phone,
		Email:         req.Email,
		Location:      loc,
		Careers:       req.Careers,
		Photo:         models.DefaultPhoto,
		Housing:       req.Housing,
		JobAssistance: req.JobAssistance,
		JobGuarantee:  req.JobGuarantee,
		AcceptGi:      req.AcceptGi,
		User:          user.ID,
	}
	if err := h.bootcamps.Create(ctx, b); err != nil {
		fail(c, err)
		return
	}

	respondData(c, http.StatusCreated, b)
}

func (h *Handler) UpdateBootcamp(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := currentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	id, err := objectIDParam(c, "id", "Bootcamp")
	if err != nil {
		fail(c, err)
		return
	}

	existing, err := h.bootcamps.FindByID(ctx, id)
	if err != nil {
		fail(c, lookupErr(err, "Bootcamp", id))
		return
	}
	if !user.CanModify(existing.User) {
		fail(c, forbidden(user, "update this bootcamp"))
		return
	}

	var req UpdateBootcampRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, err)
		return
	}

	set := bson.M{}
	if req.Name != nil {
		set["name"] = *req.Name
		set["slug"] = models.Slugify(*req.Name)
	}
	if req.Description != nil {
		set["description"] = *req.Description
	}
	if req.Website != nil {
		set["website"] = *req.Website
	}
	if req.Phone != nil {
		set["phone"] = *req.Phone
	}
	if req.Email != nil {
		set["email"] = *req.Email
	}
	if req.Careers != nil {
		if err := checkCareers(req.Careers); err != nil {
			fail(c, err)
			return
		}
		set["careers"] = req.Careers
	}
	if req.Housing != nil {
		set["housing"] = *req.Housing
	}
	if req.JobAssistance != nil {
		set["jobAssistance"] = *req.JobAssistance
	}
	if req.JobGuarantee != nil {
		set["jobGuarantee"] = *req.JobGuarantee
	}
	if req.AcceptGi != nil {
		set["acceptGi"] = *req.AcceptGi
	}
	if req.Address != nil {
		loc, err := h.geocode(c, *req.Address)
		if err != nil {
			fail(c, err)
			return
		}
		set["location"] = loc
	}

	if len(set) == 0 {
		respondData(c, http.StatusOK, existing)
		return
	}

	b, err := h.bootcamps.Update(ctx, id, set)
	if err != nil {
		fail(c, lookupErr(err, "Bootcamp", id))
		return
	}
	respondData(c, http.StatusOK, b)
}

// DeleteBootcamp removes the bootcamp together with its courses and reviews.
func (h *Handler) DeleteBootcamp(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := currentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	id, err := objectIDParam(c, "id", "Bootcamp")
	if err != nil {
		fail(c, err)
		return
	}

	existing, err := h.bootcamps.FindByID(ctx, id)
	if err != nil {
		fail(c, lookupErr(err, "Bootcamp", id))
		return
	}
	if !user.CanModify(existing.User) {
		fail(c, forbidden(user, "delete this bootcamp"))
		return
	}

	if err := h.bootcamps.Delete(ctx, id); err != nil {
		fail(c, lookupErr(err, "Bootcamp", id))
		return
	}
	if err := h.courses.DeleteByBootcamp(ctx, id); err != nil {
		fail(c, err)
		return
	}
	if err := h.reviews.DeleteByBootcamp(ctx, id); err != nil {
		fail(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{})
}

// GetBootcampsInRadius finds bootcamps within distance miles of a postal code.
func (h *Handler) GetBootcampsInRadius(c *gin.Context) {
	ctx := c.Request.Context()
	zipcode := c.Param("zipcode")

	distance, err := strconv.ParseFloat(c.Param("distance"), 64)
	if err != nil || distance < 0 || math.IsNaN(distance) || math.IsInf(distance, 0) {
		fail(c, apperror.BadRequest("Distance must be a non-negative number"))
		return
	}

	loc, err := h.geocode(c, zipcode)
	if err != nil {
		fail(c, err)
		return
	}

	radius := distance / EarthRadiusMiles
	bootcamps, err := h.bootcamps.WithinRadius(ctx, loc.Coordinates[0], loc.Coordinates[1], radius)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(bootcamps), "data": bootcamps})
}

// UploadBootcampPhoto stores the multipart "file" field as the bootcamp photo.
func (h *Handler) UploadBootcampPhoto(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := currentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	id, err := objectIDParam(c, "id", "Bootcamp")
	if err != nil {
		fail(c, err)
		return
	}

	existing, err := h.bootcamps.FindByID(ctx, id)
	if err != nil {
		fail(c, lookupErr(err, "Bootcamp", id))
		return
	}
	if !user.CanModify(existing.User) {
		fail(c, forbidden(user, "update this bootcamp"))
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, apperror.Wrap(apperror.KindBadRequest, err, "Please upload a file"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, apperror.Internal(err, "Problem with file upload"))
		return
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		fail(c, apperror.Internal(err, "Problem with file upload"))
		return
	}

	switch err := services.CheckPhoto(head[:n], fh.Size, h.maxFileUpload); {
	case errors.Is(err, services.ErrNotImage):
		fail(c, apperror.Wrap(apperror.KindBadRequest, err, "Please upload an image file"))
		return
	case errors.Is(err, services.ErrPhotoTooLarge):
		fail(c, apperror.Wrap(apperror.KindBadRequest, err, "Please upload an image less than "+strconv.FormatInt(h.maxFileUpload, 10)+" bytes"))
		return
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		fail(c, apperror.Internal(err, "Problem with file upload"))
		return
	}

	name := services.PhotoName(id.Hex(), fh.Filename)
	if err := h.photos.Save(name, f); err != nil {
		fail(c, apperror.Internal(err, "Problem with file upload"))
		return
	}
	if err := h.bootcamps.SetPhoto(ctx, id, name); err != nil {
		fail(c, lookupErr(err, "Bootcamp", id))
		return
	}

	respondData(c, http.StatusOK, name)
}

func (h *Handler) geocode(c *gin.Context, address string) (*models.GeoPoint, error) {
	loc, err := h.geocoder.Geocode(c.Request.Context(), address)
	if errors.Is(err, services.ErrAddressNotFound) {
		return nil, apperror.Wrap(apperror.KindBadRequest, err, "Could not geocode "+address)
	}
	if err != nil {
		return nil, apperror.Internal(err, "Geocoder unavailable")
	}
	if len(loc.Coordinates) != 2 {
		return nil, apperror.BadRequest("Could not geocode %s", address)
	}
	return loc, nil
}
