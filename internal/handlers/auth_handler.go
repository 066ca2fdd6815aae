package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/devcamper/bootcamp-api/internal/apperror"
	"github.com/devcamper/bootcamp-api/internal/models"
	"github.com/devcamper/bootcamp-api/internal/repo/mongodb"
	"github.com/devcamper/bootcamp-api/internal/utils"
)

type RegisterUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"omitempty,oneof=user publisher"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterUser creates a user or publisher account and signs it in.
func (h *Handler) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, err)
		return
	}

	role := models.Role(req.Role)
	if role == "" {
		role = models.RoleUser
	}

	u, err := h.newUser(c, req.Name, req.Email, req.Password, role)
	if err != nil {
		if errors.Is(err, mongodb.ErrDuplicate) {
			fail(c, apperror.Wrap(apperror.KindConflict, err, "An account with this email already exists"))
			return
		}
		fail(c, err)
		return
	}
	h.log.WithFields(logrus.Fields{"user_id": u.ID.Hex(), "role": u.Role}).Info("user registered")

	h.sendToken(c, http.StatusCreated, u)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, err)
		return
	}

	u, err := h.users.FindByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if errors.Is(err, mongodb.ErrNotFound) {
		fail(c, apperror.Unauthorized("Invalid credentials"))
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.passwords.Verify(req.Password, u.Password); err != nil {
		if !errors.Is(err, utils.ErrPasswordMismatch) {
			h.log.WithField("user_id", u.ID.Hex()).WithError(err).Warn("stored password hash is unreadable")
		}
		fail(c, apperror.Unauthorized("Invalid credentials"))
		return
	}
	if h.passwords.NeedsRehash(u.Password) {
		h.rehash(c, u, req.Password)
	}

	h.sendToken(c, http.StatusOK, u)
}

// rehash upgrades a stored hash to the configured cost. Failures only log;
// the login itself already succeeded.
func (h *Handler) rehash(c *gin.Context, u *models.User, password string) {
	hash, err := h.passwords.Hash(password)
	if err == nil {
		_, err = h.users.Update(c.Request.Context(), u.ID, bson.M{"password": hash})
	}
	if err != nil {
		h.log.WithField("user_id", u.ID.Hex()).WithError(err).Warn("password rehash failed")
	}
}

// GetCurrentUser returns the profile of the authenticated user.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	u, err := currentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	respondData(c, http.StatusOK, u)
}

func (h *Handler) sendToken(c *gin.Context, status int, u *models.User) {
	token, err := h.tokens.GenerateJWT(u.ID.Hex(), string(u.Role))
	if err != nil {
		fail(c, apperror.Internal(err, "Could not generate token"))
		return
	}
	c.JSON(status, gin.H{"success": true, "token": token})
}
