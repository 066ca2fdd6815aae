package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/devcamper/bootcamp-api/internal/apperror"
	"github.com/devcamper/bootcamp-api/internal/models"
	"github.com/devcamper/bootcamp-api/internal/query"
	"github.com/devcamper/bootcamp-api/internal/repo/mongodb"
)

type CreateUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"omitempty,oneof=user publisher admin"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=6"`
	Role     *string `json:"role" binding:"omitempty,oneof=user publisher admin"`
}

func (h *Handler) GetUsers(c *gin.Context) {
	q := query.Parse(c.Request.URL.Query(), userSchema)
	page, err := h.lister.List(c.Request.Context(), mongodb.UsersCollection, q, query.ListOptions{
		Hidden: []string{"password"},
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, err := objectIDParam(c, "id", "User")
	if err != nil {
		fail(c, err)
		return
	}
	u, err := h.users.FindByID(c.Request.Context(), id)
	if err != nil {
		fail(c, lookupErr(err, "User", id))
		return
	}
	respondData(c, http.StatusOK, u)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
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
		fail(c, err)
		return
	}
	respondData(c, http.StatusCreated, u)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := objectIDParam(c, "id", "User")
	if err != nil {
		fail(c, err)
		return
	}
	existing, err := h.users.FindByID(ctx, id)
	if err != nil {
		fail(c, lookupErr(err, "User", id))
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, err)
		return
	}

	set := bson.M{}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Email != nil {
		set["email"] = strings.ToLower(*req.Email)
	}
	if req.Role != nil {
		set["role"] = *req.Role
	}
	if req.Password != nil {
		hash, err := h.passwords.Hash(*req.Password)
		if err != nil {
			fail(c, apperror.Internal(err, "Failed to hash password"))
			return
		}
		set["password"] = hash
	}
	if len(set) == 0 {
		respondData(c, http.StatusOK, existing)
		return
	}

	u, err := h.users.Update(ctx, id, set)
	if err != nil {
		fail(c, lookupErr(err, "User", id))
		return
	}
	respondData(c, http.StatusOK, u)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := objectIDParam(c, "id", "User")
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		fail(c, lookupErr(err, "User", id))
		return
	}
	respondData(c, http.StatusOK, gin.H{})
}

func (h *Handler) newUser(c *gin.Context, name, email, password string, role models.Role) (*models.User, error) {
	hash, err := h.passwords.Hash(password)
	if err != nil {
		return nil, apperror.Internal(err, "Failed to hash password")
	}

	u := &models.User{
		Name:     name,
		Email:    strings.ToLower(email),
		Password: hash,
		Role:     role,
	}
	if err := h.users.Create(c.Request.Context(), u); err != nil {
		return nil, err
	}
	return u, nil
}
