package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/devcamper/bootcamp-api/internal/apperror"
	"github.com/devcamper/bootcamp-api/internal/models"
	"github.com/devcamper/bootcamp-api/internal/utils"
)

const ctxUserKey = "auth.user"

const notAuthorized = "Not authorized to access this route"

type TokenVerifier interface {
	ValidateJWT(token string) (*utils.Claims, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Protect resolves the bearer token to a stored user. Tokens for users that
// no longer exist are rejected.
func Protect(verifier TokenVerifier, users UserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abort(c, apperror.Unauthorized(notAuthorized))
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			abort(c, apperror.Unauthorized(notAuthorized))
			return
		}

		claims, err := verifier.ValidateJWT(raw)
		if err != nil {
			abort(c, apperror.Wrap(apperror.KindUnauthorized, err, notAuthorized))
			return
		}

		id, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			abort(c, apperror.Wrap(apperror.KindUnauthorized, err, notAuthorized))
			return
		}

		user, err := users.FindByID(c.Request.Context(), id)
		if err != nil {
			abort(c, apperror.Wrap(apperror.KindUnauthorized, err, notAuthorized))
			return
		}

		c.Set(ctxUserKey, user)
		c.Next()
	}
}

// Authorize admits only users holding one of roles. It must run after Protect.
func Authorize(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, apperror.Unauthorized(notAuthorized))
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		abort(c, apperror.Forbidden("User role %s is not authorized to access this route", user.Role))
	}
}

func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
