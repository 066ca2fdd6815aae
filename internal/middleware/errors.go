package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/devcamper/bootcamp-api/internal/apperror"
	"github.com/devcamper/bootcamp-api/internal/repo/mongodb"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ErrorHandler is the single place errors recorded with c.Error become
// responses. Handlers record an error and return without writing.
func ErrorHandler(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr := Translate(err)
		status := apperror.Status(appErr.Kind)

		if status >= http.StatusInternalServerError {
			log.WithContext(c.Request.Context()).WithFields(logrus.Fields{
				"request_id": c.GetString(CtxRequestID),
				"route":      c.FullPath(),
			}).WithError(err).Error("request failed")
		}

		c.JSON(status, errorBody{Success: false, Error: appErr.Message})
	}
}

// Recovery turns panics into the standard 500 envelope.
func Recovery(log *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.WithContext(c.Request.Context()).WithFields(logrus.Fields{
			"request_id": c.GetString(CtxRequestID),
			"panic":      fmt.Sprint(recovered),
		}).Error("panic recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Success: false, Error: "Server Error"})
	})
}

// Translate maps any error to an *apperror.Error with a client safe message.
func Translate(err error) *apperror.Error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fe.Field()+" "+validationMessage(fe.Tag(), fe.Param()))
		}
		return apperror.Wrap(apperror.KindBadRequest, err, strings.Join(msgs, ", "))
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return apperror.Wrap(apperror.KindBadRequest, err, "Invalid JSON body")
	case errors.Is(err, io.EOF):
		return apperror.Wrap(apperror.KindBadRequest, err, "Request body is required")
	case errors.As(err, &typeErr):
		return apperror.Wrap(apperror.KindBadRequest, err, fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type))
	case errors.As(err, &maxBytes):
		return apperror.Wrap(apperror.KindBadRequest, err, "Request body too large")
	case errors.Is(err, mongodb.ErrNotFound):
		return apperror.Wrap(apperror.KindNotFound, err, "Resource not found")
	case errors.Is(err, mongodb.ErrDuplicate):
		return apperror.Wrap(apperror.KindConflict, err, "Duplicate field value entered")
	}

	return apperror.Internal(err, "Server Error")
}

// UseJSONFieldNames makes validator report fields by their json names.
func UseJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return sf.Name
		}
		return name
	})
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url", "http_url":
		return "must be a valid URL"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "gte":
		return "must be at least " + param
	case "lte":
		return "must be at most " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
