package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"legalestate/services"
)

// RegisterValidation makes validator report fields by their JSON names.
func RegisterValidation() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
}

// bindJSON decodes the body into req and answers 400 with field details on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, validationError(err))
		return false
	}
	return true
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return services.NewValidationError("body", "must be a valid JSON object")
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return &services.ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

// writeError maps service and auth errors onto the JSON error envelope.
func writeError(c *gin.Context, err error) {
	var verr *services.ValidationError
	var nerr *services.NotificationError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "errors": verr.Fields})
	case errors.Is(err, services.ErrDuplicateEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Lawyer already registered"})
	case errors.Is(err, services.ErrClientExists):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Client already exists"})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.As(err, &nerr):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    "Failed to send invitation email",
			"clientId": nerr.ClientID,
		})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, services.ErrSearchUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Client search is not available"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func parseUint(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}
