package core

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var registerValidatorsOnce sync.Once

// registerValidators adds the custom binding tags used by request bodies.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
			log.Printf("[api] register notblank validator: %v", err)
		}
	})
}

// bindJSON decodes and validates the request body into dst, answering 400
// with one message per failing field when it cannot.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return false
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", strings.Join(msgs, "; "))
	return false
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + ": is required"
	case "notblank":
		return field + ": must not be blank"
	case "max":
		return fmt.Sprintf("%s: must be at most %s characters", field, fe.Param())
	case "email":
		return field + ": is not a valid email address"
	case "oneof":
		return fmt.Sprintf("%s: invalid value, possible values: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s: failed %s validation", field, fe.Tag())
	}
}
