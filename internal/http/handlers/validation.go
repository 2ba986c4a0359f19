package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/nicoiwnl/SGC-Maule/internal/utils"
)

var registerOnce sync.Once

// RegisterValidators adds the progress_range binding rule ("min-max" with
// 0 <= min <= max <= 100) to gin's validator. It is safe to call more than
// once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("progress_range", func(fl validator.FieldLevel) bool {
			_, _, err := utils.ParseRange(fl.Field().String())
			return err == nil
		})
	})
}

// bindJSON binds the request body into dst and answers 400 invalid_body on
// failure, with one message per offending field.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidBody, bindingMessage(err))
		return false
	}
	return true
}

// bindQuery is bindJSON for query strings.
func bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, bindingMessage(err))
		return false
	}
	return true
}

func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "malformed request: " + err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", field)
	case "progress_range":
		return field + ` must look like "min-max" within 0-100`
	case "datetime":
		return field + " must be a date (YYYY-MM-DD)"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
