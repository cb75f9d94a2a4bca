package controllers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/zaqqye/applytrack/internal/models"
)

var (
	registerOnce sync.Once
	validate     *validator.Validate
)

var minAppliedDate = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// Dates are accepted up to "today" in the furthest-ahead time zone.
const maxAppliedAhead = 14 * time.Hour

// RegisterValidators installs the custom binding rules on gin's validator.
// It is safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterValidation("appstatus", func(fl validator.FieldLevel) bool {
			_, ok := models.ParseStatus(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("optionalurl", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			return s == "" || v.Var(s, "url") == nil
		})
		_ = v.RegisterValidation("appdate", func(fl validator.FieldLevel) bool {
			return validAppliedDate(fl.Field().String(), time.Now())
		})
		validate = v
	})
}

func validAppliedDate(s string, now time.Time) bool {
	d, err := time.Parse(models.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return !d.Before(minAppliedDate) && !d.After(now.UTC().Add(maxAppliedAhead))
}

func validEmail(s string) bool {
	RegisterValidators()
	return validate.Var(s, "required,email") == nil
}

var fieldMessages = map[string]string{
	"company.nonblank":       "Company name is required",
	"role.nonblank":          "Role is required",
	"location.nonblank":      "Location is required",
	"applied_date.nonblank":  "Applied date is required",
	"applied_date.appdate":   "Applied date must be a valid date, not in the future and not before 1900",
	"status.nonblank":        "Status is required",
	"status.appstatus":       "Status must be one of Applied, Interview, Rejected, Offered, Withdrawn",
	"resume_url.optionalurl": "Resume URL must be a valid URL",
}

// bindError writes a 400 for a failed ShouldBindJSON. Validation failures
// carry a message per field.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	fields := make(map[string]string, len(verrs))
	first := ""
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Field() + " is invalid"
		}
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = msg
		}
		if first == "" {
			first = msg
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": first, "fields": fields})
}
