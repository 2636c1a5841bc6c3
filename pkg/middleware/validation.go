package middleware

import (
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/wms-platform/pharmacy-inventory/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var customValidators = map[string]validator.Func{
	"slug":        validateSlug,
	"record_id":   validateRecordID,
	"safe_string": validateSafeString,
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

func register(v *validator.Validate) {
	for tag, fn := range customValidators {
		_ = v.RegisterValidation(tag, fn)
	}
	v.RegisterTagNameFunc(jsonTagName)
}

// InitValidator initializes the shared validator and gin's binding validator
// with the custom tags.
func InitValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		register(validate)

		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			register(v)
		}
	})

	return validate
}

// GetValidator returns the singleton validator instance
func GetValidator() *validator.Validate {
	return InitValidator()
}

var (
	slugRegex       = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	recordIDRegex   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	safeStringRegex = regexp.MustCompile(`^[^\x00-\x08\x0B\x0C\x0E-\x1F<>]*$`)
)

func validateSlug(fl validator.FieldLevel) bool {
	return slugRegex.MatchString(fl.Field().String())
}

func validateRecordID(fl validator.FieldLevel) bool {
	return recordIDRegex.MatchString(fl.Field().String())
}

func validateSafeString(fl validator.FieldLevel) bool {
	return safeStringRegex.MatchString(fl.Field().String())
}

// ValidationErrorFormatter formats validation errors into a map
func ValidationErrorFormatter(err error) map[string]string {
	fields := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			fields[e.Field()] = formatValidationError(e)
		}
	}

	return fields
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "ne":
		return "must not be " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "slug":
		return "must be lowercase words separated by dashes"
	case "record_id":
		return "must be an alphanumeric identifier"
	case "safe_string":
		return "contains invalid characters"
	default:
		return "is invalid"
	}
}

// BindAndValidate binds request body and validates it
func BindAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return errors.ErrValidationWithFields("validation failed", ValidationErrorFormatter(validationErrors))
		}
		return errors.ErrBadRequest("invalid request body: " + err.Error())
	}
	return nil
}

// ValidateStruct validates a struct using the validator
func ValidateStruct(obj interface{}) *errors.AppError {
	if err := GetValidator().Struct(obj); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return errors.ErrValidationWithFields("validation failed", ValidationErrorFormatter(validationErrors))
		}
		return errors.ErrBadRequest("validation failed: " + err.Error())
	}
	return nil
}

// ContentType middleware ensures a JSON content type on requests with a body
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost || c.Request.Method == http.MethodPut || c.Request.Method == http.MethodPatch {
			contentType := c.GetHeader("Content-Type")
			if c.Request.ContentLength > 0 && !strings.HasPrefix(contentType, "application/json") {
				AbortWithAppError(c, errors.NewAppError("INVALID_CONTENT_TYPE", "Content-Type must be application/json", http.StatusUnsupportedMediaType))
				return
			}
		}
		c.Next()
	}
}
