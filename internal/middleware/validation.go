package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "qtodash/internal/errors"
)

// Validator checks request structs against their validate tags and turns
// failures into VALIDATION_FAILED API errors
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

var (
	// Google spreadsheet IDs are URL-safe base64 of at least 20 characters
	spreadsheetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{20,}$`)
	// A1 notation, optionally sheet-qualified: Sheet1!A1:D, 'My Sheet'!A:Z
	a1RangePattern = regexp.MustCompile(`^(('[^']+'|[^!']+)!)?[A-Za-z]{1,3}[0-9]*(:[A-Za-z]{1,3}[0-9]*)?$|^('[^']+'|[^!':]+)$`)
)

// NewValidator creates a validator with the dataset rules registered
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()

	v.RegisterValidation("datafile", isDataFile)
	v.RegisterValidation("spreadsheet_id", isSpreadsheetID)
	v.RegisterValidation("a1range", isA1Range)

	// error fields are reported by their json or query names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate: v,
		logger:   logger.With(slog.String("component", "validator")),
	}
}

// ValidateStruct validates v and returns an *apierrors.APIError listing
// every failing field
func (m *Validator) ValidateStruct(v interface{}) error {
	err := m.validate.Struct(v)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apierrors.InvalidRequestWithError(err)
	}

	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	m.logger.Debug("request validation failed", slog.Int("fields", len(out)))
	return apierrors.NewValidationErrors(out)
}

// ContentTypeValidator rejects request bodies of any other media type.
// Bodyless methods pass through.
func ContentTypeValidator(contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			for _, allowed := range contentTypes {
				if strings.HasPrefix(contentType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			apierrors.WriteError(w, r, apierrors.ErrUnsupportedMedia.WithDetails(map[string]interface{}{
				"content_type": contentType,
				"allowed":      contentTypes,
			}))
		})
	}
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "datafile":
		return fmt.Sprintf("%s must be a .csv or .xlsx file name", field)
	case "spreadsheet_id":
		return fmt.Sprintf("%s must be a Google spreadsheet ID", field)
	case "a1range":
		return fmt.Sprintf("%s must be a range in A1 notation", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// isDataFile accepts plain .csv and .xlsx file names. Dots inside a name are
// fine; only path separators could leave the upload directory.
func isDataFile(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" || len(name) > 255 {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

func isSpreadsheetID(fl validator.FieldLevel) bool {
	return spreadsheetIDPattern.MatchString(fl.Field().String())
}

func isA1Range(fl validator.FieldLevel) bool {
	return a1RangePattern.MatchString(fl.Field().String())
}
