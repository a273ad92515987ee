package dataprocessing

import (
	"errors"
	"fmt"
	"strings"

	apierrors "qtodash/internal/errors"
)

var (
	// ErrMissingColumn is wrapped by every error reporting absent columns
	ErrMissingColumn = errors.New("missing required column")
	// ErrMalformedFile is wrapped by every error for input that is not a table
	ErrMalformedFile = errors.New("malformed file")
)

func missingColumnError(columns []string) error {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return apierrors.NewMissingColumnError(
		fmt.Sprintf("required column(s) not found: %s", strings.Join(quoted, ", ")),
		ErrMissingColumn,
	).WithContext("columns", append([]string(nil), columns...))
}

// malformedFileError reports a problem at a 1-based line; line 0 means the
// whole file.
func malformedFileError(line int, msg string, cause error) error {
	if cause != nil {
		cause = fmt.Errorf("%w: %w", ErrMalformedFile, cause)
	} else {
		cause = ErrMalformedFile
	}
	appErr := apierrors.NewMalformedFileError(msg, cause)
	if line > 0 {
		appErr.Message = fmt.Sprintf("line %d: %s", line, msg)
		appErr.WithContext("line", line)
	}
	return appErr
}

// MissingColumns returns the column names carried by a MissingColumn error
func MissingColumns(err error) []string {
	var appErr *apierrors.AppError
	if !errors.As(err, &appErr) || appErr.Type != apierrors.ErrTypeMissingColumn {
		return nil
	}
	cols, _ := appErr.Context["columns"].([]string)
	return cols
}
