package manifest

import (
	"fmt"

	"cuelang.org/go/cue/token"
)

// Error codes surfaced by the loader. The CLI maps these into its own
// error envelope unchanged.
const (
	ErrCodeNotFound    = "MANIFEST_NOT_FOUND"
	ErrCodeLoadFailed  = "MANIFEST_LOAD_FAILED"
	ErrCodeBuildFailed = "MANIFEST_BUILD_FAILED"
	ErrCodeInvalid     = "MANIFEST_INVALID"
)

// LoadError reports a failure to locate or evaluate the manifest's CUE
// files as a whole.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError reports a single invalid or missing manifest field. Field is
// a dotted path like "app.build.command" or "deps[2].name".
type FieldError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *FieldError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// cuePosNone marks validation errors that have no single source position.
var cuePosNone = token.NoPos

func fieldErr(field string, pos token.Pos, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...), Pos: pos}
}
