package cli

import (
	"encoding/json"
	"errors"

	"github.com/loomworks/loom/internal/builder"
	"github.com/loomworks/loom/internal/closure"
	"github.com/loomworks/loom/internal/manifest"
	"github.com/loomworks/loom/internal/platform"
	"github.com/loomworks/loom/internal/resolver"
	"github.com/loomworks/loom/internal/wrapper"
)

// Error codes surfaced in the CLI envelope.
const (
	ErrCodeUnresolvable     = "UNRESOLVABLE_SOURCE"
	ErrCodeBuildFailure     = "BUILD_FAILURE"
	ErrCodeIncompleteClsr   = "INCOMPLETE_CLOSURE"
	ErrCodeWrapFailure      = "WRAP_FAILURE"
	ErrCodeUnsupported      = "UNSUPPORTED_PLATFORM"
	ErrCodeManifestInvalid  = "MANIFEST_INVALID"
	ErrCodeManifestNotFound = "MANIFEST_NOT_FOUND"
	ErrCodeGeneric          = "INTERNAL"
)

// classify maps a pipeline error to its envelope code and exit code.
// Platform-scoped pipeline failures exit 1; caller mistakes (bad
// manifest, unknown platform) exit 2.
func classify(err error) (code string, exit int) {
	var unresolvable *resolver.UnresolvableError
	if errors.As(err, &unresolvable) {
		return ErrCodeUnresolvable, ExitFailure
	}
	var buildFailure *builder.Failure
	if errors.As(err, &buildFailure) {
		return ErrCodeBuildFailure, ExitFailure
	}
	var incomplete *closure.IncompleteError
	if errors.As(err, &incomplete) {
		return ErrCodeIncompleteClsr, ExitFailure
	}
	var wrapFailure *wrapper.FailureError
	if errors.As(err, &wrapFailure) {
		return ErrCodeWrapFailure, ExitFailure
	}
	var unsupported *platform.UnsupportedError
	if errors.As(err, &unsupported) {
		return ErrCodeUnsupported, ExitCommandError
	}
	var loadErr *manifest.LoadError
	if errors.As(err, &loadErr) {
		if loadErr.Code == manifest.ErrCodeNotFound {
			return ErrCodeManifestNotFound, ExitCommandError
		}
		return ErrCodeManifestInvalid, ExitCommandError
	}
	var fieldErr *manifest.FieldError
	if errors.As(err, &fieldErr) {
		return ErrCodeManifestInvalid, ExitCommandError
	}
	return ErrCodeGeneric, ExitFailure
}

// reportError writes err through the formatter and returns the ExitError
// the command should bubble up.
func reportError(formatter *OutputFormatter, err error) error {
	code, exit := classify(err)
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(exit, code, err)
}

// reportErrors writes a collected error list (manifest loading) and
// returns a single command-level ExitError.
func reportErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, _ := classify(err)
			cliErrors[i] = CLIError{Code: code, Message: err.Error()}
		}
		enc := json.NewEncoder(formatter.Writer)
		enc.SetIndent("", "  ")
		_ = enc.Encode(CLIResponse{Status: "error", Error: &cliErrors[0], Data: cliErrors})
	} else {
		for _, err := range errs {
			code, _ := classify(err)
			_ = formatter.Error(code, err.Error(), nil)
		}
	}
	return NewExitError(ExitCommandError, "manifest validation failed")
}
