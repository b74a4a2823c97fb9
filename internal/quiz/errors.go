package quiz

import (
	"errors"
)

var (
	ErrRenderTimeout       = errors.New("render timeout")
	ErrRender              = errors.New("render error")
	ErrNoQuestionFound     = errors.New("no question found")
	ErrUnsupportedFormat   = errors.New("unsupported format")
	ErrParse               = errors.New("parse error")
	ErrColumnNotFound      = errors.New("column not found")
	ErrEndpointUnreachable = errors.New("endpoint unreachable")
	ErrFieldNotFound       = errors.New("field not found")
	ErrProvider            = errors.New("provider error")
	ErrSolverTimeout       = errors.New("solver timeout")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrSessionTimeout      = errors.New("session timeout")
)

// IsTerminal reports whether err ends a session. Strategy-local failures
// (format, parse, column, endpoint, field) are not terminal: they degrade to
// the LLM fallback.
func IsTerminal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrParse),
		errors.Is(err, ErrColumnNotFound),
		errors.Is(err, ErrEndpointUnreachable),
		errors.Is(err, ErrFieldNotFound):
		return false
	}
	return true
}

// Code returns a short machine-readable name for err, suitable for metrics
// labels and error responses.
func Code(err error) string {
	codes := []struct {
		err  error
		code string
	}{
		{ErrRenderTimeout, "RenderTimeout"},
		{ErrRender, "RenderError"},
		{ErrNoQuestionFound, "NoQuestionFound"},
		{ErrUnsupportedFormat, "UnsupportedFormat"},
		{ErrParse, "ParseError"},
		{ErrColumnNotFound, "ColumnNotFound"},
		{ErrEndpointUnreachable, "EndpointUnreachable"},
		{ErrFieldNotFound, "FieldNotFound"},
		{ErrProvider, "ProviderError"},
		{ErrSolverTimeout, "SolverTimeout"},
		{ErrUnauthorized, "Unauthorized"},
		{ErrSessionTimeout, "SessionTimeout"},
	}
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "InternalError"
}
