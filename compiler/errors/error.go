package errors

import (
	"encoding/json"
	"fmt"
)

// Severity represents the severity level of an error
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Severity
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Severity
func (s *Severity) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}

	switch str {
	case "info":
		*s = Info
	case "warning":
		*s = Warning
	case "fatal":
		*s = Fatal
	default:
		*s = Error
	}
	return nil
}

// SourceLocation points at the module an error belongs to.
// File holds the module id, or the file path when no id exists yet.
// Line and Column stay zero for errors about a dependency edge.
type SourceLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// FixSuggestion represents a command or edit that fixes the error
type FixSuggestion struct {
	Description string `json:"description"`
	Command     string `json:"command,omitempty"`
}

// CompilerError represents a build-time diagnostic
type CompilerError struct {
	Phase      string         // "walker", "resolver", "codegen"
	Code       string         // "NB001", "NB002", etc.
	Message    string         // Human-readable message
	Location   SourceLocation // Module id, plus position when known
	Severity   Severity       // Error, Warning, Info
	Specifiers []string       // Offending specifiers in declaration order
	Suggestion *FixSuggestion // Optional fix
	Cause      error          // Underlying error
}

// Error implements the error interface
func (e CompilerError) Error() string {
	if e.Location.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Location.File,
			e.Location.Line,
			e.Location.Column,
			e.Code,
			e.Message)
	}
	if e.Location.File == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Location.File, e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e CompilerError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel registered for the error's code, so callers
// can test errors.Is(err, ErrNotInstalled).
func (e CompilerError) Is(target error) bool {
	k, ok := target.(kind)
	return ok && string(k) == e.Code
}

// NewCompilerError creates a new CompilerError
func NewCompilerError(phase, code, message string, location SourceLocation, severity Severity) CompilerError {
	return CompilerError{
		Phase:    phase,
		Code:     code,
		Message:  message,
		Location: location,
		Severity: severity,
	}
}

// WithSpecifiers records the dependency specifiers the error refers to
func (e CompilerError) WithSpecifiers(specifiers ...string) CompilerError {
	e.Specifiers = append([]string(nil), specifiers...)
	return e
}

// WithSuggestion adds a fix suggestion to the error
func (e CompilerError) WithSuggestion(suggestion FixSuggestion) CompilerError {
	e.Suggestion = &suggestion
	return e
}

// WithCause attaches the underlying error
func (e CompilerError) WithCause(cause error) CompilerError {
	e.Cause = cause
	return e
}

// InModule returns a copy located at the given module id
func (e CompilerError) InModule(id string) CompilerError {
	e.Location.File = id
	return e
}

// MarshalJSON implements json.Marshaler
func (e CompilerError) MarshalJSON() ([]byte, error) {
	var cause string
	if e.Cause != nil {
		cause = e.Cause.Error()
	}
	return json.Marshal(struct {
		Phase      string         `json:"phase"`
		Code       string         `json:"code"`
		Message    string         `json:"message"`
		Severity   Severity       `json:"severity"`
		Location   SourceLocation `json:"location"`
		Specifiers []string       `json:"specifiers,omitempty"`
		Suggestion *FixSuggestion `json:"suggestion,omitempty"`
		Cause      string         `json:"cause,omitempty"`
	}{
		Phase:      e.Phase,
		Code:       e.Code,
		Message:    e.Message,
		Severity:   e.Severity,
		Location:   e.Location,
		Specifiers: e.Specifiers,
		Suggestion: e.Suggestion,
		Cause:      cause,
	})
}

// IsError returns true if the error is at Error or Fatal severity
func (e CompilerError) IsError() bool {
	return e.Severity == Error || e.Severity == Fatal
}

// IsWarning returns true if the error is at Warning severity
func (e CompilerError) IsWarning() bool {
	return e.Severity == Warning
}

// IsFatal returns true if the error is at Fatal severity
func (e CompilerError) IsFatal() bool {
	return e.Severity == Fatal
}
