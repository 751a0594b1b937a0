package errors

// Error code constants organized by side
// NB001-NB099: Build errors
// NB100-NB199: Runtime loader errors

const (
	// Build errors (NB001-NB099)
	ErrNotInstalledCode    = "NB001"
	ErrOutOfRootCode       = "NB002"
	ErrMalformedSourceCode = "NB003"

	// Runtime errors (NB100-NB199)
	ErrModuleNotFoundCode = "NB100"
	ErrMalformedIDCode    = "NB101"
	ErrForbiddenAsyncCode = "NB102"
)

// kind is a sentinel matched by CompilerError.Is through its code
type kind string

func (k kind) Error() string { return GetErrorMessage(string(k)) }

// Sentinels for errors.Is
var (
	ErrNotInstalled    error = kind(ErrNotInstalledCode)
	ErrOutOfRoot       error = kind(ErrOutOfRootCode)
	ErrMalformedSource error = kind(ErrMalformedSourceCode)
	ErrModuleNotFound  error = kind(ErrModuleNotFoundCode)
	ErrMalformedID     error = kind(ErrMalformedIDCode)
	ErrForbiddenAsync  error = kind(ErrForbiddenAsyncCode)
)

var errorMessages = map[string]string{
	ErrNotInstalledCode:    "dependency version is not declared",
	ErrOutOfRootCode:       "relative dependency is outside the project root",
	ErrMalformedSourceCode: "malformed source",
	ErrModuleNotFoundCode:  "module not found",
	ErrMalformedIDCode:     "module id carries an explicit version",
	ErrForbiddenAsyncCode:  "async load of a foreign non-main module",
}

var errorPhases = map[string]string{
	ErrNotInstalledCode:    "resolver",
	ErrOutOfRootCode:       "resolver",
	ErrMalformedSourceCode: "walker",
	ErrModuleNotFoundCode:  "runtime",
	ErrMalformedIDCode:     "runtime",
	ErrForbiddenAsyncCode:  "runtime",
}

// GetErrorMessage returns a generic error message for a code
func GetErrorMessage(code string) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "unknown error"
}

// GetPhaseForCode returns the phase that reports the given code
func GetPhaseForCode(code string) string {
	if phase, ok := errorPhases[code]; ok {
		return phase
	}
	return "unknown"
}
