package errors

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorBold   = "\033[1m"
)

// FormatForTerminal formats a CompilerError for terminal output with ANSI colors
func (e CompilerError) FormatForTerminal() string {
	var sb strings.Builder

	severityColor := colorRed
	switch e.Severity {
	case Warning:
		severityColor = colorYellow
	case Info:
		severityColor = colorCyan
	}

	sb.WriteString(fmt.Sprintf("%s%s[%s]%s: %s\n",
		colorBold+severityColor,
		e.Severity.String(),
		e.Code,
		colorReset,
		e.Message))

	if e.Location.File != "" {
		sb.WriteString(fmt.Sprintf("  %s-->%s %s\n", colorCyan, colorReset, e.Location.File))
	}

	if e.Suggestion != nil {
		sb.WriteString(fmt.Sprintf("  %shelp:%s %s\n", colorGreen, colorReset, e.Suggestion.Description))
		if e.Suggestion.Command != "" {
			sb.WriteString(fmt.Sprintf("        %s\n", e.Suggestion.Command))
		}
	}

	return sb.String()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// StripColors removes ANSI color codes, for tests and non-tty output
func StripColors(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// JSONOutput represents the JSON structure for error output
type JSONOutput struct {
	Status  string          `json:"status"`
	Errors  []CompilerError `json:"errors"`
	Summary Summary         `json:"summary"`
}

// Summary contains error and warning counts
type Summary struct {
	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`
}

// FormatErrorsAsJSON formats a list of diagnostics as indented JSON
func FormatErrorsAsJSON(errs []CompilerError) (string, error) {
	output := JSONOutput{Status: "success", Errors: errs}
	if output.Errors == nil {
		output.Errors = []CompilerError{}
	}
	for _, e := range errs {
		switch {
		case e.IsError():
			output.Summary.ErrorCount++
		case e.IsWarning():
			output.Summary.WarningCount++
		}
	}
	if output.Summary.ErrorCount > 0 {
		output.Status = "error"
	} else if output.Summary.WarningCount > 0 {
		output.Status = "warning"
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
