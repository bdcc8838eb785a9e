package helpers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/watchdeck/watchdeck/cli/tui/models"
	"github.com/watchdeck/watchdeck/engine/action"
	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/engine/uisync"
)

var (
	// ErrTimeout represents a timeout error
	ErrTimeout = errors.New("operation timed out")
	// ErrNetwork represents a network error
	ErrNetwork = errors.New("network error")
	// ErrAuth represents an authorization error
	ErrAuth = errors.New("authorization error")
	// ErrRejected marks a job run that ended without completing
	ErrRejected = errors.New("job rejected")
)

// CliError represents a CLI-specific error with enhanced context
type CliError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	cause     error
}

func (e *CliError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CliError) Unwrap() error {
	return e.cause
}

// NewCliError creates a new CLI error
func NewCliError(code, message string, details ...string) *CliError {
	err := &CliError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// WithCause keeps the original error reachable through errors.Is
func (e *CliError) WithCause(err error) *CliError {
	e.cause = err
	return e
}

func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrTimeout) ||
		strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// IsNetworkError reports failures to reach the job service
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetwork) || errors.Is(err, action.ErrTransport) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, keyword := range []string{"connection refused", "connection reset", "no route to host", "network unreachable"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrAuth) || errors.Is(err, uisync.ErrUnauthorized)
}

// FormatError formats errors based on output mode
func FormatError(err error, mode models.Mode) string {
	if err == nil {
		return ""
	}
	switch mode {
	case models.ModeJSON:
		return formatErrorJSON(err)
	case models.ModeTUI:
		return formatErrorTUI(err)
	default:
		return err.Error()
	}
}

func formatErrorJSON(err error) string {
	message, details := extractErrorInfo(err)
	out, mErr := json.Marshal(map[string]string{
		"error":   message,
		"details": details,
	})
	if mErr != nil {
		return `{"error": "JSON marshaling failed", "details": ""}`
	}
	return string(out)
}

func formatErrorTUI(err error) string {
	message, details := extractErrorInfo(err)
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	result := fmt.Sprintf("%s %s", errorIcon(err), style.Render(message))
	if details != "" {
		detailStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
		result += "\n" + detailStyle.Render("Details: "+details)
	}
	return result
}

func extractErrorInfo(err error) (message, details string) {
	var cliErr *CliError
	if errors.As(err, &cliErr) {
		return core.RedactString(cliErr.Message), core.RedactString(cliErr.Details)
	}
	return core.RedactError(err), ""
}

func errorIcon(err error) string {
	switch {
	case IsNetworkError(err):
		return "🌐"
	case IsAuthError(err):
		return "🔐"
	case IsTimeoutError(err):
		return "⏰"
	default:
		return "❌"
	}
}

// OutputError writes err to w in the format of mode
func OutputError(w io.Writer, err error, mode models.Mode) {
	if err == nil {
		return
	}
	fmt.Fprintln(w, FormatError(err, mode))
}
