// Package output provides styled terminal output helpers (success, error,
// warning, gate and feature formatting) using lipgloss.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"go/scanner"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/featuregate/internal/source"
)

// Writers used by the print helpers. Messages go to Stderr so that source
// written to Stdout stays clean.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

var (
	// Styles
	titleStyle     = lipgloss.NewStyle().Bold(true)
	subtleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	conditionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	directiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	sourceStyles   = map[string]lipgloss.Style{
		"env":     lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		"flag":    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"config":  lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		"default": lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Fprintln(Stderr, successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Fprintln(Stderr, errorStyle.Render("ERROR: "+fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Fprintln(Stderr, warningStyle.Render("Warning: "+fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Fprintln(Stdout, fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(Stdout, string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeMissingConfig = "missing_configuration"
	ErrCodeInvalidConfig = "invalid_configuration"
	ErrCodeSyntax        = "syntax_error"
	ErrCodeIO            = "io_error"
)

// Diagnostic is the JSON form of a positioned error
type Diagnostic struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewDiagnostic converts err, unwrapping a source position when present
func NewDiagnostic(code string, err error) Diagnostic {
	d := Diagnostic{Code: code, Message: err.Error()}
	var serr *source.Error
	var list scanner.ErrorList
	switch {
	case errors.As(err, &serr):
		d.File = serr.Pos.Filename
		d.Line = serr.Pos.Line
		d.Column = serr.Pos.Column
		d.Message = serr.Err.Error()
	case errors.As(err, &list) && len(list) > 0:
		d.File = list[0].Pos.Filename
		d.Line = list[0].Pos.Line
		d.Column = list[0].Pos.Column
		d.Message = list[0].Msg
	}
	return d
}

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	})
	fmt.Fprintln(Stdout, string(data))
}

// FormatCondition formats a canonical condition with color
func FormatCondition(cond string) string {
	return conditionStyle.Render(cond)
}

// FormatDirective formats a directive name as it appears in source
func FormatDirective(name string) string {
	return directiveStyle.Render("//" + name)
}

// FormatActive returns an activity badge, e.g. "● active" or "○ inactive"
func FormatActive(active bool) string {
	if active {
		return successStyle.Render("● active")
	}
	return subtleStyle.Render("○ inactive")
}

// FormatSource formats a feature resolution source
func FormatSource(src string) string {
	style, ok := sourceStyles[src]
	if !ok {
		return src
	}
	return style.Render(fmt.Sprintf("[%s]", src))
}

// FormatGate formats one gate entry on a single line, truncated to width
// display cells when width > 0
// e.g. "demo.go:6  func Helper  //gate:cfg  any(test, feature = "test")  ● active"
func FormatGate(e source.Entry, active bool, width int) string {
	parts := []string{
		subtleStyle.Render(fmt.Sprintf("%s:%d", e.File, e.Line)),
		titleStyle.Render(strings.TrimSpace(e.Kind + " " + e.Decl)),
		FormatDirective(e.Directive),
		FormatCondition(e.Condition),
		FormatActive(active),
	}
	return Truncate(strings.Join(parts, "  "), width)
}

// FormatDiagnostic formats an error line for check output
func FormatDiagnostic(err error) string {
	var serr *source.Error
	if errors.As(err, &serr) {
		return subtleStyle.Render(serr.Pos.String()+":") + " " + errorStyle.Render(serr.Err.Error())
	}
	return errorStyle.Render(err.Error())
}

// Truncate shortens s to width display cells, keeping ANSI styling intact.
// A width <= 0 disables truncation.
func Truncate(s string, width int) string {
	if width <= 0 || ansi.StringWidth(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "…")
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nFEATURES:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// BulletList formats items as a bulleted list with optional indentation
func BulletList(items []string, indent int) []string {
	prefix := strings.Repeat(" ", indent)
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = prefix + "- " + item
	}
	return result
}
