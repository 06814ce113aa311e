package errors

import (
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
)

// BuildError represents a message reported by the bundler
type BuildError struct {
	Plugin    string
	File      string
	Line      int
	Column    int
	LineText  string
	Message   string
	Severity  ErrorSeverity
	Timestamp time.Time
}

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityFatal
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error implements the error interface
func (be *BuildError) Error() string {
	if be.File == "" {
		return fmt.Sprintf("%s: %s", be.Severity, be.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", be.File, be.Line, be.Column, be.Severity, be.Message)
}

// FromMessages converts esbuild messages into build errors of one severity.
func FromMessages(messages []api.Message, severity ErrorSeverity) []BuildError {
	now := time.Now()
	out := make([]BuildError, 0, len(messages))
	for _, msg := range messages {
		be := BuildError{
			Plugin:    msg.PluginName,
			Message:   msg.Text,
			Severity:  severity,
			Timestamp: now,
		}
		if msg.Location != nil {
			be.File = msg.Location.File
			be.Line = msg.Location.Line
			be.Column = msg.Location.Column
			be.LineText = msg.Location.LineText
		}
		out = append(out, be)
	}
	return out
}

// BuildFailure is returned when a fail-fast build reports errors.
type BuildFailure struct {
	Errors []BuildError
}

// Error implements the error interface
func (bf *BuildFailure) Error() string {
	if len(bf.Errors) == 0 {
		return "build failed"
	}
	lines := make([]string, 0, len(bf.Errors))
	for i := range bf.Errors {
		lines = append(lines, bf.Errors[i].Error())
	}
	return fmt.Sprintf("build failed with %d error(s):\n%s", len(bf.Errors), strings.Join(lines, "\n"))
}

// ErrorCollector collects and manages build errors and general errors
type ErrorCollector struct {
	buildErrors []BuildError
	errors      []error
	mutex       sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		buildErrors: make([]BuildError, 0),
		errors:      make([]error, 0),
	}
}

// Add adds a build error to the collector
func (ec *ErrorCollector) Add(err BuildError) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	ec.buildErrors = append(ec.buildErrors, err)
}

// AddError adds a general error to the collector
func (ec *ErrorCollector) AddError(err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err)
}

// Replace swaps the collected build errors for errs, dropping general errors.
func (ec *ErrorCollector) Replace(errs []BuildError) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.buildErrors = append(ec.buildErrors[:0], errs...)
	ec.errors = ec.errors[:0]
}

// GetErrors returns all collected build errors
func (ec *ErrorCollector) GetErrors() []BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	// Return a copy to avoid race conditions
	result := make([]BuildError, len(ec.buildErrors))
	copy(result, ec.buildErrors)
	return result
}

// GetAllErrors returns all collected errors (build and general)
func (ec *ErrorCollector) GetAllErrors() []error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	allErrors := make([]error, 0, len(ec.buildErrors)+len(ec.errors))
	for i := range ec.buildErrors {
		allErrors = append(allErrors, &ec.buildErrors[i])
	}
	allErrors = append(allErrors, ec.errors...)

	return allErrors
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.buildErrors) > 0 || len(ec.errors) > 0
}

// OverlayID is the element id of the browser error overlay.
const OverlayID = "assetpack-error-overlay"

// ErrorOverlay generates HTML for error overlay
func (ec *ErrorCollector) ErrorOverlay() string {
	if !ec.HasErrors() {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<div id="` + OverlayID + `" style="
	position: fixed;
	top: 0;
	left: 0;
	width: 100%;
	height: 100%;
	background: rgba(0, 0, 0, 0.8);
	color: white;
	font-family: 'Monaco', 'Menlo', monospace;
	font-size: 14px;
	z-index: 9999;
	padding: 20px;
	box-sizing: border-box;
	overflow: auto;
">
	<div style="max-width: 1000px; margin: 0 auto;">
		<div style="display: flex; justify-content: space-between; align-items: center; margin-bottom: 20px;">
			<h2 style="margin: 0; color: #ff6b6b;">Build Errors</h2>
			<button onclick="document.getElementById('` + OverlayID + `').remove()"
					style="background: none; border: 1px solid #ccc; color: white; padding: 5px 10px; cursor: pointer;">
				Close
			</button>
		</div>
		<div>`)

	ec.mutex.RLock()
	for _, err := range ec.buildErrors {
		severityColor := "#ff6b6b"
		switch err.Severity {
		case ErrorSeverityWarning:
			severityColor = "#feca57"
		case ErrorSeverityInfo:
			severityColor = "#48dbfb"
		}

		fmt.Fprintf(&b, `
			<div style="background: #2d3748; padding: 15px; margin-bottom: 15px; border-radius: 4px; border-left: 4px solid %s;">
				<div style="display: flex; justify-content: space-between; margin-bottom: 10px;">
					<span style="color: %s; font-weight: bold;">%s</span>
					<span style="color: #a0aec0; font-size: 12px;">%s</span>
				</div>
				<div style="color: #e2e8f0; margin-bottom: 5px;"><strong>%s</strong></div>
				<pre style="color: #a0aec0; margin: 0 0 5px;">%s</pre>
				<div style="color: #a0aec0; font-size: 12px;">%s:%d:%d</div>
			</div>`,
			severityColor, severityColor, err.Severity.String(), err.Timestamp.Format("15:04:05"),
			html.EscapeString(err.Message), html.EscapeString(err.LineText),
			html.EscapeString(err.File), err.Line, err.Column)
	}
	for _, err := range ec.errors {
		fmt.Fprintf(&b, `
			<div style="background: #2d3748; padding: 15px; margin-bottom: 15px; border-left: 4px solid #ff6b6b;">
				<strong>%s</strong>
			</div>`, html.EscapeString(err.Error()))
	}
	ec.mutex.RUnlock()

	b.WriteString(`
		</div>
	</div>
</div>`)

	return b.String()
}
