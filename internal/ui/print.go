package ui

import (
	"fmt"
	"io"
	"os"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects the print helpers, e.g. to a buffer in tests.
// It returns a function restoring the previous writers.
func SetOutput(out, errOut io.Writer) func() {
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	return func() {
		stdout, stderr = prevOut, prevErr
	}
}

// Stdout returns the writer the print helpers use for normal output
func Stdout() io.Writer {
	return stdout
}

// Success prints a success message with a checkmark icon
func Success(msg string) {
	fmt.Fprintln(stdout, SuccessStyle.Render("✓ "+msg))
}

// Successf prints a formatted success message with a checkmark icon
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

// Error prints an error message with an X icon
func Error(msg string) {
	fmt.Fprintln(stderr, ErrorStyle.Render("✗ "+msg))
}

// Errorf prints a formatted error message with an X icon
func Errorf(format string, args ...interface{}) {
	Error(fmt.Sprintf(format, args...))
}

// Warning prints a warning to stderr so it never mixes with --json output
func Warning(msg string) {
	fmt.Fprintln(stderr, WarningStyle.Render("⚠ "+msg))
}

// Warningf prints a formatted warning
func Warningf(format string, args ...interface{}) {
	Warning(fmt.Sprintf(format, args...))
}

// Info prints an info message with an info icon
func Info(msg string) {
	fmt.Fprintln(stdout, InfoStyle.Render("ℹ "+msg))
}

// Infof prints a formatted info message with an info icon
func Infof(format string, args ...interface{}) {
	Info(fmt.Sprintf(format, args...))
}

// Print prints a plain line
func Print(msg string) {
	fmt.Fprintln(stdout, msg)
}

// Printf prints a formatted plain message
func Printf(format string, args ...interface{}) {
	fmt.Fprintf(stdout, format, args...)
}

// Header prints a header (bold, colored)
func Header(header string) {
	fmt.Fprintln(stdout, HeaderStyle.Render(header))
}

// Dim renders muted text
func Dim(text string) string {
	return DimStyle.Render(text)
}

// Bold renders bold text
func Bold(text string) string {
	return BoldStyle.Render(text)
}

// Highlight renders text in the primary color
func Highlight(text string) string {
	return HighlightStyle.Render(text)
}
