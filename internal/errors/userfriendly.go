package errors

import (
	"fmt"
	"strings"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapConnectionError wraps rig connection errors with user-friendly context
func WrapConnectionError(err error, url string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to communicate with rig controller at %s", url),
		Reason:  extractConnectionReason(err),
		Hint:    "The rig controller may be powered off, or the WebSocket URL may be wrong",
		Try:     fmt.Sprintf("brushrig send emergency --url %s", url),
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Run 'brushrig init' to generate a working configuration file",
		Try:     fmt.Sprintf("brushrig init --config %s", configPath),
		Err:     err,
	}
}

// WrapStoreError wraps preset store errors with user-friendly context
func WrapStoreError(err error, storePath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Preset store error in %s", storePath),
		Reason:  extractStoreReason(err),
		Hint:    "Check that the store directory exists and is writable",
		Try:     fmt.Sprintf("brushrig presets list --store %s", storePath),
		Err:     err,
	}
}

func extractConnectionReason(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "not connected") {
		return "No live connection to the rig controller"
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timeout - controller may be offline or unreachable"
	}
	if strings.Contains(errStr, "connection refused") {
		return "Connection refused - controller may not be listening on this port"
	}
	if strings.Contains(errStr, "bad handshake") {
		return "WebSocket handshake rejected - check the URL path"
	}
	if strings.Contains(errStr, "connection reset") {
		return "Connection reset - controller closed the connection unexpectedly"
	}

	return "WebSocket communication failed"
}

func extractStoreReason(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "permission denied") {
		return "Permission denied writing the preset file"
	}
	if strings.Contains(errStr, "no such file or directory") {
		return "Store directory does not exist"
	}

	return "Preset file could not be written"
}
