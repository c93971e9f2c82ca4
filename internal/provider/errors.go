package provider

import "fmt"

// HTTPError is a non-2xx response from an upstream API. The body is carried
// verbatim for diagnostics.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream API error (status %d): %s", e.StatusCode, e.Body)
}

// ConfigError is a fatal configuration problem detected at construction
// time. Callers fail fast rather than degrading.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
	}
	return "configuration error: " + e.Message
}

func configErr(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}
