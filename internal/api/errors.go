package api

import (
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
)

// ErrFileAlreadyExists indicates a file with the same name already exists in the folder.
var ErrFileAlreadyExists = errors.New("file already exists")

// APIError is a non-2xx response from the filer.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s failed: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s failed: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrFileAlreadyExists) match a 409.
func (e *APIError) Is(target error) bool {
	return target == ErrFileAlreadyExists && e.StatusCode == nethttp.StatusConflict
}

const maxErrorBody = 512

func newAPIError(method, path string, resp *nethttp.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		StatusCode: resp.StatusCode,
		Method:     method,
		Path:       path,
		Body:       strings.TrimSpace(string(body)),
	}
}

// StatusCode extracts the HTTP status from err, or 0 when err is not an APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether the filer rejected the session.
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == nethttp.StatusUnauthorized || code == nethttp.StatusForbidden
}

// IsFileExistsError checks if an error indicates a duplicate file.
//
// This function detects "file already exists" errors from multiple sources:
//  1. Wrapped ErrFileAlreadyExists error
//  2. HTTP 409 Conflict status code
//  3. Error messages containing "already exists", "duplicate", or "conflict"
func IsFileExistsError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrFileAlreadyExists) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	conflictIndicators := []string{
		"already exists",
		"duplicate",
		"conflict",
		"file exists",
		"name already in use",
	}

	for _, indicator := range conflictIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}
