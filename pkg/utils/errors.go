package utils

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed     = errors.New("request failed after all retries") // Carries the final attempt error
	ErrClientHTTPError = errors.New("client HTTP error (4xx)")
	ErrServerHTTPError = errors.New("server HTTP error (5xx)")
	ErrOtherHTTPError  = errors.New("other HTTP error (non-2xx)")

	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	ErrScopeViolation   = errors.New("URL out of scope (domain/prefix/pattern)")
	ErrMaxDepthExceeded = errors.New("maximum crawl depth exceeded")

	ErrParse    = errors.New("sitemap XML parse error") // Wraps the xml decoder error
	ErrNotFound = errors.New("sitemap file not found")  // Wraps the os error

	ErrFilesystem       = errors.New("filesystem error") // Wraps os errors
	ErrDatabase         = errors.New("database error")   // Wraps badger errors
	ErrSemaphoreTimeout = errors.New("timeout acquiring semaphore")
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrConfigValidation = errors.New("configuration validation error")
)

// CategorizeError maps an error to a predefined category string for logging
// and for the code field of crawl error events.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	// Sentinels take precedence over type sniffing
	switch {
	case errors.Is(err, ErrRetryFailed):
		if errors.Is(err, ErrServerHTTPError) {
			return "RetryFailed_HTTPServer"
		}
		if errors.Is(err, ErrClientHTTPError) {
			return "RetryFailed_HTTPClient"
		}

		errMsg := err.Error()
		if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "Timeout") || strings.Contains(errMsg, "deadline exceeded") {
			return "RetryFailed_NetworkTimeout"
		}
		if strings.Contains(errMsg, "connection refused") {
			return "RetryFailed_ConnectionRefused"
		}
		if strings.Contains(errMsg, "no such host") {
			return "RetryFailed_DNSLookup"
		}
		var retryNetErr net.Error
		if errors.As(err, &retryNetErr) {
			if retryNetErr.Timeout() {
				return "RetryFailed_NetworkTimeout"
			}
		}
		return "RetryFailed_NetworkOther"
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		if strings.Contains(errMsg, " 404 ") {
			return "HTTP_404"
		}
		if strings.Contains(errMsg, " 403 ") {
			return "HTTP_403"
		}
		if strings.Contains(errMsg, " 401 ") {
			return "HTTP_401"
		}
		if strings.Contains(errMsg, " 429 ") {
			return "HTTP_429"
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrScopeViolation):
		return "Policy_Scope"
	case errors.Is(err, ErrMaxDepthExceeded):
		return "Policy_MaxDepth"
	case errors.Is(err, ErrParse):
		return "Sitemap_ParseXML"
	case errors.Is(err, ErrNotFound):
		return "Sitemap_NotFound"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		if errors.Is(err, os.ErrExist) {
			return "Filesystem_Exist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrSemaphoreTimeout):
		return "Resource_SemaphoreTimeout"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// No sentinel matched; classify by underlying type and message

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if strings.Contains(err.Error(), "semaphore") {
			return "Resource_SemaphoreTimeout"
		}
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "Network_Timeout"
		}
	}
	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate") {
		return "Network_TLS"
	}
	if strings.Contains(lowerErrMsg, "reset by peer") {
		return "Network_ConnectionReset"
	}
	if strings.Contains(lowerErrMsg, "broken pipe") {
		return "Network_BrokenPipe"
	}

	return "Unknown"
}
