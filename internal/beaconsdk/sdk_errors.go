package beaconsdk

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/imroc/req/v3"
)

var (
	// sdk common
	ErrNoServerURL = errors.New("sdk: server url missing")
	ErrNoToken     = errors.New("sdk: auth token missing")

	// files
	ErrFileNotFound     = errors.New("sdk: file not found")
	ErrUploadNotFound   = errors.New("sdk: upload not found or expired")
	ErrChecksumMismatch = errors.New("sdk: checksum mismatch")
)

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied
	CodeNotFound       = "E_NOT_FOUND"       // resource not found
	CodeConflict       = "E_CONFLICT"        // resource conflict
	CodeUnknownError   = "E_UNKNOWN_ERR"     // unknown error

	// Auth errors
	CodeAuthInvalidCredentials = "E_AUTH_INVALID_CREDENTIALS"  // credentials invalid, expired, or malformed
	CodeAuthTokenRefreshFailed = "E_AUTH_TOKEN_REFRESH_FAILED" // failure refreshing an auth token

	// Upload errors
	CodeUploadNotFound   = "E_UPLOAD_NOT_FOUND"   // the upload session could not be found or has expired
	CodeChecksumMismatch = "E_CHECKSUM_MISMATCH"  // assembled object does not match the supplied checksum
	CodeFileTooLarge     = "E_FILE_TOO_LARGE"     // file exceeds the library size limit
)

type SDKError interface {
	error
	ErrorCode() string
	ErrorMessage() string
}

// APIError represents a Beacon server API error. The server speaks
// FastAPI-style `{"detail": "..."}` bodies; the code is derived from the
// HTTP status unless the detail carries an explicit E_ code prefix.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code,omitempty"`
	Detail     string `json:"detail"`
}

func (e *APIError) ErrorCode() string    { return e.Code }
func (e *APIError) ErrorMessage() string { return e.Detail }

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Detail)
}

var _ SDKError = (*APIError)(nil)

// normalize fills in the derived code from the HTTP status and any
// explicit code prefix embedded in the detail string.
func (e *APIError) normalize(statusCode int) {
	e.StatusCode = statusCode

	if e.Code == "" {
		if code, rest, found := strings.Cut(e.Detail, ": "); found && strings.HasPrefix(code, "E_") {
			e.Code = code
			e.Detail = rest
		}
	}

	if e.Code != "" {
		return
	}

	switch statusCode {
	case http.StatusBadRequest:
		e.Code = CodeInvalidRequest
	case http.StatusUnauthorized:
		e.Code = CodeAuthInvalidCredentials
	case http.StatusForbidden:
		e.Code = CodeAccessDenied
	case http.StatusNotFound:
		e.Code = CodeNotFound
	case http.StatusConflict:
		e.Code = CodeConflict
	case http.StatusRequestEntityTooLarge:
		e.Code = CodeFileTooLarge
	case http.StatusUnprocessableEntity:
		e.Code = CodeInvalidRequest
	case http.StatusTooManyRequests:
		e.Code = CodeRateLimited
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		e.Code = CodeInternalError
	default:
		e.Code = CodeUnknownError
	}
}

// handleAPIError is a helper function that handles the common error pattern
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s: %w", operation, requestErr)
	}

	// got a response, but api returned an error
	if resp.IsErrorState() {
		if apiErr, ok := resp.ErrorResult().(*APIError); ok {
			apiErr.normalize(resp.GetStatusCode())
			switch apiErr.Code {
			case CodeChecksumMismatch:
				return fmt.Errorf("%s: %w: %s", operation, ErrChecksumMismatch, apiErr.Detail)
			case CodeUploadNotFound:
				return fmt.Errorf("%s: %w: %s", operation, ErrUploadNotFound, apiErr.Detail)
			}
			return fmt.Errorf("%s: %w", operation, apiErr)
		}

		return fmt.Errorf("api error: %s: %s", operation, resp.Dump())
	}

	return nil
}
