package beaconsdk

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIErrorNormalize(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		detail     string
		wantCode   string
		wantDetail string
	}{
		{"bad request", http.StatusBadRequest, "invalid page", CodeInvalidRequest, "invalid page"},
		{"unauthorized", http.StatusUnauthorized, "token expired", CodeAuthInvalidCredentials, "token expired"},
		{"forbidden", http.StatusForbidden, "not your library", CodeAccessDenied, "not your library"},
		{"not found", http.StatusNotFound, "no such file", CodeNotFound, "no such file"},
		{"conflict", http.StatusConflict, "directory exists", CodeConflict, "directory exists"},
		{"too large", http.StatusRequestEntityTooLarge, "file too big", CodeFileTooLarge, "file too big"},
		{"validation", http.StatusUnprocessableEntity, "bad payload", CodeInvalidRequest, "bad payload"},
		{"rate limited", http.StatusTooManyRequests, "slow down", CodeRateLimited, "slow down"},
		{"server error", http.StatusInternalServerError, "boom", CodeInternalError, "boom"},
		{"bad gateway", http.StatusBadGateway, "upstream", CodeInternalError, "upstream"},
		{"teapot", http.StatusTeapot, "short and stout", CodeUnknownError, "short and stout"},
		{"explicit code prefix", http.StatusBadRequest, "E_UPLOAD_NOT_FOUND: session expired", CodeUploadNotFound, "session expired"},
		{"checksum code prefix", http.StatusBadRequest, "E_CHECKSUM_MISMATCH: object corrupt", CodeChecksumMismatch, "object corrupt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := &APIError{Detail: tt.detail}
			apiErr.normalize(tt.statusCode)

			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantDetail, apiErr.Detail)
			assert.Equal(t, tt.statusCode, apiErr.StatusCode)
		})
	}
}

func TestAPIErrorKeepsExplicitCode(t *testing.T) {
	apiErr := &APIError{Code: CodeRateLimited, Detail: "slow down"}
	apiErr.normalize(http.StatusInternalServerError)

	assert.Equal(t, CodeRateLimited, apiErr.Code)
}

func TestAPIErrorImplementsSDKError(t *testing.T) {
	var err SDKError = &APIError{Code: CodeNotFound, Detail: "gone"}

	assert.Equal(t, CodeNotFound, err.ErrorCode())
	assert.Equal(t, "gone", err.ErrorMessage())
	assert.Contains(t, err.Error(), CodeNotFound)
}
