package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/toolsync/internal/domain"
	searchuc "github.com/kailas-cloud/toolsync/internal/usecase/search"
)

// ErrorCode is the machine-readable error class in error responses.
type ErrorCode string

const (
	CodeBadRequest        ErrorCode = "BAD_REQUEST"
	CodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeToolNotFound      ErrorCode = "TOOL_NOT_FOUND"
	CodeToolAlreadyExists ErrorCode = "TOOL_ALREADY_EXISTS"
	CodeUnknownCollection ErrorCode = "UNKNOWN_COLLECTION"
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
	CodeEmbeddingProvider ErrorCode = "EMBEDDING_PROVIDER_ERROR"
	CodeInternalError     ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type sentinelMapping struct {
	sentinel error
	status   int
	code     ErrorCode
}

// domainErrorMappings map domain sentinels to HTTP semantics, first match wins.
var domainErrorMappings = []sentinelMapping{
	{domain.ErrToolNotFound, http.StatusNotFound, CodeToolNotFound},
	{domain.ErrToolAlreadyExists, http.StatusConflict, CodeToolAlreadyExists},
	{domain.ErrInvalidToolData, http.StatusBadRequest, CodeValidationFailed},
	{domain.ErrUnknownCollection, http.StatusBadRequest, CodeUnknownCollection},
	{searchuc.ErrEmptyQuery, http.StatusBadRequest, CodeValidationFailed},
	{domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProvider},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, m := range domainErrorMappings {
		if errors.Is(err, m.sentinel) {
			return m.sentinel.Error()
		}
	}
	return "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, m := range domainErrorMappings {
		if errors.Is(err, m.sentinel) {
			s.logger.Warn("domain error", zap.Error(err))
			writeError(w, m.status, m.code, safeDomainMessage(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
