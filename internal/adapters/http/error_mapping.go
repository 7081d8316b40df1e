package httpadapter

import (
	"net/http"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrUpstreamFetch),
		domain.IsKind(err, domain.ErrStorage),
		domain.IsKind(err, domain.ErrExtractionSchema),
		domain.IsKind(err, domain.ErrExtraction),
		domain.IsKind(err, domain.ErrGraphWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
