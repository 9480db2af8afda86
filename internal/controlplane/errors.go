package controlplane

import (
	"errors"
	"net/http"

	"github.com/ignite/blastcampaign/internal/domain"
	"github.com/ignite/blastcampaign/internal/pkg/httputil"
	"github.com/ignite/blastcampaign/internal/queue"
)

// writeError writes the §7 error response: {kind, message}, reusing the
// teacher's httputil.ErrorResponse shape with Code carrying the closed
// error-kind taxonomy instead of a free-form HTTP error code.
func writeError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	httputil.JSON(w, status, httputil.ErrorResponse{Error: err.Error(), Code: kind})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrIllegalTransition), errors.Is(err, domain.ErrCampaignTerminal):
		return http.StatusConflict, "ILLEGAL_TRANSITION"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "VALIDATION"
	case errors.Is(err, queue.ErrEmpty):
		return http.StatusNotFound, "NOT_FOUND"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
