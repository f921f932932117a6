package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/reachmap/reachmap/internal/api/models"
	"github.com/reachmap/reachmap/internal/api/response"
	"github.com/reachmap/reachmap/internal/export"
	"github.com/reachmap/reachmap/internal/isochrone"
	"github.com/reachmap/reachmap/internal/pointlist"
	"github.com/reachmap/reachmap/internal/widget/selectbox"
	"github.com/reachmap/reachmap/internal/workspace"
)

// writeError maps domain errors to problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *isochrone.ValidationError
		perr *isochrone.ProviderError
	)

	switch {
	case errors.As(err, &verr):
		response.BadRequest(w, r, workspace.MessageInvalidInput, fieldErrors(verr))
	case errors.As(err, &perr):
		writeProviderError(w, r, perr)
	case errors.Is(err, workspace.ErrSuperseded):
		response.Superseded(w, r, "a newer build was started for this workspace")
	case errors.Is(err, workspace.ErrNotFound):
		response.NotFound(w, r, "workspace not found")
	case errors.Is(err, pointlist.ErrEntryNotFound):
		response.NotFound(w, r, "point not found")
	case errors.Is(err, export.ErrNothingToExport):
		response.NotFound(w, r, "no isochrone has been built yet")
	case errors.Is(err, workspace.ErrLimitReached):
		response.ServiceUnavailable(w, r, "too many open workspaces, try again later")
	case errors.Is(err, selectbox.ErrClosed), errors.Is(err, selectbox.ErrSearchDisabled):
		response.Conflict(w, r, err.Error())
	case errors.Is(err, selectbox.ErrUnknownOption):
		response.BadRequest(w, r, err.Error(), []models.FieldError{{Field: "value", Message: err.Error()}})
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("unhandled error")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

func writeProviderError(w http.ResponseWriter, r *http.Request, perr *isochrone.ProviderError) {
	switch {
	case errors.Is(perr, isochrone.ErrRateLimitExceeded):
		response.TooManyRequests(w, r, perr.Error(), 60)
	case errors.Is(perr, isochrone.ErrProviderUnavailable) && perr.Status == 0:
		// Circuit open or transport failure: nothing reached the provider.
		response.ServiceUnavailable(w, r, perr.Error())
	default:
		response.ProviderError(w, r, perr.Error(), perr.Code)
	}
}

func fieldErrors(verr *isochrone.ValidationError) []models.FieldError {
	out := make([]models.FieldError, len(verr.Fields))
	for i, f := range verr.Fields {
		out[i] = models.FieldError{Field: f.Field, Message: f.Message}
	}
	return out
}

// decode reads an optional JSON body. It writes a 400 and returns false on
// malformed input.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := response.Decode(r, dst); err != nil && !errors.Is(err, response.ErrEmptyBody) {
		response.BadRequest(w, r, err.Error(), nil)
		return false
	}
	return true
}
