package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fy0/filterable/filter"
)

// validationError carries the node errors of a rejected filter.
type validationError struct {
	errors []*filter.NodeError
}

func (e *validationError) Error() string {
	msgs := make([]string, len(e.errors))
	for i, ne := range e.errors {
		msgs[i] = ne.Error()
	}
	return "invalid filter: " + strings.Join(msgs, "; ")
}

func (e *validationError) fields() map[string][]string {
	out := map[string][]string{}
	for _, ne := range e.errors {
		out[ne.Path] = append(out[ne.Path], ne.Message)
	}
	return out
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		parseErr *filter.ParseError
		valErr   *validationError
	)
	switch {
	case errors.As(err, &parseErr):
		s.writeError(w, r, http.StatusBadRequest, apiResponse{
			Success:  false,
			Message:  parseErr.Error(),
			Metadata: map[string]any{"kind": parseErr.Kind, "path": parseErr.Path},
		})
	case errors.As(err, &valErr):
		// Field specific problems are unprocessable rather than malformed.
		s.writeError(w, r, http.StatusUnprocessableEntity, apiResponse{
			Success:  false,
			Message:  "Filter is invalid.",
			Metadata: map[string]any{"fields": valErr.fields()},
		})
	case errors.Is(err, filter.ErrInvalidSortField), errors.Is(err, filter.ErrInvalidPagination):
		s.writeError(w, r, http.StatusBadRequest, apiResponse{Success: false, Message: err.Error()})
	case errors.Is(err, filter.ErrUnknownEntity):
		s.writeError(w, r, http.StatusNotFound, apiResponse{Success: false, Message: "Requested resource not found."})
	default:
		s.internalServerError(w, r, err)
	}
}

func (s *Server) logError(r *http.Request, err error) {
	s.logger.Error("internal server error", "method", r.Method, "path", r.RequestURI, "remote-addr", r.RemoteAddr, "error", err)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, response apiResponse) {
	s.writeJson(w, status, response, nil) //nolint:errcheck
}

func (s *Server) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	s.logError(r, err)
	s.writeError(w, r, http.StatusInternalServerError, apiResponse{Success: false, Message: "Internal server error"})
}
