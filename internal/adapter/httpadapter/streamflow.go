package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/nwm-streamflow/internal/domain"
)

type pathsResponse struct {
	Request domain.ForecastRequest `json:"request"`
	Files   int                    `json:"files"`
	Paths   domain.PathSet         `json:"paths"`
}

// handlePaths lists the remote keys for a cycle without touching storage.
func (s *Server) handlePaths(w http.ResponseWriter, r *http.Request) {
	// Reach does not shape keys; any valid id will do.
	req, err := s.parseRequest(r, "1")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ps := s.api.Layout.Build(req)
	sharedobs.WriteJSON(w, http.StatusOK, pathsResponse{Request: req, Files: ps.Len(), Paths: ps})
}

// handleStreamflow assembles a forecast for one reach.
func (s *Server) handleStreamflow(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(r, r.PathValue("reach"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.api.Assembler.Assemble(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, f)
}

// parseRequest reads the variant path value and the optional date, hour and
// offset query parameters. Missing date and hour select the latest cycle.
func (s *Server) parseRequest(r *http.Request, reach string) (domain.ForecastRequest, error) {
	variant, err := domain.ParseVariant(r.PathValue("variant"))
	if err != nil {
		return domain.ForecastRequest{}, err
	}
	reachID, err := strconv.ParseInt(reach, 10, 64)
	if err != nil {
		return domain.ForecastRequest{}, fmt.Errorf("%w: reach %q is not an integer", domain.ErrPathConstruction, reach)
	}

	q := r.URL.Query()
	date, hour := domain.CurrentCycle(s.api.Lag, variant)
	if v := q.Get("date"); v != "" {
		date = v
	}
	if v := q.Get("hour"); v != "" {
		if hour, err = strconv.Atoi(v); err != nil {
			return domain.ForecastRequest{}, fmt.Errorf("%w: hour %q is not an integer", domain.ErrPathConstruction, v)
		}
	}
	offset := s.api.AssimOffset
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return domain.ForecastRequest{}, fmt.Errorf("%w: offset %q is not an integer", domain.ErrPathConstruction, v)
		}
	}
	return domain.NewForecastRequest(reachID, date, hour, variant, offset)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPathConstruction):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrReachNotFound), errors.Is(err, domain.ErrRemoteObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
