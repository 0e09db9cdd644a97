// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/patent-jump/internal/acquire"
	"github.com/pdiddy/patent-jump/internal/logging"
	"github.com/pdiddy/patent-jump/internal/metrics"
	"github.com/pdiddy/patent-jump/internal/server/presenter"
	"github.com/pdiddy/patent-jump/pkg/types"
)

// FailureResponse is returned when no token could be obtained.
type FailureResponse struct {
	Error         string               `json:"error"`
	CorrelationID string               `json:"correlation_id,omitempty"`
	DocID         string               `json:"doc_id"`
	Diagnostics   *acquire.Diagnostics `json:"diagnostics,omitempty"`
}

// DiagnoseResponse reports one acquisition run without redirecting.
type DiagnoseResponse struct {
	DocID         string                `json:"doc_id"`
	OK            bool                  `json:"ok"`
	Step          string                `json:"step,omitempty"`
	Outcome       string                `json:"outcome"`
	Token         string                `json:"token,omitempty"`
	URL           string                `json:"url,omitempty"`
	SeedSource    string                `json:"seed_source"`
	Attempts      []types.SearchAttempt `json:"attempts"`
	Diagnostics   *acquire.Diagnostics  `json:"diagnostics,omitempty"`
	Error         string                `json:"error,omitempty"`
	TokenCached   bool                  `json:"token_cached"`
	CacheUpdated  *time.Time            `json:"cache_updated_at,omitempty"`
	CorrelationID string                `json:"correlation_id,omitempty"`
	DurationMS    int64                 `json:"duration_ms"`
}

// docIDFrom returns the path id as given. Only a blank id is rejected.
func docIDFrom(r *http.Request) (string, bool) {
	id := r.PathValue("id")
	return id, strings.TrimSpace(id) != ""
}

func (s *Server) handlePatent(w http.ResponseWriter, r *http.Request) {
	docID, ok := docIDFrom(r)
	if !ok {
		presenter.Error(w, r, "document id required", http.StatusBadRequest)
		return
	}

	out, err := s.resolver.Resolve(r.Context(), docID, r.URL.Query().Get(TokenParam))
	if err != nil {
		s.writeFailure(w, r, docID, err)
		return
	}

	w.Header().Set(TokenStatusHeader, out.Mode)
	switch out.Mode {
	case acquire.ModeFresh:
		s.metrics.RecordRedirect(metrics.RedirectFresh)
	case acquire.ModeReused:
		s.metrics.RecordRedirect(metrics.RedirectReused)
	case acquire.ModeStale:
		s.metrics.RecordRedirect(metrics.RedirectStale)
	}
	http.Redirect(w, r, out.URL, http.StatusFound)
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, docID string, err error) {
	var exhausted *acquire.ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		d := exhausted.Diagnostics(s.tokenHeader)
		presenter.JSON(w, r, FailureResponse{
			Error:         err.Error(),
			CorrelationID: logging.CorrelationID(r.Context()),
			DocID:         docID,
			Diagnostics:   &d,
		}, http.StatusBadGateway)
	case r.Context().Err() != nil:
		log.Ctx(r.Context()).Debug().Err(err).Msg("request.canceled")
		presenter.Error(w, r, "request canceled", http.StatusServiceUnavailable)
	default:
		log.Ctx(r.Context()).Error().Err(err).Str("doc_id", docID).Msg("resolve.failed")
		presenter.Error(w, r, "resolving document: "+err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	docID, ok := docIDFrom(r)
	if !ok {
		presenter.Error(w, r, "document id required", http.StatusBadRequest)
		return
	}

	callerToken := r.URL.Query().Get(TokenParam)
	seeds := s.resolver.Seeds(callerToken)
	res, err := s.resolver.Protocol.Acquire(r.Context(), docID, seeds...)

	resp := DiagnoseResponse{
		DocID:         docID,
		SeedSource:    seedSource(seeds),
		CorrelationID: logging.CorrelationID(r.Context()),
		DurationMS:    res.Duration.Milliseconds(),
		Attempts:      make([]types.SearchAttempt, 0, len(res.Attempts)),
	}
	for _, a := range res.Attempts {
		resp.Attempts = append(resp.Attempts, a.Redacted(s.tokenHeader))
	}
	_, resp.TokenCached = s.cache.Get()
	if at := s.cache.UpdatedAt(); !at.IsZero() {
		resp.CacheUpdated = &at
	}

	var exhausted *acquire.ExhaustedError
	switch {
	case err == nil:
		resp.OK = true
		resp.Step = res.Step
		resp.Outcome = res.Outcome()
		resp.Token = types.MaskToken(res.Token)
		resp.URL = acquire.DownloadURL(s.resolver.DownloadBase, docID, res.Token)
	case errors.As(err, &exhausted):
		d := exhausted.Diagnostics(s.tokenHeader)
		resp.Outcome = acquire.OutcomeExhausted
		resp.Diagnostics = &d
		resp.Error = err.Error()
	default:
		resp.Outcome = acquire.OutcomeCanceled
		resp.Error = err.Error()
	}

	presenter.JSON(w, r, resp, http.StatusOK)
}

// seedSource names where the seed came from, matching Resolver.Seeds order.
func seedSource(seeds []string) string {
	names := []string{"caller", "cache", "fallback"}
	for i, s := range seeds {
		if s != "" && i < len(names) {
			return names[i]
		}
	}
	return "none"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, cached := s.cache.Get()
	presenter.JSON(w, r, map[string]any{
		"status":       "ok",
		"token_cached": cached,
	}, http.StatusOK)
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, map[string]any{
		"name":    "patent-jump",
		"version": s.version,
		"usage":   "GET /patent/{id} redirects to the PDF; GET /diagnose/{id} reports token acquisition",
	}, http.StatusOK)
}
