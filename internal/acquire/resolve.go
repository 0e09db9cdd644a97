// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/patent-jump/internal/logging"
	"github.com/pdiddy/patent-jump/internal/token"
)

// patentPattern matches US patent and publication numbers: "US7654321",
// "US7654321B2", "US20230012345A1".
var patentPattern = regexp.MustCompile(`^US\d{6,11}(?:[A-Z]\d{0,2})?$`)

// LooksLikePatent reports whether docID has the shape of a US patent or
// publication number. Other ids are still resolved; the upstream decides.
func LooksLikePatent(docID string) bool {
	return patentPattern.MatchString(strings.TrimSpace(docID))
}

// DownloadURL returns base/<docID>?requestToken=<token>. Both values are
// escaped independently; spaces in the token become %20 so the query value
// decodes back to the exact token.
func DownloadURL(base, docID, token string) string {
	q := strings.ReplaceAll(url.QueryEscape(token), "+", "%20")
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(docID) + "?requestToken=" + q
}

// Redirect modes.
const (
	ModeFresh  = "fresh"
	ModeReused = "reused"
	ModeStale  = "stale"
)

// Outcome summarizes one resolution for the history log. It never holds a token.
type Outcome struct {
	DocID         string
	Step          string
	Result        string
	Mode          string
	FirstStatus   int
	Attempts      int
	Duration      time.Duration
	CorrelationID string
	Error         string
	At            time.Time
}

// Recorder persists resolution outcomes.
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// Resolution is the answer for one document: where to send the caller.
type Resolution struct {
	URL   string
	Token string
	Mode  string

	// Result is the acquisition result. For stale resolutions it holds
	// only the attempts.
	Result Result

	// Exhausted is set for stale resolutions: acquisition failed and the
	// seed was used anyway.
	Exhausted *ExhaustedError
}

// Resolver turns a document id into a download URL, choosing seeds from
// the caller, the cache, and the configured fallback.
type Resolver struct {
	Protocol      *Protocol
	Cache         *token.Cache
	DownloadBase  string
	FallbackToken string

	// AllowStale redirects with the seed token when acquisition is exhausted.
	AllowStale bool

	// History, if set, receives one Outcome per Resolve call.
	History Recorder
}

// Seeds returns the seed candidates for a request in priority order.
func (r *Resolver) Seeds(callerToken string) []string {
	cached, _ := r.Cache.Get()
	return []string{callerToken, cached, r.FallbackToken}
}

// Resolve acquires a token for docID and builds the download URL. On
// exhaustion it returns the *ExhaustedError unless AllowStale is set and a
// seed exists, in which case it returns a stale Resolution and a nil error.
func (r *Resolver) Resolve(ctx context.Context, docID, callerToken string) (Resolution, error) {
	if !LooksLikePatent(docID) {
		log.Ctx(ctx).Debug().Str("doc_id", docID).Msg("resolve.unrecognized_doc_id")
	}

	res, err := r.Protocol.Acquire(ctx, docID, r.Seeds(callerToken)...)

	var out Resolution
	switch {
	case err == nil:
		out = Resolution{
			URL:    DownloadURL(r.DownloadBase, docID, res.Token),
			Token:  res.Token,
			Mode:   ModeReused,
			Result: res,
		}
		if res.Refreshed {
			out.Mode = ModeFresh
		}
	case r.AllowStale && res.Seed != "" && errors.Is(err, ErrTokenAcquisitionExhausted):
		var exhausted *ExhaustedError
		errors.As(err, &exhausted)
		out = Resolution{
			URL:       DownloadURL(r.DownloadBase, docID, res.Seed),
			Token:     res.Seed,
			Mode:      ModeStale,
			Result:    res,
			Exhausted: exhausted,
		}
		log.Ctx(ctx).Warn().Str("doc_id", docID).Msg("resolve.stale_redirect")
		err = nil
	}

	r.record(ctx, docID, res, out, err)
	return out, err
}

func (r *Resolver) record(ctx context.Context, docID string, res Result, out Resolution, err error) {
	if r.History == nil {
		return
	}
	o := Outcome{
		DocID:         docID,
		Step:          res.Step,
		Result:        res.Outcome(),
		Mode:          out.Mode,
		Attempts:      len(res.Attempts),
		Duration:      res.Duration,
		CorrelationID: logging.CorrelationID(ctx),
		At:            time.Now().UTC(),
	}
	if len(res.Attempts) > 0 {
		o.FirstStatus = res.Attempts[0].Status
	}
	if out.Exhausted != nil || err != nil {
		o.Result = OutcomeExhausted
	}
	if err != nil {
		o.Error = err.Error()
		if ctx.Err() != nil {
			o.Result = OutcomeCanceled
		}
	}
	// The request context may already be done; history writes must not
	// depend on it.
	if recErr := r.History.Record(context.WithoutCancel(ctx), o); recErr != nil {
		log.Ctx(ctx).Error().Err(recErr).Msg("history.record_failed")
	}
}
