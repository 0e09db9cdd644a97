// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire obtains a usable access token for a document and builds
// the token-qualified download URL.
//
// Acquisition warms a cookie session, then walks an ordered list of search
// strategies and stops at the first one that yields a token:
//
//  1. seeded: search with the best available seed token. A token in the
//     response headers is adopted and cached; a 2xx without one means the
//     seed is still good.
//  2. placeholder: search with PlaceholderToken, which the upstream may
//     answer by minting a fresh token.
//  3. bare: search with no credential at all.
//
// When every strategy comes up empty Acquire returns an *ExhaustedError
// carrying the first attempt's status, headers and body snippet.
//
// Only the status code and headers are inspected. A document that does
// not exist upstream can therefore look like an authorization failure, or,
// if the upstream answers 200 with an empty result set, like a success.
package acquire

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pdiddy/patent-jump/internal/metrics"
	"github.com/pdiddy/patent-jump/internal/token"
	"github.com/pdiddy/patent-jump/pkg/types"
)

// PlaceholderToken is sent by the placeholder strategy. It is never a
// valid credential.
const PlaceholderToken = "invalid-placeholder-token"

// Strategy names.
const (
	StepSeeded      = "seeded"
	StepPlaceholder = "placeholder"
	StepBare        = "bare"
)

// Outcomes recorded in metrics and history.
const (
	OutcomeRefreshed = "refreshed"
	OutcomeReused    = "reused"
	OutcomeExhausted = "exhausted"
	OutcomeCanceled  = "canceled"
)

// Upstream is the search service as seen by the protocol. jar carries the
// session cookies for one acquisition.
type Upstream interface {
	Warm(ctx context.Context, jar http.CookieJar) error
	Search(ctx context.Context, jar http.CookieJar, docID, token string) (types.SearchAttempt, error)
}

// Strategy is one step of the acquisition sequence.
type Strategy struct {
	// Name identifies the step in results, logs, and metrics.
	Name string

	// Credential returns the token to send given the seed (empty sends no
	// credential header) and false to skip the step.
	Credential func(seed string) (string, bool)

	// TrustSeed adopts the seed itself when the upstream answers 2xx
	// without handing out a new token.
	TrustSeed bool
}

// DefaultStrategies is the acquisition order: refresh with what we have,
// then the fallbacks that are more likely to trip upstream throttling.
var DefaultStrategies = []Strategy{
	{
		Name:       StepSeeded,
		Credential: func(seed string) (string, bool) { return seed, seed != "" },
		TrustSeed:  true,
	},
	{
		Name:       StepPlaceholder,
		Credential: func(string) (string, bool) { return PlaceholderToken, true },
	},
	{
		Name:       StepBare,
		Credential: func(string) (string, bool) { return "", true },
	},
}

// Result is a successful acquisition.
type Result struct {
	// Token is the usable access token.
	Token string

	// Step names the strategy that produced Token.
	Step string

	// Refreshed is true when Token came from a response header and was
	// written to the cache, false when the seed was reused as-is.
	Refreshed bool

	// Seed is the seed the acquisition started from, possibly empty.
	Seed string

	// Attempts lists every search call in order.
	Attempts []types.SearchAttempt

	// Duration is the wall time of the whole acquisition.
	Duration time.Duration
}

// Outcome returns OutcomeRefreshed or OutcomeReused.
func (r Result) Outcome() string {
	if r.Refreshed {
		return OutcomeRefreshed
	}
	return OutcomeReused
}

// Protocol drives an Upstream through the strategies. The zero value is
// not usable; construct with New.
type Protocol struct {
	Upstream   Upstream
	Cache      *token.Cache
	Strategies []Strategy
	Metrics    *metrics.Collector
}

// New returns a Protocol using DefaultStrategies.
func New(up Upstream, cache *token.Cache) *Protocol {
	return &Protocol{
		Upstream:   up,
		Cache:      cache,
		Strategies: DefaultStrategies,
	}
}

// FirstSeed returns the first non-empty candidate.
func FirstSeed(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// Acquire obtains a token for docID. seeds are candidate tokens in
// priority order (caller-supplied, cached, configured fallback); only the
// first non-empty one is used.
//
// Upstream rejections and transport failures inside a step are not errors;
// they move the protocol to the next step. The returned error is an
// *ExhaustedError when no step produced a token, or the context error if
// ctx ended first.
func (p *Protocol) Acquire(ctx context.Context, docID string, seeds ...string) (Result, error) {
	start := time.Now()
	seed := FirstSeed(seeds...)
	logger := log.Ctx(ctx).With().Str("doc_id", docID).Logger()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return Result{}, fmt.Errorf("creating cookie jar: %w", err)
	}

	if err := p.Upstream.Warm(ctx, jar); err != nil {
		logger.Debug().Err(err).Msg("acquire.warm_failed")
	}

	var attempts []types.SearchAttempt
	for _, s := range p.Strategies {
		if ctx.Err() != nil {
			p.Metrics.RecordAcquisition(s.Name, OutcomeCanceled)
			return Result{Seed: seed, Attempts: attempts}, ctx.Err()
		}

		cred, ok := s.Credential(seed)
		if !ok {
			continue
		}

		attempt, err := p.Upstream.Search(ctx, jar, docID, cred)
		attempt.Step = s.Name
		attempt.SentToken = cred != ""
		if err != nil && attempt.Err == "" {
			attempt.Err = err.Error()
		}
		attempts = append(attempts, attempt)

		if err != nil {
			logger.Debug().Err(err).Str("step", s.Name).Msg("acquire.step_unreachable")
			continue
		}

		if attempt.ObservedToken != "" {
			p.Cache.Set(attempt.ObservedToken)
			res := Result{
				Token:     attempt.ObservedToken,
				Step:      s.Name,
				Refreshed: true,
				Seed:      seed,
				Attempts:  attempts,
				Duration:  time.Since(start),
			}
			p.finish(logger, res)
			return res, nil
		}

		if s.TrustSeed && seed != "" && attempt.Succeeded() {
			res := Result{
				Token:    seed,
				Step:     s.Name,
				Seed:     seed,
				Attempts: attempts,
				Duration: time.Since(start),
			}
			p.finish(logger, res)
			return res, nil
		}

		logger.Debug().Str("step", s.Name).Int("status", attempt.Status).Msg("acquire.step_no_token")
	}

	last := ""
	if n := len(attempts); n > 0 {
		last = attempts[n-1].Step
	}

	// A context that ended during the final step is a cancellation, not
	// an exhausted upstream.
	if err := ctx.Err(); err != nil {
		p.Metrics.RecordAcquisition(last, OutcomeCanceled)
		return Result{Seed: seed, Attempts: attempts, Duration: time.Since(start)}, err
	}

	exhausted := &ExhaustedError{DocID: docID, Attempts: attempts}
	p.Metrics.RecordAcquisition(last, OutcomeExhausted)
	logger.Warn().
		Int("attempts", len(attempts)).
		Int("first_status", exhausted.First().Status).
		Dur("duration", time.Since(start)).
		Msg("acquire.exhausted")
	return Result{Seed: seed, Attempts: attempts, Duration: time.Since(start)}, exhausted
}

func (p *Protocol) finish(logger zerolog.Logger, res Result) {
	p.Metrics.RecordAcquisition(res.Step, res.Outcome())
	logger.Info().
		Str("step", res.Step).
		Str("outcome", res.Outcome()).
		Str("token", types.MaskToken(res.Token)).
		Int("attempts", len(res.Attempts)).
		Dur("duration", res.Duration).
		Msg("acquire.done")
}
