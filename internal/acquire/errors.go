// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pdiddy/patent-jump/pkg/types"
)

// ErrTokenAcquisitionExhausted matches every *ExhaustedError via errors.Is.
var ErrTokenAcquisitionExhausted = errors.New("token acquisition exhausted")

// ExhaustedError reports that no strategy produced a token.
type ExhaustedError struct {
	DocID    string
	Attempts []types.SearchAttempt
}

func (e *ExhaustedError) Error() string {
	first := e.First()
	if first.Status == 0 && first.Err != "" {
		return fmt.Sprintf("%s for %q after %d attempt(s): first attempt failed: %s",
			ErrTokenAcquisitionExhausted, e.DocID, len(e.Attempts), first.Err)
	}
	return fmt.Sprintf("%s for %q after %d attempt(s): first attempt returned HTTP %d",
		ErrTokenAcquisitionExhausted, e.DocID, len(e.Attempts), first.Status)
}

// Is makes errors.Is(err, ErrTokenAcquisitionExhausted) true.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrTokenAcquisitionExhausted
}

// First returns the first search attempt, or the zero attempt if none ran.
func (e *ExhaustedError) First() types.SearchAttempt {
	if len(e.Attempts) == 0 {
		return types.SearchAttempt{}
	}
	return e.Attempts[0]
}

// Diagnostics is the externally visible detail of a failed acquisition.
type Diagnostics struct {
	Status      int                   `json:"status" yaml:"status"`
	Header      http.Header           `json:"headers,omitempty" yaml:"headers,omitempty"`
	BodySnippet string                `json:"body_snippet,omitempty" yaml:"body_snippet,omitempty"`
	Attempts    []types.SearchAttempt `json:"attempts" yaml:"attempts"`
}

// Diagnostics returns the first attempt's status, headers and body snippet
// plus a summary of every attempt. Tokens in tokenHeader are masked.
func (e *ExhaustedError) Diagnostics(tokenHeader string) Diagnostics {
	first := e.First().Redacted(tokenHeader)
	d := Diagnostics{
		Status:      first.Status,
		Header:      first.Header,
		BodySnippet: first.BodySnippet,
		Attempts:    make([]types.SearchAttempt, 0, len(e.Attempts)),
	}
	for _, a := range e.Attempts {
		a = a.Redacted(tokenHeader)
		a.BodySnippet = ""
		d.Attempts = append(d.Attempts, a)
	}
	return d
}
