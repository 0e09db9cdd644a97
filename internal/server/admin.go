// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/patent-jump/internal/server/presenter"
	"github.com/pdiddy/patent-jump/pkg/types"
)

type tokenOverride struct {
	Secret string `json:"secret"`
	Token  string `json:"token"`
}

// readOverride accepts a JSON body or form/query values. The secret may
// also come from the X-Admin-Secret header, which takes precedence.
func readOverride(w http.ResponseWriter, r *http.Request) (tokenOverride, error) {
	var o tokenOverride

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&o); err != nil {
			return o, fmt.Errorf("decoding body: %w", err)
		}
	} else {
		o.Secret = r.FormValue(SecretParam)
		o.Token = r.FormValue(TokenParam)
	}

	if h := r.Header.Get(AdminSecretHeader); h != "" {
		o.Secret = h
	}
	o.Secret = strings.TrimSpace(o.Secret)
	o.Token = strings.TrimSpace(o.Token)
	return o, nil
}

func (s *Server) handleAdminToken(w http.ResponseWriter, r *http.Request) {
	if s.adminSecret == "" {
		presenter.Error(w, r, "admin endpoint disabled", http.StatusNotFound)
		return
	}

	o, err := readOverride(w, r)
	if err != nil {
		presenter.Error(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	if o.Secret == "" {
		presenter.Error(w, r, ErrMissingCredential.Error()+": admin secret", http.StatusUnauthorized)
		return
	}
	if subtle.ConstantTimeCompare([]byte(o.Secret), []byte(s.adminSecret)) != 1 {
		presenter.Error(w, r, "invalid admin secret", http.StatusForbidden)
		return
	}
	if o.Token == "" {
		presenter.Error(w, r, ErrMissingCredential.Error()+": token", http.StatusBadRequest)
		return
	}

	s.cache.Set(o.Token)
	log.Ctx(r.Context()).Info().Str("token", types.MaskToken(o.Token)).Msg("admin.token_override")

	presenter.JSON(w, r, map[string]any{
		"status": "ok",
		"token":  types.MaskToken(o.Token),
	}, http.StatusOK)
}
