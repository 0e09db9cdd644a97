// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

const (
	AboutRoute       = "/{$}"
	HealthCheckRoute = "/healthz"
	MetricsRoute     = "/metrics"

	PatentRoute   = "/patent/{id}"
	DiagnoseRoute = "/diagnose/{id}"

	AdminTokenRoute = "/admin/token"
)

// Request parameters.
const (
	TokenParam        = "token"
	SecretParam       = "secret"
	AdminSecretHeader = "X-Admin-Secret"
	TokenStatusHeader = "X-Token-Status"
)
