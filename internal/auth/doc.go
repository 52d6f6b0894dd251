// Package auth issues and verifies the HS256 bearer tokens accepted by the
// HTTP API when paths.api_token is configured.
package auth
