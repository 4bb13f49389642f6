package services

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"github.com/preflab/pairwise/internal/study"
)

// AuthorizeExport checks the caller-supplied token against the configured
// export credential. When a bcrypt hash is configured it wins over the
// plaintext token; plaintext comparison is constant-time. A server with
// neither configured refuses every export.
func AuthorizeExport(provided, token, tokenHash string) error {
	if provided == "" {
		return study.NewUnauthorizedError("missing export token")
	}
	if tokenHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(provided)) != nil {
			return study.NewUnauthorizedError("invalid export token")
		}
		return nil
	}
	if token == "" {
		return study.NewUnauthorizedError("export is not configured on this server")
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
		return study.NewUnauthorizedError("invalid export token")
	}
	return nil
}
