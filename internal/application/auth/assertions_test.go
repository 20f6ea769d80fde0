package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

// requireCode fails unless err is a domain error carrying code.
func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err, "want %s", code)
	require.Truef(t, domain.Is(err, code), "want %s, got %v", code, err)
}
