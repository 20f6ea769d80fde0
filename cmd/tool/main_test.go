package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/baechuer/orgdocs/services/auth-service/internal/application/auth"
	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
	"github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/memory"
	"github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/security"
)

type nopNotifier struct{}

func (nopNotifier) SendVerificationCode(context.Context, string, string) error { return nil }

func newCLI(t *testing.T) (*cli, *memory.UserRepo, *bytes.Buffer) {
	t.Helper()
	users := memory.NewUserRepo()
	svc := auth.NewService(users, security.NewBcryptHasher(bcrypt.MinCost),
		security.NewJWTIssuer("tool-secret", "auth-service"),
		memory.NewCodeStore(10*time.Minute), nopNotifier{}, nil, auth.Config{})
	out := &bytes.Buffer{}
	return &cli{users: users, svc: svc, out: out}, users, out
}

func register(t *testing.T, c *cli) domain.User {
	t.Helper()
	u, err := c.svc.Register(context.Background(), auth.RegisterInput{
		Username:     "officer1",
		Email:        "officer1@student.buksu.edu.ph",
		Password:     "pass123",
		Organization: "CSC",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, u.Status)
	return u
}

func TestActivate_ByEmailOrUsername(t *testing.T) {
	t.Parallel()

	for _, ident := range []string{"officer1", "officer1@student.buksu.edu.ph"} {
		c, users, out := newCLI(t)
		u := register(t, c)

		require.NoError(t, c.run(context.Background(), []string{"activate", ident}))

		got, err := users.FindByID(context.Background(), u.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusActive, got.Status)
		assert.Contains(t, out.String(), "is now active")
	}
}

func TestStatus_Deactivate(t *testing.T) {
	t.Parallel()

	c, users, _ := newCLI(t)
	u := register(t, c)

	require.NoError(t, c.run(context.Background(), []string{"status", "officer1", "inactive"}))
	got, _ := users.FindByID(context.Background(), u.ID)
	assert.Equal(t, domain.StatusInactive, got.Status)

	err := c.run(context.Background(), []string{"status", "officer1", "banned"})
	assert.True(t, domain.Is(err, "invalid_status"), "got %v", err)
}

func TestStatus_UnknownUser(t *testing.T) {
	t.Parallel()

	c, _, _ := newCLI(t)
	err := c.run(context.Background(), []string{"activate", "ghost"})
	assert.True(t, domain.Is(err, "user_not_found"), "got %v", err)
}

func TestSeedAdmin(t *testing.T) {
	t.Parallel()

	c, _, out := newCLI(t)
	args := []string{"seed-admin", "-email", "root@example.com", "-password", "rootpass"}

	require.NoError(t, c.run(context.Background(), args))
	assert.Contains(t, out.String(), "created admin root")

	out.Reset()
	require.NoError(t, c.run(context.Background(), args))
	assert.Contains(t, out.String(), "already exists")
}

func TestUsageErrors(t *testing.T) {
	t.Parallel()

	c, _, _ := newCLI(t)
	for _, args := range [][]string{
		nil,
		{"promote", "x"},
		{"activate"},
		{"status", "x"},
		{"seed-admin", "-email", "root@example.com"},
	} {
		assert.ErrorIs(t, c.run(context.Background(), args), errUsage, "args %v", args)
	}
}
