package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

func TestRefresh_ValidToken_Reissues(t *testing.T) {
	t.Parallel()

	svc, users, _, tokens, _, _, _, audits := newSvcForTest(t)
	admin := activeOfficer()
	admin.Role = domain.RoleAdmin
	users.put(admin)

	res, err := svc.Refresh(context.Background(), "session|u1|admin|active")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if res.Token != "session|u1|admin|active" || res.ExpiresIn != 3600 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Claims.Role != domain.RoleAdmin || res.Claims.Status != domain.StatusActive {
		t.Fatalf("unexpected claims: %+v", res.Claims)
	}
	if len(tokens.sessionTTLs) != 1 {
		t.Fatalf("expected one issue call")
	}
	requireAuditAction(t, audits, "token_refresh")
}

func TestRefresh_Errors(t *testing.T) {
	t.Parallel()

	svc, _, _, _, _, _, _, _ := newSvcForTest(t)

	cases := []struct {
		token string
		code  string
	}{
		{"", "token_missing"},
		{"session|expired|officer|active", "token_expired"},
		{"reset|a@buksu.edu.ph", "token_invalid"},
		{"junk", "token_invalid"},
	}
	for _, c := range cases {
		_, err := svc.Refresh(context.Background(), c.token)
		requireCode(t, err, c.code)
	}
}

func TestRefresh_ReadsCurrentStatus(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, _ := newSvcForTest(t)
	users.put(activeOfficer())

	res, err := svc.Refresh(context.Background(), "session|u1|officer|pending")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if res.Claims.Status != domain.StatusActive || res.Token != "session|u1|officer|active" {
		t.Fatalf("expected activated status in refreshed token, got %+v", res)
	}
}

func TestRefresh_DeletedUser_TokenInvalid(t *testing.T) {
	t.Parallel()

	svc, _, _, _, _, _, _, _ := newSvcForTest(t)

	_, err := svc.Refresh(context.Background(), "session|gone|officer|active")
	requireCode(t, err, "token_invalid")
}

func TestRefresh_StoreFailure_Propagates(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, _ := newSvcForTest(t)
	users.findErr = domain.ErrDBUnavailable(errors.New("conn reset"))

	_, err := svc.Refresh(context.Background(), "session|u1|officer|active")
	requireCode(t, err, "db_unavailable")
}

func TestGetUser(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, _ := newSvcForTest(t)
	users.put(activeOfficer())

	u, err := svc.GetUser(context.Background(), "u1")
	if err != nil || u.Email != "officer1@student.buksu.edu.ph" {
		t.Fatalf("unexpected: %+v %v", u, err)
	}

	_, err = svc.GetUser(context.Background(), "nope")
	requireCode(t, err, "user_not_found")

	_, err = svc.GetUser(context.Background(), "")
	requireCode(t, err, "token_missing")
}

func TestSetStatus_ActivatesPendingAccount(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, audits := newSvcForTest(t)
	u := activeOfficer()
	u.Status = domain.StatusPending
	users.put(u)

	got, err := svc.SetStatus(context.Background(), "admin-1", "u1", "active")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if got.Status != domain.StatusActive || users.byID["u1"].Status != domain.StatusActive {
		t.Fatalf("expected active status")
	}

	e := requireAuditAction(t, audits, "status_changed")
	requireAuditField(t, e, "from", "pending")
	requireAuditField(t, e, "to", "active")
	requireAuditField(t, e, "actor_id", "admin-1")

	if _, err := svc.Login(context.Background(), u.Email, "pass123"); err != nil {
		t.Fatalf("login after activation: %v", err)
	}
}

func TestSetStatus_SameStatus_NoWrite(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, audits := newSvcForTest(t)
	users.put(activeOfficer())
	users.setStatusErr = errors.New("must not be called")

	if _, err := svc.SetStatus(context.Background(), "", "u1", "active"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(*audits) != 0 {
		t.Fatalf("expected no audit entry")
	}
}

func TestSetStatus_Errors(t *testing.T) {
	t.Parallel()

	svc, _, _, _, _, _, _, _ := newSvcForTest(t)

	_, err := svc.SetStatus(context.Background(), "", "u1", "banned")
	requireCode(t, err, "invalid_status")

	_, err = svc.SetStatus(context.Background(), "", "", "active")
	requireCode(t, err, "missing_field")

	_, err = svc.SetStatus(context.Background(), "", "ghost", "active")
	requireCode(t, err, "user_not_found")
}
