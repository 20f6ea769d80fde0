package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Username:     "Officer1",
		Email:        " Officer1@Student.BukSU.edu.ph ",
		Password:     "pass123",
		Organization: "CSC",
	}
}

func TestRegister_Success_PersistsPendingOfficer(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, audits := newSvcForTest(t)

	u, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if u.ID == "" {
		t.Fatalf("expected user ID set")
	}
	if u.Email != "officer1@student.buksu.edu.ph" || u.Username != "officer1" {
		t.Fatalf("expected normalized identifiers, got %q / %q", u.Email, u.Username)
	}
	if u.Role != domain.RoleOfficer || u.Status != domain.StatusPending {
		t.Fatalf("expected pending officer, got %s/%s", u.Role, u.Status)
	}
	if u.PasswordHash != "hash:pass123" {
		t.Fatalf("expected hashed password, got %q", u.PasswordHash)
	}
	if u.Identity.Source != domain.IdentityPassword || u.ProfilePicture != domain.DefaultProfilePicture {
		t.Fatalf("unexpected identity/profile: %+v", u)
	}
	if _, ok := users.byID[u.ID]; !ok {
		t.Fatalf("expected user stored")
	}

	e := requireAuditAction(t, audits, "register")
	requireAuditField(t, e, "user_id", u.ID)
}

func TestRegister_NonInstitutionalEmail_ValidationFailed(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, _ := newSvcForTest(t)

	in := validRegisterInput()
	in.Email = "user@gmail.com"

	_, err := svc.Register(context.Background(), in)
	requireCode(t, err, "validation_failed")

	var de *domain.Error
	if !errors.As(err, &de) || de.Meta["email"] != "domain not allowed" {
		t.Fatalf("expected email field in meta, got %v", err)
	}
	if users.createCalls != 0 {
		t.Fatalf("expected no Create call")
	}
}

func TestRegister_EnumeratesAllFailingFields(t *testing.T) {
	t.Parallel()

	svc, _, _, _, _, _, _, _ := newSvcForTest(t)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "x@gmail.com", Password: "123"})
	requireCode(t, err, "validation_failed")

	de := err.(*domain.Error)
	if de.Meta["fields"] != "email,organization,password,username" {
		t.Fatalf("unexpected fields: %q", de.Meta["fields"])
	}
}

func TestRegister_DuplicateEmail_Conflict(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, _ := newSvcForTest(t)
	users.put(activeOfficer())

	in := validRegisterInput()
	in.Username = "someone-else"

	_, err := svc.Register(context.Background(), in)
	requireCode(t, err, "email_already_exists")
}

func TestRegister_DuplicateUsername_Conflict(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, _ := newSvcForTest(t)
	users.put(activeOfficer())

	in := validRegisterInput()
	in.Email = "other@buksu.edu.ph"

	_, err := svc.Register(context.Background(), in)
	requireCode(t, err, "username_already_exists")
}

func TestRegister_SecondRegistrationFails(t *testing.T) {
	t.Parallel()

	svc, _, _, _, _, _, _, _ := newSvcForTest(t)

	if _, err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(context.Background(), validRegisterInput())
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegister_StoreConstraintWinsRace(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, _ := newSvcForTest(t)
	users.createErrs = []error{domain.ErrUsernameAlreadyExists()}

	_, err := svc.Register(context.Background(), validRegisterInput())
	requireCode(t, err, "username_already_exists")
}

func TestRegister_UsernameMatchingAnotherEmail_ReportsUsernameField(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, _ := newSvcForTest(t)
	users.put(activeOfficer())

	in := validRegisterInput()
	in.Username = "officer1@student.buksu.edu.ph"
	in.Email = "bob@buksu.edu.ph"

	_, err := svc.Register(context.Background(), in)
	requireCode(t, err, "validation_failed")

	de := err.(*domain.Error)
	if de.Meta["username"] != "must not contain @" || de.Meta["email"] != "" {
		t.Fatalf("expected only the username to fail, got %v", de.Meta)
	}
	if users.createCalls != 0 {
		t.Fatalf("expected no Create call")
	}
}

func TestRegister_UsernameCheckIsExact(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, _ := newSvcForTest(t)
	other := activeOfficer()
	other.ID, other.Username, other.Email = "u2", "alice", "bob@buksu.edu.ph"
	users.put(other)

	in := validRegisterInput()
	in.Username = "bob"
	in.Email = "bobby@buksu.edu.ph"

	if _, err := svc.Register(context.Background(), in); err != nil {
		t.Fatalf("username free, expected nil, got %v", err)
	}
}

func TestRegister_PasswordOverByteLimit_ValidationFailed(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, _ := newSvcForTest(t)

	in := validRegisterInput()
	in.Password = strings.Repeat("é", 40) // 40 characters, 80 bytes

	_, err := svc.Register(context.Background(), in)
	requireCode(t, err, "validation_failed")
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation kind, got %v", err)
	}
	if de := err.(*domain.Error); de.Meta["password"] != "max length 72 bytes" {
		t.Fatalf("unexpected meta: %v", de.Meta)
	}
	if users.createCalls != 0 {
		t.Fatalf("expected no Create call")
	}
}

func TestRegister_HasherValidationError_PassesThrough(t *testing.T) {
	t.Parallel()

	svc, _, hasher, _, _, _, _, _ := newSvcForTest(t)
	hasher.hashFn = func(string) (string, error) { return "", domain.ErrWeakPassword("max length 72 bytes") }

	_, err := svc.Register(context.Background(), validRegisterInput())
	requireCode(t, err, "weak_password")
}

func TestRegister_HashFail_ReturnsHashFailed(t *testing.T) {
	t.Parallel()

	svc, _, hasher, _, _, _, _, _ := newSvcForTest(t)
	hasher.hashFn = func(pw string) (string, error) { return "", errors.New("boom") }

	_, err := svc.Register(context.Background(), validRegisterInput())
	requireDomainCode(t, err, "hash_failed")
}

func TestLogin_EmptyFields_InvalidCredentials(t *testing.T) {
	t.Parallel()

	svc, _, _, _, _, _, _, _ := newSvcForTest(t)

	_, err := svc.Login(context.Background(), "", "")
	requireDomainCode(t, err, "invalid_credentials")
}

func TestLogin_UnknownIdentifier_InvalidCredentials(t *testing.T) {
	t.Parallel()

	svc, _, _, _, _, _, _, audits := newSvcForTest(t)

	_, err := svc.Login(context.Background(), "missing@buksu.edu.ph", "pw")
	requireDomainCode(t, err, "invalid_credentials")

	e := requireAuditAction(t, audits, "login_failed")
	requireAuditField(t, e, "reason", "unknown_identifier")
}

func TestLogin_PendingAccount_NotActiveEvenWithCorrectPassword(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, _ := newSvcForTest(t)
	u := activeOfficer()
	u.Status = domain.StatusPending
	users.put(u)

	_, err := svc.Login(context.Background(), u.Email, "pass123")
	requireDomainCode(t, err, "account_not_active")
}

func TestLogin_StatusCheckedBeforePassword(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, _ := newSvcForTest(t)
	u := activeOfficer()
	u.Status = domain.StatusInactive
	users.put(u)

	_, err := svc.Login(context.Background(), u.Email, "wrong")
	requireDomainCode(t, err, "account_not_active")
}

func TestLogin_WrongPassword_InvalidCredentials(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, _ := newSvcForTest(t)
	users.put(activeOfficer())

	_, err := svc.Login(context.Background(), "officer1", "nope")
	requireDomainCode(t, err, "invalid_credentials")
}

func TestLogin_GoogleOnlyAccount_InvalidCredentials(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, _ := newSvcForTest(t)
	u := activeOfficer()
	u.PasswordHash = ""
	u.Identity = domain.Identity{Source: domain.IdentityGoogle, ExternalID: "sub"}
	users.put(u)

	_, err := svc.Login(context.Background(), u.Email, "hash:")
	requireDomainCode(t, err, "invalid_credentials")
}

func TestLogin_ActiveByEmailOrUsername_IssuesSessionToken(t *testing.T) {
	t.Parallel()

	svc, users, _, tokens, _, _, _, audits := newSvcForTest(t)
	users.put(activeOfficer())

	for _, ident := range []string{"OFFICER1@student.buksu.edu.ph", " Officer1 "} {
		res, err := svc.Login(context.Background(), ident, "pass123")
		if err != nil {
			t.Fatalf("login %q: %v", ident, err)
		}
		claims, err := tokens.VerifySession(res.Token)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if claims.UserID != "u1" || claims.Role != domain.RoleOfficer || claims.Status != domain.StatusActive {
			t.Fatalf("unexpected claims: %+v", claims)
		}
		if res.ExpiresIn != 3600 {
			t.Fatalf("expected 1h session, got %d", res.ExpiresIn)
		}
	}

	requireAuditAction(t, audits, "login")
}

func TestLogin_StoreFailure_Propagates(t *testing.T) {
	t.Parallel()

	svc, users, _, _, _, _, _, _ := newSvcForTest(t)
	users.findErr = domain.ErrDBUnavailable(errors.New("conn refused"))

	_, err := svc.Login(context.Background(), "officer1", "pass123")
	requireDomainCode(t, err, "db_unavailable")
}

func TestLogin_SignFailure(t *testing.T) {
	t.Parallel()

	svc, users, _, tokens, _, _, _, _ := newSvcForTest(t)
	users.put(activeOfficer())
	tokens.signErr = errors.New("no key")

	_, err := svc.Login(context.Background(), "officer1", "pass123")
	requireDomainCode(t, err, "token_sign_failed")
}
