package authpw

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"omnihub/api/internal/store"
)

type fakeUserStore struct {
	users   map[string]store.User // keyed by email
	resets  map[string]string     // token -> user id
	usedAny bool
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:  make(map[string]store.User),
		resets: make(map[string]string),
	}
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	user, ok := f.users[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeUserStore) CreateUser(ctx context.Context, user store.User) error {
	if _, ok := f.users[user.Email]; ok {
		return store.ErrDuplicateEmail
	}
	f.users[user.Email] = user
	return nil
}

func (f *fakeUserStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return nil
}

func (f *fakeUserStore) VerifyUserEmail(ctx context.Context, token string) error {
	for email, user := range f.users {
		if user.VerificationToken == token {
			user.IsEmailVerified = true
			f.users[email] = user
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeUserStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	for email, user := range f.users {
		if user.ID == userID {
			user.PasswordHash = passwordHash
			f.users[email] = user
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeUserStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	f.resets[token] = userID
	return nil
}

func (f *fakeUserStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	userID, ok := f.resets[token]
	if !ok {
		return "", sql.ErrNoRows
	}
	return userID, nil
}

func (f *fakeUserStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	f.usedAny = true
	delete(f.resets, token)
	return nil
}

func TestSignUpAndSignIn(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, SignUpRequest{Email: "pat@example.com", Password: "hunter22hunter22", DisplayName: "Pat"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if resp.VerificationToken == "" {
		t.Fatal("expected a verification token")
	}

	// Unverified accounts can authenticate but get flagged.
	signin, err := svc.SignIn(ctx, SignInRequest{Email: "pat@example.com", Password: "hunter22hunter22"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if !signin.RequiresVerify {
		t.Fatal("expected RequiresVerify before email verification")
	}

	if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}

	signin, err = svc.SignIn(ctx, SignInRequest{Email: "pat@example.com", Password: "hunter22hunter22"})
	if err != nil {
		t.Fatalf("SignIn after verify: %v", err)
	}
	if signin.RequiresVerify {
		t.Fatal("did not expect RequiresVerify after verification")
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "pat@example.com", Password: "hunter22hunter22", DisplayName: "Pat"}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "pat@example.com", Password: "hunter22hunter22", DisplayName: "Pat"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestSignUpRejectsShortPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	if _, err := svc.SignUp(context.Background(), SignUpRequest{Email: "pat@example.com", Password: "short", DisplayName: "Pat"}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("err = %v, want ErrWeakPassword", err)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	fs := newFakeUserStore()
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse-battery"), bcrypt.MinCost)
	fs.users["pat@example.com"] = store.User{ID: "usr_1", Email: "pat@example.com", PasswordHash: string(hash), IsEmailVerified: true}

	svc := NewService(fs)
	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "pat@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	fs := newFakeUserStore()
	hash, _ := bcrypt.GenerateFromPassword([]byte("original-password"), bcrypt.MinCost)
	fs.users["pat@example.com"] = store.User{ID: "usr_1", Email: "pat@example.com", PasswordHash: string(hash), IsEmailVerified: true}

	svc := NewService(fs)
	ctx := context.Background()

	token, err := svc.RequestPasswordReset(ctx, "pat@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if token == "" {
		t.Fatal("expected a reset token")
	}

	if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "rotated-password"}); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if !fs.usedAny {
		t.Fatal("expected reset token to be consumed")
	}

	if _, err := svc.SignIn(ctx, SignInRequest{Email: "pat@example.com", Password: "rotated-password"}); err != nil {
		t.Fatalf("SignIn with new password: %v", err)
	}
}

func TestPasswordResetUnknownEmailSilent(t *testing.T) {
	svc := NewService(newFakeUserStore())
	token, err := svc.RequestPasswordReset(context.Background(), "ghost@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if token != "" {
		t.Fatal("expected empty token for unknown email")
	}
}
