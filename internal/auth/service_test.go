package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/uniswipe/internal/identity"
	"github.com/hitoshi/uniswipe/internal/model"
	"github.com/hitoshi/uniswipe/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	createFn      func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)

// recordChanges はBroadcasterに購読し、配信された変化を記録する。
func recordChanges(t *testing.T, b *identity.Broadcaster) *[]identity.Change {
	t.Helper()
	var changes []identity.Change
	sub := b.Subscribe(func(c identity.Change) { changes = append(changes, c) })
	t.Cleanup(sub.Close)
	return &changes
}

func newTestService(userRepo *mockUserRepo, sessionRepo *mockSessionRepo, b *identity.Broadcaster) *Service {
	return NewService(userRepo, sessionRepo, b, ServiceConfig{SessionMaxAge: 86400, BcryptCost: bcrypt.MinCost})
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := HashPassword(password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return h
}

// --- テスト ---

func TestSignUp_CreatesUserAndSessionAndPublishesAuthenticated(t *testing.T) {
	ctx := context.Background()
	b := identity.NewBroadcaster()
	changes := recordChanges(t, b)

	var createdUser *model.User
	var createdSession *model.Session
	userRepo := &mockUserRepo{
		createFn: func(_ context.Context, user *model.User) error {
			createdUser = user
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(_ context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}

	svc := newTestService(userRepo, sessionRepo, b)
	session, user, err := svc.SignUp(ctx, SignUpInput{Name: " Ann ", Email: "ann@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	if createdUser == nil || createdSession == nil {
		t.Fatal("expected user and session to be persisted")
	}
	if user.Name != "Ann" {
		t.Errorf("Name = %q, want %q", user.Name, "Ann")
	}
	if user.PasswordHash == "password123" || user.PasswordHash == "" {
		t.Error("password must be stored as a bcrypt hash")
	}
	if session.UserID != user.ID {
		t.Errorf("session.UserID = %q, want %q", session.UserID, user.ID)
	}

	if len(*changes) != 2 {
		t.Fatalf("changes = %d, want 2", len(*changes))
	}
	if (*changes)[0].State != identity.Authenticating {
		t.Errorf("first change = %q, want authenticating", (*changes)[0].State)
	}
	last := (*changes)[1]
	if last.State != identity.Authenticated || last.User == nil || last.User.ID != user.ID {
		t.Errorf("last change = %+v, want authenticated with the new user", last)
	}
	if last.SessionID != session.ID {
		t.Errorf("change session = %q, want %q", last.SessionID, session.ID)
	}
	if svc.State(session.ID) != identity.Authenticated {
		t.Errorf("State() = %q, want authenticated", svc.State(session.ID))
	}
}

func TestSignUp_DuplicateEmail_ReturnsEmailRegistered(t *testing.T) {
	b := identity.NewBroadcaster()
	changes := recordChanges(t, b)

	userRepo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, _ string) (*model.User, error) {
			return &model.User{ID: "existing"}, nil
		},
	}
	svc := newTestService(userRepo, &mockSessionRepo{}, b)

	_, _, err := svc.SignUp(context.Background(), SignUpInput{Email: "ann@example.com", Password: "password123"})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEmailRegistered {
		t.Fatalf("error = %v, want EMAIL_ALREADY_REGISTERED", err)
	}
	if got := (*changes)[len(*changes)-1].State; got != identity.Unauthenticated {
		t.Errorf("last change = %q, want unauthenticated", got)
	}
}

func TestSignUp_RaceOnUniqueIndex_ReturnsEmailRegistered(t *testing.T) {
	userRepo := &mockUserRepo{
		createFn: func(_ context.Context, _ *model.User) error {
			return repository.ErrDuplicateEmail
		},
	}
	svc := newTestService(userRepo, &mockSessionRepo{}, identity.NewBroadcaster())

	_, _, err := svc.SignUp(context.Background(), SignUpInput{Email: "ann@example.com", Password: "password123"})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEmailRegistered {
		t.Fatalf("error = %v, want EMAIL_ALREADY_REGISTERED", err)
	}
}

func TestSignUp_InvalidInput_ReturnsInvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		in   SignUpInput
	}{
		{"メールアドレス形式不正", SignUpInput{Email: "nope", Password: "password123"}},
		{"パスワードが短い", SignUpInput{Email: "ann@example.com", Password: "short"}},
		{"メールアドレス未指定", SignUpInput{Password: "password123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := identity.NewBroadcaster()
			changes := recordChanges(t, b)
			svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, b)

			_, _, err := svc.SignUp(context.Background(), tt.in)

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidRequest {
				t.Fatalf("error = %v, want INVALID_REQUEST", err)
			}
			if len(*changes) != 0 {
				t.Errorf("validation failure should not publish changes, got %d", len(*changes))
			}
		})
	}
}

func TestSignIn_Success(t *testing.T) {
	b := identity.NewBroadcaster()
	changes := recordChanges(t, b)

	stored := &model.User{ID: "user-1", Email: "ann@example.com", PasswordHash: mustHash(t, "password123")}
	userRepo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			if email != "ann@example.com" {
				t.Errorf("email = %q, want trimmed address", email)
			}
			return stored, nil
		},
	}
	svc := newTestService(userRepo, &mockSessionRepo{}, b)

	session, user, err := svc.SignIn(context.Background(), SignInInput{Email: " ann@example.com ", Password: "password123"})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if user.ID != "user-1" || session.UserID != "user-1" {
		t.Errorf("user = %+v, session = %+v", user, session)
	}
	if got := (*changes)[len(*changes)-1]; got.State != identity.Authenticated || got.User.ID != "user-1" {
		t.Errorf("last change = %+v", got)
	}
}

func TestSignIn_UnknownEmailAndWrongPasswordAreIndistinguishable(t *testing.T) {
	stored := &model.User{ID: "user-1", Email: "ann@example.com", PasswordHash: mustHash(t, "password123")}

	tests := []struct {
		name  string
		found *model.User
		pass  string
	}{
		{"未登録メールアドレス", nil, "password123"},
		{"パスワード不一致", stored, "wrong-password"},
	}

	var messages []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := identity.NewBroadcaster()
			changes := recordChanges(t, b)
			sessionCreated := false

			userRepo := &mockUserRepo{
				findByEmailFn: func(_ context.Context, _ string) (*model.User, error) { return tt.found, nil },
			}
			sessionRepo := &mockSessionRepo{
				createFn: func(_ context.Context, _ *model.Session) error {
					sessionCreated = true
					return nil
				},
			}
			svc := newTestService(userRepo, sessionRepo, b)

			_, _, err := svc.SignIn(context.Background(), SignInInput{Email: "ann@example.com", Password: tt.pass})

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAuthFailed {
				t.Fatalf("error = %v, want AUTH_FAILED", err)
			}
			messages = append(messages, apiErr.Message)
			if sessionCreated {
				t.Error("session must not be created on failed sign in")
			}
			if got := (*changes)[len(*changes)-1].State; got != identity.Unauthenticated {
				t.Errorf("last change = %q, want unauthenticated", got)
			}
		})
	}

	if len(messages) == 2 && messages[0] != messages[1] {
		t.Errorf("messages differ: %q vs %q", messages[0], messages[1])
	}
}

func TestSignIn_RepositoryError_IsNotAuthFailed(t *testing.T) {
	userRepo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, _ string) (*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newTestService(userRepo, &mockSessionRepo{}, identity.NewBroadcaster())

	_, _, err := svc.SignIn(context.Background(), SignInInput{Email: "ann@example.com", Password: "password123"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("repository failure should not be an APIError, got %v", apiErr)
	}
}

func TestSignOut_DeletesSessionAndPublishesUnauthenticated(t *testing.T) {
	b := identity.NewBroadcaster()
	changes := recordChanges(t, b)

	var deleted string
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := newTestService(&mockUserRepo{}, sessionRepo, b)

	if err := svc.SignOut(context.Background(), "session-1"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if deleted != "session-1" {
		t.Errorf("deleted = %q, want %q", deleted, "session-1")
	}
	if len(*changes) != 1 || (*changes)[0].State != identity.Unauthenticated || (*changes)[0].SessionID != "session-1" {
		t.Errorf("changes = %+v", *changes)
	}
}

func TestSignOut_PublishesEvenWhenDeleteFails(t *testing.T) {
	b := identity.NewBroadcaster()
	changes := recordChanges(t, b)

	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(_ context.Context, _ string) error { return errors.New("db down") },
	}
	svc := newTestService(&mockUserRepo{}, sessionRepo, b)

	if err := svc.SignOut(context.Background(), "session-1"); err == nil {
		t.Fatal("expected error")
	}
	if len(*changes) != 1 {
		t.Errorf("changes = %d, want 1", len(*changes))
	}
}

func TestSignOut_EmptySessionID(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{}, identity.NewBroadcaster())
	if err := svc.SignOut(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

func TestGetCurrentUser(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
			if id == "valid" {
				return &model.Session{ID: id, UserID: "user-1"}, nil
			}
			return nil, nil
		},
	}
	userRepo := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "ann@example.com"}, nil
		},
	}
	svc := newTestService(userRepo, sessionRepo, nil)

	user, err := svc.GetCurrentUser(context.Background(), "valid")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("user.ID = %q, want %q", user.ID, "user-1")
	}

	if _, err := svc.GetCurrentUser(context.Background(), "expired"); err == nil {
		t.Error("expected error for expired session")
	}
	if _, err := svc.GetCurrentUser(context.Background(), ""); err == nil {
		t.Error("expected error for empty session ID")
	}
}

func TestState_SessionsWithoutSignOutArePruned(t *testing.T) {
	stored := &model.User{ID: "user-1", Email: "ann@example.com", PasswordHash: mustHash(t, "password123")}
	userRepo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			return stored, nil
		},
	}
	svc := newTestService(userRepo, &mockSessionRepo{}, nil)

	var ids []string
	for i := 0; i < 3; i++ {
		session, _, err := svc.SignIn(context.Background(), SignInInput{Email: "ann@example.com", Password: "password123"})
		if err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
		ids = append(ids, session.ID)
	}
	for _, id := range ids {
		if got := svc.State(id); got != identity.Authenticated {
			t.Errorf("State(%s) = %q, want %q", id, got, identity.Authenticated)
		}
	}

	if pruned := svc.PruneExpired(time.Now()); pruned != 0 {
		t.Errorf("PruneExpired(now) = %d, live sessions must be kept", pruned)
	}
	if pruned := svc.PruneExpired(time.Now().Add(48 * time.Hour)); pruned != 3 {
		t.Errorf("PruneExpired(after max age) = %d, want 3", pruned)
	}
}

func TestGetCurrentUser_RestoresAuthenticatedState(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	userRepo := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
	}
	svc := newTestService(userRepo, sessionRepo, nil)

	if got := svc.State("restarted"); got != identity.Unauthenticated {
		t.Fatalf("State() before lookup = %q", got)
	}
	if _, err := svc.GetCurrentUser(context.Background(), "restarted"); err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if got := svc.State("restarted"); got != identity.Authenticated {
		t.Errorf("State() = %q, want %q", got, identity.Authenticated)
	}

	if err := svc.SignOut(context.Background(), "restarted"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if got := svc.State("restarted"); got != identity.Unauthenticated {
		t.Errorf("State() after sign out = %q, want %q", got, identity.Unauthenticated)
	}
}
