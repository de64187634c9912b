package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/uniswipe/internal/auth"
	"github.com/hitoshi/uniswipe/internal/comparison"
	"github.com/hitoshi/uniswipe/internal/decision"
	"github.com/hitoshi/uniswipe/internal/identity"
	"github.com/hitoshi/uniswipe/internal/middleware"
	"github.com/hitoshi/uniswipe/internal/model"
	"github.com/hitoshi/uniswipe/internal/session"
)

// --- モック定義 ---

type mockAuthService struct {
	signUpFn         func(ctx context.Context, in auth.SignUpInput) (*model.Session, *model.User, error)
	signInFn         func(ctx context.Context, in auth.SignInInput) (*model.Session, *model.User, error)
	signOutFn        func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
	stateFn          func(sessionID string) identity.State
}

func (m *mockAuthService) SignUp(ctx context.Context, in auth.SignUpInput) (*model.Session, *model.User, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, in)
	}
	return nil, nil, nil
}

func (m *mockAuthService) SignIn(ctx context.Context, in auth.SignInInput) (*model.Session, *model.User, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, in)
	}
	return nil, nil, nil
}

func (m *mockAuthService) SignOut(ctx context.Context, sessionID string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, nil
}

func (m *mockAuthService) State(sessionID string) identity.State {
	if m.stateFn != nil {
		return m.stateFn(sessionID)
	}
	return identity.Unauthenticated
}

type mockSessionStore struct {
	ensureFn     func(ctx context.Context, sessionID, userID string) (*session.State, error)
	setCatalogFn func(sessionID string, universities []*model.University)
}

func (m *mockSessionStore) Ensure(ctx context.Context, sessionID, userID string) (*session.State, error) {
	if m.ensureFn != nil {
		return m.ensureFn(ctx, sessionID, userID)
	}
	return nil, nil
}

func (m *mockSessionStore) SetCatalog(sessionID string, universities []*model.University) {
	if m.setCatalogFn != nil {
		m.setCatalogFn(sessionID, universities)
	}
}

type mockCatalogLoader struct {
	loadFn func(ctx context.Context) ([]*model.University, error)
}

func (m *mockCatalogLoader) Load(ctx context.Context) ([]*model.University, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx)
	}
	return nil, nil
}

type mockSwipeRecorder struct {
	recordFn func(ctx context.Context, sessionID, userID, universityID, direction string) (*decision.Outcome, error)
}

func (m *mockSwipeRecorder) RecordSwipe(ctx context.Context, sessionID, userID, universityID, direction string) (*decision.Outcome, error) {
	if m.recordFn != nil {
		return m.recordFn(ctx, sessionID, userID, universityID, direction)
	}
	return &decision.Outcome{Advanced: true}, nil
}

type mockFavoriteLister struct {
	listFn func(ctx context.Context, userID string) ([]*model.University, error)
}

func (m *mockFavoriteLister) List(ctx context.Context, userID string) ([]*model.University, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

type mockComparisonService struct {
	loadFn func(ctx context.Context, userID, leftID, rightID string) (*comparison.Comparison, error)
	saveFn func(ctx context.Context, userID string, in comparison.SaveInput) (*comparison.SaveResult, error)
}

func (m *mockComparisonService) Load(ctx context.Context, userID, leftID, rightID string) (*comparison.Comparison, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, userID, leftID, rightID)
	}
	return nil, nil
}

func (m *mockComparisonService) Save(ctx context.Context, userID string, in comparison.SaveInput) (*comparison.SaveResult, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, userID, in)
	}
	return &comparison.SaveResult{Status: comparison.PhaseSaved}, nil
}

type mockSessionFinder struct {
	sessions map[string]*model.Session
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return m.sessions[id], nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- ヘルパー ---

// withIdentity はセッションミドルウェア通過後と同じコンテキストを持つリクエストを返す。
func withIdentity(req *http.Request, userID, sessionID string) *http.Request {
	ctx := middleware.ContextWithUserID(req.Context(), userID)
	ctx = middleware.ContextWithSessionID(ctx, sessionID)
	return req.WithContext(ctx)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, wantStatus, rec.Body.String())
	}
	var body middleware.ErrorResponseBody
	decodeBody(t, rec, &body)
	if body.Code != wantCode {
		t.Errorf("code = %q, want %q", body.Code, wantCode)
	}
}

func testSession(id, userID string) *model.Session {
	return &model.Session{ID: id, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}
}

func testUniversity(id, name string) *model.University {
	return &model.University{ID: id, Name: name, Tags: []string{"public"}, City: "Town", State: "ST", Country: "US"}
}
