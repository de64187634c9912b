package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/uniswipe/internal/model"
)

func TestCatalogHandler_List_ReturnsCatalogAndRefreshesSnapshot(t *testing.T) {
	catalog := []*model.University{testUniversity("u1", "Alpha"), testUniversity("u2", "Beta")}
	var snapshotSession string
	var snapshot []*model.University

	h := NewCatalogHandler(
		&mockCatalogLoader{loadFn: func(ctx context.Context) ([]*model.University, error) { return catalog, nil }},
		&mockSessionStore{setCatalogFn: func(sessionID string, universities []*model.University) {
			snapshotSession = sessionID
			snapshot = universities
		}},
	)

	rec := httptest.NewRecorder()
	h.List(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/api/universities", nil), "user-1", "sess-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body universityListResponse
	decodeBody(t, rec, &body)
	if len(body.Universities) != 2 || body.Universities[0].ID != "u1" || body.Universities[1].Name != "Beta" {
		t.Errorf("universities = %+v", body.Universities)
	}
	if snapshotSession != "sess-1" || len(snapshot) != 2 {
		t.Errorf("snapshot = %q / %d", snapshotSession, len(snapshot))
	}
}

func TestCatalogHandler_List_EmptyCatalogIsEmptyArray(t *testing.T) {
	h := NewCatalogHandler(
		&mockCatalogLoader{loadFn: func(ctx context.Context) ([]*model.University, error) { return []*model.University{}, nil }},
		&mockSessionStore{},
	)

	rec := httptest.NewRecorder()
	h.List(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/api/universities", nil), "user-1", "sess-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"universities\":[]}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestCatalogHandler_List_Unavailable(t *testing.T) {
	setCalled := false
	h := NewCatalogHandler(
		&mockCatalogLoader{loadFn: func(ctx context.Context) ([]*model.University, error) {
			return nil, fmt.Errorf("failed to load catalog: %w: %w", model.NewCatalogUnavailableError(), errors.New("timeout"))
		}},
		&mockSessionStore{setCatalogFn: func(string, []*model.University) { setCalled = true }},
	)

	rec := httptest.NewRecorder()
	h.List(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/api/universities", nil), "user-1", "sess-1"))

	assertErrorCode(t, rec, http.StatusServiceUnavailable, model.ErrCodeCatalogUnavailable)
	if setCalled {
		t.Error("snapshot must not be replaced on failure")
	}
}

func TestCatalogHandler_List_CancelledRequestDiscardsResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	setCalled := false
	h := NewCatalogHandler(
		&mockCatalogLoader{loadFn: func(context.Context) ([]*model.University, error) {
			cancel()
			return []*model.University{testUniversity("u1", "Alpha")}, nil
		}},
		&mockSessionStore{setCatalogFn: func(string, []*model.University) { setCalled = true }},
	)

	req := httptest.NewRequest(http.MethodGet, "/api/universities", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.List(rec, withIdentity(req, "user-1", "sess-1"))

	if setCalled {
		t.Error("snapshot must not be applied after cancellation")
	}
}

func TestCatalogHandler_List_RequiresIdentity(t *testing.T) {
	h := NewCatalogHandler(&mockCatalogLoader{}, &mockSessionStore{})
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/universities", nil))

	assertErrorCode(t, rec, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}
