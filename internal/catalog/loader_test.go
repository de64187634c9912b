package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/uniswipe/internal/model"
)

type mockLister struct {
	listAllFn func(ctx context.Context) ([]*model.University, error)
}

func (m *mockLister) ListAll(ctx context.Context) ([]*model.University, error) {
	return m.listAllFn(ctx)
}

type mockFailureRecorder struct {
	calls int
}

func (m *mockFailureRecorder) RecordCatalogLoadFailure() {
	m.calls++
}

func TestLoad_ReturnsUniversitiesInBackendOrder(t *testing.T) {
	lister := &mockLister{
		listAllFn: func(ctx context.Context) ([]*model.University, error) {
			return []*model.University{
				{ID: "u2", Name: "Beta"},
				{ID: "u1", Name: "Alpha"},
			}, nil
		},
	}
	loader := NewLoader(lister, nil)

	got, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "u2" || got[1].ID != "u1" {
		t.Errorf("order = [%s %s], want [u2 u1]", got[0].ID, got[1].ID)
	}
}

func TestLoad_EmptyCatalogIsNotAnError(t *testing.T) {
	lister := &mockLister{
		listAllFn: func(ctx context.Context) ([]*model.University, error) {
			return nil, nil
		},
	}
	loader := NewLoader(lister, nil)

	got, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected non-nil empty slice")
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestLoad_BackendFailureReturnsCatalogUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	lister := &mockLister{
		listAllFn: func(ctx context.Context) ([]*model.University, error) {
			return nil, cause
		},
	}
	rec := &mockFailureRecorder{}
	loader := NewLoader(lister, rec)

	got, err := loader.Load(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got != nil {
		t.Errorf("expected nil result, got %v", got)
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError in chain, got %T", err)
	}
	if apiErr.Code != model.ErrCodeCatalogUnavailable {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeCatalogUnavailable)
	}
	if !errors.Is(err, cause) {
		t.Error("expected the backend cause to be wrapped")
	}
	if rec.calls != 1 {
		t.Errorf("RecordCatalogLoadFailure calls = %d, want 1", rec.calls)
	}
}
