package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/hitoshi/uniswipe/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type mockCreator struct {
	createFn func(ctx context.Context, u *model.University) error
	created  []*model.University
}

func (m *mockCreator) Create(ctx context.Context, u *model.University) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, u); err != nil {
			return err
		}
	}
	u.ID = fmt.Sprintf("id-%d", len(m.created)+1)
	m.created = append(m.created, u)
	return nil
}

type mockGuard struct {
	rejectPrefix string
}

func (m *mockGuard) ValidateImageURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return errors.New("empty URL")
	}
	if m.rejectPrefix != "" && strings.HasPrefix(rawURL, m.rejectPrefix) {
		return errors.New("rejected")
	}
	return nil
}

type mockSeedRecorder struct {
	records map[string]int
}

func (m *mockSeedRecorder) RecordSeedRecord(job, outcome string) {
	if m.records == nil {
		m.records = make(map[string]int)
	}
	m.records[job+"/"+outcome]++
}

func TestImporter_Run(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockCreator{
		createFn: func(ctx context.Context, u *model.University) error {
			if u.Name == "Broken College" {
				return errors.New("insert failed")
			}
			return nil
		},
	}
	metrics := &mockSeedRecorder{}
	im := NewImporter(repo, &mockGuard{rejectPrefix: "http://"}, newTestLogger(&buf), metrics, ImportConfig{})

	records := []Record{
		{Line: 2, Name: "Rice University", Tags: []string{"private", "private"}, PhotoURL: "https://img/rice.jpg"},
		{Line: 3, Name: ""},
		{Line: 4, Name: "Broken College"},
		{Line: 5, Name: "Plain U", PhotoURL: "http://insecure/img.jpg"},
	}

	summary, err := im.Run(context.Background(), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Checked != 4 || summary.Created != 2 || summary.Skipped != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if len(repo.created) != 2 {
		t.Fatalf("created = %d, want 2", len(repo.created))
	}
	if len(repo.created[0].Tags) != 1 {
		t.Errorf("tags should be deduplicated, got %v", repo.created[0].Tags)
	}
	if repo.created[1].PhotoURL != "" {
		t.Errorf("unsafe photo URL should be dropped, got %q", repo.created[1].PhotoURL)
	}
	if metrics.records["universities/created"] != 2 || metrics.records["universities/failed"] != 1 {
		t.Errorf("metrics = %v", metrics.records)
	}
	if !strings.Contains(buf.String(), "Broken College") {
		t.Error("per-record failure should be logged")
	}
}

func TestImporter_StopsAtMaxRecords(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockCreator{}
	im := NewImporter(repo, nil, newTestLogger(&buf), nil, ImportConfig{MaxRecords: 2})

	records := []Record{{Name: "A"}, {Name: "B"}, {Name: "C"}}

	summary, err := im.Run(context.Background(), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Created != 2 || len(repo.created) != 2 {
		t.Errorf("created = %d, want 2", summary.Created)
	}
}

func TestImporter_DefaultMaxRecords(t *testing.T) {
	var buf bytes.Buffer
	im := NewImporter(&mockCreator{}, nil, newTestLogger(&buf), nil, ImportConfig{})
	if im.config.MaxRecords != DefaultMaxRecords {
		t.Errorf("MaxRecords = %d, want %d", im.config.MaxRecords, DefaultMaxRecords)
	}
}

func TestImporter_Cancelled(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockCreator{}
	im := NewImporter(repo, nil, newTestLogger(&buf), nil, ImportConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := im.Run(ctx, []Record{{Name: "A"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(repo.created) != 0 {
		t.Error("nothing should be created after cancellation")
	}
}

func TestSummary_Print(t *testing.T) {
	var buf bytes.Buffer
	Summary{Job: JobImages, Checked: 5, Updated: 2, Skipped: 1, NoImage: 1, Failed: 1}.Print(&buf)

	out := buf.String()
	for _, want := range []string{"Checked: 5", "Updated: 2", "Skipped: 1", "No image found: 1", "Failed: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	Summary{Job: JobUniversities, Checked: 3, Created: 3}.Print(&buf)
	if !strings.Contains(buf.String(), "Created: 3") {
		t.Errorf("universities summary should report created:\n%s", buf.String())
	}
}
