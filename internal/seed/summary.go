package seed

import (
	"fmt"
	"io"
)

// ジョブ名（メトリクスのjobラベルにも使う）
const (
	JobUniversities = "universities"
	JobImages       = "images"
)

// 1レコード分の処理結果（メトリクスのoutcomeラベルにも使う）
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
	OutcomeNoImage = "no_image"
	OutcomeFailed  = "failed"
)

// SeedRecorder はシード結果の記録に必要なインターフェース。
type SeedRecorder interface {
	RecordSeedRecord(job, outcome string)
}

// Summary はシードジョブの実行結果の集計。
type Summary struct {
	Job     string
	Checked int
	Created int
	Updated int
	Skipped int
	NoImage int
	Failed  int
}

func (s *Summary) add(outcome string) {
	switch outcome {
	case OutcomeCreated:
		s.Created++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeNoImage:
		s.NoImage++
	case OutcomeFailed:
		s.Failed++
	}
}

// Print は集計結果を出力する。
func (s Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "==== Summary ====")
	fmt.Fprintf(w, "Job: %s\n", s.Job)
	fmt.Fprintf(w, "Checked: %d\n", s.Checked)
	if s.Job == JobUniversities {
		fmt.Fprintf(w, "Created: %d\n", s.Created)
	} else {
		fmt.Fprintf(w, "Updated: %d\n", s.Updated)
	}
	fmt.Fprintf(w, "Skipped: %d\n", s.Skipped)
	if s.Job == JobImages {
		fmt.Fprintf(w, "No image found: %d\n", s.NoImage)
	}
	fmt.Fprintf(w, "Failed: %d\n", s.Failed)
	fmt.Fprintln(w, "=================")
}

// tally はSummaryとメトリクスの両方に結果を記録する。
type tally struct {
	summary Summary
	metrics SeedRecorder
}

func (t *tally) record(outcome string) {
	t.summary.add(outcome)
	if t.metrics != nil {
		t.metrics.RecordSeedRecord(t.summary.Job, outcome)
	}
}
