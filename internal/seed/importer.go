package seed

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/uniswipe/internal/model"
)

// DefaultMaxRecords は1回の投入で作成する最大件数。
const DefaultMaxRecords = 200

// UniversityCreator は大学の作成に必要なインターフェース。
type UniversityCreator interface {
	Create(ctx context.Context, university *model.University) error
}

// ImageURLValidator は写真URLの検証に必要なインターフェース。
type ImageURLValidator interface {
	ValidateImageURL(rawURL string) error
}

// ImportConfig はカタログ投入ジョブの設定。
type ImportConfig struct {
	MaxRecords int
}

// Importer は投入元の大学データをカタログに作成するジョブ。
// 1件ごとの失敗はログに記録して読み飛ばす。
type Importer struct {
	repo    UniversityCreator
	guard   ImageURLValidator
	logger  *slog.Logger
	metrics SeedRecorder
	config  ImportConfig
}

// NewImporter はImporterを生成する。guardとmetricsはnilでもよい。
func NewImporter(repo UniversityCreator, guard ImageURLValidator, logger *slog.Logger, metrics SeedRecorder, config ImportConfig) *Importer {
	if config.MaxRecords <= 0 {
		config.MaxRecords = DefaultMaxRecords
	}
	return &Importer{
		repo:    repo,
		guard:   guard,
		logger:  logger,
		metrics: metrics,
		config:  config,
	}
}

// Run は投入データを先頭から順に作成する。MaxRecords件作成した時点で終了する。
// コンテキストがキャンセルされた場合はそれまでの集計とエラーを返す。
func (im *Importer) Run(ctx context.Context, records []Record) (Summary, error) {
	start := time.Now()
	t := &tally{summary: Summary{Job: JobUniversities}, metrics: im.metrics}

	im.logger.Info("university import started",
		slog.Int("records", len(records)),
		slog.Int("max_records", im.config.MaxRecords),
	)

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return t.summary, err
		}
		if t.summary.Created >= im.config.MaxRecords {
			im.logger.Info("max records reached", slog.Int("max_records", im.config.MaxRecords))
			break
		}

		t.summary.Checked++

		if rec.Name == "" {
			im.logger.Warn("skipping row without name", slog.Int("line", rec.Line))
			t.record(OutcomeSkipped)
			continue
		}

		u := rec.ToUniversity()
		if u.PhotoURL != "" && im.guard != nil {
			if err := im.guard.ValidateImageURL(u.PhotoURL); err != nil {
				im.logger.Warn("dropping unsafe photo URL",
					slog.String("name", rec.Name),
					slog.String("error", err.Error()),
				)
				u.PhotoURL = ""
			}
		}

		if err := im.repo.Create(ctx, u); err != nil {
			im.logger.Error("failed to create university",
				slog.String("name", rec.Name),
				slog.Int("line", rec.Line),
				slog.String("error", err.Error()),
			)
			t.record(OutcomeFailed)
			continue
		}

		im.logger.Info("university created",
			slog.String("name", u.Name),
			slog.String("university_id", u.ID),
		)
		t.record(OutcomeCreated)
	}

	im.logger.Info("university import finished",
		slog.Int("checked", t.summary.Checked),
		slog.Int("created", t.summary.Created),
		slog.Int("skipped", t.summary.Skipped),
		slog.Int("failed", t.summary.Failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return t.summary, nil
}
