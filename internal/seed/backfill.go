package seed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/uniswipe/internal/imagesearch"
	"github.com/hitoshi/uniswipe/internal/model"
)

// DefaultScanLimit は1回の補完で走査する最大件数。
const DefaultScanLimit = 500

// UniversityScanner は写真補完の対象取得と書き戻しに必要なインターフェース。
type UniversityScanner interface {
	List(ctx context.Context, limit int) ([]*model.University, error)
	ListWithBlankPhoto(ctx context.Context, limit int) ([]*model.University, error)
	UpdatePhotoURL(ctx context.Context, id, photoURL string) error
}

// ImageFinder は大学名から写真を検索するインターフェース。
// imagesearch.Clientが実装する。
type ImageFinder interface {
	Find(ctx context.Context, name string) (imagesearch.Result, error)
}

// BackfillConfig は写真補完ジョブの設定。
type BackfillConfig struct {
	ScanLimit int
	// Overwrite がtrueの場合は写真URLが設定済みの大学も対象にする。
	Overwrite bool
}

// Backfill は写真URLが未設定の大学に画像検索の結果を書き戻すジョブ。
// 空のURLは書き込まない。
type Backfill struct {
	repo    UniversityScanner
	finder  ImageFinder
	guard   ImageURLValidator
	logger  *slog.Logger
	metrics SeedRecorder
	config  BackfillConfig
}

// NewBackfill はBackfillを生成する。guardとmetricsはnilでもよい。
func NewBackfill(repo UniversityScanner, finder ImageFinder, guard ImageURLValidator, logger *slog.Logger, metrics SeedRecorder, config BackfillConfig) *Backfill {
	if config.ScanLimit <= 0 {
		config.ScanLimit = DefaultScanLimit
	}
	return &Backfill{
		repo:    repo,
		finder:  finder,
		guard:   guard,
		logger:  logger,
		metrics: metrics,
		config:  config,
	}
}

// Run は対象の大学を1件ずつ順に処理する。
// 対象一覧の取得に失敗した場合と、コンテキストがキャンセルされた場合はエラーを返す。
// リクエスト間隔の制御はImageFinder側のスロットルが行う。
func (b *Backfill) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	t := &tally{summary: Summary{Job: JobImages}, metrics: b.metrics}

	var targets []*model.University
	var err error
	if b.config.Overwrite {
		targets, err = b.repo.List(ctx, b.config.ScanLimit)
	} else {
		targets, err = b.repo.ListWithBlankPhoto(ctx, b.config.ScanLimit)
	}
	if err != nil {
		return t.summary, err
	}

	b.logger.Info("image backfill started",
		slog.Int("targets", len(targets)),
		slog.Int("scan_limit", b.config.ScanLimit),
		slog.Bool("overwrite", b.config.Overwrite),
	)

	for _, u := range targets {
		if err := ctx.Err(); err != nil {
			return t.summary, err
		}
		t.summary.Checked++
		outcome := b.process(ctx, u)
		if outcome == "" {
			// キャンセルにより中断
			return t.summary, ctx.Err()
		}
		t.record(outcome)
	}

	b.logger.Info("image backfill finished",
		slog.Int("checked", t.summary.Checked),
		slog.Int("updated", t.summary.Updated),
		slog.Int("skipped", t.summary.Skipped),
		slog.Int("no_image", t.summary.NoImage),
		slog.Int("failed", t.summary.Failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return t.summary, nil
}

// process は1件の大学を処理し、結果を返す。キャンセル時は空文字を返す。
func (b *Backfill) process(ctx context.Context, u *model.University) string {
	if u.Name == "" {
		b.logger.Warn("skipping university without name", slog.String("university_id", u.ID))
		return OutcomeSkipped
	}
	if !b.config.Overwrite && !u.HasBlankPhoto() {
		return OutcomeSkipped
	}

	b.logger.Info("looking up image", slog.String("name", u.Name))

	res, err := b.finder.Find(ctx, u.Name)
	if err != nil {
		if ctx.Err() != nil {
			return ""
		}
		attrs := []any{
			slog.String("name", u.Name),
			slog.String("error", err.Error()),
		}
		if errors.Is(err, imagesearch.ErrBreakerOpen) {
			b.logger.Warn("image search unavailable, circuit breaker open", attrs...)
		} else {
			b.logger.Error("image search failed", attrs...)
		}
		return OutcomeFailed
	}

	if res.URL == "" {
		b.logger.Info("no image found", slog.String("name", u.Name))
		return OutcomeNoImage
	}

	if b.guard != nil {
		if err := b.guard.ValidateImageURL(res.URL); err != nil {
			b.logger.Warn("rejecting image URL",
				slog.String("name", u.Name),
				slog.String("url", res.URL),
				slog.String("error", err.Error()),
			)
			return OutcomeNoImage
		}
	}

	if err := b.repo.UpdatePhotoURL(ctx, u.ID, res.URL); err != nil {
		b.logger.Error("failed to update photo URL",
			slog.String("university_id", u.ID),
			slog.String("name", u.Name),
			slog.String("error", err.Error()),
		)
		return OutcomeFailed
	}

	b.logger.Info("photo URL updated",
		slog.String("name", u.Name),
		slog.String("source", res.Source),
	)
	return OutcomeUpdated
}
