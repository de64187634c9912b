// Package catalog は大学カタログの読み込みを提供する。
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/uniswipe/internal/model"
)

// Lister は全大学を取得するインターフェース。
type Lister interface {
	ListAll(ctx context.Context) ([]*model.University, error)
}

// FailureRecorder はカタログ読み込み失敗を記録するインターフェース。
type FailureRecorder interface {
	RecordCatalogLoadFailure()
}

// Loader はカタログ全件を読み込む。
// ページングや再試行は行わない。
type Loader struct {
	lister  Lister
	metrics FailureRecorder
}

// NewLoader はLoaderを生成する。metricsはnilでもよい。
func NewLoader(lister Lister, metrics FailureRecorder) *Loader {
	return &Loader{lister: lister, metrics: metrics}
}

// Load は全大学をバックエンドの返す順序で取得する。
// 取得に失敗した場合はCATALOG_UNAVAILABLEを返す。空のカタログは正常な結果として空スライスを返す。
func (l *Loader) Load(ctx context.Context) ([]*model.University, error) {
	universities, err := l.lister.ListAll(ctx)
	if err != nil {
		slog.Error("failed to load catalog", slog.String("error", err.Error()))
		if l.metrics != nil {
			l.metrics.RecordCatalogLoadFailure()
		}
		return nil, fmt.Errorf("failed to list universities: %w: %w", model.NewCatalogUnavailableError(), err)
	}
	if universities == nil {
		universities = []*model.University{}
	}
	return universities, nil
}
