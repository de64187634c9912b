package metrics

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// LogSnapshot はレジストリに記録された値をログに出力する。
// スクレイプされないバッチジョブの終了時に使う。
// カウンターは値、ヒストグラムは件数と合計を出力し、値が0のものは省略する。
func LogSnapshot(logger *slog.Logger, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return err
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			args := []any{slog.String("metric", mf.GetName())}
			if labels := formatLabels(m.GetLabel()); labels != "" {
				args = append(args, slog.String("labels", labels))
			}

			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				v := m.GetCounter().GetValue()
				if v == 0 {
					continue
				}
				args = append(args, slog.Float64("value", v))
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				if h.GetSampleCount() == 0 {
					continue
				}
				args = append(args,
					slog.Uint64("count", h.GetSampleCount()),
					slog.Float64("sum", h.GetSampleSum()),
				)
			default:
				continue
			}

			logger.Info("metric snapshot", args...)
		}
	}
	return nil
}

func formatLabels(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.GetName()+"="+p.GetValue())
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
