// Package imagesearch はWikimedia CommonsとWikipediaから大学の写真URLを検索する。
package imagesearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const (
	defaultCommonsEndpoint   = "https://commons.wikimedia.org/w/api.php"
	defaultWikipediaEndpoint = "https://en.wikipedia.org/w/api.php"
	userAgent                = "UniSwipe/1.0 (campus image seeding)"
	// maxResponseBytes はAPIレスポンスの読み取り上限。
	maxResponseBytes = 2 << 20
)

// 画像の出典
const (
	SourceCommons   = "commons"
	SourceWikipedia = "wikipedia"
)

// deniedTitleWords はキャンパス写真ではないと判断するファイル名の語（小文字）。
var deniedTitleWords = []string{"logo", "seal", "crest", "emblem", "coat of arms", "map", "flag"}

// ErrBreakerOpen はサーキットブレーカーが開いていてリクエストを送らなかった場合に返される。
var ErrBreakerOpen = errors.New("image search circuit breaker is open")

// Throttle は外部リクエスト前の待機に使うインターフェース。
// *rate.Limiterが実装する。
type Throttle interface {
	Wait(ctx context.Context) error
}

// LatencyRecorder は画像検索のレイテンシ記録に必要なインターフェース。
type LatencyRecorder interface {
	RecordImageSearchLatency(duration time.Duration)
}

// BreakerConfig はサーキットブレーカーの設定。
type BreakerConfig struct {
	ConsecutiveFailures uint32        // この回数連続で失敗すると開く
	OpenTimeout         time.Duration // 開いてから半開に移るまでの時間
}

// DefaultBreakerConfig はデフォルトのサーキットブレーカー設定を返す。
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// Result は画像検索の結果。URLが空の場合は画像が見つからなかったことを表す。
type Result struct {
	URL    string
	Title  string
	Source string
}

// Client は画像検索APIのクライアント。
// 各リクエストの前にThrottleで待機し、サーキットブレーカーを通して送信する。
type Client struct {
	httpClient        *http.Client
	logger            *slog.Logger
	throttle          Throttle
	breaker           *gobreaker.CircuitBreaker
	metrics           LatencyRecorder
	commonsEndpoint   string // テスト用にエンドポイントを差し替え可能
	wikipediaEndpoint string
}

// NewClient はClientを生成する。throttleとmetricsはnilでもよい。
func NewClient(httpClient *http.Client, logger *slog.Logger, throttle Throttle, metrics LatencyRecorder, breaker BreakerConfig) *Client {
	c := &Client{
		httpClient:        httpClient,
		logger:            logger,
		throttle:          throttle,
		metrics:           metrics,
		commonsEndpoint:   defaultCommonsEndpoint,
		wikipediaEndpoint: defaultWikipediaEndpoint,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "imagesearch",
		MaxRequests: 1,
		Timeout:     breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breaker.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return c
}

// CampusQueries はCommons検索に使うクエリを優先順に返す。
func CampusQueries(name string) []string {
	return []string{
		name + " campus",
		name + " university",
		name + " main building",
		name + " quad",
	}
}

// Find は大学名からキャンパス写真のURLを検索する。
// Commonsのクエリを順に試し、見つからなければWikipediaのページ画像にフォールバックする。
// 全リクエストが失敗した場合と、ブレーカーが開いている場合はエラーを返す。
func (c *Client) Find(ctx context.Context, name string) (Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Result{}, fmt.Errorf("university name is required")
	}

	var attempts, failures int
	var lastErr error

	for _, q := range CampusQueries(name) {
		attempts++
		res, err := c.searchCommons(ctx, q)
		if err != nil {
			if errors.Is(err, ErrBreakerOpen) || ctx.Err() != nil {
				return Result{}, err
			}
			c.logger.Warn("commons search failed",
				slog.String("query", q),
				slog.String("error", err.Error()),
			)
			failures++
			lastErr = err
			continue
		}
		if res.URL != "" {
			return res, nil
		}
	}

	attempts++
	res, err := c.wikipediaThumbnail(ctx, name)
	if err != nil {
		if errors.Is(err, ErrBreakerOpen) || ctx.Err() != nil {
			return Result{}, err
		}
		failures++
		lastErr = err
	}
	if res.URL != "" {
		return res, nil
	}

	if failures == attempts {
		return Result{}, fmt.Errorf("all image search requests failed: %w", lastErr)
	}
	return Result{}, nil
}

type commonsResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID    int    `json:"pageid"`
			Title     string `json:"title"`
			Index     int    `json:"index"`
			ImageInfo []struct {
				URL string `json:"url"`
			} `json:"imageinfo"`
		} `json:"pages"`
	} `json:"query"`
}

// searchCommons はCommonsのファイル名前空間を検索し、最初に採用可能な画像を返す。
// 検索順位（index）の昇順に候補を評価する。
func (c *Client) searchCommons(ctx context.Context, query string) (Result, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("generator", "search")
	params.Set("gsrsearch", query)
	params.Set("gsrnamespace", "6")
	params.Set("gsrlimit", "10")
	params.Set("prop", "imageinfo")
	params.Set("iiprop", "url")
	params.Set("iiurlwidth", "1400")

	var resp commonsResponse
	if err := c.get(ctx, c.commonsEndpoint, params, &resp); err != nil {
		return Result{}, err
	}

	type candidate struct {
		index int
		title string
		url   string
	}
	candidates := make([]candidate, 0, len(resp.Query.Pages))
	for _, p := range resp.Query.Pages {
		if len(p.ImageInfo) == 0 || p.ImageInfo[0].URL == "" {
			continue
		}
		candidates = append(candidates, candidate{index: p.Index, title: p.Title, url: p.ImageInfo[0].URL})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].index < candidates[j].index
	})

	for _, cand := range candidates {
		if IsDeniedTitle(cand.title) {
			continue
		}
		return Result{URL: cand.url, Title: cand.title, Source: SourceCommons}, nil
	}
	return Result{}, nil
}

type wikipediaResponse struct {
	Query struct {
		Pages map[string]struct {
			Title     string `json:"title"`
			Thumbnail struct {
				Source string `json:"source"`
			} `json:"thumbnail"`
		} `json:"pages"`
	} `json:"query"`
}

// wikipediaThumbnail は大学名と完全一致するWikipedia記事のページ画像を返す。
func (c *Client) wikipediaThumbnail(ctx context.Context, name string) (Result, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("titles", name)
	params.Set("prop", "pageimages")
	params.Set("pithumbsize", "1000")

	var resp wikipediaResponse
	if err := c.get(ctx, c.wikipediaEndpoint, params, &resp); err != nil {
		return Result{}, err
	}

	keys := make([]string, 0, len(resp.Query.Pages))
	for k := range resp.Query.Pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p := resp.Query.Pages[k]
		if p.Thumbnail.Source != "" {
			return Result{URL: p.Thumbnail.Source, Title: p.Title, Source: SourceWikipedia}, nil
		}
	}
	return Result{}, nil
}

// get はスロットリングとサーキットブレーカーを通してGETリクエストを送り、JSONをデコードする。
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.throttle != nil {
		if err := c.throttle.Wait(ctx); err != nil {
			return fmt.Errorf("throttle wait cancelled: %w", err)
		}
	}

	reqURL, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("failed to parse endpoint: %w", err)
	}
	reqURL.RawQuery = params.Encode()

	start := time.Now()
	_, err = c.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, reqURL.String(), out)
	})
	if c.metrics != nil {
		c.metrics.RecordImageSearchLatency(time.Since(start))
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrBreakerOpen, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// IsDeniedTitle はファイル名がロゴや地図などキャンパス写真でないものを示すかを返す。
func IsDeniedTitle(title string) bool {
	lower := strings.ToLower(title)
	for _, w := range deniedTitleWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
