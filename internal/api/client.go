// Package api はリンクページ用バックエンドのHTTPクライアントを提供する。
// すべてのリクエストはCookieJarを通してセッションCookieを送信し、
// 401応答に対しては1回だけトークンをリフレッシュして元のリクエストを再送する。
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/linkbio/internal/config"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	headerRequestID   = "X-Request-ID"
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	headerUserAgent   = "User-Agent"
	contentTypeJSON   = "application/json"
	userAgent         = "linkbio/1.0"

	// maxResponseSize はバックエンド応答ボディの上限（4MB）。
	maxResponseSize = 4 * 1024 * 1024
)

// Refresher は401応答を受けた際にセッションの回復を試みる。
// session.Store が実装する。セッションを終了させた場合はErrSessionEndedをラップして返す。
type Refresher interface {
	RefreshToken(ctx context.Context) error
}

// MetricsRecorder はバックエンド呼び出しの計測に必要なインターフェース。
type MetricsRecorder interface {
	RecordBackendRequest(method string, statusCode int, duration time.Duration)
}

// Request はバックエンドへの論理リクエスト1件。
// 再送時に同じメソッド・パス・ボディ・ヘッダーを使えるよう、ボディはバイト列で保持する。
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
	// Retried がtrueのリクエストは401を受けてもリフレッシュしない。
	// リフレッシュ後の再送、リフレッシュ自体、セッション不要の読み取りで使用する。
	Retried bool
}

// NewJSONRequest はvをJSONにエンコードしたボディを持つRequestを生成する。
func NewJSONRequest(method, path string, v any) (*Request, error) {
	req := &Request{Method: method, Path: path}
	if v != nil {
		body, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		req.Body = body
	}
	return req, nil
}

// Options はClientの設定。
type Options struct {
	BaseURL   string
	Endpoints config.Endpoints
	Timeout   time.Duration
	// RateLimit はバックエンドへの送信レート（req/sec）。0以下で無制限。
	RateLimit float64
	RateBurst int
	// HTTPClient が指定された場合はそれを使う。Jarが未設定ならCookieJarを付与する。
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    MetricsRecorder
}

// Client はバックエンドAPIのクライアント。
// 生のトークン値を読むことはなく、セッションCookieの保持はCookieJarに任せる。
type Client struct {
	httpClient *http.Client
	baseURL    string
	endpoints  config.Endpoints
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    MetricsRecorder

	mu        sync.RWMutex
	refresher Refresher
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(opts Options) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	var httpClient *http.Client
	if opts.HTTPClient != nil {
		hc := *opts.HTTPClient
		if hc.Jar == nil {
			hc.Jar = jar
		}
		httpClient = &hc
	} else {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Jar:     jar,
		}
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst < 1 {
		burst = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	endpoints := opts.Endpoints
	if endpoints == (config.Endpoints{}) {
		endpoints = config.DefaultEndpoints()
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    opts.BaseURL,
		endpoints:  endpoints,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
		metrics:    opts.Metrics,
	}, nil
}

// SetRefresher は401応答時に使用するRefresherを設定する。
// セッションストアはClientを使って生成されるため、生成後に注入する。
func (c *Client) SetRefresher(r Refresher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresher = r
}

func (c *Client) getRefresher() Refresher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refresher
}

// Do はリクエストを送信し、成功応答のJSONをoutにデコードする。
//
// 401応答を受け、かつreq.Retriedがfalseの場合は、req.Retriedをtrueにしたうえで
// Refresherを1回だけ呼び出す。リフレッシュに成功すれば元のリクエストを1回だけ再送し、
// その結果を返す。リフレッシュがErrSessionEndedで失敗した場合はSessionEndedを立てた
// 元の401エラーを返し、それ以外の失敗ではリフレッシュのエラーをラップして返す。
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if req.Header.Get(headerRequestID) == "" {
		req.Header.Set(headerRequestID, uuid.New().String())
	}

	body, err := c.send(ctx, req)
	if err != nil && IsUnauthorized(err) && !req.Retried {
		req.Retried = true

		refresher := c.getRefresher()
		if refresher == nil {
			return err
		}

		if refreshErr := refresher.RefreshToken(ctx); refreshErr != nil {
			if !errors.Is(refreshErr, ErrSessionEnded) {
				// セッションは終了していないため、リフレッシュ自体の失敗を返す
				c.logger.Warn("トークンのリフレッシュが一時的に失敗しました",
					slog.String("method", req.Method),
					slog.String("path", req.Path),
					slog.String("request_id", req.Header.Get(headerRequestID)),
					slog.String("error", refreshErr.Error()),
				)
				return fmt.Errorf("refresh token for %s %s: %w", req.Method, req.Path, refreshErr)
			}
			c.logger.Warn("トークンのリフレッシュが拒否されたためセッションを終了します",
				slog.String("method", req.Method),
				slog.String("path", req.Path),
				slog.String("request_id", req.Header.Get(headerRequestID)),
				slog.String("error", refreshErr.Error()),
			)
			if apiErr, ok := AsError(err); ok {
				ended := *apiErr
				ended.SessionEnded = true
				return &ended
			}
			return err
		}

		c.logger.Debug("トークンをリフレッシュしたためリクエストを再送します",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("request_id", req.Header.Get(headerRequestID)),
		)
		body, err = c.send(ctx, req)
	}
	if err != nil {
		return err
	}

	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to parse response of %s %s: %w", req.Method, req.Path, err)
		}
	}
	return nil
}

// send はリクエストを1回だけ送信する。
// 2xx応答ならボディを、それ以外は*Errorを返す。
func (c *Client) send(ctx context.Context, req *Request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, newTransportError(req.Method, req.Path, err)
	}

	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set(headerUserAgent, userAgent)
	httpReq.Header.Set(headerAccept, contentTypeJSON)
	if req.Body != nil {
		httpReq.Header.Set(headerContentType, contentTypeJSON)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.record(req.Method, 0, time.Since(start))
		c.logger.Warn("バックエンドへのリクエストに失敗しました",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("request_id", req.Header.Get(headerRequestID)),
			slog.String("error", err.Error()),
		)
		return nil, newTransportError(req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	duration := time.Since(start)
	c.record(req.Method, resp.StatusCode, duration)
	if err != nil {
		return nil, newTransportError(req.Method, req.Path, fmt.Errorf("failed to read response body: %w", err))
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 500 {
		level = slog.LevelWarn
	}
	c.logger.Log(ctx, level, "backend_request",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
		slog.Bool("retried", req.Retried),
		slog.String("request_id", req.Header.Get(headerRequestID)),
		slog.Float64("duration_ms", float64(duration.Nanoseconds())/float64(time.Millisecond)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(req.Method, req.Path, resp.StatusCode, respBody)
	}
	return respBody, nil
}

func (c *Client) record(method string, statusCode int, d time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordBackendRequest(method, statusCode, d)
	}
}
