// Package preview はリンク先のタイトルを取得する。
// RSS/Atomフィードであればフィードのタイトルを、HTMLであれば<title>要素を使う。
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/hitoshi/linkbio/internal/model"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
)

// ErrNoTitle はリンク先からタイトルを取り出せなかったことを示す。
var ErrNoTitle = errors.New("no title found")

// Kind はリンク先の種類。
type Kind string

const (
	KindFeed Kind = "feed"
	KindHTML Kind = "html"
)

// Preview はリンクのプレビュー。
type Preview struct {
	URL   string     `json:"url"`
	Title string     `json:"title"`
	Kind  Kind       `json:"kind"`
	Icon  model.Icon `json:"icon"`
}

// URLValidator は取得前のURL検証。security.SSRFGuard が実装する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Sanitizer はタイトルを表示用のテキストにする。
type Sanitizer interface {
	Sanitize(raw string) string
}

// MetricsRecorder はプレビュー取得の計測に必要なインターフェース。
type MetricsRecorder interface {
	RecordPreview(success bool)
}

// Fetcher はリンク先を取得してプレビューを作る。
type Fetcher struct {
	validator URLValidator
	client    *http.Client
	sanitizer Sanitizer
	maxSize   int64
	logger    *slog.Logger
	metrics   MetricsRecorder
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// clientにはSSRF防止付きのクライアントを渡すこと。
func NewFetcher(validator URLValidator, client *http.Client, sanitizer Sanitizer, maxSize int64, logger *slog.Logger, metrics MetricsRecorder) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if maxSize <= 0 {
		maxSize = 1 << 20
	}
	return &Fetcher{
		validator: validator,
		client:    client,
		sanitizer: sanitizer,
		maxSize:   maxSize,
		logger:    logger,
		metrics:   metrics,
	}
}

// Fetch はURLを取得してタイトルを取り出す。状態は変更しない。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Preview, error) {
	p, err := f.fetch(ctx, rawURL)
	if f.metrics != nil {
		f.metrics.RecordPreview(err == nil)
	}
	if err != nil {
		f.logger.Info("リンクのプレビュー取得に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return p, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (*Preview, error) {
	if err := f.validator.ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("preview %s: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", "linkbio/1.0 (+link preview)")
	req.Header.Set("Accept", "text/html, application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("preview %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return nil, fmt.Errorf("preview %s: read body: %w", rawURL, err)
	}

	var title string
	kind := KindHTML
	if isFeed(resp.Header.Get("Content-Type"), body) {
		kind = KindFeed
		title, err = feedTitle(body)
	} else {
		title, err = htmlTitle(body)
	}
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", rawURL, err)
	}

	title = f.sanitizer.Sanitize(strings.Join(strings.Fields(title), " "))
	if title == "" {
		return nil, fmt.Errorf("preview %s: %w", rawURL, ErrNoTitle)
	}

	return &Preview{
		URL:   rawURL,
		Title: title,
		Kind:  kind,
		Icon:  model.IconForURL(rawURL),
	}, nil
}

// isFeed はContent-Typeとボディの先頭からRSS/Atomフィードかを判定する。
func isFeed(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	switch strings.ToLower(mediaType) {
	case "application/rss+xml", "application/atom+xml", "application/feed+json":
		return true
	case "text/xml", "application/xml", "":
		head := body
		if len(head) > 4096 {
			head = head[:4096]
		}
		prefix := bytes.ToLower(head)
		return bytes.Contains(prefix, []byte("<rss")) ||
			bytes.Contains(prefix, []byte("<rdf:rdf")) ||
			(bytes.Contains(prefix, []byte("<feed")) && bytes.Contains(prefix, []byte("http://www.w3.org/2005/atom")))
	}
	return false
}

func feedTitle(body []byte) (string, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse feed: %w", err)
	}
	if strings.TrimSpace(feed.Title) == "" {
		return "", ErrNoTitle
	}
	return feed.Title, nil
}

// htmlTitle は最初の<title>要素のテキストを返す。<body>に入った時点で探索を終える。
func htmlTitle(body []byte) (string, error) {
	z := html.NewTokenizer(bytes.NewReader(body))
	inTitle := false
	var sb strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			if sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", ErrNoTitle
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "title":
				inTitle = true
			case "body":
				return "", ErrNoTitle
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if inTitle && string(name) == "title" {
				if sb.Len() == 0 {
					return "", ErrNoTitle
				}
				return sb.String(), nil
			}
		case html.TextToken:
			if inTitle {
				sb.Write(z.Text())
			}
		}
	}
}
