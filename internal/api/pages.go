package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hitoshi/linkbio/internal/model"
)

// GetPage はページを取得する。
func (c *Client) GetPage(ctx context.Context, id model.ID) (*model.Page, error) {
	req := &Request{Method: http.MethodGet, Path: c.pagePath(id)}
	var page model.Page
	if err := c.Do(ctx, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreatePage は指定した名前でページを作成する。
func (c *Client) CreatePage(ctx context.Context, name string) (*model.Page, error) {
	req, err := NewJSONRequest(http.MethodPost, c.endpoints.PagesPrefix+"/", map[string]string{"name": name})
	if err != nil {
		return nil, err
	}
	var page model.Page
	if err := c.Do(ctx, req, &page); err != nil {
		return nil, err
	}
	if page.ID.IsZero() {
		return nil, fmt.Errorf("create page: response has no id")
	}
	if page.Name == "" {
		page.Name = name
	}
	return &page, nil
}

// UpdatePage はページのタイトルと説明を更新する。
func (c *Client) UpdatePage(ctx context.Context, id model.ID, update model.PageUpdate) error {
	req, err := NewJSONRequest(http.MethodPut, c.pagePath(id), update)
	if err != nil {
		return err
	}
	return c.Do(ctx, req, nil)
}

// DeletePage はページを削除する。取り消しはできない。
func (c *Client) DeletePage(ctx context.Context, id model.ID) error {
	req := &Request{Method: http.MethodDelete, Path: c.pagePath(id)}
	return c.Do(ctx, req, nil)
}

// PublicPage は公開スラッグでページの表示用データを取得する。
// セッションは不要なため、401を受けてもリフレッシュしない。
func (c *Client) PublicPage(ctx context.Context, slug string) (*model.PublicPage, error) {
	req := &Request{
		Method:  http.MethodGet,
		Path:    c.endpoints.PublicPrefix + "/" + url.PathEscape(slug),
		Retried: true,
	}
	var page model.PublicPage
	if err := c.Do(ctx, req, &page); err != nil {
		return nil, err
	}
	for i := range page.Links {
		if page.Links[i].Icon == "" {
			page.Links[i].Icon = model.IconForURL(page.Links[i].URL)
		}
	}
	return &page, nil
}

func (c *Client) pagePath(id model.ID) string {
	return c.endpoints.PagesPrefix + "/" + url.PathEscape(id.String())
}
