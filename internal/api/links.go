package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/linkbio/internal/model"
)

// linkPayload はリンクの作成・更新リクエストのボディ。
type linkPayload struct {
	Platform model.Platform `json:"platform"`
	URL      string         `json:"url"`
	Title    string         `json:"title,omitempty"`
	PageID   model.ID       `json:"page_id,omitempty"`
}

func payloadOf(l model.Link) linkPayload {
	return linkPayload{
		Platform: l.Platform,
		URL:      l.URL,
		Title:    l.Title,
		PageID:   l.PageID,
	}
}

// ListLinks はページに永続化されているリンクの一覧を取得する。
func (c *Client) ListLinks(ctx context.Context, pageID model.ID) ([]model.Link, error) {
	req := &Request{Method: http.MethodGet, Path: c.linkPath(pageID)}
	var links []model.Link
	if err := c.Do(ctx, req, &links); err != nil {
		return nil, err
	}
	return links, nil
}

// CreateLink はリンクを作成する。link.PageIDは必須。
// 応答にリンクが含まれない場合は送信内容をそのまま返す。
func (c *Client) CreateLink(ctx context.Context, link model.Link) (*model.Link, error) {
	req, err := NewJSONRequest(http.MethodPost, c.endpoints.LinksPrefix+"/", payloadOf(link))
	if err != nil {
		return nil, err
	}
	var created model.Link
	if err := c.Do(ctx, req, &created); err != nil {
		return nil, err
	}
	if created.URL == "" {
		created = link
	}
	return &created, nil
}

// UpdateLink はIDで指定したリンクを現在の内容で更新する。
func (c *Client) UpdateLink(ctx context.Context, id model.ID, link model.Link) error {
	req, err := NewJSONRequest(http.MethodPut, c.linkPath(id), payloadOf(link))
	if err != nil {
		return err
	}
	return c.Do(ctx, req, nil)
}

// DeleteLink はIDで指定したリンクを削除する。
func (c *Client) DeleteLink(ctx context.Context, id model.ID) error {
	req := &Request{Method: http.MethodDelete, Path: c.linkPath(id)}
	return c.Do(ctx, req, nil)
}

func (c *Client) linkPath(id model.ID) string {
	return c.endpoints.LinksPrefix + "/" + url.PathEscape(id.String())
}
