package api

import (
	"context"
	"net/http"

	"github.com/hitoshi/linkbio/internal/model"
)

// Me は現在のセッションのユーザーを取得する。
// セッションがない場合は401エラーを返す。
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	return c.me(ctx, false)
}

// MeNoRefresh はMeと同じだが、401を受けてもリフレッシュしない。
// リフレッシュ処理の内部から呼び出すために使用する。
func (c *Client) MeNoRefresh(ctx context.Context) (*model.User, error) {
	return c.me(ctx, true)
}

func (c *Client) me(ctx context.Context, noRefresh bool) (*model.User, error) {
	req := &Request{
		Method:  http.MethodGet,
		Path:    c.endpoints.AuthPrefix + "/me",
		Retried: noRefresh,
	}
	var user model.User
	if err := c.Do(ctx, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignUp はユーザー登録を行う。成功時はバックエンドがセッションCookieを設定する。
// 応答ボディはユーザー情報として扱わない。
func (c *Client) SignUp(ctx context.Context, profile model.Profile) error {
	req, err := NewJSONRequest(http.MethodPost, c.endpoints.AuthPrefix+"/signup", profile)
	if err != nil {
		return err
	}
	// 資格情報の送信でリフレッシュを誘発しない
	req.Retried = true
	return c.Do(ctx, req, nil)
}

// SignIn はサインインを行う。成功時はバックエンドがセッションCookieを設定する。
// 応答ボディはユーザー情報として扱わない。
func (c *Client) SignIn(ctx context.Context, creds model.Credentials) error {
	req, err := NewJSONRequest(http.MethodPost, c.endpoints.AuthPrefix+"/signin", creds)
	if err != nil {
		return err
	}
	req.Retried = true
	return c.Do(ctx, req, nil)
}

// SignOut はバックエンドにセッションの無効化を通知する。
func (c *Client) SignOut(ctx context.Context) error {
	req := &Request{
		Method:  http.MethodPost,
		Path:    c.endpoints.AuthPrefix + "/signout",
		Retried: true,
	}
	return c.Do(ctx, req, nil)
}

// Refresh はリフレッシュトークンCookieを使ってセッションCookieを更新する。
// リフレッシュ自体が401を返しても再度リフレッシュすることはない。
func (c *Client) Refresh(ctx context.Context) error {
	req := &Request{
		Method:  http.MethodPost,
		Path:    c.endpoints.AuthPrefix + "/refresh",
		Body:    []byte("{}"),
		Retried: true,
	}
	return c.Do(ctx, req, nil)
}
