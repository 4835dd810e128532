package model

// Page はバックエンドが所有するプロフィールページを表す。
// 編集中はクライアントが作業コピーを保持する。
type Page struct {
	ID          ID     `json:"id"`
	Name        string `json:"name,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PageUpdate はページのスカラー項目の更新内容。
type PageUpdate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PublicPage は公開スラッグで閲覧されるページの表示用データ。
// セッション不要の読み取り専用ビュー。
type PublicPage struct {
	Name        string       `json:"name"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Links       []PublicLink `json:"links"`
}

// PublicLink は公開ページ上のリンク1件。
// Iconはバックエンドの値ではなく、URLからクライアント側で導出する。
type PublicLink struct {
	ID    ID     `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
	Icon  Icon   `json:"icon,omitempty"`
}
