package model

// Link はページに紐付くリンクを表す。
// IDは作成されるまで空。照合の同一性はサーバーIDではなく (Platform, URL) の組で判定する。
type Link struct {
	ID       ID       `json:"id,omitempty"`
	Platform Platform `json:"platform"`
	URL      string   `json:"url"`
	Title    string   `json:"title,omitempty"`
	PageID   ID       `json:"page_id,omitempty"`
}

// LinkKey はリンク照合用のキー。
type LinkKey struct {
	Platform Platform
	URL      string
}

// Key はリンクの照合キーを返す。
func (l Link) Key() LinkKey {
	return LinkKey{Platform: l.Platform, URL: l.URL}
}

// String はログ出力用の表現を返す。
func (k LinkKey) String() string {
	return string(k.Platform) + " " + k.URL
}
