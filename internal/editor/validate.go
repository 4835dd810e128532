package editor

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/linkbio/internal/model"
	"github.com/hitoshi/linkbio/internal/security"
)

const (
	// MaxTitleLength はページタイトルの最大文字数。
	MaxTitleLength = 100
	// MaxDescriptionLength はページ説明の最大文字数。
	MaxDescriptionLength = 500
)

var (
	// ErrInvalidPage はページ項目が制約を満たさないことを示す。
	ErrInvalidPage = errors.New("invalid page")
	// ErrInvalidLink はリンクが制約を満たさないことを示す。
	ErrInvalidLink = errors.New("invalid link")
)

// Draft はページの作業コピー。保存されるまでバックエンドには反映されない。
type Draft struct {
	PageID      model.ID     `json:"id"`
	Name        string       `json:"name,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Links       []model.Link `json:"links"`
}

// Validate は書き込みを始める前に作業コピー全体を検証する。
// タイトルは1〜100文字、説明は500文字以内、各リンクは既知のプラットフォームと
// 絶対URLを持ち、(platform, url) が作業コピー内で一意でなければならない。
func Validate(d Draft) error {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidPage)
	}
	if n := utf8.RuneCountInString(d.Title); n > MaxTitleLength {
		return fmt.Errorf("%w: title must be at most %d characters (got %d)", ErrInvalidPage, MaxTitleLength, n)
	}
	if n := utf8.RuneCountInString(d.Description); n > MaxDescriptionLength {
		return fmt.Errorf("%w: description must be at most %d characters (got %d)", ErrInvalidPage, MaxDescriptionLength, n)
	}

	seen := make(map[model.LinkKey]struct{}, len(d.Links))
	for i, l := range d.Links {
		if l.Platform == "" {
			return fmt.Errorf("%w: links[%d]: platform is required", ErrInvalidLink, i)
		}
		if !l.Platform.IsKnown() {
			return fmt.Errorf("%w: links[%d]: unknown platform %q", ErrInvalidLink, i, l.Platform)
		}
		if err := security.ValidateLinkURL(l.URL); err != nil {
			return fmt.Errorf("%w: links[%d]: %v", ErrInvalidLink, i, err)
		}
		key := l.Key()
		if _, dup := seen[key]; dup {
			return &DuplicateLinkError{Key: key}
		}
		seen[key] = struct{}{}
	}
	return nil
}
