package security

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidLinkURL はリンクURLが絶対URLとして解釈できないことを示す。
var ErrInvalidLinkURL = errors.New("invalid link URL")

// ValidateLinkURL はリンクのURLが構文的に正しい絶対URLかを検証する。
// スキームに加えてホストまたはopaque部（mailto:やtel:）を必須とする。
// 接続先の安全性は検証しない。
func ValidateLinkURL(rawURL string) error {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", ErrInvalidLinkURL)
	}
	if trimmed != rawURL || strings.ContainsAny(rawURL, " \t\r\n") {
		return fmt.Errorf("%w: contains whitespace", ErrInvalidLinkURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLinkURL, err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("%w: not absolute: %s", ErrInvalidLinkURL, rawURL)
	}
	if u.Host == "" && u.Opaque == "" {
		return fmt.Errorf("%w: no host: %s", ErrInvalidLinkURL, rawURL)
	}
	if u.Host != "" && u.Hostname() == "" {
		return fmt.Errorf("%w: no host: %s", ErrInvalidLinkURL, rawURL)
	}
	return nil
}
