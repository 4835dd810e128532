package model

import "strings"

// Platform はリンク先のプラットフォーム種別。
type Platform string

// 既知のプラットフォーム。いずれにも該当しないリンクはPlatformCustomとする。
const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformGitHub    Platform = "github"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformWhatsApp  Platform = "whatsapp"
	PlatformTelegram  Platform = "telegram"
	PlatformCustom    Platform = "custom"
)

// platformLabels は既知プラットフォームの表示名。
var platformLabels = map[Platform]string{
	PlatformFacebook:  "Facebook",
	PlatformInstagram: "Instagram",
	PlatformTwitter:   "Twitter",
	PlatformGitHub:    "GitHub",
	PlatformLinkedIn:  "LinkedIn",
	PlatformYouTube:   "YouTube",
	PlatformTikTok:    "TikTok",
	PlatformWhatsApp:  "WhatsApp",
	PlatformTelegram:  "Telegram",
	PlatformCustom:    "Custom",
}

// Platforms は選択可能なプラットフォームを表示順で返す。
func Platforms() []Platform {
	return []Platform{
		PlatformFacebook, PlatformInstagram, PlatformTwitter, PlatformGitHub,
		PlatformLinkedIn, PlatformYouTube, PlatformTikTok, PlatformWhatsApp,
		PlatformTelegram, PlatformCustom,
	}
}

// IsKnown はプラットフォームが既知の値かを返す。
func (p Platform) IsKnown() bool {
	_, ok := platformLabels[p]
	return ok
}

// Label は表示名を返す。未知の値は "Custom" として表示する。
func (p Platform) Label() string {
	if label, ok := platformLabels[p]; ok {
		return label
	}
	return platformLabels[PlatformCustom]
}

// Icon は公開ページでリンクに添えるアイコン種別。
type Icon string

// IconGlobe はどのサービスにも一致しないURLのアイコン。
const IconGlobe Icon = "globe"

// iconHosts はURLに含まれる文字列とアイコンの対応。先頭から順に照合する。
var iconHosts = []Icon{
	"facebook", "instagram", "snapchat", "pinterest",
	"linkedin", "youtube", "reddit",
}

// IconForURL はURLに含まれるサービス名からアイコンを導出する。
// 一致しない場合はIconGlobeを返す。
func IconForURL(rawURL string) Icon {
	lower := strings.ToLower(rawURL)
	for _, icon := range iconHosts {
		if strings.Contains(lower, string(icon)) {
			return icon
		}
	}
	return IconGlobe
}
