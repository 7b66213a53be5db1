package telegram

import (
	"html"
	"regexp"
	"strings"

	"duyurubot/internal/delivery"

	"github.com/microcosm-cc/bluemonday"
)

const separator = "━━━━━━━━━━━━━━━━━━━━"

var (
	excerptPolicy = bluemonday.StrictPolicy()
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// formatMessage renders an announcement as Telegram HTML.
func formatMessage(site string, item delivery.Item, kind delivery.Kind, excerptChars int) string {
	emoji, header := "🔔", "Yeni Duyuru"
	if kind == delivery.KindUpdate {
		emoji, header = "🔄", "Duyuru Güncellendi"
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = "Başlık yok"
	}

	var b strings.Builder
	b.WriteString(emoji + " <b>" + header + " - " + html.EscapeString(site) + "</b>\n")
	b.WriteString(separator + "\n\n")
	b.WriteString("<b>" + html.EscapeString(title) + "</b>\n\n")
	if d := strings.TrimSpace(item.Date); d != "" {
		b.WriteString("📅 <i>" + html.EscapeString(d) + "</i>\n\n")
	}
	if ex := excerpt(item.Content, excerptChars); ex != "" {
		b.WriteString(ex + "\n\n")
	}
	if u := strings.TrimSpace(item.URL); u != "" {
		b.WriteString("🔗 <a href='" + html.EscapeString(u) + "'>Duyuruyu Aç</a>\n")
	}
	b.WriteString("\n" + separator)
	return b.String()
}

// excerpt returns at most n runes of content as HTML-safe text. n <= 0 disables it.
func excerpt(content string, n int) string {
	content = strings.TrimSpace(content)
	if n <= 0 || content == "" {
		return ""
	}
	content = blankRuns.ReplaceAllString(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n")
	rs := []rune(content)
	cut := len(rs) > n
	if cut {
		content = strings.TrimSpace(string(rs[:n]))
	}
	out := excerptPolicy.Sanitize(content)
	if cut {
		out += "…"
	}
	return out
}
