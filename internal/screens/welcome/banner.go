package welcome

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/hangeul/internal/ui/theme"
)

// jamo are the letters that build 한글, in stroke order.
var jamo = []string{"ㅎ", "ㅏ", "ㄴ", "ㄱ", "ㅡ", "ㄹ"}

const bannerCompact = "한 글"

const bannerWide = "한    글"

// RenderJamo shows the first n letters of the banner spelled out.
func RenderJamo(n int) string {
	n = min(max(n, 0), len(jamo))
	style := lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true)
	return style.Render(strings.Join(jamo[:n], " "))
}

// RenderBanner returns the assembled 한글 banner in a bordered box. Uses a
// compact fallback for narrow terminals.
func RenderBanner(width int) string {
	text := bannerWide
	if width < 40 {
		text = bannerCompact
	}
	return lipgloss.NewStyle().
		Foreground(theme.Accent).
		Bold(true).
		Border(lipgloss.DoubleBorder()).
		BorderForeground(theme.Primary).
		Padding(1, 4).
		Render(text)
}
