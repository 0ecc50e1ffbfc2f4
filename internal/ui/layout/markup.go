package layout

import (
	"html"
	"regexp"

	"charm.land/lipgloss/v2"
)

var (
	breakTag  = regexp.MustCompile(`(?i)<br\s*/?>`)
	boldTag   = regexp.MustCompile(`(?is)<(?:b|strong)>(.*?)</(?:b|strong)>`)
	italicTag = regexp.MustCompile(`(?is)<(?:i|em)>(.*?)</(?:i|em)>`)
	anyTag    = regexp.MustCompile(`<[^>]*>`)
)

// RenderMarkup renders question rich text for the terminal: line breaks
// become newlines, bold and italic are styled, other tags are dropped.
func RenderMarkup(s string) string {
	s = breakTag.ReplaceAllString(s, "\n")
	s = boldTag.ReplaceAllStringFunc(s, func(m string) string {
		inner := boldTag.FindStringSubmatch(m)[1]
		return lipgloss.NewStyle().Bold(true).Render(text(inner))
	})
	s = italicTag.ReplaceAllStringFunc(s, func(m string) string {
		inner := italicTag.FindStringSubmatch(m)[1]
		return lipgloss.NewStyle().Italic(true).Render(text(inner))
	})
	return text(s)
}

// PlainText strips all markup.
func PlainText(s string) string {
	return text(breakTag.ReplaceAllString(s, " "))
}

func text(s string) string {
	return html.UnescapeString(anyTag.ReplaceAllString(s, ""))
}
