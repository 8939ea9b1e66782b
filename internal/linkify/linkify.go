// Package linkify turns plain post text into markup with clickable links.
package linkify

import (
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"

	"mvdan.cc/xurls/v2"
)

var (
	// Relaxed matches bare domains too and checks them against the full TLD list.
	reURL    = xurls.Relaxed()
	reEmail  = reURL.SubexpIndex("relaxedEmail")
	reScheme = regexp.MustCompile(`^` + xurls.AnyScheme)
	// same prefix the display form drops: "scheme://" or a bare "//"
	reDisplayPrefix = regexp.MustCompile(`^(\w+:)?//`)
)

// Match is the first URL found in a single token.
type Match struct {
	Start   int    // byte offset of the span in the token
	End     int
	Raw     string // matched span as written
	URL     string // link target, scheme included
	Display string // URL without its leading "scheme://"
}

// Find reports the first URL inside token. Leading or trailing punctuation
// that is not part of the URL is left out of the match.
func Find(token string) (Match, bool) {
	loc := reURL.FindStringSubmatchIndex(token)
	if loc == nil {
		return Match{}, false
	}
	raw := token[loc[0]:loc[1]]
	target := raw
	switch {
	case reScheme.MatchString(raw):
	case reEmail >= 0 && loc[2*reEmail] >= 0:
		target = "mailto:" + raw
	default:
		target = "http://" + raw
	}
	return Match{
		Start:   loc[0],
		End:     loc[1],
		Raw:     raw,
		URL:     target,
		Display: reDisplayPrefix.ReplaceAllString(target, ""),
	}, true
}

// Anchor renders a match as a link element. Both the target and the visible
// text are escaped.
func Anchor(m Match) string {
	return fmt.Sprintf(`<a href="%s" class="break-words text-link" target="_blank" rel="noopener noreferrer">%s</a>`,
		html.EscapeString(m.URL), html.EscapeString(m.Display))
}

// Linkify splits content on single spaces and replaces the URL inside each
// token with an anchor. Everything else, including text around a URL in the
// same token, is copied unchanged and is not escaped:
// content is trusted, the result goes straight into the page. Every emitted
// token carries one trailing space, so runs of spaces survive as runs of
// single spaces while tabs and newlines stay attached to their tokens.
func Linkify(content string) template.HTML {
	if content == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(content) + 1)
	for _, word := range strings.Split(content, " ") {
		if m, ok := Find(word); ok {
			b.WriteString(word[:m.Start])
			b.WriteString(Anchor(m))
			b.WriteString(word[m.End:])
		} else {
			b.WriteString(word)
		}
		b.WriteByte(' ')
	}
	return template.HTML(b.String())
}
