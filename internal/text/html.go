// Package text holds small string helpers shared by the speech and
// directions packages.
package text

import (
	"strings"

	"golang.org/x/net/html"
)

// blockTags start a new phrase when stripped.
var blockTags = map[string]bool{
	"div": true, "p": true, "br": true, "li": true, "tr": true,
}

// StripHTML removes markup from s and collapses whitespace. Entities are
// decoded and block-level tags become a single space so that
// "Turn <b>left</b><div>Destination ahead</div>" reads as two phrases.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockTags[string(name)] {
				b.WriteByte(' ')
			}
		}
	}
}
