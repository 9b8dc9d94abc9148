package sections

import (
	"strings"

	"golang.org/x/net/html"
)

// StripMarkup removes inline HTML from a vendor title and unescapes entities.
// Vendor titles occasionally carry <code> spans or &amp; sequences.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.TextToken:
			sb.Write(z.Text())
		}
	}
}
