package sanitizer

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// dropContent lists elements whose text content is discarded with the tag.
var dropContent = map[string]bool{"script": true, "style": true, "iframe": true, "object": true, "noscript": true}

// allowedSchemes are the link schemes kept on <a href>.
var allowedSchemes = map[string]bool{"http": true, "https": true, "mailto": true}

// sanitizeMarkup re-renders s keeping only allow-listed tags. Text is
// entity escaped, attributes other than a safe <a href> and title are
// dropped, and comments and doctypes are removed.
func sanitizeMarkup(s string, allowed map[string]bool) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()

		case html.TextToken:
			if skip == 0 {
				b.WriteString(html.EscapeString(z.Token().Data))
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if dropContent[tok.Data] {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if skip == 0 && allowed[tok.Data] {
				b.WriteString(renderStart(tok))
			}

		case html.EndTagToken:
			tok := z.Token()
			if dropContent[tok.Data] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip == 0 && allowed[tok.Data] && tok.Data != "br" {
				b.WriteString("</" + tok.Data + ">")
			}
		}
	}
}

func renderStart(tok html.Token) string {
	var b strings.Builder
	b.WriteString("<" + tok.Data)
	for _, a := range tok.Attr {
		switch {
		case a.Key == "title":
		case a.Key == "href" && tok.Data == "a" && safeHref(a.Val):
		default:
			continue
		}
		b.WriteString(" " + a.Key + `="` + html.EscapeString(a.Val) + `"`)
	}
	b.WriteString(">")
	return b.String()
}

func safeHref(v string) bool {
	u, err := url.Parse(strings.TrimSpace(v))
	if err != nil {
		return false
	}
	if u.Scheme == "" {
		return !strings.Contains(v, ":")
	}
	return allowedSchemes[strings.ToLower(u.Scheme)]
}
