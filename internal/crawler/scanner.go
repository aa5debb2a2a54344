package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ArtifactScanner extracts the artifact link from detail-page markup. The
// parsing strategy is an implementation detail behind this contract: given
// page bytes, return the first matching artifact URL or none.
type ArtifactScanner interface {
	Scan(page []byte) (string, bool)
}

// anchorScanner walks the markup in document order looking for an anchor
// whose visible label equals the configured marker exactly (case-sensitive).
// If no labelled anchor exists, the first anchor whose href contains the
// gateway host marker is taken instead, matching what the detail pages have
// historically rendered.
type anchorScanner struct {
	label  string
	marker string
}

// NewAnchorScanner builds the default scanner. label is the anchor text to
// match ("Artifacts"); marker is the gateway host substring used as fallback.
func NewAnchorScanner(label, marker string) ArtifactScanner {
	return &anchorScanner{label: label, marker: marker}
}

func (s *anchorScanner) Scan(page []byte) (string, bool) {
	var markerMatch string

	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// end of document (or broken markup, which we treat the same)
			if markerMatch != "" {
				return markerMatch, true
			}
			return "", false

		case html.StartTagToken:
			tok := z.Token()
			if tok.Data != "a" {
				continue
			}

			href := attrValue(tok, "href")
			if href == "" {
				continue
			}

			text := anchorText(z)
			if text == s.label && isAbsoluteURL(href) {
				return href, true
			}
			if markerMatch == "" && s.marker != "" && strings.Contains(href, s.marker) && isAbsoluteURL(href) {
				markerMatch = href
			}
		}
	}
}

// anchorText consumes tokens up to the matching </a> and returns the trimmed
// concatenation of the text nodes inside it.
func anchorText(z *html.Tokenizer) string {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		switch z.Next() {
		case html.ErrorToken:
			depth = 0
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken:
			if tok := z.Token(); tok.Data == "a" {
				depth++
			}
		case html.EndTagToken:
			if tok := z.Token(); tok.Data == "a" {
				depth--
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

func attrValue(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.IsAbs() && u.Host != ""
}
