package adapter

import (
	"encoding/json"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
)

// blockElements get a space on each side so adjacent blocks don't run
// together. Inline elements (em, a, span...) join their neighbours as-is.
var blockElements = map[string]bool{
	"address": true, "article": true, "blockquote": true, "br": true, "dd": true,
	"div": true, "dl": true, "dt": true, "footer": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "ol": true, "p": true, "pre": true, "section": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}

// extractText converts an HTML or HTML-encoded string to plain text.
// It first unescapes HTML entities (handles Greenhouse's double-encoding;
// no-op on already-real HTML), lets goquery parse the markup, then collapses whitespace.
func extractText(content string) string {
	if content == "" {
		return ""
	}
	unescaped := html.UnescapeString(content)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(unescaped))
	if err != nil {
		return cleanText(unescaped)
	}
	doc.Find("script, style").Remove()

	var b strings.Builder
	for _, n := range doc.Nodes {
		writeText(&b, n)
	}
	return cleanText(b.String())
}

func writeText(b *strings.Builder, n *xhtml.Node) {
	switch n.Type {
	case xhtml.TextNode:
		b.WriteString(n.Data)
		return
	case xhtml.ElementNode:
		if blockElements[n.Data] {
			b.WriteByte(' ')
			defer b.WriteByte(' ')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most limit runes. A non-positive limit disables truncation.
func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// qualifyID builds the source-qualified job ID used as the storage key.
func qualifyID(source, providerID string) string {
	return source + ":" + providerID
}

// contractSignals maps lower-cased text markers to a normalized contract type,
// checked in order so the most specific marker wins.
var contractSignals = []struct {
	marker string
	label  string
}{
	{"c2c", "C2C"},
	{"corp-to-corp", "C2C"},
	{"corp to corp", "C2C"},
	{"w2", "W2"},
	{"1099", "1099"},
	{"contract", "Contract"},
	{"internship", "Internship"},
	{"part-time", "Part-time"},
	{"part time", "Part-time"},
	{"full-time", "Full-time"},
	{"full time", "Full-time"},
}

// contractType normalizes provider-supplied employment data, falling back to
// markers found in the free text. Returns nil when nothing is recognizable.
func contractType(provided string, text ...string) *string {
	if p := cleanText(provided); p != "" {
		if label := matchContract(strings.ToLower(p)); label != "" {
			return &label
		}
		return &p
	}
	blob := strings.ToLower(strings.Join(text, " "))
	if label := matchContract(blob); label != "" {
		return &label
	}
	return nil
}

func matchContract(lower string) string {
	for _, s := range contractSignals {
		if strings.Contains(lower, s.marker) {
			return s.label
		}
	}
	return ""
}

// decodeItems decodes each raw element separately so one malformed item does
// not discard the whole response. It returns the number of skipped items.
func decodeItems[T any](raw []json.RawMessage) ([]T, int) {
	out := make([]T, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			skipped++
			continue
		}
		out = append(out, item)
	}
	return out, skipped
}
