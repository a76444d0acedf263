package generator

import (
	"fmt"
	"regexp"
)

var (
	leadingH1 = regexp.MustCompile(`(?is)^\s*<h1[^<>]*>.*?</h1>\s*`)
	openH1    = regexp.MustCompile(`(?i)<h1([^<>]*)>`)
	closeH1   = regexp.MustCompile(`(?i)</h1>`)
)

// NormalizeContentHTML drops a leading <h1> block (the post title is sent separately)
// and downgrades any other <h1> to <h2>, keeping its attributes.
func NormalizeContentHTML(html string) string {
	html = leadingH1.ReplaceAllString(html, "")
	html = openH1.ReplaceAllString(html, "<h2${1}>")
	return closeH1.ReplaceAllString(html, "</h2>")
}

// NormalizeAny coerces v to text before normalizing it.
func NormalizeAny(v any) string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	return NormalizeContentHTML(s)
}
