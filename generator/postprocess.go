package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
)

var requiredFields = []string{
	"title",
	"meta_title",
	"meta_description",
	"slug",
	"content_html",
	"image_prompt",
}

var (
	codeFence = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
	htmlTag   = regexp.MustCompile(`(?i)<[a-z][a-z0-9]*[\s/>]`)
)

// ParseArticle decodes a model response, checks the required keys and normalizes the body.
func ParseArticle(raw string) (Article, error) {
	body := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(body); m != nil {
		body = m[1]
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return Article{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	var missing []string
	for _, key := range requiredFields {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Article{}, &MissingFieldsError{Fields: missing}
	}

	content, err := ensureHTML(fieldText(fields["content_html"]))
	if err != nil {
		return Article{}, err
	}

	return Article{
		Title:           fieldText(fields["title"]),
		MetaTitle:       fieldText(fields["meta_title"]),
		MetaDescription: fieldText(fields["meta_description"]),
		Slug:            fieldText(fields["slug"]),
		ContentHTML:     NormalizeContentHTML(content),
		ImagePrompt:     fieldText(fields["image_prompt"]),
	}, nil
}

// fieldText returns a JSON string value, or the raw JSON text for other types.
func fieldText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

// ensureHTML converts a markdown body to HTML; bodies that already carry tags pass through.
func ensureHTML(body string) (string, error) {
	if strings.TrimSpace(body) == "" || htmlTag.MatchString(body) {
		return body, nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("convert markdown body: %w", err)
	}
	return buf.String(), nil
}
