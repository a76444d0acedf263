package generator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArticle(t *testing.T) {
	raw := `{"title":"T","meta_title":"MT","meta_description":"MD","slug":"s",
		"content_html":"<h1>T</h1><p>one two</p><h1>x</h1>","image_prompt":"IP"}`

	a, err := ParseArticle(raw)
	require.NoError(t, err)
	assert.Equal(t, "T", a.Title)
	assert.Equal(t, "MT", a.MetaTitle)
	assert.Equal(t, "MD", a.MetaDescription)
	assert.Equal(t, "IP", a.ImagePrompt)
	assert.Equal(t, "<p>one two</p><h2>x</h2>", a.ContentHTML)
}

func TestParseArticle_MissingFields(t *testing.T) {
	_, err := ParseArticle(`{"title":"T","content_html":"<p>x</p>"}`)
	var missing *MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"meta_title", "meta_description", "slug", "image_prompt"}, missing.Fields)
}

func TestParseArticle_InvalidJSON(t *testing.T) {
	for _, raw := range []string{"", "nope", `["a"]`, `{"title":`} {
		_, err := ParseArticle(raw)
		assert.ErrorIs(t, err, ErrInvalidJSON, raw)
	}
}

func TestParseArticle_CodeFenceAndCoercion(t *testing.T) {
	raw := "```json\n" + `{"title":"T","meta_title":null,"meta_description":"MD","slug":7,
		"content_html":"<p>a b c</p>","image_prompt":"IP"}` + "\n```"

	a, err := ParseArticle(raw)
	require.NoError(t, err)
	assert.Equal(t, "", a.MetaTitle)
	assert.Equal(t, "7", a.Slug)
	assert.Equal(t, 3, a.WordCount())
}

func TestParseArticle_MarkdownBodyConverted(t *testing.T) {
	raw := `{"title":"T","meta_title":"MT","meta_description":"MD","slug":"s",
		"content_html":"# Title\n\nFirst paragraph.\n\n# Section\n\n- item","image_prompt":"IP"}`

	a, err := ParseArticle(raw)
	require.NoError(t, err)
	assert.NotContains(t, a.ContentHTML, "Title")
	assert.Contains(t, a.ContentHTML, "<h2>Section</h2>")
	assert.Contains(t, a.ContentHTML, "<li>item</li>")
}

func TestPromptLibrary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "casino.txt")
	require.NoError(t, os.WriteFile(path, []byte("Casino article about "+TopicPlaceholder+" in JSON"), 0o600))

	lib, err := NewPromptLibrary(map[string]string{"casino": path})
	require.NoError(t, err)
	assert.True(t, lib.Has("casino"))
	assert.True(t, lib.Has(DefaultProfile))

	p := lib.Build("casino", "  slots  ")
	assert.Equal(t, "Casino article about slots in JSON", p.System)
	assert.True(t, p.JSONObject)

	fallback := lib.Build("unknown", "topic")
	assert.True(t, strings.Contains(fallback.System, "topic"))
	assert.Contains(t, fallback.System, "content_html")
}

func TestPromptLibrary_RejectsTemplateWithoutPlaceholder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte("no placeholder"), 0o600))

	_, err := NewPromptLibrary(map[string]string{"bad": path})
	assert.Error(t, err)
}

func TestMockLLM_ProducesValidArticle(t *testing.T) {
	lib, err := NewPromptLibrary(nil)
	require.NoError(t, err)

	raw, err := MockLLM{}.Complete(context.Background(), lib.Build(DefaultProfile, "Ставки на теннис"))
	require.NoError(t, err)

	a, err := ParseArticle(raw)
	require.NoError(t, err)
	assert.Equal(t, "Ставки на теннис", a.Title)
}
