package generator

import (
	"regexp"
	"strings"
)

// Slug limits used by the publisher.
const (
	DefaultSlugLength = 60
	DefaultSlugWords  = 5
	FallbackSlug      = "statya"
)

var (
	slugDisallowed = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces     = regexp.MustCompile(`\s+`)
	slugHyphens    = regexp.MustCompile(`-+`)
)

var cyrillicToLatin = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l",
	'м': "m", 'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s",
	'т': "t", 'у': "u", 'ф': "f", 'х': "h", 'ц': "c", 'ч': "ch",
	'ш': "sh", 'щ': "sch", 'ъ': "", 'ы': "y", 'ь': "",
	'э': "e", 'ю': "yu", 'я': "ya",
}

// Slug derives the post slug from a topic with the default limits.
func Slug(topic string) string {
	return MakeSlug(topic, DefaultSlugLength, DefaultSlugWords)
}

// MakeSlug builds a short URL-safe identifier from the key part of a topic:
// the text before the first dash, colon or pipe, limited to maxWords words,
// transliterated to Latin and cut to maxLength bytes. It never returns "".
func MakeSlug(topic string, maxLength, maxWords int) string {
	if maxLength <= 0 {
		maxLength = DefaultSlugLength
	}
	if maxWords <= 0 {
		maxWords = DefaultSlugWords
	}

	topic = strings.TrimSpace(strings.ToLower(topic))
	if topic == "" {
		return FallbackSlug
	}

	base := topic
	if i := strings.IndexAny(topic, "-–—:|"); i >= 0 {
		base = topic[:i]
	}
	words := strings.Fields(base)
	if len(words) == 0 {
		words = strings.Fields(topic)
	}
	if len(words) > maxWords {
		words = words[:maxWords]
	}

	var b strings.Builder
	for _, r := range strings.Join(words, " ") {
		if latin, ok := cyrillicToLatin[r]; ok {
			b.WriteString(latin)
			continue
		}
		b.WriteRune(r)
	}

	slug := slugDisallowed.ReplaceAllString(b.String(), "")
	slug = slugSpaces.ReplaceAllString(slug, "-")
	slug = slugHyphens.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if len(slug) > maxLength {
		slug = strings.TrimRight(slug[:maxLength], "-")
	}
	if slug == "" {
		return FallbackSlug
	}
	return slug
}
