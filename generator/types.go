package generator

import (
	"errors"
	"fmt"
	"strings"
)

// Article is the structured model output, ready to be posted.
type Article struct {
	Title           string `json:"title"`
	MetaTitle       string `json:"meta_title"`
	MetaDescription string `json:"meta_description"`
	Slug            string `json:"slug"`
	ContentHTML     string `json:"content_html"`
	ImagePrompt     string `json:"image_prompt"`
}

// WordCount counts whitespace-delimited tokens of the HTML body.
func (a Article) WordCount() int {
	return CountWords(a.ContentHTML)
}

// CountWords counts whitespace-delimited tokens.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// Attempt records one remote call of the retry loop.
type Attempt struct {
	Number    int
	Raw       string
	Article   *Article
	WordCount int
	Err       error
}

// Valid reports whether the attempt produced a complete article.
func (a Attempt) Valid() bool {
	return a.Err == nil && a.Article != nil
}

// ErrGeneration matches every *GenerationError.
var ErrGeneration = errors.New("article generation failed")

// ErrInvalidJSON is returned when the model response is not a JSON object.
var ErrInvalidJSON = errors.New("model returned invalid json")

// MissingFieldsError lists required keys absent from the model response.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "model response missing fields: " + strings.Join(e.Fields, ", ")
}

// GenerationError is returned when no attempt produced a usable article.
type GenerationError struct {
	Topic    string
	Attempts int
	LastRaw  string
	LastErr  error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("no valid article for topic %q after %d attempts", e.Topic, e.Attempts)
	if e.LastErr != nil {
		msg += ": " + e.LastErr.Error()
	}
	return msg
}

func (e *GenerationError) Is(target error) bool {
	return target == ErrGeneration
}

func (e *GenerationError) Unwrap() error {
	return e.LastErr
}
