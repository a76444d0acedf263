package generator

import (
	"context"
	"encoding/json"
	"strings"
)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
// It answers with a fixed article in the JSON contract of the prompt.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	topic := firstLine(prompt.System)

	var sb strings.Builder
	sb.WriteString("<p>Черновик сгенерирован без обращения к модели.</p>\n")
	sb.WriteString("<h2>Тема</h2>\n<p>")
	sb.WriteString(topic)
	sb.WriteString("</p>\n<ul><li>пункт один</li><li>пункт два</li></ul>\n")

	out, err := json.Marshal(Article{
		Title:           topic,
		MetaTitle:       topic,
		MetaDescription: "Локальный черновик: " + topic,
		Slug:            "mock",
		ContentHTML:     sb.String(),
		ImagePrompt:     "abstract sports illustration, no text",
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// firstLine returns the topic line that follows the template's opening line.
func firstLine(system string) string {
	lines := strings.Split(strings.TrimSpace(system), "\n")
	if len(lines) >= 2 && strings.TrimSpace(lines[1]) != "" {
		return strings.TrimSpace(lines[1])
	}
	return strings.TrimSpace(lines[0])
}
