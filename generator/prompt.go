package generator

import (
	"fmt"
	"os"
	"strings"
)

// TopicPlaceholder marks where the topic goes in a prompt template.
const TopicPlaceholder = "[TOPIC]"

// DefaultProfile is the built-in prompt profile.
const DefaultProfile = "default"

// Prompt is the instruction sent to the LLM.
type Prompt struct {
	System string
	// JSONObject asks the provider for a single JSON object response.
	JSONObject bool
}

// PromptLibrary maps prompt profiles to templates.
type PromptLibrary struct {
	templates map[string]string
}

// NewPromptLibrary returns the built-in profile plus templates read from files (profile -> path).
func NewPromptLibrary(files map[string]string) (*PromptLibrary, error) {
	lib := &PromptLibrary{templates: map[string]string{DefaultProfile: defaultTemplate}}
	for profile, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("prompt profile %q: %w", profile, err)
		}
		tpl := string(raw)
		if !strings.Contains(tpl, TopicPlaceholder) {
			return nil, fmt.Errorf("prompt profile %q: template has no %s placeholder", profile, TopicPlaceholder)
		}
		lib.templates[profile] = tpl
	}
	return lib, nil
}

// Has reports whether profile is known.
func (l *PromptLibrary) Has(profile string) bool {
	_, ok := l.templates[profile]
	return ok
}

// Build substitutes the topic into the profile template. Unknown profiles use the default one.
func (l *PromptLibrary) Build(profile, topic string) Prompt {
	tpl, ok := l.templates[profile]
	if !ok {
		tpl = l.templates[DefaultProfile]
	}
	return Prompt{
		System:     strings.ReplaceAll(tpl, TopicPlaceholder, strings.TrimSpace(topic)),
		JSONObject: true,
	}
}

const defaultTemplate = `Напиши экспертную SEO-оптимизированную статью по теме:
[TOPIC]

Ты пишешь как опытный спортивный журналист и редактор: живо, по делу, без канцелярита и без признаков машинного текста.

1. Объём
Статья на 1000–1500 слов. Если текст выходит короче 1000 слов, расширь смысловые блоки примерами, цифрами и практическими советами.
Без линий-разделителей, эмодзи, пафоса и рекламного тона.

2. SEO
Ключевые слова и LSI-термины вписывай естественно, без переспама.
Meta Title до 70 символов, ключевая фраза ближе к началу.
Meta Description до 160 символов, без вводных формул вроде «Узнайте…» или «Мы расскажем…».
Количество символов в ответе не указывай.

3. Структура
Заголовок H1 передаётся отдельно в поле title.
Короткое введение без подзаголовка.
Разделы с H2, внутри допускаются H3; между H2 и H3 обязателен переходный абзац.
Финальный блок с выводами и практическими рекомендациями, без слова «Заключение».

4. Таблицы и списки
Минимум одна таблица и один список, если они усиливают материал.

5. Содержание
Факты, точные или ориентировочные цифры, реальные примеры, актуальные события и тренды.
Каждый абзац несёт практическую пользу. Никакой воды.
Не обещай заработок на ставках и не пиши как мотиватор.

6. Формат ответа
Верни строго один JSON-объект со следующими полями верхнего уровня:
- "title": заголовок статьи без HTML-тегов;
- "meta_title": SEO Title;
- "meta_description": SEO Description;
- "slug": человекопонятный URL латиницей через дефисы;
- "content_html": полный HTML статьи без <html>, <head>, <body> и СТРОГО без <h1>; допустимы только <h2>, <h3>, <p>, <ul>, <ol>, <li>, <table>, <thead>, <tbody>, <tr>, <td>;
- "image_prompt": подробное описание обложки 16:9 без текста на изображении.

Никакого текста вне JSON.
`
