// Пакет blog принимает статьи от конвейера n8n, ведёт жизненный цикл черновиков
// и публикует события взаимодействия читателей
package blog

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strings"

	"Portfolio/internal/model"
)

// DefaultAuthor автор статьи, если конвейер его не передал
const DefaultAuthor = "n8n Bot"

const (
	slugMaxLen     = 60
	wordsPerMinute = 200
)

var (
	ErrUnauthorized = errors.New("Unauthorized")
	ErrInvalidBody  = errors.New("Invalid JSON body")
)

// MissingFieldsError не хватает обязательных полей для выбранной формы тела
type MissingFieldsError struct {
	Nested bool
}

func (e *MissingFieldsError) Error() string {
	if e.Nested {
		return "Missing required fields in nested structure: frontmatter.title, body, frontmatter.canonical, frontmatter.source.name"
	}
	return "Missing required fields: title, content, canonicalUrl, source"
}

// ingestBody объединяет плоскую и вложенную (frontmatter + body) формы запроса
type ingestBody struct {
	APIKey       string       `json:"apiKey"`
	Title        string       `json:"title"`
	Content      string       `json:"content"`
	CanonicalURL string       `json:"canonicalUrl"`
	Source       string       `json:"source"`
	Slug         string       `json:"slug"`
	Author       string       `json:"author"`
	Tags         []string     `json:"tags"`
	Quality      *int         `json:"quality"`
	Notes        *string      `json:"notes"`
	AISummary    *string      `json:"aiSummary"`
	AIScore      *float64     `json:"aiScore"`
	Frontmatter  *frontmatter `json:"frontmatter"`
	Body         string       `json:"body"`
}

type frontmatter struct {
	Title     string   `json:"title"`
	Canonical string   `json:"canonical"`
	Source    *struct {
		Name string `json:"name"`
	} `json:"source"`
	Tags    []string `json:"tags"`
	Quality *int     `json:"quality"`
	Notes   *string  `json:"notes"`
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify строит URL-slug из заголовка
func Slugify(title string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimSuffix(s, "-")
	if len(s) > slugMaxLen {
		s = s[:slugMaxLen]
	}
	return s
}

// ReadTime оценка времени чтения в минутах
func ReadTime(content string) int {
	words := len(strings.Fields(content))
	return int(math.Ceil(float64(words) / wordsPerMinute))
}

// ParseIngest проверяет ключ и превращает тело запроса в черновик.
// Ключ берётся из поля apiKey, иначе из заголовка x-api-key; пустой ожидаемый ключ отклоняет всё
func ParseIngest(raw []byte, headerKey, expectedKey string) (model.BlogDraft, error) {
	var body ingestBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return model.BlogDraft{}, ErrInvalidBody
	}

	key := body.APIKey
	if key == "" {
		key = headerKey
	}
	if expectedKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(expectedKey)) != 1 {
		return model.BlogDraft{}, ErrUnauthorized
	}

	var d model.BlogDraft
	nested := body.Frontmatter != nil && body.Body != ""
	if nested {
		fm := body.Frontmatter
		if fm.Title == "" || fm.Canonical == "" || fm.Source == nil || fm.Source.Name == "" {
			return model.BlogDraft{}, &MissingFieldsError{Nested: true}
		}
		d = model.BlogDraft{
			Title:        fm.Title,
			Content:      body.Body,
			CanonicalURL: fm.Canonical,
			Source:       fm.Source.Name,
			Tags:         fm.Tags,
			Quality:      fm.Quality,
			Notes:        fm.Notes,
		}
	} else {
		if body.Title == "" || body.Content == "" || body.CanonicalURL == "" || body.Source == "" {
			return model.BlogDraft{}, &MissingFieldsError{}
		}
		d = model.BlogDraft{
			Title:        body.Title,
			Content:      body.Content,
			CanonicalURL: body.CanonicalURL,
			Source:       body.Source,
			Tags:         body.Tags,
			Quality:      body.Quality,
			Notes:        body.Notes,
		}
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	author := body.Author
	if author == "" {
		author = DefaultAuthor
	}
	d.Author = &author
	d.Slug = body.Slug
	if d.Slug == "" {
		d.Slug = Slugify(d.Title)
	}
	readTime := ReadTime(d.Content)
	d.Metadata = model.DraftMetadata{ReadTime: &readTime, AISummary: body.AISummary, AIScore: body.AIScore}
	d.Status = model.DraftNew
	return d, nil
}

// IngestInfo описание эндпоинта для GET /api/blog/ingest
type IngestInfo struct {
	Status         string   `json:"status"`
	Endpoint       string   `json:"endpoint"`
	Method         string   `json:"method"`
	RequiredFields []string `json:"requiredFields"`
	OptionalFields []string `json:"optionalFields"`
}

// Info возвращает описание эндпоинта приёма статей
func Info() IngestInfo {
	return IngestInfo{
		Status:         "ok",
		Endpoint:       "/api/blog/ingest",
		Method:         "POST",
		RequiredFields: []string{"title", "content", "canonicalUrl", "source", "apiKey"},
		OptionalFields: []string{"author", "tags", "quality", "notes", "slug"},
	}
}
