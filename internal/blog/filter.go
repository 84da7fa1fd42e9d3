package blog

import (
	"net/url"
	"sort"
	"strings"

	"Portfolio/internal/model"
)

// Filter параметры фильтрации публичной ленты; пустые поля не ограничивают выборку
type Filter struct {
	Query  string
	Tag    string
	Source string
}

// SourceName для URL возвращает домен без www, иначе строку как есть
func SourceName(source string) string {
	if !strings.Contains(source, "http://") && !strings.Contains(source, "https://") {
		return source
	}
	u, err := url.Parse(source)
	if err != nil || u.Hostname() == "" {
		return source
	}
	return strings.Replace(u.Hostname(), "www.", "", 1)
}

// FilterPosts применяет поиск по заголовку, AI-резюме и тегам, затем точный тег и источник без учёта регистра
func FilterPosts(posts []model.BlogDraft, f Filter) []model.BlogDraft {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]model.BlogDraft, 0, len(posts))
	for _, p := range posts {
		if query != "" && !matchesQuery(p, query) {
			continue
		}
		if f.Tag != "" && !hasTag(p, f.Tag) {
			continue
		}
		if f.Source != "" && !strings.EqualFold(SourceName(p.Source), f.Source) && !strings.EqualFold(p.Source, f.Source) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matchesQuery(p model.BlogDraft, query string) bool {
	if strings.Contains(strings.ToLower(p.Title), query) {
		return true
	}
	if s := p.Metadata.AISummary; s != nil && strings.Contains(strings.ToLower(*s), query) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), query) {
			return true
		}
	}
	return false
}

func hasTag(p model.BlogDraft, tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Tags уникальные теги постов по алфавиту
func Tags(posts []model.BlogDraft) []string {
	seen := make(map[string]struct{})
	for _, p := range posts {
		for _, t := range p.Tags {
			seen[t] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// Sources уникальные имена источников по алфавиту
func Sources(posts []model.BlogDraft) []string {
	seen := make(map[string]struct{})
	for _, p := range posts {
		seen[SourceName(p.Source)] = struct{}{}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
