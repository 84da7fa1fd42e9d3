// Пакет github получает публичные репозитории пользователя через GitHub REST API
// и превращает их в проекты портфолио
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"Portfolio/internal/model"
)

// Error ошибка запроса с HTTP-статусом, который отдаётся клиенту как есть
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	// ErrNoToken токен GitHub не настроен
	ErrNoToken = &Error{Status: http.StatusInternalServerError, Message: "GITHUB_TOKEN not configured. Please add it to .env.local"}
	// ErrNoUsername имя пользователя не передано и не задано по умолчанию
	ErrNoUsername = &Error{Status: http.StatusBadRequest, Message: "GitHub username not provided. Add GITHUB_USERNAME to .env.local or pass ?username=yourusername"}
)

// Repo нормализованное представление репозитория
type Repo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	FullName    string   `json:"fullName"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Stars       int      `json:"stars"`
	Language    *string  `json:"language,omitempty"`
	Topics      []string `json:"topics"`
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   int64    `json:"updatedAt"`
	PushedAt    int64    `json:"pushedAt"`
	Homepage    *string  `json:"homepage,omitempty"`
}

// ReposResponse тело ответа GET /api/github/repos
type ReposResponse struct {
	Repos    []Repo `json:"repos"`
	Total    int    `json:"total"`
	Username string `json:"username"`
}

// apiRepo поля ответа GitHub, которые нам нужны
type apiRepo struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	Description *string   `json:"description"`
	HTMLURL     string    `json:"html_url"`
	Stars       int       `json:"stargazers_count"`
	Language    *string   `json:"language"`
	Topics      []string  `json:"topics"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	PushedAt    time.Time `json:"pushed_at"`
	Private     bool      `json:"private"`
	Fork        bool      `json:"fork"`
	Archived    bool      `json:"archived"`
	Homepage    *string   `json:"homepage"`
}

type Client struct {
	http            *http.Client
	baseURL         string
	token           string
	defaultUsername string
}

// NewClient создаёт клиент; baseURL обычно https://api.github.com
func NewClient(httpClient *http.Client, baseURL, token, defaultUsername string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		http:            httpClient,
		baseURL:         strings.TrimRight(baseURL, "/"),
		token:           token,
		defaultUsername: defaultUsername,
	}
}

// ResolveUsername возвращает username или имя по умолчанию
func (c *Client) ResolveUsername(username string) string {
	if u := strings.TrimSpace(username); u != "" {
		return u
	}
	return c.defaultUsername
}

// ListRepos возвращает публичные, не форкнутые и не архивные репозитории пользователя
func (c *Client) ListRepos(ctx context.Context, username string) (*ReposResponse, error) {
	if c.token == "" {
		return nil, ErrNoToken
	}
	username = c.ResolveUsername(username)
	if username == "" {
		return nil, ErrNoUsername
	}

	endpoint := fmt.Sprintf("%s/users/%s/repos?per_page=100&sort=updated&type=all", c.baseURL, url.PathEscape(username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build github request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "portfolio-sync")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &Error{Status: http.StatusNotFound, Message: fmt.Sprintf("User %q not found on GitHub", username)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Error{Status: http.StatusUnauthorized, Message: "GitHub authentication failed. Check your GITHUB_TOKEN."}
	case resp.StatusCode >= 300:
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Message == "" {
			body.Message = "Failed to fetch repositories"
		}
		return nil, &Error{Status: resp.StatusCode, Message: body.Message}
	}

	var raw []apiRepo
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode github response: %w", err)
	}
	repos := make([]Repo, 0, len(raw))
	for _, r := range raw {
		if r.Private || r.Fork || r.Archived {
			continue
		}
		repos = append(repos, normalize(r))
	}
	return &ReposResponse{Repos: repos, Total: len(repos), Username: username}, nil
}

func normalize(r apiRepo) Repo {
	out := Repo{
		ID:        strconv.FormatInt(r.ID, 10),
		Name:      r.Name,
		FullName:  r.FullName,
		URL:       r.HTMLURL,
		Stars:     r.Stars,
		Language:  nonEmpty(r.Language),
		Topics:    r.Topics,
		CreatedAt: r.CreatedAt.UnixMilli(),
		UpdatedAt: r.UpdatedAt.UnixMilli(),
		PushedAt:  r.PushedAt.UnixMilli(),
		Homepage:  nonEmpty(r.Homepage),
	}
	if r.Description != nil {
		out.Description = *r.Description
	}
	if out.Topics == nil {
		out.Topics = []string{}
	}
	return out
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

var nonIDChars = regexp.MustCompile(`[^a-z0-9]`)

// DeriveProjectID строит идентификатор проекта из имени пользователя и репозитория
func DeriveProjectID(username, repoName string) string {
	return username + "-" + nonIDChars.ReplaceAllString(strings.ToLower(repoName), "-")
}

// ProjectFromRepo собирает проект для вставки при синхронизации
func ProjectFromRepo(r Repo, username string, now time.Time) model.Project {
	order := model.DefaultOrder
	description := r.Description
	if description == "" {
		description = "Repository: " + r.FullName
	}
	tags := r.Topics
	if tags == nil {
		tags = []string{}
	}
	stars := r.Stars
	githubURL := r.URL
	return model.Project{
		ID:          DeriveProjectID(username, r.Name),
		Title:       r.Name,
		Description: description,
		Tags:        tags,
		Year:        strconv.Itoa(now.Year()),
		Type:        model.TypeRepository,
		Status:      model.StatusActive,
		Visible:     true,
		Featured:    false,
		Order:       &order,
		GithubURL:   &githubURL,
		RepoAccess:  model.AccessPublic,
		Stars:       &stars,
		Language:    r.Language,
		DemoURL:     r.Homepage,
		CreatedAt:   now.UnixMilli(),
		UpdatedAt:   now.UnixMilli(),
	}
}

// StatusOf возвращает HTTP-статус ошибки клиента или 500
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}
