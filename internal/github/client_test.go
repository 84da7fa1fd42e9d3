package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"Portfolio/internal/model"
)

const reposJSON = `[
 {"id": 1, "name": "Portfolio.Site", "full_name": "ann/Portfolio.Site", "description": null,
  "html_url": "https://github.com/ann/Portfolio.Site", "stargazers_count": 4, "language": "Go",
  "topics": ["go", "web"], "created_at": "2024-01-02T03:04:05Z", "updated_at": "2024-02-02T03:04:05Z",
  "pushed_at": "2024-03-02T03:04:05Z", "private": false, "fork": false, "archived": false, "homepage": ""},
 {"id": 2, "name": "secret", "private": true, "created_at": "2024-01-02T03:04:05Z", "updated_at": "2024-01-02T03:04:05Z", "pushed_at": "2024-01-02T03:04:05Z"},
 {"id": 3, "name": "forked", "fork": true, "created_at": "2024-01-02T03:04:05Z", "updated_at": "2024-01-02T03:04:05Z", "pushed_at": "2024-01-02T03:04:05Z"},
 {"id": 4, "name": "old", "archived": true, "created_at": "2024-01-02T03:04:05Z", "updated_at": "2024-01-02T03:04:05Z", "pushed_at": "2024-01-02T03:04:05Z"}
]`

func TestListRepos_FiltersAndNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/ann/repos", r.URL.Path)
		require.Equal(t, "100", r.URL.Query().Get("per_page"))
		require.Equal(t, "token secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reposJSON))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "secret", "ann")
	resp, err := c.ListRepos(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "ann", resp.Username)
	require.Equal(t, 1, resp.Total)
	repo := resp.Repos[0]
	require.Equal(t, "1", repo.ID)
	require.Equal(t, "", repo.Description)
	require.Equal(t, "Go", *repo.Language)
	require.Nil(t, repo.Homepage)
	require.Equal(t, []string{"go", "web"}, repo.Topics)
	require.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli(), repo.CreatedAt)
}

func TestListRepos_Errors(t *testing.T) {
	c := NewClient(nil, "http://unused", "", "ann")
	_, err := c.ListRepos(context.Background(), "ann")
	require.ErrorIs(t, err, ErrNoToken)
	require.Equal(t, http.StatusInternalServerError, StatusOf(err))

	c = NewClient(nil, "http://unused", "tok", "")
	_, err = c.ListRepos(context.Background(), "  ")
	require.Equal(t, http.StatusBadRequest, StatusOf(err))

	cases := []struct {
		upstream int
		want     int
		msg      string
	}{
		{http.StatusNotFound, http.StatusNotFound, `User "ghost" not found on GitHub`},
		{http.StatusForbidden, http.StatusUnauthorized, "GitHub authentication failed. Check your GITHUB_TOKEN."},
		{http.StatusUnauthorized, http.StatusUnauthorized, "GitHub authentication failed. Check your GITHUB_TOKEN."},
		{http.StatusBadGateway, http.StatusBadGateway, "upstream down"},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.upstream)
			_, _ = w.Write([]byte(`{"message":"upstream down"}`))
		}))
		c := NewClient(srv.Client(), srv.URL, "tok", "")
		_, err := c.ListRepos(context.Background(), "ghost")
		require.Equal(t, tc.want, StatusOf(err))
		require.EqualError(t, err, tc.msg)
		srv.Close()
	}
}

func TestDeriveProjectID(t *testing.T) {
	require.Equal(t, "ann-portfolio-site", DeriveProjectID("ann", "Portfolio.Site"))
	require.Equal(t, "ann-my-app-2", DeriveProjectID("ann", "My App_2"))
}

func TestProjectFromRepo(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	home := "https://demo.dev"
	p := ProjectFromRepo(Repo{Name: "Tool", FullName: "ann/Tool", URL: "https://github.com/ann/Tool", Stars: 2, Homepage: &home}, "ann", now)

	require.Equal(t, "ann-tool", p.ID)
	require.Equal(t, "Repository: ann/Tool", p.Description)
	require.Equal(t, "2025", p.Year)
	require.Equal(t, model.TypeRepository, p.Type)
	require.True(t, p.Visible)
	require.False(t, p.Featured)
	require.Equal(t, model.DefaultOrder, *p.Order)
	require.Equal(t, model.AccessPublic, p.RepoAccess)
	require.Equal(t, home, *p.DemoURL)
	require.Equal(t, []string{}, p.Tags)
}
