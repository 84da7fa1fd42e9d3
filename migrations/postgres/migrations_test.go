// Пакет postgres_test содержит интеграционные тесты для проверки корректного выполнения SQL миграций PostgreSQL
package postgres_test

import (
	"database/sql"
	"os"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRow(
		`SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name=$1)`, name,
	).Scan(&exists)
	require.NoError(t, err, "ошибка при проверке существования таблицы %s", name)
	return exists
}

// TestPostgresMigrations проверяет, что все миграции выполняются корректно и оставляют базу в ожидаемом состоянии
func TestPostgresMigrations(t *testing.T) {
	// пропускаем тест, если не задана переменная окружения для тестовой БД
	dsn := os.Getenv("MIGRATION_TEST_DSN")
	if dsn == "" {
		t.Skip("MIGRATION_TEST_DSN env var not set; skipping Postgres migration tests")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err, "ошибка при открытии соединения с базой данных")
	defer func() {
		require.NoError(t, db.Close(), "ошибка при закрытии соединения с базой данных")
	}()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	require.NoError(t, err, "failed to create migrate driver")
	m, err := migrate.NewWithDatabaseInstance("file://.", "postgres", driver)
	require.NoError(t, err, "failed to create migrate instance")
	// Откат предыдущих миграций, чтобы обеспечить чистое состояние
	if err := m.Down(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("failed to rollback migrations: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	// ------------------------- Проверки структуры базы данных -------------------------

	for _, table := range []string{"users", "projects", "repo_access_requests", "blog_drafts", "contacts", "guestbook"} {
		require.True(t, tableExists(t, db, table), "таблица %s должна существовать после миграций", table)
	}

	// ------------------------- Проверки ограничений -------------------------

	// внешний id проекта уникален, первичный ключ это внутренний _id
	_, err = db.Exec(`INSERT INTO projects (id, title, created_at) VALUES ('project-1', 'First', 1)`)
	require.NoError(t, err, "ошибка при вставке проекта")
	_, err = db.Exec(`INSERT INTO projects (id, title, created_at) VALUES ('project-1', 'Copy', 2)`)
	require.Error(t, err, "повторный id проекта должен нарушать уникальность")

	var (
		storeID    int64
		visible    bool
		featured   bool
		repoAccess string
		order      sql.NullInt64
	)
	err = db.QueryRow(`SELECT _id, visible, featured, repo_access, sort_order FROM projects WHERE id='project-1'`).
		Scan(&storeID, &visible, &featured, &repoAccess, &order)
	require.NoError(t, err, "ошибка при чтении проекта")
	require.Positive(t, storeID)
	require.True(t, visible, "по умолчанию проект видим")
	require.False(t, featured)
	require.Equal(t, "public", repoAccess)
	require.False(t, order.Valid, "sort_order по умолчанию не задан")

	// пустой заголовок запрещён
	_, err = db.Exec(`INSERT INTO projects (id, title, created_at) VALUES ('project-2', '', 1)`)
	require.Error(t, err, "пустой заголовок должен отклоняться")

	// история запросов доступа переживает удаление проекта: project_id не внешний ключ
	_, err = db.Exec(`INSERT INTO repo_access_requests (project_id, email, created_at) VALUES ('project-1', 'a@b.c', 1)`)
	require.NoError(t, err, "ошибка при вставке запроса доступа")
	var status string
	require.NoError(t, db.QueryRow(`SELECT status FROM repo_access_requests WHERE project_id='project-1'`).Scan(&status))
	require.Equal(t, "pending", status)
	_, err = db.Exec(`DELETE FROM projects WHERE id='project-1'`)
	require.NoError(t, err)
	var requests int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM repo_access_requests WHERE project_id='project-1'`).Scan(&requests))
	require.Equal(t, 1, requests, "запросы доступа не удаляются вместе с проектом")
	_, err = db.Exec(`INSERT INTO repo_access_requests (project_id, email, created_at) VALUES ('missing', 'a@b.c', 1)`)
	require.NoError(t, err, "существование проекта проверяет сервис, а не хранилище")

	// slug черновика уникален, metadata по умолчанию пустой объект
	_, err = db.Exec(`INSERT INTO blog_drafts (title, slug, content, canonical_url, source, created_at, updated_at)
		VALUES ('T', 'post', 'body', 'https://x', 'dev.to', 1, 1)`)
	require.NoError(t, err, "ошибка при вставке черновика")
	_, err = db.Exec(`INSERT INTO blog_drafts (title, slug, content, canonical_url, source, created_at, updated_at)
		VALUES ('T', 'post', 'body', 'https://x', 'dev.to', 1, 1)`)
	require.Error(t, err, "повторный slug должен нарушать уникальность")
	var meta string
	require.NoError(t, db.QueryRow(`SELECT metadata::text, status FROM blog_drafts WHERE slug='post'`).Scan(&meta, &status))
	require.Equal(t, "{}", meta)
	require.Equal(t, "new", status)

	// гостевая книга по умолчанию не промодерирована
	var moderated bool
	err = db.QueryRow(`INSERT INTO guestbook (name, message, created_at) VALUES ('n', 'm', 1) RETURNING moderated`).Scan(&moderated)
	require.NoError(t, err)
	require.False(t, moderated)

	// ------------------------- Проверка отката (down migrations) -------------------------
	if err := m.Steps(-2); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("failed to rollback all migrations: %v", err)
	}
	for _, table := range []string{"users", "projects", "repo_access_requests", "blog_drafts", "contacts", "guestbook"} {
		require.False(t, tableExists(t, db, table), "таблица %s должна быть удалена после отката", table)
	}
}
