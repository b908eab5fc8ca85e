package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/BuzzLyutic/smart-todo/internal/model"
)

const currentSchemaVersion = 2

// SQLiteRepo is the single-file backend used for local runs and tests.
type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(path string) (*SQLiteRepo, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Один писатель: sqlite не умеет SKIP LOCKED
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	r := &SQLiteRepo{db: db}
	if err := r.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return r, nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) initSchema() error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return err
	}

	var versionText string
	version := 0
	err = tx.QueryRow(`SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&versionText)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		if version, err = strconv.Atoi(versionText); err != nil {
			return fmt.Errorf("parse schema version %q: %w", versionText, err)
		}
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("db schema version %d is newer than runtime version %d", version, currentSchemaVersion)
	}

	for version < currentSchemaVersion {
		if err := applyMigration(tx, version); err != nil {
			return fmt.Errorf("migrate schema %d -> %d: %w", version, version+1, err)
		}
		version++
		if _, err := tx.Exec(`
			INSERT INTO schema_meta (key, value) VALUES ('schema_version', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, strconv.Itoa(version)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func applyMigration(tx *sql.Tx, version int) error {
	var stmts []string
	switch version {
	case 0:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS todos (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id TEXT NOT NULL,
				text TEXT NOT NULL,
				completed INTEGER NOT NULL DEFAULT 0,
				sort_order INTEGER NOT NULL DEFAULT 0,
				suggestion TEXT,
				created_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_todos_user_order ON todos(user_id, sort_order, id)`,
			`CREATE TABLE IF NOT EXISTS feature_usage (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id TEXT NOT NULL,
				feature TEXT NOT NULL,
				used_at INTEGER NOT NULL,
				UNIQUE(user_id, feature)
			)`,
		}
	case 1:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS suggestion_jobs (
				id TEXT PRIMARY KEY,
				todo_id INTEGER NOT NULL UNIQUE REFERENCES todos(id) ON DELETE CASCADE,
				status TEXT NOT NULL DEFAULT 'pending',
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_suggestion_jobs_pending ON suggestion_jobs(status, created_at)`,
		}
	default:
		return fmt.Errorf("unsupported schema migration source version %d", version)
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const sqliteTodoColumns = `id, user_id, text, completed, sort_order, suggestion, created_at`

func scanSQLiteTodo(row rowScanner) (model.Todo, error) {
	var (
		t          model.Todo
		suggestion sql.NullString
		createdAt  int64
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Text, &t.Completed, &t.Order, &suggestion, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, ErrorNotFound
		}
		return t, err
	}
	t.CreatedAt = time.Unix(0, createdAt).UTC()
	if suggestion.Valid {
		if err := json.Unmarshal([]byte(suggestion.String), &t.Suggestions); err != nil {
			return t, fmt.Errorf("decode suggestions of todo %d: %w", t.ID, err)
		}
		if t.Suggestions == nil {
			t.Suggestions = []string{}
		}
	}
	return t, nil
}

func encodeSuggestions(suggestions []string) (string, error) {
	if suggestions == nil {
		suggestions = []string{}
	}
	b, err := json.Marshal(suggestions)
	return string(b), err
}

func (r *SQLiteRepo) Create(ctx context.Context, userID, text string) (model.Todo, error) {
	return scanSQLiteTodo(r.db.QueryRowContext(ctx, `
		INSERT INTO todos (user_id, text, sort_order, created_at)
		VALUES (?1, ?2, (SELECT COALESCE(MAX(sort_order), -1) + 1 FROM todos WHERE user_id = ?1), ?3)
		RETURNING `+sqliteTodoColumns, userID, text, time.Now().UnixNano()))
}

func (r *SQLiteRepo) Get(ctx context.Context, id int64) (model.Todo, error) {
	return scanSQLiteTodo(r.db.QueryRowContext(ctx, `SELECT `+sqliteTodoColumns+` FROM todos WHERE id = ?`, id))
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func sqliteListTodos(ctx context.Context, q sqlQuerier, userID string) ([]model.Todo, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+sqliteTodoColumns+`
		FROM todos
		WHERE user_id = ?
		ORDER BY sort_order, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := make([]model.Todo, 0)
	for rows.Next() {
		t, err := scanSQLiteTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func (r *SQLiteRepo) List(ctx context.Context, userID string) ([]model.Todo, error) {
	return sqliteListTodos(ctx, r.db, userID)
}

func (r *SQLiteRepo) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM todos WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

func (r *SQLiteRepo) SetCompleted(ctx context.Context, id int64, completed bool) (model.Todo, error) {
	return scanSQLiteTodo(r.db.QueryRowContext(ctx, `
		UPDATE todos SET completed = ? WHERE id = ?
		RETURNING `+sqliteTodoColumns, completed, id))
}

func (r *SQLiteRepo) SetSuggestions(ctx context.Context, id int64, suggestions []string) (model.Todo, error) {
	encoded, err := encodeSuggestions(suggestions)
	if err != nil {
		return model.Todo{}, err
	}
	return scanSQLiteTodo(r.db.QueryRowContext(ctx, `
		UPDATE todos SET suggestion = ? WHERE id = ?
		RETURNING `+sqliteTodoColumns, encoded, id))
}

func (r *SQLiteRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepo) Reorder(ctx context.Context, userID string, ids []int64) ([]model.Todo, error) {
	if err := checkBatch(ids); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if len(ids) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		args := make([]any, 0, len(ids)+1)
		args = append(args, userID)
		for _, id := range ids {
			args = append(args, id)
		}

		var owned int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM todos WHERE user_id = ? AND id IN (`+placeholders+`)`, args...).Scan(&owned)
		if err != nil {
			return nil, err
		}
		if owned != len(ids) {
			return nil, ErrorForbidden
		}
	}

	stmt, err := tx.PrepareContext(ctx, `UPDATE todos SET sort_order = ? WHERE id = ?`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for pos, id := range ids {
		if _, err := stmt.ExecContext(ctx, pos, id); err != nil {
			return nil, fmt.Errorf("set order of todo %d: %w", id, err)
		}
	}

	todos, err := sqliteListTodos(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return todos, tx.Commit()
}

func (r *SQLiteRepo) RecordFeatureUsage(ctx context.Context, userID, feature string) (model.FeatureUsage, error) {
	// ON CONFLICT DO NOTHING + SELECT: повторное использование возвращает первую запись
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO feature_usage (user_id, feature, used_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id, feature) DO NOTHING
	`, userID, feature, time.Now().UnixNano()); err != nil {
		return model.FeatureUsage{}, err
	}

	var (
		u      model.FeatureUsage
		usedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, feature, used_at FROM feature_usage WHERE user_id = ? AND feature = ?
	`, userID, feature).Scan(&u.ID, &u.UserID, &u.Feature, &usedAt)
	if err != nil {
		return u, err
	}
	u.UsedAt = time.Unix(0, usedAt).UTC()
	return u, nil
}

func (r *SQLiteRepo) ListFeatureUsage(ctx context.Context, userID string) ([]model.FeatureUsage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, feature, used_at
		FROM feature_usage
		WHERE user_id = ?
		ORDER BY used_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	usage := make([]model.FeatureUsage, 0)
	for rows.Next() {
		var (
			u      model.FeatureUsage
			usedAt int64
		)
		if err := rows.Scan(&u.ID, &u.UserID, &u.Feature, &usedAt); err != nil {
			return nil, err
		}
		u.UsedAt = time.Unix(0, usedAt).UTC()
		usage = append(usage, u)
	}
	return usage, rows.Err()
}

func (r *SQLiteRepo) QueueSuggestionJob(ctx context.Context, todoID int64) (model.SuggestionJob, error) {
	now := time.Now().UnixNano()
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO suggestion_jobs (id, todo_id, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(todo_id) DO NOTHING
	`, uuid.NewString(), todoID, now, now); err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return model.SuggestionJob{}, ErrorNotFound
		}
		return model.SuggestionJob{}, err
	}

	job := model.SuggestionJob{TodoID: todoID}
	err := r.db.QueryRowContext(ctx, `
		SELECT j.id, t.text FROM suggestion_jobs j JOIN todos t ON t.id = j.todo_id
		WHERE j.todo_id = ?
	`, todoID).Scan(&job.ID, &job.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return job, ErrorNotFound
	}
	return job, err
}

func (r *SQLiteRepo) ClaimSuggestionJob(ctx context.Context) (model.SuggestionJob, error) {
	var job model.SuggestionJob
	err := r.db.QueryRowContext(ctx, `
		UPDATE suggestion_jobs
		SET status = 'processing', updated_at = ?
		WHERE id = (
			SELECT id FROM suggestion_jobs WHERE status = 'pending' ORDER BY created_at LIMIT 1
		)
		RETURNING id, todo_id
	`, time.Now().UnixNano()).Scan(&job.ID, &job.TodoID)
	if errors.Is(err, sql.ErrNoRows) {
		return job, ErrorNotFound
	}
	if err != nil {
		return job, err
	}

	err = r.db.QueryRowContext(ctx, `SELECT text FROM todos WHERE id = ?`, job.TodoID).Scan(&job.Text)
	return job, err
}

func (r *SQLiteRepo) CompleteSuggestionJob(ctx context.Context, job model.SuggestionJob, suggestions []string) error {
	encoded, err := encodeSuggestions(suggestions)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE todos SET suggestion = ? WHERE id = ?`, encoded, job.TodoID); err != nil {
		return fmt.Errorf("store suggestions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM suggestion_jobs WHERE id = ?`, job.ID); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return tx.Commit()
}

func (r *SQLiteRepo) ReleaseSuggestionJob(ctx context.Context, job model.SuggestionJob) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE suggestion_jobs SET status = 'pending', updated_at = ? WHERE id = ?
	`, time.Now().UnixNano(), job.ID)
	return err
}
