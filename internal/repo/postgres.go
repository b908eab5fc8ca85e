package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/smart-todo/internal/model"
)

const todoColumns = `id, user_id, text, completed, sort_order, suggestion, created_at`

type PostgresRepo struct { // Репозиторий для работы непосредственно с БД
	pool *pgxpool.Pool
}

func NewPostgresRepo(pool *pgxpool.Pool) *PostgresRepo { // Конструктор
	return &PostgresRepo{
		pool: pool,
	}
}

func scanTodo(row pgx.Row) (model.Todo, error) {
	var t model.Todo
	err := row.Scan(&t.ID, &t.UserID, &t.Text, &t.Completed, &t.Order, &t.Suggestions, &t.CreatedAt)
	return t, err
}

func (r *PostgresRepo) Create(ctx context.Context, userID, text string) (model.Todo, error) {
	// Новая задача всегда в конец списка
	t, err := scanTodo(r.pool.QueryRow(ctx, `
		INSERT INTO todos (user_id, text, sort_order)
		VALUES ($1, $2, (SELECT COALESCE(MAX(sort_order), -1) + 1 FROM todos WHERE user_id = $1))
		RETURNING `+todoColumns, userID, text))
	return t, r.mapError(err)
}

func (r *PostgresRepo) Get(ctx context.Context, id int64) (model.Todo, error) {
	t, err := scanTodo(r.pool.QueryRow(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = $1`, id))
	return t, r.mapError(err)
}

func (r *PostgresRepo) List(ctx context.Context, userID string) ([]model.Todo, error) {
	return listTodos(ctx, r.pool, userID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listTodos(ctx context.Context, q querier, userID string) ([]model.Todo, error) {
	rows, err := q.Query(ctx, `
		SELECT `+todoColumns+`
		FROM todos
		WHERE user_id = $1
		ORDER BY sort_order, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := make([]model.Todo, 0)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM todos WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (r *PostgresRepo) SetCompleted(ctx context.Context, id int64, completed bool) (model.Todo, error) {
	t, err := scanTodo(r.pool.QueryRow(ctx, `
		UPDATE todos SET completed = $2 WHERE id = $1
		RETURNING `+todoColumns, id, completed))
	return t, r.mapError(err)
}

func (r *PostgresRepo) SetSuggestions(ctx context.Context, id int64, suggestions []string) (model.Todo, error) {
	if suggestions == nil {
		suggestions = []string{}
	}
	t, err := scanTodo(r.pool.QueryRow(ctx, `
		UPDATE todos SET suggestion = $2 WHERE id = $1
		RETURNING `+todoColumns, id, suggestions))
	return t, r.mapError(err)
}

func (r *PostgresRepo) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, "DELETE FROM todos WHERE id = $1", id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrorNotFound
	}
	return nil
}

func (r *PostgresRepo) Reorder(ctx context.Context, userID string, ids []int64) ([]model.Todo, error) {
	if err := checkBatch(ids); err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Блокируем строки пользователя, чужие id не попадут в выборку
	var owned int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT id FROM todos WHERE user_id = $1 AND id = ANY($2) FOR UPDATE
		) locked
	`, userID, ids).Scan(&owned)
	if err != nil {
		return nil, err
	}
	if owned != len(ids) {
		return nil, ErrorForbidden
	}

	_, err = tx.Exec(ctx, `
		UPDATE todos
		SET sort_order = u.pos - 1
		FROM unnest($1::bigint[]) WITH ORDINALITY AS u(id, pos)
		WHERE todos.id = u.id
	`, ids)
	if err != nil {
		return nil, err
	}

	todos, err := listTodos(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return todos, tx.Commit(ctx)
}

func (r *PostgresRepo) RecordFeatureUsage(ctx context.Context, userID, feature string) (model.FeatureUsage, error) {
	var u model.FeatureUsage
	err := r.pool.QueryRow(ctx, `
		INSERT INTO feature_usage (user_id, feature)
		VALUES ($1, $2)
		RETURNING id, user_id, feature, used_at
	`, userID, feature).Scan(&u.ID, &u.UserID, &u.Feature, &u.UsedAt)
	if err = r.mapError(err); !errors.Is(err, ErrorConflict) {
		return u, err
	}

	// Уже использовано - возвращаем существующую запись
	err = r.pool.QueryRow(ctx, `
		SELECT id, user_id, feature, used_at FROM feature_usage
		WHERE user_id = $1 AND feature = $2
	`, userID, feature).Scan(&u.ID, &u.UserID, &u.Feature, &u.UsedAt)
	return u, r.mapError(err)
}

func (r *PostgresRepo) ListFeatureUsage(ctx context.Context, userID string) ([]model.FeatureUsage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, feature, used_at
		FROM feature_usage
		WHERE user_id = $1
		ORDER BY used_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	usage := make([]model.FeatureUsage, 0)
	for rows.Next() {
		var u model.FeatureUsage
		if err := rows.Scan(&u.ID, &u.UserID, &u.Feature, &u.UsedAt); err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}

func (r *PostgresRepo) QueueSuggestionJob(ctx context.Context, todoID int64) (model.SuggestionJob, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO suggestion_jobs (id, todo_id) VALUES ($1, $2)
		ON CONFLICT (todo_id) DO NOTHING
	`, uuid.NewString(), todoID)
	if err != nil {
		return model.SuggestionJob{}, r.mapError(err)
	}

	job := model.SuggestionJob{TodoID: todoID}
	err = r.pool.QueryRow(ctx, `
		SELECT j.id, t.text FROM suggestion_jobs j JOIN todos t ON t.id = j.todo_id
		WHERE j.todo_id = $1
	`, todoID).Scan(&job.ID, &job.Text)
	return job, r.mapError(err)
}

func (r *PostgresRepo) ClaimSuggestionJob(ctx context.Context) (model.SuggestionJob, error) {
	var job model.SuggestionJob
	err := r.pool.QueryRow(ctx, `
		WITH claimed AS (
			SELECT id
			FROM suggestion_jobs
			WHERE status = 'pending'
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE suggestion_jobs
		SET status = 'processing', updated_at = now()
		FROM claimed, todos
		WHERE suggestion_jobs.id = claimed.id AND todos.id = suggestion_jobs.todo_id
		RETURNING suggestion_jobs.id, suggestion_jobs.todo_id, todos.text
	`).Scan(&job.ID, &job.TodoID, &job.Text)
	return job, r.mapError(err)
}

func (r *PostgresRepo) CompleteSuggestionJob(ctx context.Context, job model.SuggestionJob, suggestions []string) error {
	if suggestions == nil {
		suggestions = []string{}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE todos SET suggestion = $2 WHERE id = $1`, job.TodoID, suggestions); err != nil {
		return fmt.Errorf("store suggestions: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM suggestion_jobs WHERE id = $1`, job.ID); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepo) ReleaseSuggestionJob(ctx context.Context, job model.SuggestionJob) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE suggestion_jobs SET status = 'pending', updated_at = now() WHERE id = $1
	`, job.ID)
	return err
}

func (r *PostgresRepo) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrorNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return ErrorConflict
		case "23503": // foreign_key_violation
			return ErrorNotFound
		}
	}
	return err
}
