// Package postgres provides PostgreSQL-backed implementations of repository interfaces.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/nadmax/fieldops/internal/repository"
	"github.com/nadmax/fieldops/internal/repository/models"
	"github.com/nadmax/fieldops/internal/task"
	"github.com/rs/zerolog/log"
)

type Repository struct {
	db *sql.DB
}

var _ repository.Repository = (*Repository)(nil)

func NewRepository(connectionString string) (*Repository, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Repository{db: db}, nil
}

// NewWithDB wraps an existing handle.
func NewWithDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListTasks reads the reporting fields of tasks. A DONE task without
// completed_at falls back to updated_at, the time it was last touched.
func (r *Repository) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]task.Record, error) {
	query := `
		SELECT
			id, status, priority, assigned_user_id, created_at,
			CASE WHEN status = 'DONE' THEN COALESCE(completed_at, updated_at) END AS completed_at
		FROM tasks
		WHERE created_at < $1
			AND ($2::timestamp IS NULL OR created_at >= $2)
			AND ($3::bigint IS NULL OR assigned_user_id = $3)
		ORDER BY created_at ASC, id ASC
	`

	var fromArg, assigneeArg any
	if filter.From != nil {
		fromArg = filter.From.UTC()
	}
	if filter.AssigneeID != nil {
		assigneeArg = *filter.AssigneeID
	}

	rows, err := r.db.QueryContext(ctx, query, filter.To.UTC(), fromArg, assigneeArg)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close rows")
		}
	}()

	var records []task.Record
	for rows.Next() {
		var (
			rec         task.Record
			status      string
			priority    sql.NullString
			assignee    sql.NullInt64
			completedAt sql.NullTime
		)

		if err := rows.Scan(&rec.ID, &status, &priority, &assignee, &rec.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}

		rec.Status = task.Status(status)
		rec.Priority = task.ParsePriority(priority.String)
		if assignee.Valid {
			id := assignee.Int64
			rec.AssigneeID = &id
		}
		if completedAt.Valid {
			t := completedAt.Time
			rec.CompletedAt = &t
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

func (r *Repository) ListWorkers(ctx context.Context) (map[int64]string, error) {
	query := `
		SELECT id, COALESCE(NULLIF(full_name, ''), username)
		FROM users
		WHERE is_active = TRUE
			AND role IN ('worker', 'dispatcher')
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query workers: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close rows")
		}
	}()

	workers := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		workers[id] = name
	}

	return workers, rows.Err()
}

const userColumns = `id, username, COALESCE(full_name, ''), email, phone, role, is_active, created_at, last_login`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var (
		u         models.User
		email     sql.NullString
		phone     sql.NullString
		role      string
		lastLogin sql.NullTime
	)

	err := row.Scan(&u.ID, &u.Username, &u.FullName, &email, &phone, &role, &u.IsActive, &u.CreatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	u.Role = models.Role(role)
	if email.Valid {
		u.Email = &email.String
	}
	if phone.Valid {
		u.Phone = &phone.String
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}

	return &u, nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *Repository) UpdateProfile(ctx context.Context, id int64, update models.ProfileUpdate) (*models.User, error) {
	if update.Empty() {
		return r.GetUser(ctx, id)
	}

	query := `
		UPDATE users
		SET full_name = COALESCE($1, full_name),
		    email = COALESCE($2, email),
		    phone = COALESCE($3, phone)
		WHERE id = $4
		RETURNING ` + userColumns

	return scanUser(r.db.QueryRowContext(ctx, query, update.FullName, update.Email, update.Phone, id))
}

func (r *Repository) GetPasswordHash(ctx context.Context, id int64) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id = $1`, id).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrUserNotFound
	}

	return hash, err
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrUserNotFound
	}

	return nil
}

func (r *Repository) DB() *sql.DB {
	return r.db
}

func (r *Repository) Close() error {
	return r.db.Close()
}
