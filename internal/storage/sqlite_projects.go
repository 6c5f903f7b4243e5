package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/good-yellow-bee/modwatch/internal/models"
)

type sqliteProjectRepo struct {
	db *sql.DB
}

func (r *sqliteProjectRepo) Create(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (id, title, latest_version, last_update)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		project.ID, project.Title, project.LatestVersion, project.LastUpdate,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("project %s: %w", project.ID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) UpdateVersion(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects SET title = ?, latest_version = ?, last_update = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		project.Title, project.LatestVersion, project.LastUpdate,
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project %s: %w", project.ID, ErrNotFound)
	}
	return nil
}

func (r *sqliteProjectRepo) List(ctx context.Context) ([]*models.Project, error) {
	query := `
		SELECT id, title, latest_version, last_update
		FROM projects ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project := &models.Project{}
		err := rows.Scan(
			&project.ID, &project.Title, &project.LatestVersion, &project.LastUpdate,
		)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (r *sqliteProjectRepo) GetLatestVersion(ctx context.Context, id string) (string, error) {
	var version string
	err := r.db.QueryRowContext(ctx,
		"SELECT latest_version FROM projects WHERE id = ?", id,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get latest version: %w", err)
	}
	return version, nil
}

func (r *sqliteProjectRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}
