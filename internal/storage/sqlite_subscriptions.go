package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/good-yellow-bee/modwatch/internal/models"
)

type sqliteSubscriptionRepo struct {
	db *sql.DB
}

func (r *sqliteSubscriptionRepo) Create(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, project_id, channel_id, owner_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		sub.ID, sub.ProjectID, sub.ChannelID, sub.OwnerID, sub.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("subscription %s/%s: %w", sub.ProjectID, sub.ChannelID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (r *sqliteSubscriptionRepo) ChannelsFor(ctx context.Context, projectID string) ([]string, error) {
	query := `
		SELECT channel_id FROM subscriptions
		WHERE project_id = ? ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("channels for project: %w", err)
	}
	defer rows.Close()

	var channels []string
	for rows.Next() {
		var channelID string
		if err := rows.Scan(&channelID); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, channelID)
	}
	return channels, rows.Err()
}

func (r *sqliteSubscriptionRepo) ProjectsFor(ctx context.Context, channelID string) ([]string, error) {
	query := `
		SELECT project_id FROM subscriptions
		WHERE channel_id = ? ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("projects for channel: %w", err)
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var projectID string
		if err := rows.Scan(&projectID); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		projects = append(projects, projectID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("channel %s: %w", channelID, ErrNotFound)
	}
	return projects, nil
}

func (r *sqliteSubscriptionRepo) DeleteBy(ctx context.Context, projectID, channelID string) error {
	if projectID == "" && channelID == "" {
		return fmt.Errorf("delete subscriptions: at least one filter is required")
	}

	query := "DELETE FROM subscriptions WHERE 1=1"
	var args []any
	if projectID != "" {
		query += " AND project_id = ?"
		args = append(args, projectID)
	}
	if channelID != "" {
		query += " AND channel_id = ?"
		args = append(args, channelID)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete subscriptions: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("subscription: %w", ErrNotFound)
	}
	return nil
}

func (r *sqliteSubscriptionRepo) DeleteByProject(ctx context.Context, projectID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM subscriptions WHERE project_id = ?", projectID,
	)
	if err != nil {
		return fmt.Errorf("delete subscriptions for project: %w", err)
	}
	return nil
}
