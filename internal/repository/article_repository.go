package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/yourorg/draftmill/internal/domain"
)

// PostgresArticleRepository implements domain.ArticleRepository using PostgreSQL
type PostgresArticleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresArticleRepository creates a new article repository
func NewPostgresArticleRepository(db *sql.DB, logger *slog.Logger) *PostgresArticleRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresArticleRepository{db: db, logger: logger}
}

// Create inserts a new article at the first pipeline stage.
func (r *PostgresArticleRepository) Create(ctx context.Context, article *domain.Article) error {
	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	if article.Stage == "" {
		article.Stage = domain.StageResearch
	}
	artifacts, err := json.Marshal(article.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to encode artifacts: %w", err)
	}

	query := `
		INSERT INTO articles (id, user_email, topic, stage, artifacts)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRowContext(ctx, query,
		article.ID, article.UserEmail, article.Topic, article.Stage, artifacts,
	).Scan(&article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create article",
			slog.String("user_email", article.UserEmail),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create article: %w", err)
	}
	return nil
}

// GetByID retrieves an article by id.
func (r *PostgresArticleRepository) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	query := `
		SELECT id, user_email, topic, stage, artifacts, created_at, updated_at
		FROM articles
		WHERE id = $1
	`

	article, err := scanArticle(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

// ListByEmail returns the user's articles, newest first.
func (r *PostgresArticleRepository) ListByEmail(ctx context.Context, email string) ([]*domain.Article, error) {
	query := `
		SELECT id, user_email, topic, stage, artifacts, created_at, updated_at
		FROM articles
		WHERE user_email = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var articles []*domain.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// Update persists the current stage and artifacts.
func (r *PostgresArticleRepository) Update(ctx context.Context, article *domain.Article) error {
	artifacts, err := json.Marshal(article.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to encode artifacts: %w", err)
	}

	query := `
		UPDATE articles
		SET stage = $1, artifacts = $2, updated_at = now()
		WHERE id = $3
		RETURNING updated_at
	`

	err = r.db.QueryRowContext(ctx, query, article.Stage, artifacts, article.ID).
		Scan(&article.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to update article: %w", err)
	}
	return nil
}

// Delete removes an article.
func (r *PostgresArticleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	return checkAffected(result)
}

func scanArticle(row interface{ Scan(...any) error }) (*domain.Article, error) {
	article := &domain.Article{}
	var artifacts []byte
	err := row.Scan(
		&article.ID,
		&article.UserEmail,
		&article.Topic,
		&article.Stage,
		&artifacts,
		&article.CreatedAt,
		&article.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(artifacts) > 0 {
		if err := json.Unmarshal(artifacts, &article.Artifacts); err != nil {
			return nil, fmt.Errorf("failed to decode artifacts: %w", err)
		}
	}
	if article.Artifacts == nil {
		article.Artifacts = map[string]string{}
	}
	return article, nil
}
