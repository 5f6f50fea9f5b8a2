package repository

import (
	"bakery-service/internal/models"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type categoryRepo struct {
	db *pgxpool.Pool
}

func NewCategoryRepository(db *pgxpool.Pool) CategoryRepository {
	return &categoryRepo{db: db}
}

func (r *categoryRepo) Create(ctx context.Context, c *models.Category) error {
	if c.Name == "" {
		return fmt.Errorf("%w: category name required", ErrInvalidInput)
	}

	sql := `
		INSERT INTO categories (category_id, name, description, icon)
		VALUES ($1, $2, $3, $4)
	`

	c.CategoryID = uuid.NewString()

	_, err := r.db.Exec(ctx, sql, c.CategoryID, c.Name, c.Description, c.Icon)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: category name already exists", ErrDuplicate)
		}
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

func (r *categoryRepo) GetByID(ctx context.Context, id string) (*models.Category, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: ID cannot be empty", ErrInvalidInput)
	}

	sql := `SELECT category_id, name, description, icon FROM categories WHERE category_id = $1`

	var category models.Category
	err := r.db.QueryRow(ctx, sql, id).Scan(
		&category.CategoryID,
		&category.Name,
		&category.Description,
		&category.Icon,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get category by id %s: %w", id, err)
	}

	return &category, nil
}

func (r *categoryRepo) GetAll(ctx context.Context) ([]models.Category, error) {
	sql := `SELECT category_id, name, description, icon FROM categories ORDER BY name`

	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to get all categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.CategoryID, &c.Name, &c.Description, &c.Icon); err != nil {
			return nil, fmt.Errorf("failed to scan categories: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return categories, nil
}
