package repository

import (
	"bakery-service/internal/models"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type productRepo struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) ProductRepository {
	return &productRepo{db: db}
}

const productColumns = `
		product_id,
		name,
		description,
		price,
		image,
		stock,
		is_available,
		category_id,
		created_at,
		updated_at`

func scanProduct(row pgx.Row, p *models.Product) error {
	return row.Scan(
		&p.ProductID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Image,
		&p.Stock,
		&p.IsAvailable,
		&p.CategoryID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	if p.Name == "" {
		return fmt.Errorf("%w: product name required", ErrInvalidInput)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: product price cannot be negative", ErrInvalidInput)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: product stock cannot be negative", ErrInvalidInput)
	}

	sql := `
		INSERT INTO products (
			product_id,
			name,
			description,
			price,
			image,
			stock,
			is_available,
			category_id,
			created_at,
			updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	now := time.Now()
	p.ProductID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.Exec(ctx, sql,
		p.ProductID,
		p.Name,
		p.Description,
		p.Price,
		p.Image,
		p.Stock,
		p.IsAvailable,
		p.CategoryID,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: category %s does not exist", ErrInvalidInput, p.CategoryID)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

func (r *productRepo) GetByID(ctx context.Context, id string) (*models.Product, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: ID cannot be empty", ErrInvalidInput)
	}

	sql := `SELECT ` + productColumns + ` FROM products WHERE product_id = $1`

	var product models.Product
	if err := scanProduct(r.db.QueryRow(ctx, sql, id), &product); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product by id %s: %w", id, err)
	}

	return &product, nil
}

func (r *productRepo) GetAll(ctx context.Context) ([]models.Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products ORDER BY name`

	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to get all products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

func (r *productRepo) GetByCategory(ctx context.Context, categoryID string) ([]models.Product, error) {
	if categoryID == "" {
		return nil, fmt.Errorf("%w: category cannot be empty", ErrInvalidInput)
	}

	sql := `SELECT ` + productColumns + ` FROM products WHERE category_id = $1 ORDER BY name`

	rows, err := r.db.Query(ctx, sql, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get products by category: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]models.Product, error) {
	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan products: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}
	return products, nil
}

func (r *productRepo) Update(ctx context.Context, p *models.Product) error {
	if p.ProductID == "" {
		return fmt.Errorf("%w: ID cannot be empty", ErrInvalidInput)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: product name required", ErrInvalidInput)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: product price cannot be negative", ErrInvalidInput)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: product stock cannot be negative", ErrInvalidInput)
	}

	sql := `
	UPDATE products
	SET
		name = $1,
		description = $2,
		price = $3,
		image = $4,
		stock = $5,
		is_available = $6,
		category_id = $7,
		updated_at = $8
	WHERE product_id = $9
	RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, sql,
		p.Name,
		p.Description,
		p.Price,
		p.Image,
		p.Stock,
		p.IsAvailable,
		p.CategoryID,
		time.Now(),
		p.ProductID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update product %s: %w", p.ProductID, err)
	}

	return nil
}

func (r *productRepo) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: ID cannot be empty", ErrInvalidInput)
	}

	result, err := r.db.Exec(ctx, `DELETE FROM products WHERE product_id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: product %s is referenced by existing orders", ErrInvalidInput, id)
		}
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
