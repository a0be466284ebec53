package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sweet_shop/internal/common"
	"sweet_shop/internal/domain/model"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, id string) (*model.Product, error)
	// List and ListBySeller return newest first.
	List(ctx context.Context) ([]model.Product, error)
	ListBySeller(ctx context.Context, sellerUsername string) ([]model.Product, error)
	// Update writes only the fields set in patch and refreshes updated_at.
	Update(ctx context.Context, id string, patch model.ProductPatch) (*model.Product, error)
	Delete(ctx context.Context, id string) error
	// DecrementStock subtracts qty only when at least qty units remain.
	// It returns common.ErrNotFound or common.ErrInsufficientStock without touching the row otherwise.
	DecrementStock(ctx context.Context, id string, qty int) (*model.Product, error)
	Ping(ctx context.Context) error
}

const productColumns = `id, name, description, price, quantity, image, seller_username, created_at, updated_at`

type pgProductRepository struct {
	db *sql.DB
}

func NewPgProductRepository(db *sql.DB) ProductRepository {
	return &pgProductRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, p *model.Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity, &p.Image,
		&p.SellerUsername, &p.CreatedAt, &p.UpdatedAt)
}

func (r *pgProductRepository) Create(ctx context.Context, p *model.Product) error {
	query := `INSERT INTO products (` + productColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Description, p.Price, p.Quantity, p.Image,
		p.SellerUsername, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pgProductRepository.Create: %w", err)
	}
	return nil
}

func (r *pgProductRepository) FindByID(ctx context.Context, id string) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p := &model.Product{}
	if err := scanProduct(r.db.QueryRowContext(ctx, query, id), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProductRepository.FindByID: %w", err)
	}
	return p, nil
}

func (r *pgProductRepository) List(ctx context.Context) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC, id DESC`
	return r.query(ctx, "List", query)
}

func (r *pgProductRepository) ListBySeller(ctx context.Context, sellerUsername string) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE seller_username = $1
	          ORDER BY created_at DESC, id DESC`
	return r.query(ctx, "ListBySeller", query, sellerUsername)
}

func (r *pgProductRepository) query(ctx context.Context, op, query string, args ...any) ([]model.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgProductRepository.%s query: %w", op, err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("pgProductRepository.%s scan: %w", op, err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProductRepository.%s rows.Err: %w", op, err)
	}
	return products, nil
}

func (r *pgProductRepository) Update(ctx context.Context, id string, patch model.ProductPatch) (*model.Product, error) {
	query := `UPDATE products SET
                name = COALESCE($1, name),
                description = COALESCE($2, description),
                price = COALESCE($3, price),
                quantity = COALESCE($4, quantity),
                image = COALESCE($5, image),
                updated_at = now()
              WHERE id = $6
              RETURNING ` + productColumns

	p := &model.Product{}
	err := scanProduct(r.db.QueryRowContext(ctx, query,
		patch.Name, patch.Description, patch.Price, patch.Quantity, patch.Image, id), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProductRepository.Update: %w", err)
	}
	return p, nil
}

func (r *pgProductRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgProductRepository.Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgProductRepository.Delete rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgProductRepository) DecrementStock(ctx context.Context, id string, qty int) (*model.Product, error) {
	query := `UPDATE products SET quantity = quantity - $1, updated_at = now()
              WHERE id = $2 AND quantity >= $1
              RETURNING ` + productColumns

	p := &model.Product{}
	err := scanProduct(r.db.QueryRowContext(ctx, query, qty, id), p)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pgProductRepository.DecrementStock: %w", err)
	}

	// Nothing updated: either the product is gone or there is not enough stock.
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("pgProductRepository.DecrementStock exists: %w", err)
	}
	if !exists {
		return nil, common.ErrNotFound
	}
	return nil, common.ErrInsufficientStock
}

func (r *pgProductRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
