package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ImedBousakhria/fluffy-lamp/pkg/protocol"
)

var (
	ErrNotFound   = errors.New("product not found")
	ErrValidation = errors.New("validation failed")
)

// ProductInput is the client-supplied portion of a product. Nil pointer
// fields take the schema defaults on create.
type ProductInput struct {
	Name          string  `json:"name"`
	Category      string  `json:"type"`
	Price         float64 `json:"price"`
	Rating        float64 `json:"rating"`
	WarrantyYears *int    `json:"warranty_years"`
	Available     *bool   `json:"available"`
}

// Store is the durable product collection. Mutations return the stored
// record so the caller can build the change event for broadcast.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With(slog.String("component", "store")),
	}
}

// Init creates the products table if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			category       TEXT NOT NULL,
			price          REAL NOT NULL,
			rating         REAL NOT NULL,
			warranty_years INTEGER NOT NULL,
			available      INTEGER NOT NULL,
			created_at     TIMESTAMP NOT NULL,
			updated_at     TIMESTAMP NOT NULL
		)`)
	return err
}

func (s *Store) Create(ctx context.Context, input ProductInput) (*protocol.Product, error) {
	p, err := productFromInput(input)
	if err != nil {
		return nil, err
	}
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price, rating, warranty_years, available, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.Name, p.Category, p.Price, p.Rating, p.WarrantyYears, p.Available, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.logger.Info("product created", slog.String("productID", p.ID.String()))
	return p, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*protocol.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, price, rating, warranty_years, available, created_at, updated_at
		FROM products WHERE id = ?`, id.String())
	return scanProduct(row)
}

// List returns every product, newest first.
func (s *Store) List(ctx context.Context) ([]*protocol.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price, rating, warranty_years, available, created_at, updated_at
		FROM products ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]*protocol.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Update rewrites a product in a single statement. created_at is never
// touched, so the stored creation time survives without a prior read, and
// a concurrent delete surfaces as zero affected rows rather than a
// successful update of a product nobody stores.
func (s *Store) Update(ctx context.Context, id uuid.UUID, input ProductInput) (*protocol.Product, error) {
	p, err := productFromInput(input)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET name = ?, category = ?, price = ?, rating = ?, warranty_years = ?, available = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Category, p.Price, p.Rating, p.WarrantyYears, p.Available, time.Now().UTC(), id.String(),
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	s.logger.Info("product updated", slog.String("productID", id.String()))
	return s.Get(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	s.logger.Info("product deleted", slog.String("productID", id.String()))
	return nil
}

// productFromInput applies schema defaults and validates. Identifier and
// timestamps are left for the caller.
func productFromInput(input ProductInput) (*protocol.Product, error) {
	p := &protocol.Product{
		Name:          strings.TrimSpace(input.Name),
		Category:      input.Category,
		Price:         input.Price,
		Rating:        input.Rating,
		WarrantyYears: 1,
		Available:     true,
	}
	if input.Category == "" {
		p.Category = protocol.CategoryPhone
	}
	if input.WarrantyYears != nil {
		p.WarrantyYears = *input.WarrantyYears
	}
	if input.Available != nil {
		p.Available = *input.Available
	}

	switch {
	case p.Name == "":
		return nil, fmt.Errorf("%w: please add a product name", ErrValidation)
	case len(p.Name) > 100:
		return nil, fmt.Errorf("%w: name cannot be more than 100 characters", ErrValidation)
	case !protocol.ValidCategory(p.Category):
		return nil, fmt.Errorf("%w: unknown product type %q", ErrValidation, p.Category)
	case p.Price < 0:
		return nil, fmt.Errorf("%w: price cannot be negative", ErrValidation)
	case p.Rating < 0 || p.Rating > 5:
		return nil, fmt.Errorf("%w: rating must be between 0 and 5", ErrValidation)
	case p.WarrantyYears < 0 || p.WarrantyYears > 10:
		return nil, fmt.Errorf("%w: warranty must be between 0 and 10 years", ErrValidation)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*protocol.Product, error) {
	var (
		p  protocol.Product
		id string
	)
	err := row.Scan(&id, &p.Name, &p.Category, &p.Price, &p.Rating, &p.WarrantyYears, &p.Available, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
