package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velora/checkout/internal/domain/contact"
)

const createContactSQL = `INSERT INTO contact_messages (
	id, name, surname, company, email, telephone, message)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

var _ contact.Repository = (*ContactRepository)(nil)

// ContactRepository implements contact.Repository backed by PostgreSQL.
type ContactRepository struct {
	pool *pgxpool.Pool
}

// NewContactRepository returns a ContactRepository that uses the given pool.
func NewContactRepository(pool *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{pool: pool}
}

func (r *ContactRepository) Create(ctx context.Context, m *contact.Message) error {
	_, err := r.pool.Exec(ctx, createContactSQL,
		m.ID, m.Name, m.Surname, m.Company, m.Email, m.Telephone, m.Message,
	)
	if err != nil {
		return fmt.Errorf("creating contact message %q: %w", m.ID, err)
	}
	return nil
}
