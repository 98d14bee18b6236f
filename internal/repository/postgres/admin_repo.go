package postgres

import (
	"context"
	"errors"
	"strings"

	"portfolio-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type adminRepo struct {
	db *pgxpool.Pool
}

func NewAdminRepository(db *pgxpool.Pool) domain.AdminRepository {
	return &adminRepo{db: db}
}

const adminColumns = `id, email, password_hash, totp_secret, is_active, created_at`

func scanAdmin(row rowScanner) (*domain.Admin, error) {
	var (
		a  domain.Admin
		id uuid.UUID
	)
	err := row.Scan(&id, &a.Email, &a.PasswordHash, &a.TOTPSecret, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAdminNotFound
	}
	if err != nil {
		return nil, err
	}
	a.ID = id.String()
	return &a, nil
}

func (r *adminRepo) GetByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE email = $1`
	return scanAdmin(r.db.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

func (r *adminRepo) GetByID(ctx context.Context, id string) (*domain.Admin, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrAdminNotFound
	}
	query := `SELECT ` + adminColumns + ` FROM admins WHERE id = $1`
	return scanAdmin(r.db.QueryRow(ctx, query, uid))
}

// Upsert keeps the id of an existing admin with the same email.
func (r *adminRepo) Upsert(ctx context.Context, admin *domain.Admin) error {
	query := `
		INSERT INTO admins (id, email, password_hash, totp_secret, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			totp_secret = EXCLUDED.totp_secret,
			is_active = EXCLUDED.is_active
		RETURNING id, created_at`
	var id uuid.UUID
	err := r.db.QueryRow(ctx, query,
		uuid.New(), strings.ToLower(strings.TrimSpace(admin.Email)), admin.PasswordHash, admin.TOTPSecret, admin.IsActive,
	).Scan(&id, &admin.CreatedAt)
	if err != nil {
		return err
	}
	admin.ID = id.String()
	return nil
}
