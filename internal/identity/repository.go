package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists identities. Create must enforce uniqueness of phone,
// username and email atomically and report collisions as *DuplicateError.
type Repository interface {
	Create(ctx context.Context, identity Identity) error
	FindByID(ctx context.Context, id string) (Identity, error)
	FindByPhone(ctx context.Context, phone string) (Identity, error)
	FindByUsername(ctx context.Context, username string) (Identity, error)
	FindByEmail(ctx context.Context, email string) (Identity, error)
	UpdatePasswordHash(ctx context.Context, id string, hash []byte, at time.Time) error
}

const uniqueViolation = "23505"

// constraintFields maps unique constraints from the identities migration to identity fields.
var constraintFields = map[string]string{
	"identities_phone_key":    FieldPhone,
	"identities_username_key": FieldUsername,
	"identities_email_key":    FieldEmail,
}

const selectColumns = `SELECT id, display_name, phone, username, email, password_hash, verified, created_at, updated_at FROM identities`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new identity in a single statement.
func (r *PostgresRepository) Create(ctx context.Context, identity Identity) error {
	id, err := uuid.Parse(identity.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO identities
        (id, display_name, phone, username, email, password_hash, verified, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, identity.DisplayName, identity.Phone, nullable(identity.Username), nullable(identity.Email),
		identity.PasswordHash, identity.Verified, identity.CreatedAt.UTC(), identity.UpdatedAt.UTC())
	if err != nil {
		if dup := duplicateFromPgError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// duplicateFromPgError converts a unique violation into a *DuplicateError
// naming the colliding field. Unknown constraints are reported against the
// phone number. Any other error yields nil.
func duplicateFromPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	field, ok := constraintFields[pgErr.ConstraintName]
	if !ok {
		field = FieldPhone
	}
	return &DuplicateError{Field: field}
}

// FindByID fetches an identity by its identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Identity, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Identity{}, ErrNotFound
	}
	return r.findOne(ctx, selectColumns+` WHERE id = $1`, parsed)
}

// FindByPhone fetches an identity by canonical phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (Identity, error) {
	return r.findOne(ctx, selectColumns+` WHERE phone = $1`, phone)
}

// FindByUsername fetches an identity by username.
func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (Identity, error) {
	return r.findOne(ctx, selectColumns+` WHERE username = $1`, username)
}

// FindByEmail fetches an identity by lower-cased email address.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Identity, error) {
	return r.findOne(ctx, selectColumns+` WHERE email = $1`, email)
}

// UpdatePasswordHash replaces the stored credential and bumps updated_at.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id string, hash []byte, at time.Time) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE identities SET password_hash = $1, updated_at = $2 WHERE id = $3`, hash, at.UTC(), parsed)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (Identity, error) {
	row := r.db.QueryRow(ctx, query, arg)
	var (
		id                   uuid.UUID
		username, email      *string
		createdAt, updatedAt time.Time
		identity             Identity
	)
	err := row.Scan(&id, &identity.DisplayName, &identity.Phone, &username, &email,
		&identity.PasswordHash, &identity.Verified, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, fmt.Errorf("query identity: %w", err)
	}
	identity.ID = id.String()
	if username != nil {
		identity.Username = *username
	}
	if email != nil {
		identity.Email = *email
	}
	identity.CreatedAt = createdAt.UTC()
	identity.UpdatedAt = updatedAt.UTC()
	return identity, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
