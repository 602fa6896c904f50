package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/model"
)

// UserFilter narrows a user record listing. Zero values mean "no constraint".
type UserFilter struct {
	FirstName   string
	LastName    string
	PhoneNumber string
	Email       string
	BirthFrom   *time.Time
	BirthTo     *time.Time
	// Search matches any of the filter fields, case-insensitively.
	Search string
	// Ordering is one of first_name, last_name, birth_date, optionally
	// prefixed with '-' for descending. Anything else falls back to newest
	// first.
	Ordering string
	Limit    int
	Offset   int
}

// UserRepository persists validated user records.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository constructs a repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Insert creates one record. A fingerprint signature collision surfaces as
// model.ErrDuplicateSignature; the unique constraint, not this code, is the
// authoritative guard.
func (r *UserRepository) Insert(ctx context.Context, rec *model.UserRecord) error {
	rec.TimeAdded = time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_records
			(first_name, last_name, national_id, birth_date, address, country, phone_number, email, finger_print_signature, time_added)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`, rec.FirstName, rec.LastName, rec.NationalID, rec.BirthDate, rec.Address, rec.Country,
		rec.PhoneNumber, rec.Email, rec.FingerPrintSignature, rec.TimeAdded).Scan(&rec.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.ErrDuplicateSignature
		}
		return classify("insert user record", err)
	}
	return nil
}

// SignatureExists reports whether a signature is already persisted.
func (r *UserRepository) SignatureExists(ctx context.Context, signature string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM user_records WHERE finger_print_signature=$1)
	`, signature).Scan(&exists)
	if err != nil {
		return false, classify("signature lookup", err)
	}
	return exists, nil
}

// List returns a filtered page of records plus the total matching count.
func (r *UserRepository) List(ctx context.Context, f UserFilter) ([]model.UserRecord, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, classify("count user records", err)
	}

	query := `
		SELECT id, first_name, last_name, national_id, birth_date, address, country, phone_number, email, finger_print_signature, time_added
		FROM user_records` + where + orderClause(f.Ordering)
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, classify("select user records", err)
	}
	defer rows.Close()
	var out []model.UserRecord
	for rows.Next() {
		var rec model.UserRecord
		if err := rows.Scan(&rec.ID, &rec.FirstName, &rec.LastName, &rec.NationalID, &rec.BirthDate,
			&rec.Address, &rec.Country, &rec.PhoneNumber, &rec.Email, &rec.FingerPrintSignature, &rec.TimeAdded); err != nil {
			return nil, 0, classify("scan user record", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("iterate user records", err)
	}
	return out, total, nil
}

func buildWhere(f UserFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.FirstName != "" {
		add("first_name = $%d", f.FirstName)
	}
	if f.LastName != "" {
		add("last_name = $%d", f.LastName)
	}
	if f.PhoneNumber != "" {
		add("phone_number = $%d", f.PhoneNumber)
	}
	if f.Email != "" {
		add("email = $%d", f.Email)
	}
	if f.BirthFrom != nil {
		add("birth_date >= $%d", *f.BirthFrom)
	}
	if f.BirthTo != nil {
		add("birth_date <= $%d", *f.BirthTo)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(first_name ILIKE $%d OR last_name ILIKE $%d OR phone_number ILIKE $%d OR email ILIKE $%d)",
			n, n, n, n))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderClause(ordering string) string {
	dir := " ASC"
	col := strings.TrimPrefix(ordering, "-")
	if col != ordering {
		dir = " DESC"
	}
	switch col {
	case "first_name", "last_name", "birth_date":
		return " ORDER BY " + col + dir + ", id DESC"
	default:
		return " ORDER BY id DESC"
	}
}
