package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"salescope/backend/internal/domain"
	"salescope/backend/internal/store"
)

type Store struct {
	db        *sql.DB
	batchSize int
}

func New(ctx context.Context, databaseURL string, batchSize int) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if batchSize < 1 {
		batchSize = 500
	}

	s := &Store{db: db, batchSize: batchSize}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			username   TEXT PRIMARY KEY,
			email      TEXT NOT NULL DEFAULT '',
			password   TEXT NOT NULL,
			active     BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS sale_records (
			id          TEXT PRIMARY KEY,
			owner_id    TEXT NOT NULL,
			sale_date   DATE NOT NULL,
			category    TEXT NOT NULL,
			product     TEXT NOT NULL,
			quantity    INTEGER NOT NULL,
			unit_price  NUMERIC(14,4) NOT NULL,
			total_price NUMERIC(14,4) NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_sale_records_owner_date
			ON sale_records (owner_id, sale_date, id);
	`)
	return err
}

// ReplaceSaleRecords runs the delete+insert for one owner inside a single
// serializable transaction. The batch size only bounds how many rows one
// INSERT statement carries; it is not a commit boundary, so a failed batch
// rolls the whole import back and the prior record set survives.
func (s *Store) ReplaceSaleRecords(ctx context.Context, ownerID string, records []domain.SaleRecord) error {
	if ownerID == "" {
		return store.ErrInvalidRecord
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrWriteFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sale_records WHERE owner_id = $1`, ownerID); err != nil {
		return fmt.Errorf("%w: %v", store.ErrWriteFailed, err)
	}

	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := insertBatch(ctx, tx, ownerID, records[start:end]); err != nil {
			return fmt.Errorf("%w: %v", store.ErrWriteFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrWriteFailed, err)
	}
	return nil
}

func insertBatch(ctx context.Context, tx *sql.Tx, ownerID string, records []domain.SaleRecord) error {
	if len(records) == 0 {
		return nil
	}

	const cols = 9
	placeholders := make([]string, 0, len(records))
	args := make([]any, 0, len(records)*cols)
	for i, record := range records {
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		args = append(args,
			record.ID, ownerID, record.Date, record.Category, record.Product,
			record.Quantity, record.UnitPrice, record.TotalPrice, record.CreatedAt)
	}

	query := `
		INSERT INTO sale_records (id, owner_id, sale_date, category, product, quantity, unit_price, total_price, created_at)
		VALUES ` + strings.Join(placeholders, ",")
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) ListSaleRecords(ctx context.Context, ownerID string) ([]domain.SaleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, sale_date, category, product, quantity, unit_price, total_price, created_at
		FROM sale_records
		WHERE owner_id = $1
		ORDER BY sale_date ASC, id ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.SaleRecord, 0, 256)
	for rows.Next() {
		var record domain.SaleRecord
		if err := rows.Scan(&record.ID, &record.OwnerID, &record.Date, &record.Category, &record.Product,
			&record.Quantity, &record.UnitPrice, &record.TotalPrice, &record.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func (s *Store) DeleteSaleRecords(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sale_records WHERE owner_id = $1`, ownerID)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrWriteFailed, err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidRecord
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Email, user.Password, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidRecord
		}
		return err
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, email, password, active, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&user.Username, &user.Email, &user.Password, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, email, password, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Email, &user.Password, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
