package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ogulcanaydogan/spendwatch/pkg/model"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported SQL dialects. They double as database/sql driver names.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

var expenseColumns = []string{"user_id", "expense_id", "amount", "category", "expense_date", "notes", "created_at"}

// SQLStore implements Storage on SQLite or PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect string
	sb      sq.StatementBuilderType
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := runMigrations(DialectSQLite, dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open(DialectSQLite, dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	return &SQLStore{
		db:      db,
		dialect: DialectSQLite,
		sb:      sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

// NewPostgres connects to PostgreSQL using a lib/pq connection string.
func NewPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open(DialectPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(DialectPostgres, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLStore{
		db:      db,
		dialect: DialectPostgres,
		sb:      sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// Dialect returns the SQL dialect of the store.
func (s *SQLStore) Dialect() string { return s.dialect }

func (s *SQLStore) PutExpense(ctx context.Context, record *model.ExpenseRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query, args, err := s.sb.Insert("expenses").
		Columns(expenseColumns...).
		Values(record.UserID, record.ExpenseID, record.Amount, record.Category,
			record.Date, record.Notes, record.CreatedAt.UTC()).
		Suffix(`ON CONFLICT (user_id, expense_id) DO UPDATE SET
			amount = excluded.amount,
			category = excluded.category,
			expense_date = excluded.expense_date,
			notes = excluded.notes,
			created_at = excluded.created_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteExpense(ctx context.Context, userID, expenseID string) (*model.ExpenseRecord, error) {
	query, args, err := s.sb.Delete("expenses").
		Where(sq.Eq{"user_id": userID, "expense_id": expenseID}).
		Suffix("RETURNING " + strings.Join(expenseColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete: %w", err)
	}

	r, err := scanExpense(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %q: %w", expenseID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("delete expense: %w", err)
	}
	return &r, nil
}

func (s *SQLStore) QueryByUserAndDate(ctx context.Context, userID, date string) ([]model.ExpenseRecord, error) {
	return s.queryExpenses(ctx, s.selectExpenses().
		Where(sq.Eq{"user_id": userID, "expense_date": date}))
}

func (s *SQLStore) QueryExpenses(ctx context.Context, userID string, filter model.ExpenseFilter) ([]model.ExpenseRecord, error) {
	q := s.selectExpenses().Where(sq.Eq{"user_id": userID})
	if filter.Category != "" {
		q = q.Where(sq.Eq{"category": filter.Category})
	}
	if filter.StartDate != "" {
		q = q.Where(sq.GtOrEq{"expense_date": filter.StartDate})
	}
	if filter.EndDate != "" {
		q = q.Where(sq.LtOrEq{"expense_date": filter.EndDate})
	}
	return s.queryExpenses(ctx, q)
}

func (s *SQLStore) ScanAll(ctx context.Context) ([]model.ExpenseRecord, error) {
	return s.queryExpenses(ctx, s.selectExpenses())
}

func (s *SQLStore) CreateUser(ctx context.Context, user *model.UserAccount) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query, args, err := s.sb.Insert("users").
		Columns("email", "user_id", "password_hash", "created_at").
		Values(user.Email, user.UserID, user.PasswordHash, user.CreatedAt.UTC()).
		Suffix("ON CONFLICT (email) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %q: %w", user.Email, ErrConflict)
	}
	return nil
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*model.UserAccount, error) {
	query, args, err := s.sb.Select("email", "user_id", "password_hash", "created_at").
		From("users").
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var u model.UserAccount
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&u.Email, &u.UserID, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) selectExpenses() sq.SelectBuilder {
	return s.sb.Select(expenseColumns...).From("expenses")
}

func (s *SQLStore) queryExpenses(ctx context.Context, q sq.SelectBuilder) ([]model.ExpenseRecord, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var records []model.ExpenseRecord
	for rows.Next() {
		r, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (model.ExpenseRecord, error) {
	var r model.ExpenseRecord
	err := row.Scan(&r.UserID, &r.ExpenseID, &r.Amount, &r.Category, &r.Date, &r.Notes, &r.CreatedAt)
	return r, err
}
