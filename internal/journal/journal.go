package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	// StatusRejected marks operations stopped by a guard before anything was sent.
	StatusRejected Status = "rejected"
)

// Entry is one submitted (or refused) shop operation. Address is the
// derived account identifying it: trade state, auction, bid or drop order.
type Entry struct {
	ID         uuid.UUID
	Operation  string
	Address    solana.PublicKey
	Wallet     solana.PublicKey
	Signatures []solana.Signature
	Status     Status
	ErrorKind  string
	Error      string
	CreatedAt  time.Time
}

type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the journal database and creates its table. driver is
// DriverSQLite (dsn is a file path or ":memory:") or DriverPostgres.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var sqlDriver string
	switch driver {
	case "", DriverSQLite:
		driver, sqlDriver = DriverSQLite, "sqlite"
	case DriverPostgres:
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported journal driver %q (expected sqlite|postgres)", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// every sqlite connection to ":memory:" is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxIdleTime(30 * time.Second)
		db.SetMaxIdleConns(2)
		db.SetMaxOpenConns(4)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	store := &Store{db: db, driver: driver}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			operation TEXT NOT NULL,
			address TEXT NOT NULL,
			wallet TEXT NOT NULL,
			signatures TEXT NOT NULL,
			status TEXT NOT NULL,
			error_kind TEXT NOT NULL,
			error TEXT NOT NULL,
			created_at BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_address ON submissions(address, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions(created_at);`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate journal: %w", err)
		}
	}
	return nil
}

// Record stores e, filling ID and CreatedAt when unset. Generated IDs are
// time ordered so entries sharing a timestamp keep insertion order.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return Entry{}, fmt.Errorf("new journal id: %w", err)
		}
		e.ID = id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO submissions (id, operation, address, wallet, signatures, status, error_kind, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		e.ID.String(),
		e.Operation,
		e.Address.String(),
		e.Wallet.String(),
		joinSignatures(e.Signatures),
		string(e.Status),
		e.ErrorKind,
		e.Error,
		e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("record %s: %w", e.Operation, err)
	}
	return e, nil
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, operation, address, wallet, signatures, status, error_kind, error, created_at
		FROM submissions
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent submissions: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent submissions: %w", err)
	}
	return out, nil
}

// LastForAddress returns the newest entry for address; ok is false when
// there is none.
func (s *Store) LastForAddress(ctx context.Context, address solana.PublicKey) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, operation, address, wallet, signatures, status, error_kind, error, created_at
		FROM submissions
		WHERE address = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`), address.String())
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		id, address, wallet, signatures, status string
		e                                       Entry
		createdAt                               int64
	)
	if err := row.Scan(&id, &e.Operation, &address, &wallet, &signatures, &status, &e.ErrorKind, &e.Error, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan submission: %w", err)
	}

	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return Entry{}, fmt.Errorf("parse submission id %q: %w", id, err)
	}
	if e.Address, err = solana.PublicKeyFromBase58(address); err != nil {
		return Entry{}, fmt.Errorf("parse submission address %q: %w", address, err)
	}
	if e.Wallet, err = solana.PublicKeyFromBase58(wallet); err != nil {
		return Entry{}, fmt.Errorf("parse submission wallet %q: %w", wallet, err)
	}
	if e.Signatures, err = splitSignatures(signatures); err != nil {
		return Entry{}, err
	}
	e.Status = Status(status)
	e.CreatedAt = time.UnixMilli(createdAt)
	return e, nil
}

func joinSignatures(sigs []solana.Signature) string {
	parts := make([]string, 0, len(sigs))
	for _, sig := range sigs {
		parts = append(parts, sig.String())
	}
	return strings.Join(parts, ",")
}

func splitSignatures(raw string) ([]solana.Signature, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]solana.Signature, 0, len(parts))
	for _, part := range parts {
		sig, err := solana.SignatureFromBase58(part)
		if err != nil {
			return nil, fmt.Errorf("parse submission signature %q: %w", part, err)
		}
		out = append(out, sig)
	}
	return out, nil
}

func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	return rebindPostgresPlaceholders(query)
}

func rebindPostgresPlaceholders(query string) string {
	var out strings.Builder
	out.Grow(len(query) + 16)

	arg := 1
	inSingleQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if ch == '\'' {
			out.WriteByte(ch)
			if inSingleQuote {
				// SQL escape: two single quotes inside a string literal.
				if i+1 < len(query) && query[i+1] == '\'' {
					out.WriteByte(query[i+1])
					i++
					continue
				}
				inSingleQuote = false
			} else {
				inSingleQuote = true
			}
			continue
		}

		if ch == '?' && !inSingleQuote {
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(arg))
			arg++
			continue
		}

		out.WriteByte(ch)
	}

	return out.String()
}
