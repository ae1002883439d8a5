package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/brojonat/solwithdraw/service/metrics"
	"github.com/brojonat/solwithdraw/service/withdrawal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// Store is the Postgres withdrawal ledger. Terminal transitions are guarded
// by the row's status so each applies at most once.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// m may be nil.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// Migrate creates the ledger tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const withdrawalColumns = `id, from_address, to_address, lamports, memo, network, status,
	signature, explorer_url, confirmation_status, failure_reason,
	created_at, updated_at, completed_at`

// CreateWithdrawal inserts a pending withdrawal and moves its amount from
// the sender's available balance to reserved, in one transaction.
func (s *Store) CreateWithdrawal(ctx context.Context, params withdrawal.CreateParams) (rec *withdrawal.Record, err error) {
	defer s.observe("create", "withdrawals", time.Now(), &err)

	amount, err := lamportsToBigint(params.Lamports)
	if err != nil {
		return nil, err
	}

	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE balances
			SET available = available - $2, reserved = reserved + $2, updated_at = now()
			WHERE address = $1 AND available >= $2`,
			params.From, amount)
		if err != nil {
			return fmt.Errorf("failed to reserve balance: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s cannot cover %d lamports", withdrawal.ErrInsufficientLedgerBalance, params.From, params.Lamports)
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO withdrawals (id, from_address, to_address, lamports, memo, network, status)
			VALUES ($1, $2, $3, $4, $5, $6, 'pending')
			RETURNING `+withdrawalColumns,
			params.ID, params.From, params.To, amount, pgtextFromString(params.Memo), params.Network)
		rec, err = scanWithdrawal(row)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: %s", withdrawal.ErrWithdrawalExists, params.ID)
			}
			return fmt.Errorf("failed to insert withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetWithdrawal retrieves a withdrawal by id.
func (s *Store) GetWithdrawal(ctx context.Context, id string) (rec *withdrawal.Record, err error) {
	defer s.observe("get", "withdrawals", time.Now(), &err)

	row := s.pool.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id)
	rec, err = scanWithdrawal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", withdrawal.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListWithdrawals returns the newest withdrawals first. An empty address
// lists every sender; a non-positive limit defaults to 100.
func (s *Store) ListWithdrawals(ctx context.Context, address string, limit int) (recs []*withdrawal.Record, err error) {
	defer s.observe("list", "withdrawals", time.Now(), &err)

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawals
		WHERE $1 = '' OR from_address = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs = make([]*withdrawal.Record, 0)
	for rows.Next() {
		rec, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// MarkProcessing moves a pending withdrawal to processing. A withdrawal
// already processing is left as is so a retried job can resume it.
func (s *Store) MarkProcessing(ctx context.Context, id string) (err error) {
	defer s.observe("mark_processing", "withdrawals", time.Now(), &err)

	tag, err := s.pool.Exec(ctx, `
		UPDATE withdrawals
		SET status = 'processing', updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'processing')`,
		id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.notOpen(ctx, s.pool, id)
	}
	return nil
}

// Complete settles a withdrawal as completed and releases its reservation.
func (s *Store) Complete(ctx context.Context, id string, c withdrawal.Completion) (err error) {
	defer s.observe("complete", "withdrawals", time.Now(), &err)

	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var from string
		var amount int64
		err := tx.QueryRow(ctx, `
			UPDATE withdrawals
			SET status = 'completed', signature = $2, explorer_url = $3, confirmation_status = $4,
				updated_at = now(), completed_at = now()
			WHERE id = $1 AND status IN ('pending', 'processing')
			RETURNING from_address, lamports`,
			id, c.Signature, c.ExplorerURL, c.ConfirmationStatus).Scan(&from, &amount)
		if errors.Is(err, pgx.ErrNoRows) {
			return s.notOpen(ctx, tx, id)
		}
		if err != nil {
			return fmt.Errorf("failed to complete withdrawal: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE balances SET reserved = reserved - $2, updated_at = now()
			WHERE address = $1`,
			from, amount); err != nil {
			return fmt.Errorf("failed to release reservation: %w", err)
		}
		return nil
	})
}

// Fail settles a withdrawal as failed and returns its reservation to the
// sender's available balance.
func (s *Store) Fail(ctx context.Context, id string, reason string) (err error) {
	defer s.observe("fail", "withdrawals", time.Now(), &err)

	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var from string
		var amount int64
		err := tx.QueryRow(ctx, `
			UPDATE withdrawals
			SET status = 'failed', failure_reason = $2, updated_at = now()
			WHERE id = $1 AND status IN ('pending', 'processing')
			RETURNING from_address, lamports`,
			id, reason).Scan(&from, &amount)
		if errors.Is(err, pgx.ErrNoRows) {
			return s.notOpen(ctx, tx, id)
		}
		if err != nil {
			return fmt.Errorf("failed to fail withdrawal: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE balances
			SET available = available + $2, reserved = reserved - $2, updated_at = now()
			WHERE address = $1`,
			from, amount); err != nil {
			return fmt.Errorf("failed to restore balance: %w", err)
		}
		return nil
	})
}

// GetBalance returns an account's ledger balance. Unknown accounts have a
// zero balance.
func (s *Store) GetBalance(ctx context.Context, address string) (b *withdrawal.Balance, err error) {
	defer s.observe("get", "balances", time.Now(), &err)

	var available, reserved int64
	var updatedAt time.Time
	err = s.pool.QueryRow(ctx, `
		SELECT available, reserved, updated_at FROM balances WHERE address = $1`,
		address).Scan(&available, &reserved, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &withdrawal.Balance{Address: address}, nil
	}
	if err != nil {
		return nil, err
	}
	return &withdrawal.Balance{
		Address:   address,
		Available: uint64(available),
		Reserved:  uint64(reserved),
		UpdatedAt: updatedAt,
	}, nil
}

// Credit adds lamports to an account's available balance.
func (s *Store) Credit(ctx context.Context, address string, lamports uint64) (b *withdrawal.Balance, err error) {
	defer s.observe("credit", "balances", time.Now(), &err)

	amount, err := lamportsToBigint(lamports)
	if err != nil {
		return nil, err
	}
	var available, reserved int64
	var updatedAt time.Time
	err = s.pool.QueryRow(ctx, `
		INSERT INTO balances (address, available)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE
		SET available = balances.available + EXCLUDED.available, updated_at = now()
		RETURNING available, reserved, updated_at`,
		address, amount).Scan(&available, &reserved, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to credit balance: %w", err)
	}
	return &withdrawal.Balance{
		Address:   address,
		Available: uint64(available),
		Reserved:  uint64(reserved),
		UpdatedAt: updatedAt,
	}, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// notOpen explains why a guarded update matched no row.
func (s *Store) notOpen(ctx context.Context, q querier, id string) error {
	var status string
	err := q.QueryRow(ctx, `SELECT status FROM withdrawals WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", withdrawal.ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s is %s", withdrawal.ErrAlreadySettled, id, status)
}

func (s *Store) observe(operation, table string, start time.Time, err *error) {
	var e error
	if err != nil {
		e = *err
	}
	// settlement races are expected, not database errors
	if errors.Is(e, withdrawal.ErrAlreadySettled) || errors.Is(e, withdrawal.ErrNotFound) ||
		errors.Is(e, withdrawal.ErrInsufficientLedgerBalance) {
		e = nil
	}
	s.metrics.RecordDBQuery(operation, table, time.Since(start).Seconds(), e)
}

func scanWithdrawal(row pgx.Row) (*withdrawal.Record, error) {
	var (
		rec                                                     withdrawal.Record
		lamports                                                int64
		status                                                  string
		memo, signature, explorerURL, confirmation, failureText pgtype.Text
		completedAt                                             pgtype.Timestamptz
	)
	err := row.Scan(
		&rec.ID, &rec.From, &rec.To, &lamports, &memo, &rec.Network, &status,
		&signature, &explorerURL, &confirmation, &failureText,
		&rec.CreatedAt, &rec.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Lamports = uint64(lamports)
	rec.Status = withdrawal.Status(status)
	rec.Memo = memo.String
	rec.Signature = signature.String
	rec.ExplorerURL = explorerURL.String
	rec.ConfirmationStatus = confirmation.String
	rec.FailureReason = failureText.String
	rec.CompletedAt = timePtrFromPgTimestamptz(completedAt)
	return &rec, nil
}

func lamportsToBigint(lamports uint64) (int64, error) {
	if lamports > math.MaxInt64 {
		return 0, fmt.Errorf("amount %d lamports exceeds ledger range", lamports)
	}
	return int64(lamports), nil
}

func pgtextFromString(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func timePtrFromPgTimestamptz(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

var _ withdrawal.Ledger = (*Store)(nil)
