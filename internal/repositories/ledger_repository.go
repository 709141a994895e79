package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	intconfig "bustix/internal/config"
	intdb "bustix/internal/db"
	"bustix/internal/domain"
	"bustix/internal/domain/models"
)

// LedgerRepository is the MySQL LedgerStore. Appends lock the account's
// wallet_accounts row, so the idempotency lookup, the funds check and the
// insert happen as one step per account.
type LedgerRepository struct {
	DB *sql.DB
}

func (r LedgerRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

const ledgerColumns = `id, account_id, type, amount, status, idempotency_key,
	COALESCE(linked_reservation_id, ''), COALESCE(reverses_tx_id, ''), created_at`

func (r LedgerRepository) Append(ctx context.Context, in models.LedgerTransaction, guard bool) (models.LedgerTransaction, bool, error) {
	var (
		out       models.LedgerTransaction
		duplicate bool
	)
	err := intdb.WithTx(ctx, r.db(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT IGNORE INTO wallet_accounts (account_id, created_at) VALUES (?, ?)`, in.AccountID, in.CreatedAt); err != nil {
			return fmt.Errorf("failed to ensure wallet account: %w", err)
		}
		var locked string
		if err := tx.QueryRowContext(ctx, `SELECT account_id FROM wallet_accounts WHERE account_id = ? FOR UPDATE`, in.AccountID).Scan(&locked); err != nil {
			return fmt.Errorf("failed to lock wallet account: %w", err)
		}

		existing, err := scanLedgerRow(tx.QueryRowContext(ctx, `
			SELECT `+ledgerColumns+`
			FROM ledger_transactions
			WHERE account_id = ? AND idempotency_key = ?
		`, in.AccountID, in.IdempotencyKey))
		switch {
		case err == nil:
			out, duplicate = existing, true
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to look up idempotency key: %w", err)
		}

		if guard {
			balance, err := sumCompleted(ctx, tx, in.AccountID)
			if err != nil {
				return err
			}
			if balance+in.Amount < 0 {
				return domain.InsufficientFundsError{AccountID: in.AccountID, Balance: balance, Required: -in.Amount}
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_transactions (id, account_id, type, amount, status, idempotency_key, linked_reservation_id, reverses_tx_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, in.ID, in.AccountID, in.Type, in.Amount, in.Status, in.IdempotencyKey,
			intdb.NullIfEmpty(in.LinkedReservationID), intdb.NullIfEmpty(in.ReversesTransactionID), in.CreatedAt); err != nil {
			if intdb.IsDuplicateKey(err) {
				return domain.ConflictError{Resource: "ledger transaction", Msg: "duplicate transaction id", Err: err}
			}
			return fmt.Errorf("failed to insert ledger transaction: %w", err)
		}
		out = in
		return nil
	})
	if err != nil {
		return models.LedgerTransaction{}, false, err
	}
	return out, duplicate, nil
}

func (r LedgerRepository) Find(ctx context.Context, accountID, key string) (models.LedgerTransaction, bool, error) {
	tx, err := scanLedgerRow(r.db().QueryRowContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger_transactions
		WHERE account_id = ? AND idempotency_key = ?
	`, accountID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return models.LedgerTransaction{}, false, nil
	}
	if err != nil {
		return models.LedgerTransaction{}, false, fmt.Errorf("failed to find ledger transaction: %w", err)
	}
	return tx, true, nil
}

func (r LedgerRepository) Balance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := r.db().QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_transactions
		WHERE account_id = ? AND status = ?
	`, accountID, models.TxCompleted).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to sum balance: %w", err)
	}
	return balance, nil
}

func (r LedgerRepository) List(ctx context.Context, accountID string) ([]models.LedgerTransaction, error) {
	return listLedger(ctx, r.db(), accountID)
}

// Statement reads balance and history from one consistent snapshot.
func (r LedgerRepository) Statement(ctx context.Context, accountID string) (int64, []models.LedgerTransaction, error) {
	var (
		balance int64
		txs     []models.LedgerTransaction
	)
	err := intdb.WithTxOptions(ctx, r.db(), &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, func(tx *sql.Tx) error {
		var err error
		if balance, err = sumCompleted(ctx, tx, accountID); err != nil {
			return err
		}
		txs, err = listLedger(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return 0, nil, err
	}
	return balance, txs, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listLedger(ctx context.Context, q queryer, accountID string) ([]models.LedgerTransaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger_transactions
		WHERE account_id = ?
		ORDER BY seq
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	out := []models.LedgerTransaction{}
	for rows.Next() {
		tx, err := scanLedgerRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func sumCompleted(ctx context.Context, tx *sql.Tx, accountID string) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_transactions
		WHERE account_id = ? AND status = ?
	`, accountID, models.TxCompleted).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to sum balance: %w", err)
	}
	return balance, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedgerRow(row rowScanner) (models.LedgerTransaction, error) {
	var (
		tx     models.LedgerTransaction
		typ    string
		status string
	)
	if err := row.Scan(&tx.ID, &tx.AccountID, &typ, &tx.Amount, &status, &tx.IdempotencyKey,
		&tx.LinkedReservationID, &tx.ReversesTransactionID, &tx.CreatedAt); err != nil {
		return models.LedgerTransaction{}, err
	}
	tx.Type = models.TransactionType(typ)
	tx.Status = models.TransactionStatus(status)
	return tx, nil
}
