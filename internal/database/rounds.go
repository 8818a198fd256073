package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soragane/tilescore/internal/models"
)

// Schema:
//
//	CREATE TABLE sessions (
//	    code        TEXT PRIMARY KEY,
//	    status      TEXT NOT NULL,
//	    round_wind  TEXT NOT NULL,
//	    dealer_seat INT NOT NULL,
//	    continues   INT NOT NULL,
//	    start_time  TIMESTAMPTZ NOT NULL,
//	    end_time    TIMESTAMPTZ
//	);
//
//	CREATE TABLE round_records (
//	    id           UUID PRIMARY KEY,
//	    session_code TEXT NOT NULL REFERENCES sessions(code),
//	    winner_id    INT NOT NULL,
//	    discarder_id INT,
//	    amount       INT NOT NULL,
//	    win_type     TEXT NOT NULL,
//	    dealer_win   BOOLEAN NOT NULL,
//	    recorded_at  TIMESTAMPTZ NOT NULL
//	);

// InsertSettlementTx inserts a single settlement record and upserts the
// session row to the post-settlement wind/dealer/continues state.
func InsertSettlementTx(ctx context.Context, tx pgx.Tx, rec models.SettlementRecord) error {
	upsertSessionQ := `
		INSERT INTO sessions (code, status, round_wind, dealer_seat, continues, start_time)
		VALUES ($1, 'active', $2, $3, $4, NOW())
		ON CONFLICT (code)
		DO UPDATE SET status = 'active', round_wind = $2, dealer_seat = $3, continues = $4
	`
	if _, err := tx.Exec(ctx, upsertSessionQ, rec.SessionCode, string(rec.RoundWind), rec.DealerSeat, rec.Continues); err != nil {
		return err
	}

	insertRoundQ := `
		INSERT INTO round_records (
			id, session_code, winner_id, discarder_id, amount, win_type, dealer_win, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, to_timestamp($8 / 1000.0))
		ON CONFLICT (id) DO NOTHING
	`
	_, err := tx.Exec(ctx, insertRoundQ,
		rec.ID, rec.SessionCode, rec.WinnerID, rec.DiscarderID,
		rec.Amount, rec.WinType, rec.DealerWin, rec.Timestamp,
	)
	return err
}

// MarkSessionAbandoned marks a session abandoned if it is still active.
func MarkSessionAbandoned(ctx context.Context, pool *pgxpool.Pool, code string) error {
	q := `
		UPDATE sessions
		SET status = 'abandoned', end_time = NOW()
		WHERE code = $1 AND status = 'active'
	`
	_, err := pool.Exec(ctx, q, code)
	return err
}

// BeginTxFunc starts a transaction on the pool, calls f with it, and commits
// or rolls back as needed.
func BeginTxFunc(ctx context.Context, pool *pgxpool.Pool, txOptions pgx.TxOptions, f func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}
