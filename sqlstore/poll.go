package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jhchabran/ideabox"
	"github.com/jmoiron/sqlx"
)

type countRow struct {
	Choice ideabox.Choice `db:"choice"`
	Total  int64          `db:"total"`
}

func readCounts(ctx context.Context, q sqlx.QueryerContext) (*ideabox.Counts, error) {
	rows := []countRow{}
	err := sqlx.SelectContext(ctx, q, &rows, "SELECT choice, total FROM big_issue_counts")
	if err != nil {
		return nil, err
	}

	counts := &ideabox.Counts{}
	for _, r := range rows {
		counts.Add(r.Choice, r.Total)
	}
	return counts, nil
}

func readChoice(ctx context.Context, q sqlx.QueryerContext, bind func(string) string, userID string) (ideabox.Choice, error) {
	var choice ideabox.Choice
	err := sqlx.GetContext(ctx, q, &choice, bind("SELECT choice FROM big_issue_votes WHERE user_id = ?"), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ideabox.ChoiceNone, nil
	}
	if err != nil {
		return ideabox.ChoiceNone, err
	}
	return choice, nil
}

func (s *SQLStore) PollCounts(ctx context.Context) (*ideabox.Counts, error) {
	return readCounts(ctx, s.db)
}

func (s *SQLStore) FindChoice(ctx context.Context, userID string) (ideabox.Choice, error) {
	return readChoice(ctx, s.db, s.db.Rebind, userID)
}

// RunPollTx runs fn in a database transaction. On postgres, a transaction level
// advisory lock on the identifier serialises concurrent votes of the same
// identifier, while votes of different identifiers only contend on the counter rows.
// SQLite runs with a single connection, which serialises transactions already.
func (s *SQLStore) RunPollTx(ctx context.Context, userID string, fn func(ideabox.PollTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	// no-op once committed
	defer tx.Rollback()

	if s.driver == DriverPostgres {
		_, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", userID)
		if err != nil {
			return err
		}
	}

	err = fn(&pollTx{ctx: ctx, tx: tx, userID: userID})
	if err != nil {
		return err
	}

	return tx.Commit()
}

type pollTx struct {
	ctx    context.Context
	tx     *sqlx.Tx
	userID string
}

func (t *pollTx) Choice() (ideabox.Choice, error) {
	return readChoice(t.ctx, t.tx, t.tx.Rebind, t.userID)
}

func (t *pollTx) SetChoice(c ideabox.Choice) error {
	_, err := t.tx.ExecContext(t.ctx, t.tx.Rebind(`
		INSERT INTO big_issue_votes (user_id, choice, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET choice = excluded.choice, updated_at = excluded.updated_at`),
		t.userID, string(c), normalizeTime(ideabox.NowFunc()),
	)
	return err
}

func (t *pollTx) AdjustCount(c ideabox.Choice, delta int64) error {
	initial := delta
	if initial < 0 {
		initial = 0
	}

	_, err := t.tx.ExecContext(t.ctx, t.tx.Rebind(`
		INSERT INTO big_issue_counts (choice, total) VALUES (?, ?)
		ON CONFLICT (choice) DO UPDATE SET total = CASE
			WHEN big_issue_counts.total + ? < 0 THEN 0
			ELSE big_issue_counts.total + ?
		END`),
		string(c), initial, delta, delta,
	)
	return err
}

func (t *pollTx) Counts() (*ideabox.Counts, error) {
	return readCounts(t.ctx, t.tx)
}
