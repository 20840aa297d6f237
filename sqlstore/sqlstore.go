package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jhchabran/ideabox"
	"github.com/jhchabran/ideabox/ranking"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// SQLITE_CONSTRAINT and its extended SQLITE_CONSTRAINT_FOREIGNKEY code.
	sqliteConstraint           = 19
	sqliteConstraintForeignKey = 787
)

const (
	proposalColumns = "id, created_at, text, upvotes, downvotes"
	commentColumns  = "id, created_at, proposal_id, user_name, text"
)

var orderClauses = map[ranking.Order]string{
	ranking.Newest:    "created_at DESC, id DESC",
	ranking.Oldest:    "created_at ASC, id ASC",
	ranking.Top:       "upvotes DESC, created_at DESC, id DESC",
	ranking.Downvoted: "downvotes DESC, created_at DESC, id DESC",
	// hot depends on the current time and is computed once rows are loaded
	ranking.Hot: "created_at DESC, id DESC",
}

// A SQLStore is responsible of interacting with the storage layer using either a
// Postgresql or a SQLite database. It implements both ideabox.Store and ideabox.PollStore.
type SQLStore struct {
	driver   string
	dbString string
	db       *sqlx.DB
}

// New returns a SQLStore configured for a given driver and address string, using the
// "user=postgres dbname=ideabox ..." format for postgres, or a file name for sqlite.
func New(driver string, addr string) *SQLStore {
	return &SQLStore{
		driver:   driver,
		dbString: addr,
	}
}

// Connect establish a connection with the database using the address given at initialization.
// Calling it on a connected store does nothing.
func (s *SQLStore) Connect() error {
	if s.db != nil {
		return nil
	}

	switch s.driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", s.driver)
	}

	db, err := sqlx.Connect(s.driver, s.dbString)
	if err != nil {
		return err
	}

	if s.driver == DriverSQLite {
		// SQLite allows a single writer, and each connection to :memory: is a
		// distinct database.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return err
		}
	}

	s.db = db

	return nil
}

// DB returns the existing connection, making it suitable to perform requests not already supported by
// the store interface. If called while not connected, it will return nil.
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

func (s *SQLStore) Driver() string {
	return s.driver
}

func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *SQLStore) ListProposals(ctx context.Context, q ideabox.ProposalQuery) ([]*ideabox.Proposal, error) {
	order, ok := orderClauses[q.Order]
	if !ok {
		order = orderClauses[ranking.Newest]
	}

	var args []interface{}
	query := "SELECT " + proposalColumns + " FROM proposals"
	if q.Search != "" {
		query += ` WHERE LOWER(text) LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(strings.ToLower(q.Search))+"%")
	}
	query += " ORDER BY " + order

	paginateInSQL := q.PerPage > 0 && q.Order != ranking.Hot
	if paginateInSQL {
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.PerPage, q.Page*q.PerPage)
	}

	proposals := []*ideabox.Proposal{}
	err := s.db.SelectContext(ctx, &proposals, s.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}

	if q.Order == ranking.Hot {
		ranking.Sort(proposals, ranking.Hot, ideabox.NowFunc())
		if q.PerPage > 0 {
			proposals = page(proposals, q.Page, q.PerPage)
		}
	}

	return proposals, nil
}

func page(ps []*ideabox.Proposal, n int, perPage int) []*ideabox.Proposal {
	start := n * perPage
	if start >= len(ps) {
		return []*ideabox.Proposal{}
	}
	end := start + perPage
	if end > len(ps) {
		end = len(ps)
	}
	return ps[start:end]
}

func (s *SQLStore) FindProposal(ctx context.Context, id int64) (*ideabox.Proposal, error) {
	proposal := ideabox.Proposal{}
	err := s.db.GetContext(ctx, &proposal, s.db.Rebind("SELECT "+proposalColumns+" FROM proposals WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ideabox.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &proposal, nil
}

func (s *SQLStore) InsertProposal(ctx context.Context, p *ideabox.Proposal) error {
	p.CreatedAt = normalizeTime(p.CreatedAt)
	p.Upvotes = 0
	p.Downvotes = 0

	var id int64
	err := s.db.GetContext(ctx, &id,
		s.db.Rebind("INSERT INTO proposals (created_at, text, upvotes, downvotes) VALUES (?, ?, 0, 0) RETURNING id"),
		p.CreatedAt, p.Text,
	)
	if err != nil {
		return err
	}

	p.ID = id

	return nil
}

// IncrementProposalVote performs the increment in the UPDATE statement itself, the
// database serialising concurrent updates of the same row.
func (s *SQLStore) IncrementProposalVote(ctx context.Context, id int64, vt ideabox.VoteType) (*ideabox.Proposal, error) {
	var column string
	switch vt {
	case ideabox.VoteUp:
		column = "upvotes"
	case ideabox.VoteDown:
		column = "downvotes"
	default:
		return nil, fmt.Errorf("invalid vote type %q", vt)
	}

	query := fmt.Sprintf("UPDATE proposals SET %[1]s = %[1]s + 1 WHERE id = ? RETURNING %[2]s", column, proposalColumns)

	proposal := ideabox.Proposal{}
	err := s.db.GetContext(ctx, &proposal, s.db.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ideabox.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &proposal, nil
}

func (s *SQLStore) ListComments(ctx context.Context, proposalID int64) ([]*ideabox.Comment, error) {
	comments := []*ideabox.Comment{}
	err := s.db.SelectContext(ctx, &comments,
		s.db.Rebind("SELECT "+commentColumns+" FROM comments WHERE proposal_id = ? ORDER BY created_at DESC, id DESC"),
		proposalID,
	)
	if err != nil {
		return nil, err
	}

	return comments, nil
}

func (s *SQLStore) InsertComment(ctx context.Context, c *ideabox.Comment) error {
	c.CreatedAt = normalizeTime(c.CreatedAt)

	var id int64
	err := s.db.GetContext(ctx, &id,
		s.db.Rebind("INSERT INTO comments (created_at, proposal_id, user_name, text) VALUES (?, ?, ?, ?) RETURNING id"),
		c.CreatedAt, c.ProposalID, c.UserName, c.Text,
	)
	if isForeignKeyViolation(err) {
		return ideabox.ErrNotFound
	}
	if err != nil {
		return err
	}

	c.ID = id

	return nil
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}

	var perr *pq.Error
	if errors.As(err, &perr) {
		return perr.Code.Name() == "foreign_key_violation"
	}

	var serr *sqlite.Error
	if errors.As(err, &serr) {
		return serr.Code() == sqliteConstraintForeignKey ||
			(serr.Code()&0xff == sqliteConstraint && strings.Contains(serr.Error(), "FOREIGN KEY"))
	}

	return false
}

// normalizeTime drops what the databases cannot store, so that a record keeps
// the same timestamp once read back.
func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		t = ideabox.NowFunc()
	}
	return t.UTC().Truncate(time.Microsecond)
}
