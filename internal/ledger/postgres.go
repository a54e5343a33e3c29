package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfs-pay/mfs_pay/internal/money"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

const accountColumns = `id, name, email, mobile, nid, profile_image, role, status, pin_hash, balance, created_at`
const entryColumns = `id, kind, sender, receiver, amount, status, created_at, resolved_at`

// PostgresStore persists accounts and ledger entries in PostgreSQL. Batches
// run in one transaction with the touched account rows locked.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

// CreateAccount inserts an account, mapping unique violations to domain errors.
func (s *PostgresStore) CreateAccount(ctx context.Context, a Account) error {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.Exec(ctx, `INSERT INTO accounts (`+accountColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, a.Name, a.Email, a.Mobile, a.NID, a.ProfileImage, string(a.Role), string(a.Status), a.PINHash, int64(a.Balance), a.CreatedAt.UTC())
	if err != nil {
		return accountWriteError(err)
	}
	return nil
}

// AccountByID fetches an account by its identifier.
func (s *PostgresStore) AccountByID(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrAccountNotFound
	}
	return s.queryAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
}

// AccountByEmail fetches an account by email.
func (s *PostgresStore) AccountByEmail(ctx context.Context, email string) (Account, error) {
	return s.queryAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

// AccountByMobile fetches an account by mobile number.
func (s *PostgresStore) AccountByMobile(ctx context.Context, mobile string) (Account, error) {
	return s.queryAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE mobile = $1`, mobile)
}

// Admin fetches the single administrator account.
func (s *PostgresStore) Admin(ctx context.Context) (Account, error) {
	return s.queryAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE role = $1`, string(RoleAdmin))
}

// ListAccounts returns every account ordered by creation time.
func (s *PostgresStore) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := s.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at, email`)
	if err != nil {
		return nil, storeError("list accounts", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, storeError("scan account", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list accounts", err)
	}
	return out, nil
}

// UpdateStatus sets an account status by email.
func (s *PostgresStore) UpdateStatus(ctx context.Context, email string, status AccountStatus) error {
	cmd, err := s.db.Exec(ctx, `UPDATE accounts SET status = $1 WHERE email = $2`, string(status), email)
	if err != nil {
		return storeError("update status", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// UpdateRole changes an account role. The partial unique index rejects a second admin.
func (s *PostgresStore) UpdateRole(ctx context.Context, id string, role Role) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrAccountNotFound
	}
	cmd, err := s.db.Exec(ctx, `UPDATE accounts SET role = $1 WHERE id = $2`, string(role), accountID)
	if err != nil {
		return accountWriteError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DeleteAccount removes an account. Ledger entries are left untouched.
func (s *PostgresStore) DeleteAccount(ctx context.Context, id string) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrAccountNotFound
	}
	cmd, err := s.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return storeError("delete account", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Apply commits a batch atomically. Account rows are locked in id order so
// concurrent batches touching the same accounts cannot deadlock.
func (s *PostgresStore) Apply(ctx context.Context, batch Batch) ([]Entry, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storeError("begin batch", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var transitionID uuid.UUID
	if t := batch.Transition; t != nil {
		transitionID, err = uuid.Parse(t.EntryID)
		if err != nil {
			return nil, ErrEntryNotFound
		}
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM ledger_entries WHERE id = $1 FOR UPDATE`, transitionID).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrEntryNotFound
			}
			return nil, storeError("lock entry", err)
		}
		if err := transitionError(Status(current)); err != nil {
			return nil, err
		}
	}

	order, deltas := mergePostings(batch.Postings)
	sort.Strings(order)
	for _, id := range order {
		accountID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		var (
			balance int64
			email   string
		)
		err = tx.QueryRow(ctx, `SELECT balance, email FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance, &email)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
			}
			return nil, storeError("lock account", err)
		}
		next := balance + int64(deltas[id])
		if next < 0 {
			return nil, fmt.Errorf("%w: account %s", ErrInsufficientFunds, email)
		}
		if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2`, next, accountID); err != nil {
			return nil, storeError("update balance", err)
		}
	}

	now := time.Now().UTC()
	inserted := make([]Entry, 0, len(batch.Entries))
	for _, e := range batch.Entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		entryID, err := uuid.Parse(e.ID)
		if err != nil {
			return nil, err
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if _, err := tx.Exec(ctx, `INSERT INTO ledger_entries (id, kind, sender, receiver, amount, status, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			entryID, string(e.Kind), e.Sender, e.Receiver, int64(e.Amount), string(e.Status), e.CreatedAt); err != nil {
			return nil, storeError("insert entry", err)
		}
		inserted = append(inserted, e)
	}

	if t := batch.Transition; t != nil {
		cmd, err := tx.Exec(ctx, `UPDATE ledger_entries SET status = $1, resolved_at = $2 WHERE id = $3 AND status = $4`,
			string(t.To), now, transitionID, string(StatusPending))
		if err != nil {
			return nil, storeError("resolve entry", err)
		}
		if cmd.RowsAffected() == 0 {
			return nil, ErrAlreadyConfirmed
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("commit batch", err)
	}
	return inserted, nil
}

// Entry fetches a ledger entry by id.
func (s *PostgresStore) Entry(ctx context.Context, id string) (Entry, error) {
	entryID, err := uuid.Parse(id)
	if err != nil {
		return Entry{}, ErrEntryNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, entryID)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, storeError("get entry", err)
	}
	return e, nil
}

// Entries lists ledger entries matching the filter, oldest first.
func (s *PostgresStore) Entries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	where, args := filterClause(filter)
	query := `SELECT ` + entryColumns + ` FROM ledger_entries` + where + ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError("list entries", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, storeError("scan entry", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list entries", err)
	}
	return out, nil
}

// Totals sums entry amounts grouped by kind.
func (s *PostgresStore) Totals(ctx context.Context, filter EntryFilter) ([]KindTotal, error) {
	where, args := filterClause(filter)
	rows, err := s.db.Query(ctx, `SELECT kind, COALESCE(SUM(amount), 0) FROM ledger_entries`+where+` GROUP BY kind ORDER BY kind`, args...)
	if err != nil {
		return nil, storeError("totals", err)
	}
	defer rows.Close()

	var out []KindTotal
	for rows.Next() {
		var (
			kind  string
			total int64
		)
		if err := rows.Scan(&kind, &total); err != nil {
			return nil, storeError("scan totals", err)
		}
		out = append(out, KindTotal{Kind: Kind(kind), Total: money.Money(total)})
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("totals", err)
	}
	return out, nil
}

// FeeIncome sums settled fee entries grouped by receiving party.
func (s *PostgresStore) FeeIncome(ctx context.Context) ([]PartyTotal, error) {
	where, args := filterClause(EntryFilter{Kinds: FeeKinds, Statuses: SettledStatuses})
	rows, err := s.db.Query(ctx, `SELECT receiver, COALESCE(SUM(amount), 0) FROM ledger_entries`+where+` GROUP BY receiver ORDER BY receiver`, args...)
	if err != nil {
		return nil, storeError("fee income", err)
	}
	defer rows.Close()

	var out []PartyTotal
	for rows.Next() {
		var (
			receiver string
			total    int64
		)
		if err := rows.Scan(&receiver, &total); err != nil {
			return nil, storeError("scan fee income", err)
		}
		out = append(out, PartyTotal{Receiver: receiver, Total: money.Money(total)})
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("fee income", err)
	}
	return out, nil
}

func (s *PostgresStore) queryAccount(ctx context.Context, query string, arg any) (Account, error) {
	a, err := scanAccount(s.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, storeError("get account", err)
	}
	return a, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		id        uuid.UUID
		role      string
		status    string
		balance   int64
		createdAt time.Time
		a         Account
	)
	if err := row.Scan(&id, &a.Name, &a.Email, &a.Mobile, &a.NID, &a.ProfileImage, &role, &status, &a.PINHash, &balance, &createdAt); err != nil {
		return Account{}, err
	}
	a.ID = id.String()
	a.Role = Role(role)
	a.Status = AccountStatus(status)
	a.Balance = money.Money(balance)
	a.CreatedAt = createdAt.UTC()
	return a, nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		id         uuid.UUID
		kind       string
		status     string
		amount     int64
		createdAt  time.Time
		resolvedAt *time.Time
		e          Entry
	)
	if err := row.Scan(&id, &kind, &e.Sender, &e.Receiver, &amount, &status, &createdAt, &resolvedAt); err != nil {
		return Entry{}, err
	}
	e.ID = id.String()
	e.Kind = Kind(kind)
	e.Status = Status(status)
	e.Amount = money.Money(amount)
	e.CreatedAt = createdAt.UTC()
	if resolvedAt != nil {
		t := resolvedAt.UTC()
		e.ResolvedAt = &t
	}
	return e, nil
}

func filterClause(f EntryFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Party != "" {
		args = append(args, f.Party)
		conds = append(conds, fmt.Sprintf("(sender = $%d OR receiver = $%d)", len(args), len(args)))
	}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		args = append(args, kinds)
		conds = append(conds, fmt.Sprintf("kind = ANY($%d)", len(args)))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if !f.CreatedBefore.IsZero() {
		args = append(args, f.CreatedBefore.UTC())
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func accountWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == "accounts_single_admin" {
			return ErrAdminExists
		}
		return ErrAlreadyExists
	}
	return storeError("write account", err)
}

// storeError wraps driver and timeout failures as ErrStoreUnavailable.
func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
