package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/greencredits/greencredits/internal/domain"
)

var _ domain.Store = (*DB)(nil)

// ─── Ledger Operations ──────────────────────────────────────────────────────

const accountColumns = `user_id, total_credits, available_credits, redeemed, report_count,
	gps_report_count, streak, last_activity, multiplier`

// GetAccount loads one ledger account.
func (db *DB) GetAccount(ctx context.Context, userID string) (domain.LedgerAccount, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE user_id = ?`, userID)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LedgerAccount{}, domain.ErrAccountNotFound
	}
	return acct, err
}

// CreateAccount inserts an empty account unless one exists.
func (db *DB) CreateAccount(ctx context.Context, userID string) (domain.LedgerAccount, error) {
	var acct domain.LedgerAccount
	err := db.inTx(ctx, func(sqlTx *sql.Tx) error {
		if err := insertAccount(ctx, sqlTx, userID); err != nil {
			return err
		}
		var err error
		acct, err = loadAccount(ctx, sqlTx, userID)
		return err
	})
	return acct, err
}

// SetMultiplier updates the multiplier column only.
func (db *DB) SetMultiplier(ctx context.Context, userID string, m float64) (domain.LedgerAccount, error) {
	var acct domain.LedgerAccount
	err := db.inTx(ctx, func(sqlTx *sql.Tx) error {
		if err := insertAccount(ctx, sqlTx, userID); err != nil {
			return err
		}
		if _, err := sqlTx.ExecContext(ctx,
			`UPDATE ledger_accounts SET multiplier = ? WHERE user_id = ?`, m, userID); err != nil {
			return fmt.Errorf("set multiplier: %w", err)
		}
		var err error
		acct, err = loadAccount(ctx, sqlTx, userID)
		return err
	})
	return acct, err
}

// ApplyLedgerUpdate applies u inside one SQL transaction. Balances and
// report counters are updated as column deltas, never as values read
// before the transaction began.
func (db *DB) ApplyLedgerUpdate(ctx context.Context, u domain.LedgerUpdate) (domain.LedgerUpdateResult, error) {
	var res domain.LedgerUpdateResult
	err := db.inTx(ctx, func(sqlTx *sql.Tx) error {
		if err := insertAccount(ctx, sqlTx, u.UserID); err != nil {
			return err
		}
		if a := u.Activity; a != nil {
			if _, err := sqlTx.ExecContext(ctx, `
				UPDATE ledger_accounts SET
					report_count     = report_count + ?,
					gps_report_count = gps_report_count + ?,
					streak           = ?,
					last_activity    = ?
				WHERE user_id = ?
			`, a.Reports, a.GPSReports, a.Streak, formatTime(a.LastActivity), u.UserID); err != nil {
				return fmt.Errorf("update activity: %w", err)
			}
		}

		for _, tx := range u.Transactions {
			tx.UserID = u.UserID
			stored, err := postTransaction(ctx, sqlTx, tx)
			if err != nil {
				return err
			}
			res.Transactions = append(res.Transactions, stored)
		}

		for _, g := range u.Badges {
			added, err := insertBadge(ctx, sqlTx, u.UserID, g.Badge)
			if err != nil {
				return fmt.Errorf("grant %s: %w", g.Badge.Key, err)
			}
			if !added {
				continue
			}
			res.Badges = append(res.Badges, g.Badge)
			if g.Bonus == nil {
				continue
			}
			bonus := *g.Bonus
			bonus.UserID = u.UserID
			stored, err := postTransaction(ctx, sqlTx, bonus)
			if err != nil {
				return err
			}
			res.Transactions = append(res.Transactions, stored)
		}

		var err error
		res.Account, err = loadAccount(ctx, sqlTx, u.UserID)
		return err
	})
	if err != nil {
		return domain.LedgerUpdateResult{}, err
	}
	return res, nil
}

// ScanAccounts streams every account to fn.
func (db *DB) ScanAccounts(ctx context.Context, fn func(domain.LedgerAccount) bool) error {
	rows, err := db.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM ledger_accounts ORDER BY user_id`)
	if err != nil {
		return err
	}

	// Drain before calling fn: the pool has one connection and fn may query.
	var accounts []domain.LedgerAccount
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			rows.Close()
			return err
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, acct := range accounts {
		if !fn(acct) {
			break
		}
	}
	return nil
}

// ListTransactions returns a user's transactions oldest first.
func (db *DB) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, user_id, action, amount, description, report_id, reward_id, created_at
		FROM credit_transactions WHERE user_id = ? ORDER BY id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Transaction, 0)
	for rows.Next() {
		var (
			tx       domain.Transaction
			action   string
			reportID sql.NullInt64
			created  string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &action, &tx.Amount, &tx.Description, &reportID, &tx.RewardID, &created); err != nil {
			return nil, err
		}
		if tx.Action, err = domain.ParseActionKind(action); err != nil {
			return nil, err
		}
		if reportID.Valid {
			id := reportID.Int64
			tx.ReportID = &id
		}
		tx.Timestamp = parseTime(created)
		result = append(result, tx)
	}
	return result, rows.Err()
}

// ─── Badge Operations ───────────────────────────────────────────────────────

// ListBadges returns a user's badges in the order they were earned.
func (db *DB) ListBadges(ctx context.Context, userID string) ([]domain.Badge, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT badge_key, name, icon, description, earned_at
		FROM user_badges WHERE user_id = ? ORDER BY earned_at, rowid
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Badge, 0)
	for rows.Next() {
		var (
			b      domain.Badge
			key    string
			earned string
		)
		if err := rows.Scan(&key, &b.Name, &b.Icon, &b.Description, &earned); err != nil {
			return nil, err
		}
		if b.Key, err = domain.ParseBadgeKey(key); err != nil {
			return nil, err
		}
		b.EarnedAt = parseTime(earned)
		result = append(result, b)
	}
	return result, rows.Err()
}

// AddBadge records ownership; a badge already owned is left untouched.
func (db *DB) AddBadge(ctx context.Context, userID string, b domain.Badge) (bool, error) {
	return insertBadge(ctx, db.db, userID, b)
}

func insertBadge(ctx context.Context, ex execer, userID string, b domain.Badge) (bool, error) {
	res, err := ex.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_badges (user_id, badge_key, name, icon, description, earned_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, userID, b.Key.String(), b.Name, b.Icon, b.Description, formatTime(b.EarnedAt))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ─── User Operations ────────────────────────────────────────────────────────

// CreateUser inserts a user; emails are unique case-insensitively.
func (db *DB) CreateUser(ctx context.Context, u domain.User) error {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	res, err := db.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (id, name, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.ID, u.Name, email, u.PasswordHash, string(u.Role), formatTime(u.CreatedAt))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserExists
	}
	return nil
}

// GetUser loads a user by id.
func (db *DB) GetUser(ctx context.Context, id string) (domain.User, error) {
	return db.getUser(ctx, `id = ?`, id)
}

// GetUserByEmail loads a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return db.getUser(ctx, `email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (domain.User, error) {
	var (
		u       domain.User
		role    string
		created string
	)
	err := db.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at FROM users WHERE `+where, arg,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	u.CreatedAt = parseTime(created)
	return u, nil
}

// ─── Report Operations ──────────────────────────────────────────────────────

const reportColumns = `id, user_id, reporter_name, reporter_email, description, address, lat, lng,
	photo_url, status, disposal_method, created_at, updated_at`

// CreateReport inserts a report and returns it with its assigned id.
func (db *DB) CreateReport(ctx context.Context, r domain.Report) (domain.Report, error) {
	res, err := db.db.ExecContext(ctx, `
		INSERT INTO reports (user_id, reporter_name, reporter_email, description, address, lat, lng,
			photo_url, status, disposal_method, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.UserID, r.ReporterName, r.ReporterEmail, r.Description, r.Address, nullFloat(r.Lat), nullFloat(r.Lng),
		r.PhotoURL, string(r.Status), string(r.DisposalMethod), formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return domain.Report{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Report{}, err
	}
	r.ID = id
	return r, nil
}

// GetReport loads one report.
func (db *DB) GetReport(ctx context.Context, id int64) (domain.Report, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Report{}, domain.ErrReportNotFound
	}
	return r, err
}

// UpdateReport rewrites the mutable report fields.
func (db *DB) UpdateReport(ctx context.Context, r domain.Report) error {
	res, err := db.db.ExecContext(ctx, `
		UPDATE reports SET status = ?, disposal_method = ?, updated_at = ? WHERE id = ?
	`, string(r.Status), string(r.DisposalMethod), formatTime(r.UpdatedAt), r.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrReportNotFound
	}
	return nil
}

// ListReports returns every report newest first.
func (db *DB) ListReports(ctx context.Context) ([]domain.Report, error) {
	return db.queryReports(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY created_at DESC, id DESC`)
}

// ListReportsByUser returns a user's reports newest first.
func (db *DB) ListReportsByUser(ctx context.Context, userID string) ([]domain.Report, error) {
	return db.queryReports(ctx, `SELECT `+reportColumns+` FROM reports WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
}

func (db *DB) queryReports(ctx context.Context, query string, args ...any) ([]domain.Report, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Report, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// ─── Scanning Helpers ───────────────────────────────────────────────────────

type scanner interface {
	Scan(dest ...any) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// inTx runs fn inside a transaction and commits when fn returns nil.
func (db *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	sqlTx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func insertAccount(ctx context.Context, ex execer, userID string) error {
	_, err := ex.ExecContext(ctx, `INSERT OR IGNORE INTO ledger_accounts (user_id, multiplier) VALUES (?, ?)`,
		userID, domain.DefaultMultiplier)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func loadAccount(ctx context.Context, sqlTx *sql.Tx, userID string) (domain.LedgerAccount, error) {
	row := sqlTx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE user_id = ?`, userID)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LedgerAccount{}, domain.ErrAccountNotFound
	}
	return acct, err
}

// postTransaction adds tx.Amount to the account row and appends tx. A
// debit only matches the row while the stored balance covers it.
func postTransaction(ctx context.Context, sqlTx *sql.Tx, tx domain.Transaction) (domain.Transaction, error) {
	var (
		res sql.Result
		err error
	)
	if tx.Amount >= 0 {
		res, err = sqlTx.ExecContext(ctx, `
			UPDATE ledger_accounts SET
				total_credits     = total_credits + ?,
				available_credits = available_credits + ?
			WHERE user_id = ?
		`, tx.Amount, tx.Amount, tx.UserID)
	} else {
		res, err = sqlTx.ExecContext(ctx, `
			UPDATE ledger_accounts SET
				available_credits = available_credits + ?,
				redeemed          = redeemed - ?
			WHERE user_id = ? AND available_credits + ? >= 0
		`, tx.Amount, tx.Amount, tx.UserID, tx.Amount)
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("update balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Transaction{}, err
	}
	if n == 0 {
		var available int64
		if err := sqlTx.QueryRowContext(ctx,
			`SELECT available_credits FROM ledger_accounts WHERE user_id = ?`, tx.UserID).Scan(&available); err != nil {
			return domain.Transaction{}, fmt.Errorf("read balance: %w", err)
		}
		return domain.Transaction{}, fmt.Errorf("%w: need %d, have %d", domain.ErrInsufficientBalance, -tx.Amount, available)
	}

	var reportID sql.NullInt64
	if tx.ReportID != nil {
		reportID = sql.NullInt64{Int64: *tx.ReportID, Valid: true}
	}
	ins, err := sqlTx.ExecContext(ctx, `
		INSERT INTO credit_transactions (user_id, action, amount, description, report_id, reward_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, tx.UserID, tx.Action.String(), tx.Amount, tx.Description, reportID, tx.RewardID, formatTime(tx.Timestamp))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	if tx.ID, err = ins.LastInsertId(); err != nil {
		return domain.Transaction{}, err
	}
	return tx, nil
}

func scanAccount(s scanner) (domain.LedgerAccount, error) {
	var (
		a    domain.LedgerAccount
		last string
	)
	err := s.Scan(&a.UserID, &a.TotalCredits, &a.AvailableCredits, &a.Redeemed, &a.ReportCount,
		&a.GPSReportCount, &a.Streak, &last, &a.Multiplier)
	if err != nil {
		return domain.LedgerAccount{}, err
	}
	a.LastActivity = parseTime(last)
	return a, nil
}

func scanReport(s scanner) (domain.Report, error) {
	var (
		r                domain.Report
		lat, lng         sql.NullFloat64
		status, disposal string
		created, updated string
	)
	err := s.Scan(&r.ID, &r.UserID, &r.ReporterName, &r.ReporterEmail, &r.Description, &r.Address,
		&lat, &lng, &r.PhotoURL, &status, &disposal, &created, &updated)
	if err != nil {
		return domain.Report{}, err
	}
	if lat.Valid {
		r.Lat = &lat.Float64
	}
	if lng.Valid {
		r.Lng = &lng.Float64
	}
	r.Status = domain.ReportStatus(status)
	r.DisposalMethod = domain.DisposalMethod(disposal)
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return r, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
