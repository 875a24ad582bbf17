package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	iam "github.com/goliatone/go-iam"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const pgUniqueViolation = "23505"

// Accounts implements iam.AccountStore using Bun.
type Accounts struct {
	db bun.IDB
}

var (
	_ iam.AccountStore   = (*Accounts)(nil)
	_ iam.AccountManager = (*Accounts)(nil)
)

// NewAccounts creates a new repository.
func NewAccounts(db bun.IDB) *Accounts {
	return &Accounts{db: db}
}

// FindByEmail implements iam.AccountStore.
func (r *Accounts) FindByEmail(ctx context.Context, email string) (*iam.Account, error) {
	return r.findOne(ctx, "email", strings.TrimSpace(email))
}

// FindBySub implements iam.AccountFinder.
func (r *Accounts) FindBySub(ctx context.Context, sub int64) (*iam.Account, error) {
	return r.findOne(ctx, "id", sub)
}

// FindByID implements iam.AccountStore. id is the decimal account id as it
// arrives in a route parameter.
func (r *Accounts) FindByID(ctx context.Context, id string) (*iam.Account, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return nil, iam.NewAccountNotFound(err, map[string]any{"id": id})
	}
	return r.FindBySub(ctx, n)
}

func (r *Accounts) findOne(ctx context.Context, column string, value any) (*iam.Account, error) {
	account := new(iam.Account)
	err := r.db.NewSelect().
		Model(account).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, iam.NewAccountNotFound(err, map[string]any{column: value})
		}
		return nil, err
	}
	return account, nil
}

// Create implements iam.AccountStore. A duplicate email yields an error for
// which iam.IsAccountExists is true.
func (r *Accounts) Create(ctx context.Context, draft iam.AccountDraft) (*iam.Account, error) {
	account := draft.Account()
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(account).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, iam.NewAccountExists(err, map[string]any{"email": account.Email})
		}
		return nil, err
	}

	return account, nil
}

// UpdateLastLoginIP implements iam.AccountStore.
func (r *Accounts) UpdateLastLoginIP(ctx context.Context, id int64, ip string) (*iam.Account, error) {
	res, err := r.db.NewUpdate().
		Model((*iam.Account)(nil)).
		Set("last_login_ip = ?", ip).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, iam.NewAccountNotFound(nil, map[string]any{"id": id})
	}

	return r.FindBySub(ctx, id)
}

// Update implements iam.AccountManager. Only the fields set on patch are
// written. An empty patch returns the stored account unchanged.
func (r *Accounts) Update(ctx context.Context, id int64, patch iam.AccountPatch) (*iam.Account, error) {
	if patch.IsEmpty() {
		return r.FindBySub(ctx, id)
	}

	q := r.db.NewUpdate().
		Model((*iam.Account)(nil)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id)

	if patch.Name != nil {
		q = q.Set("name = ?", *patch.Name)
	}
	if patch.Username != nil {
		q = q.Set("username = ?", *patch.Username)
	}
	if patch.Email != nil {
		q = q.Set("email = ?", strings.TrimSpace(*patch.Email))
	}
	if patch.Role != nil {
		q = q.Set("role = ?", *patch.Role)
	}
	if patch.Status != nil {
		q = q.Set("status = ?", *patch.Status)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, iam.NewAccountExists(err, map[string]any{"id": id})
		}
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, iam.NewAccountNotFound(nil, map[string]any{"id": id})
	}

	return r.FindBySub(ctx, id)
}

// UpdateRole changes the role of account id
func (r *Accounts) UpdateRole(ctx context.Context, id int64, role iam.Role) (*iam.Account, error) {
	return r.Update(ctx, id, iam.AccountPatch{Role: &role})
}

// UpdateStatus changes the status of account id
func (r *Accounts) UpdateStatus(ctx context.Context, id int64, status iam.Status) (*iam.Account, error) {
	return r.Update(ctx, id, iam.AccountPatch{Status: &status})
}

// Delete implements iam.AccountManager.
func (r *Accounts) Delete(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().
		Model((*iam.Account)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return iam.NewAccountNotFound(nil, map[string]any{"id": id})
	}

	return nil
}

// List implements iam.AccountStore, ordered by id.
func (r *Accounts) List(ctx context.Context) ([]*iam.Account, error) {
	var accounts []*iam.Account
	err := r.db.NewSelect().
		Model(&accounts).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []*iam.Account{}, nil
		}
		return nil, err
	}
	return accounts, nil
}

// Stats counts accounts per role and status
type Stats struct {
	Total    int                `json:"total"`
	ByRole   map[iam.Role]int   `json:"by_role"`
	ByStatus map[iam.Status]int `json:"by_status"`
}

// Stats returns the account totals shown on the admin dashboard
func (r *Accounts) Stats(ctx context.Context) (*Stats, error) {
	var rows []struct {
		Role   iam.Role   `bun:"role"`
		Status iam.Status `bun:"status"`
		Count  int        `bun:"count"`
	}

	err := r.db.NewSelect().
		Model((*iam.Account)(nil)).
		Column("role", "status").
		ColumnExpr("COUNT(*) AS count").
		Group("role", "status").
		Scan(ctx, &rows)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	stats := &Stats{
		ByRole:   map[iam.Role]int{},
		ByStatus: map[iam.Status]int{},
	}
	for _, row := range rows {
		stats.Total += row.Count
		stats.ByRole[row.Role] += row.Count
		stats.ByStatus[row.Status] += row.Count
	}

	return stats, nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == pgUniqueViolation
	}
	// sqlite drivers only expose the constraint through the message
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
