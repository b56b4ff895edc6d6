package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/duetrack/duetrack/internal/bill"
	"github.com/duetrack/duetrack/internal/schedule"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectBillColumns = `
	id, tenant_id, name, amount, is_variable, frequency_kind, schedule_mode,
	schedule_config, due_date, auto_pay, archived, kind, account, category,
	notes, icon, created_at, updated_at
`

// scanBill reads a bill row and parses its recurrence rule. Expected column
// order matches selectBillColumns.
func scanBill(s scanner) (*bill.Bill, error) {
	var b bill.Bill

	var kindStr string

	var config, account, category, notes, icon sql.NullString

	if err := s.Scan(
		&b.ID, &b.TenantID, &b.Name, &b.Amount, &b.IsVariable,
		&b.FrequencyKind, &b.ScheduleMode, &config, &b.DueDate,
		&b.AutoPay, &b.Archived, &kindStr, &account, &category,
		&notes, &icon, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}

	b.Kind = bill.Kind(kindStr)
	b.ScheduleConfig = []byte(config.String)
	b.Account = account.String
	b.Category = category.String
	b.Notes = notes.String
	b.Icon = icon.String

	// Parse the recurrence exactly once, here at the row boundary.
	b.Rule = schedule.Parse(b.FrequencyKind, b.ScheduleMode, b.ScheduleConfig)

	return &b, nil
}

func (s *Store) CreateBill(ctx context.Context, b *bill.Bill) error {
	query := `
		INSERT INTO bills (
			tenant_id, name, amount, is_variable, frequency_kind, schedule_mode,
			schedule_config, due_date, auto_pay, archived, kind, account,
			category, notes, icon, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		b.TenantID,
		b.Name,
		b.Amount,
		b.IsVariable,
		b.FrequencyKind,
		b.ScheduleMode,
		string(b.ScheduleConfig),
		b.DueDate,
		b.AutoPay,
		b.Archived,
		b.Kind,
		b.Account,
		b.Category,
		b.Notes,
		b.Icon,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating bill: %w", err)
	}

	return nil
}

func (s *Store) GetBill(ctx context.Context, tenantID, billID uuid.UUID) (*bill.Bill, error) {
	query := `SELECT ` + selectBillColumns + `
		FROM bills
		WHERE id = $1 AND tenant_id = $2`

	b, err := scanBill(s.db.QueryRowContext(ctx, query, billID, tenantID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, bill.ErrNotFound
		}

		return nil, fmt.Errorf("getting bill: %w", err)
	}

	return b, nil
}

func (s *Store) UpdateBill(ctx context.Context, b *bill.Bill) error {
	query := `
		UPDATE bills
		SET name = $1, amount = $2, is_variable = $3, frequency_kind = $4,
			schedule_mode = $5, schedule_config = $6, due_date = $7,
			auto_pay = $8, kind = $9, account = $10, category = $11,
			notes = $12, icon = $13, updated_at = NOW()
		WHERE id = $14 AND tenant_id = $15
	`

	res, err := s.db.ExecContext(ctx, query,
		b.Name,
		b.Amount,
		b.IsVariable,
		b.FrequencyKind,
		b.ScheduleMode,
		string(b.ScheduleConfig),
		b.DueDate,
		b.AutoPay,
		b.Kind,
		b.Account,
		b.Category,
		b.Notes,
		b.Icon,
		b.ID,
		b.TenantID,
	)
	if err != nil {
		return fmt.Errorf("updating bill: %w", err)
	}

	return requireRow(res, bill.ErrNotFound)
}

func (s *Store) SetArchived(ctx context.Context, tenantID, billID uuid.UUID, archived bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bills SET archived = $1, updated_at = NOW()
		WHERE id = $2 AND tenant_id = $3
	`, archived, billID, tenantID)
	if err != nil {
		return fmt.Errorf("archiving bill: %w", err)
	}

	return requireRow(res, bill.ErrNotFound)
}

// DeleteBill hard-deletes the bill and its settlements in one transaction,
// settlements first.
func (s *Store) DeleteBill(ctx context.Context, tenantID, billID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM settlements
		WHERE bill_id IN (SELECT id FROM bills WHERE id = $1 AND tenant_id = $2)
	`, billID, tenantID)
	if err != nil {
		return fmt.Errorf("deleting settlements: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM bills WHERE id = $1 AND tenant_id = $2
	`, billID, tenantID)
	if err != nil {
		return fmt.Errorf("deleting bill: %w", err)
	}

	if err := requireRow(res, bill.ErrNotFound); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) ListBills(ctx context.Context, tenantID uuid.UUID, includeArchived bool) ([]*bill.Bill, error) {
	query := `SELECT ` + selectBillColumns + `
		FROM bills
		WHERE tenant_id = $1`

	if !includeArchived {
		query += ` AND archived = FALSE`
	}

	query += ` ORDER BY due_date ASC, name ASC`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	defer rows.Close()

	var bills []*bill.Bill

	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bill: %w", err)
		}

		bills = append(bills, b)
	}

	return bills, rows.Err()
}

// ListDueAutoPay selects the active auto-pay bills due on or before asOf,
// oldest due date first. The auto-settlement pass evaluates this once per
// invocation.
func (s *Store) ListDueAutoPay(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]*bill.Bill, error) {
	query := `SELECT ` + selectBillColumns + `
		FROM bills
		WHERE tenant_id = $1 AND archived = FALSE AND auto_pay = TRUE AND due_date <= $2
		ORDER BY due_date ASC, name ASC`

	rows, err := s.db.QueryContext(ctx, query, tenantID, asOf)
	if err != nil {
		return nil, fmt.Errorf("listing due auto-pay bills: %w", err)
	}
	defer rows.Close()

	var bills []*bill.Bill

	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bill: %w", err)
		}

		bills = append(bills, b)
	}

	return bills, rows.Err()
}

func (s *Store) AverageAmount(ctx context.Context, tenantID uuid.UUID, name string) (*int64, error) {
	var avg sql.NullFloat64

	err := s.db.QueryRowContext(ctx, `
		SELECT AVG(s.amount)
		FROM settlements s
		JOIN bills b ON s.bill_id = b.id
		WHERE b.tenant_id = $1 AND b.name = $2
	`, tenantID, name).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("averaging settlements: %w", err)
	}

	if !avg.Valid {
		return nil, nil
	}

	rounded := int64(math.Round(avg.Float64))

	return &rounded, nil
}

// Settle inserts the settlement and applies any due-date advancement as one
// transaction; a failure leaves neither applied.
func (s *Store) Settle(ctx context.Context, params bill.SettleParams) (*bill.Settlement, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	settlement := &bill.Settlement{
		BillID:    params.Bill.ID,
		Amount:    params.Amount,
		SettledOn: params.Date,
		Notes:     params.Notes,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO settlements (bill_id, amount, settled_on, notes, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`, settlement.BillID, settlement.Amount, settlement.SettledOn, settlement.Notes,
	).Scan(&settlement.ID, &settlement.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("recording settlement: %w", err)
	}

	if params.Advance {
		res, err := tx.ExecContext(ctx, `
			UPDATE bills SET due_date = $1, archived = FALSE, updated_at = NOW()
			WHERE id = $2 AND tenant_id = $3
		`, params.NextDue, params.Bill.ID, params.Bill.TenantID)
		if err != nil {
			return nil, fmt.Errorf("advancing due date: %w", err)
		}

		if err := requireRow(res, bill.ErrNotFound); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing settlement: %w", err)
	}

	return settlement, nil
}

const selectSettlementColumns = `s.id, s.bill_id, s.amount, s.settled_on, s.notes, s.created_at`

func scanSettlement(sc scanner) (*bill.Settlement, error) {
	var s bill.Settlement

	var notes sql.NullString

	if err := sc.Scan(&s.ID, &s.BillID, &s.Amount, &s.SettledOn, &notes, &s.CreatedAt); err != nil {
		return nil, err
	}

	s.Notes = notes.String

	return &s, nil
}

func (s *Store) ListSettlements(ctx context.Context, tenantID, billID uuid.UUID) ([]*bill.Settlement, error) {
	query := `SELECT ` + selectSettlementColumns + `
		FROM settlements s
		JOIN bills b ON s.bill_id = b.id
		WHERE b.id = $1 AND b.tenant_id = $2
		ORDER BY s.settled_on DESC, s.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, billID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*bill.Settlement

	for rows.Next() {
		settlement, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning settlement: %w", err)
		}

		settlements = append(settlements, settlement)
	}

	return settlements, rows.Err()
}

func (s *Store) GetSettlement(ctx context.Context, tenantID, settlementID uuid.UUID) (*bill.Settlement, error) {
	query := `SELECT ` + selectSettlementColumns + `
		FROM settlements s
		JOIN bills b ON s.bill_id = b.id
		WHERE s.id = $1 AND b.tenant_id = $2`

	settlement, err := scanSettlement(s.db.QueryRowContext(ctx, query, settlementID, tenantID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, bill.ErrSettlementNotFound
		}

		return nil, fmt.Errorf("getting settlement: %w", err)
	}

	return settlement, nil
}

func (s *Store) UpdateSettlement(ctx context.Context, tenantID uuid.UUID, settlement *bill.Settlement) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE settlements
		SET amount = $1, settled_on = $2, notes = $3
		WHERE id = $4 AND bill_id IN (SELECT id FROM bills WHERE tenant_id = $5)
	`, settlement.Amount, settlement.SettledOn, settlement.Notes, settlement.ID, tenantID)
	if err != nil {
		return fmt.Errorf("updating settlement: %w", err)
	}

	return requireRow(res, bill.ErrSettlementNotFound)
}

func (s *Store) DeleteSettlement(ctx context.Context, tenantID, settlementID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM settlements
		WHERE id = $1 AND bill_id IN (SELECT id FROM bills WHERE tenant_id = $2)
	`, settlementID, tenantID)
	if err != nil {
		return fmt.Errorf("deleting settlement: %w", err)
	}

	return requireRow(res, bill.ErrSettlementNotFound)
}

// requireRow converts a zero-row write into notFoundErr.
func requireRow(res sql.Result, notFoundErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}

	if n == 0 {
		return notFoundErr
	}

	return nil
}
