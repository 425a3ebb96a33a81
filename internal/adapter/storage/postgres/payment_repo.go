package postgres

import (
	"context"
	"errors"
	"fmt"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

var intentColumns = []string{
	"id", "amount", "currency", "status", "capture_method", "customer_id",
	"payment_method_type", "payment_method_token", "authorized_amount",
	"captured_amount", "refunded_amount", "provider", "provider_reference",
	"created_at", "updated_at",
}

var refundColumns = []string{
	"id", "payment_intent_id", "amount", "status", "reason", "created_at",
}

var chargebackColumns = []string{
	"id", "payment_intent_id", "amount", "reason", "status", "evidence_url",
	"created_at", "updated_at",
}

var ledgerColumns = []string{
	"id", "payment_intent_id", "refund_id", "entry_type", "direction",
	"amount", "currency", "provider", "provider_reference", "created_at",
}

// PaymentRepo implements ports.PaymentRepository over the payment_intents,
// refunds, chargebacks and ledger_entries tables.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// ---- Payment intents ----

// CreateIntent inserts a new payment intent.
func (r *PaymentRepo) CreateIntent(ctx context.Context, intent *domain.PaymentIntent) error {
	query := `INSERT INTO payment_intents (id, amount, currency, status, capture_method, customer_id,
		payment_method_type, payment_method_token, authorized_amount, captured_amount, refunded_amount,
		provider, provider_reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query,
		intent.ID, intent.Amount, intent.Currency, intent.Status, intent.CaptureMethod,
		intent.CustomerID, intent.PaymentMethodType, intent.PaymentMethodToken,
		intent.AuthorizedAmount, intent.CapturedAmount, intent.RefundedAmount,
		intent.Provider, intent.ProviderReference, intent.CreatedAt, intent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment intent: %w", err)
	}
	return nil
}

// GetIntent fetches a payment intent by id, or nil when absent.
func (r *PaymentRepo) GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	query := `SELECT id, amount, currency, status, capture_method, customer_id,
		payment_method_type, payment_method_token, authorized_amount, captured_amount, refunded_amount,
		provider, provider_reference, created_at, updated_at
		FROM payment_intents WHERE id = $1`

	return r.scanIntent(r.pool.QueryRow(ctx, query, id))
}

// UpdateIntentIf persists the intent's mutable fields only when the stored
// status still equals expect. Returns false when another writer moved the
// intent first.
func (r *PaymentRepo) UpdateIntentIf(ctx context.Context, intent *domain.PaymentIntent, expect domain.IntentStatus) (bool, error) {
	query := `UPDATE payment_intents
		SET status = $1, authorized_amount = $2, captured_amount = $3, refunded_amount = $4,
			provider = $5, provider_reference = $6, updated_at = $7
		WHERE id = $8 AND status = $9`

	tag, err := r.pool.Exec(ctx, query,
		intent.Status, intent.AuthorizedAmount, intent.CapturedAmount, intent.RefundedAmount,
		intent.Provider, intent.ProviderReference, intent.UpdatedAt,
		intent.ID, expect,
	)
	if err != nil {
		return false, fmt.Errorf("update payment intent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListIntents pages intents filtered semantically, newest first.
func (r *PaymentRepo) ListIntents(ctx context.Context, f ports.IntentFilter, p ports.Page) ([]domain.PaymentIntent, bool, error) {
	conds := intentConds(f)
	after, err := keysetPredicate(ctx, r.pool, "payment_intents", "created_at", conds, p)
	if err != nil {
		return nil, false, err
	}

	query, args, err := pageSelect(intentColumns, "payment_intents", "created_at", conds, after, p.Limit).ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build intent listing: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list payment intents: %w", err)
	}
	defer rows.Close()

	var intents []domain.PaymentIntent
	for rows.Next() {
		var it domain.PaymentIntent
		if err := rows.Scan(
			&it.ID, &it.Amount, &it.Currency, &it.Status, &it.CaptureMethod, &it.CustomerID,
			&it.PaymentMethodType, &it.PaymentMethodToken, &it.AuthorizedAmount,
			&it.CapturedAmount, &it.RefundedAmount, &it.Provider, &it.ProviderReference,
			&it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return nil, false, fmt.Errorf("scan payment intent row: %w", err)
		}
		intents = append(intents, it)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate payment intent rows: %w", err)
	}

	hasMore := len(intents) > p.Limit
	if hasMore {
		intents = intents[:p.Limit]
	}
	return intents, hasMore, nil
}

func intentConds(f ports.IntentFilter) []sq.Sqlizer {
	var conds []sq.Sqlizer
	if f.AmountMin != nil {
		conds = append(conds, sq.GtOrEq{"amount": *f.AmountMin})
	}
	if f.AmountMax != nil {
		conds = append(conds, sq.LtOrEq{"amount": *f.AmountMax})
	}
	if f.Currency != nil {
		conds = append(conds, sq.Eq{"currency": *f.Currency})
	}
	if f.Status != nil {
		conds = append(conds, sq.Eq{"status": *f.Status})
	}
	if f.CustomerID != nil {
		conds = append(conds, sq.Eq{"customer_id": *f.CustomerID})
	}
	if f.Provider != nil {
		conds = append(conds, sq.Eq{"provider": *f.Provider})
	}
	if f.ProviderReference != nil {
		conds = append(conds, sq.Eq{"provider_reference": *f.ProviderReference})
	}
	if f.MethodType != nil {
		conds = append(conds, sq.Eq{"payment_method_type": *f.MethodType})
	}
	if f.CreatedFrom != nil {
		conds = append(conds, sq.GtOrEq{"created_at": *f.CreatedFrom})
	}
	if f.CreatedTo != nil {
		conds = append(conds, sq.LtOrEq{"created_at": *f.CreatedTo})
	}
	return conds
}

func (r *PaymentRepo) scanIntent(row pgx.Row) (*domain.PaymentIntent, error) {
	it := &domain.PaymentIntent{}
	err := row.Scan(
		&it.ID, &it.Amount, &it.Currency, &it.Status, &it.CaptureMethod, &it.CustomerID,
		&it.PaymentMethodType, &it.PaymentMethodToken, &it.AuthorizedAmount,
		&it.CapturedAmount, &it.RefundedAmount, &it.Provider, &it.ProviderReference,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment intent: %w", err)
	}
	return it, nil
}

// ---- Refunds ----

// CreateRefund inserts a refund record.
func (r *PaymentRepo) CreateRefund(ctx context.Context, refund *domain.Refund) error {
	query := `INSERT INTO refunds (id, payment_intent_id, amount, status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		refund.ID, refund.PaymentIntentID, refund.Amount, refund.Status, refund.Reason, refund.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

// ListRefunds pages refunds filtered semantically, newest first.
func (r *PaymentRepo) ListRefunds(ctx context.Context, f ports.RefundFilter, p ports.Page) ([]domain.Refund, bool, error) {
	var conds []sq.Sqlizer
	if f.AmountMin != nil {
		conds = append(conds, sq.GtOrEq{"amount": *f.AmountMin})
	}
	if f.AmountMax != nil {
		conds = append(conds, sq.LtOrEq{"amount": *f.AmountMax})
	}
	if f.PaymentIntentID != nil {
		conds = append(conds, sq.Eq{"payment_intent_id": *f.PaymentIntentID})
	}
	if f.Status != nil {
		conds = append(conds, sq.Eq{"status": *f.Status})
	}
	if f.CreatedFrom != nil {
		conds = append(conds, sq.GtOrEq{"created_at": *f.CreatedFrom})
	}
	if f.CreatedTo != nil {
		conds = append(conds, sq.LtOrEq{"created_at": *f.CreatedTo})
	}

	after, err := keysetPredicate(ctx, r.pool, "refunds", "created_at", conds, p)
	if err != nil {
		return nil, false, err
	}
	query, args, err := pageSelect(refundColumns, "refunds", "created_at", conds, after, p.Limit).ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build refund listing: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []domain.Refund
	for rows.Next() {
		var rf domain.Refund
		if err := rows.Scan(&rf.ID, &rf.PaymentIntentID, &rf.Amount, &rf.Status, &rf.Reason, &rf.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scan refund row: %w", err)
		}
		refunds = append(refunds, rf)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate refund rows: %w", err)
	}

	hasMore := len(refunds) > p.Limit
	if hasMore {
		refunds = refunds[:p.Limit]
	}
	return refunds, hasMore, nil
}

// ---- Chargebacks ----

// CreateChargeback inserts a chargeback record.
func (r *PaymentRepo) CreateChargeback(ctx context.Context, cb *domain.Chargeback) error {
	query := `INSERT INTO chargebacks (id, payment_intent_id, amount, reason, status, evidence_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		cb.ID, cb.PaymentIntentID, cb.Amount, cb.Reason, cb.Status, cb.EvidenceURL, cb.CreatedAt, cb.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chargeback: %w", err)
	}
	return nil
}

// GetChargeback fetches a chargeback by id, or nil when absent.
func (r *PaymentRepo) GetChargeback(ctx context.Context, id string) (*domain.Chargeback, error) {
	query := `SELECT id, payment_intent_id, amount, reason, status, evidence_url, created_at, updated_at
		FROM chargebacks WHERE id = $1`

	cb := &domain.Chargeback{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&cb.ID, &cb.PaymentIntentID, &cb.Amount, &cb.Reason, &cb.Status, &cb.EvidenceURL, &cb.CreatedAt, &cb.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chargeback: %w", err)
	}
	return cb, nil
}

// UpdateChargebackIf persists the chargeback's status only when the stored
// status still equals expect.
func (r *PaymentRepo) UpdateChargebackIf(ctx context.Context, cb *domain.Chargeback, expect domain.ChargebackStatus) (bool, error) {
	query := `UPDATE chargebacks SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	tag, err := r.pool.Exec(ctx, query, cb.Status, cb.UpdatedAt, cb.ID, expect)
	if err != nil {
		return false, fmt.Errorf("update chargeback: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListChargebacks pages chargebacks filtered semantically, newest first.
func (r *PaymentRepo) ListChargebacks(ctx context.Context, f ports.ChargebackFilter, p ports.Page) ([]domain.Chargeback, bool, error) {
	var conds []sq.Sqlizer
	if f.PaymentIntentID != nil {
		conds = append(conds, sq.Eq{"payment_intent_id": *f.PaymentIntentID})
	}
	if f.Status != nil {
		conds = append(conds, sq.Eq{"status": *f.Status})
	}
	if f.CreatedFrom != nil {
		conds = append(conds, sq.GtOrEq{"created_at": *f.CreatedFrom})
	}
	if f.CreatedTo != nil {
		conds = append(conds, sq.LtOrEq{"created_at": *f.CreatedTo})
	}

	after, err := keysetPredicate(ctx, r.pool, "chargebacks", "created_at", conds, p)
	if err != nil {
		return nil, false, err
	}
	query, args, err := pageSelect(chargebackColumns, "chargebacks", "created_at", conds, after, p.Limit).ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build chargeback listing: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list chargebacks: %w", err)
	}
	defer rows.Close()

	var cbs []domain.Chargeback
	for rows.Next() {
		var cb domain.Chargeback
		if err := rows.Scan(&cb.ID, &cb.PaymentIntentID, &cb.Amount, &cb.Reason, &cb.Status, &cb.EvidenceURL, &cb.CreatedAt, &cb.UpdatedAt); err != nil {
			return nil, false, fmt.Errorf("scan chargeback row: %w", err)
		}
		cbs = append(cbs, cb)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate chargeback rows: %w", err)
	}

	hasMore := len(cbs) > p.Limit
	if hasMore {
		cbs = cbs[:p.Limit]
	}
	return cbs, hasMore, nil
}

// ---- Ledger ----

// CreateLedgerEntry appends an entry to the audit ledger.
func (r *PaymentRepo) CreateLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, payment_intent_id, refund_id, entry_type, direction,
		amount, currency, provider, provider_reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.PaymentIntentID, entry.RefundID, entry.EntryType, entry.Direction,
		entry.Amount, entry.Currency, entry.Provider, entry.ProviderReference, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ListLedgerEntries pages ledger entries filtered semantically, newest first.
func (r *PaymentRepo) ListLedgerEntries(ctx context.Context, f ports.LedgerFilter, p ports.Page) ([]domain.LedgerEntry, bool, error) {
	var conds []sq.Sqlizer
	if f.PaymentIntentID != nil {
		conds = append(conds, sq.Eq{"payment_intent_id": *f.PaymentIntentID})
	}
	if f.EntryType != nil {
		conds = append(conds, sq.Eq{"entry_type": *f.EntryType})
	}
	if f.Currency != nil {
		conds = append(conds, sq.Eq{"currency": *f.Currency})
	}
	if f.CreatedFrom != nil {
		conds = append(conds, sq.GtOrEq{"created_at": *f.CreatedFrom})
	}
	if f.CreatedTo != nil {
		conds = append(conds, sq.LtOrEq{"created_at": *f.CreatedTo})
	}

	after, err := keysetPredicate(ctx, r.pool, "ledger_entries", "created_at", conds, p)
	if err != nil {
		return nil, false, err
	}
	query, args, err := pageSelect(ledgerColumns, "ledger_entries", "created_at", conds, after, p.Limit).ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build ledger listing: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.PaymentIntentID, &e.RefundID, &e.EntryType, &e.Direction,
			&e.Amount, &e.Currency, &e.Provider, &e.ProviderReference, &e.CreatedAt,
		); err != nil {
			return nil, false, fmt.Errorf("scan ledger entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate ledger entry rows: %w", err)
	}

	hasMore := len(entries) > p.Limit
	if hasMore {
		entries = entries[:p.Limit]
	}
	return entries, hasMore, nil
}
