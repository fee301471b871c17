package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"bakerypos/backend/internal/domain"
	"bakerypos/backend/internal/store"
)

const maxTxAttempts = 3

// WithinTx runs fn in a serializable transaction and retries it when Postgres
// aborts it for a serialization conflict or a receipt number race.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isRetryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("transaction gave up after %d attempts: %w", maxTxAttempts, err)
}

func (s *Store) runTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) GetProductForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(t.tx.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	return updateProduct(ctx, t.tx, product)
}

func (t *pgTx) NextReceiptNo(ctx context.Context) (int64, error) {
	var next int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(receipt_no), $1) + 1
		FROM receipts
	`, domain.ReceiptNoBase).Scan(&next)
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (t *pgTx) InsertReceipt(ctx context.Context, receipt domain.Receipt) (*domain.Receipt, error) {
	if receipt.ReceiptNo <= domain.ReceiptNoBase {
		return nil, store.ErrInvalidInput
	}

	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO receipts (
			receipt_no, created_at, operator, customer_name, discount_kind,
			subtotal_cents, discount_cents, tax_cents, total_cents, tendered_cents, change_cents
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`, receipt.ReceiptNo, receipt.CreatedAt, receipt.Operator, nullIfEmpty(receipt.CustomerName), string(receipt.Discount),
		receipt.SubtotalCents, receipt.DiscountCents, receipt.TaxCents, receipt.TotalCents, receipt.TenderedCents, receipt.ChangeCents,
	).Scan(&receipt.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("receipt %d: %w: %w", receipt.ReceiptNo, store.ErrConflict, err)
		}
		return nil, err
	}
	receipt.Items = nil
	return &receipt, nil
}

func (t *pgTx) InsertReceiptItems(ctx context.Context, receiptID int64, items []domain.ReceiptItem) ([]domain.ReceiptItem, error) {
	saved := make([]domain.ReceiptItem, 0, len(items))
	for _, item := range items {
		if item.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		item.ReceiptID = receiptID
		err := t.tx.QueryRowContext(ctx, `
			INSERT INTO receipt_items (receipt_id, product_id, name, unit_price_cents, qty, line_total_cents)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id
		`, receiptID, item.ProductID, item.Name, item.UnitPriceCents, item.Qty, item.LineTotalCents).Scan(&item.ID)
		if err != nil {
			return nil, err
		}
		saved = append(saved, item)
	}
	return saved, nil
}

func (t *pgTx) DecrementStock(ctx context.Context, productID int64, qty int, at time.Time) error {
	if qty < 1 {
		return store.ErrInvalidInput
	}

	res, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity - $2, last_updated = $3
		WHERE id = $1 AND quantity >= $2
	`, productID, qty, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var available int
	err = t.tx.QueryRowContext(ctx, `SELECT quantity FROM products WHERE id = $1`, productID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("product %d has %d, need %d: %w", productID, available, qty, store.ErrInsufficientStock)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	case "23505":
		return pgErr.ConstraintName == "receipts_receipt_no_key"
	}
	return false
}
