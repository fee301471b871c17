// Package checkout turns a cart snapshot into a persisted receipt. It is the
// only code that creates receipts or takes stock away for a sale.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bakerypos/backend/internal/cart"
	"bakerypos/backend/internal/domain"
	"bakerypos/backend/internal/pricing"
	"bakerypos/backend/internal/store"
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInsufficientPayment = errors.New("insufficient payment")
)

type PaymentError struct {
	TotalCents    int64
	TenderedCents int64
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("tendered %d is less than total %d", e.TenderedCents, e.TotalCents)
}

func (e *PaymentError) Unwrap() error {
	return ErrInsufficientPayment
}

type ProductNotFoundError struct {
	ProductID int64
	Name      string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d (%s) is no longer in the catalog", e.ProductID, e.Name)
}

func (e *ProductNotFoundError) Unwrap() error {
	return store.ErrNotFound
}

// Transactor opens the all-or-nothing boundary a sale is written in.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx store.Tx) error) error
}

type Request struct {
	Lines         []cart.Line
	Discount      domain.DiscountKind
	TenderedCents int64
	Operator      string
	CustomerName  string
}

type Result struct {
	Receipt domain.Receipt
	Summary pricing.Summary
}

type Manager struct {
	repo   Transactor
	logger zerolog.Logger
	now    func() time.Time
}

func New(repo Transactor, logger zerolog.Logger) *Manager {
	return &Manager{
		repo:   repo,
		logger: logger.With().Str("component", "checkout").Logger(),
		now:    time.Now,
	}
}

// Charge validates the sale against the live catalog and commits the receipt,
// its items and the stock decrements together. Business rejections leave the
// stores untouched; storage failures roll the whole sale back.
func (m *Manager) Charge(ctx context.Context, req Request) (Result, error) {
	lines, err := mergeLines(req.Lines)
	if err != nil {
		return Result{}, err
	}
	if len(lines) == 0 {
		return Result{}, ErrEmptyCart
	}
	if _, ok := pricing.DiscountRate(req.Discount); !ok {
		return Result{}, fmt.Errorf("discount %q: %w", req.Discount, store.ErrInvalidInput)
	}

	var result Result
	err = m.repo.WithinTx(ctx, func(tx store.Tx) error {
		products := make([]domain.Product, 0, len(lines))
		items := make([]domain.ReceiptItem, 0, len(lines))
		for _, line := range lines {
			product, err := tx.GetProductForUpdate(ctx, line.ProductID)
			if errors.Is(err, store.ErrNotFound) {
				return &ProductNotFoundError{ProductID: line.ProductID, Name: line.Name}
			}
			if err != nil {
				return fmt.Errorf("load product %d: %w", line.ProductID, err)
			}
			products = append(products, *product)
			items = append(items, domain.ReceiptItem{
				ProductID:      product.ID,
				Name:           product.Name,
				UnitPriceCents: product.PriceCents,
				Qty:            line.Qty,
				LineTotalCents: product.PriceCents * int64(line.Qty),
			})
		}

		summary := pricing.Compute(itemPricingLines(items), req.Discount, req.TenderedCents)
		if req.TenderedCents < summary.TotalCents {
			return &PaymentError{TotalCents: summary.TotalCents, TenderedCents: req.TenderedCents}
		}
		for i, product := range products {
			if product.Quantity < lines[i].Qty {
				return &store.StockError{
					ProductID: product.ID,
					Name:      product.Name,
					Requested: lines[i].Qty,
					Available: product.Quantity,
				}
			}
		}

		receiptNo, err := tx.NextReceiptNo(ctx)
		if err != nil {
			return fmt.Errorf("next receipt number: %w", err)
		}
		at := m.now().UTC().Truncate(time.Microsecond)
		saved, err := tx.InsertReceipt(ctx, domain.Receipt{
			ReceiptNo:     receiptNo,
			CreatedAt:     at,
			Operator:      req.Operator,
			CustomerName:  req.CustomerName,
			Discount:      req.Discount,
			SubtotalCents: summary.SubtotalCents,
			DiscountCents: summary.DiscountCents,
			TaxCents:      summary.TaxCents,
			TotalCents:    summary.TotalCents,
			TenderedCents: summary.TenderedCents,
			ChangeCents:   summary.ChangeCents,
		})
		if err != nil {
			return fmt.Errorf("insert receipt %d: %w", receiptNo, err)
		}
		savedItems, err := tx.InsertReceiptItems(ctx, saved.ID, items)
		if err != nil {
			return fmt.Errorf("insert items of receipt %d: %w", receiptNo, err)
		}
		for _, line := range lines {
			if err := tx.DecrementStock(ctx, line.ProductID, line.Qty, at); err != nil {
				return fmt.Errorf("decrement stock of product %d: %w", line.ProductID, err)
			}
		}

		result = Result{Receipt: *saved, Summary: summary}
		result.Receipt.Items = savedItems
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	m.logger.Info().
		Int64("receipt_no", result.Receipt.ReceiptNo).
		Str("operator", req.Operator).
		Int("lines", len(lines)).
		Int64("total_cents", result.Summary.TotalCents).
		Msg("charge committed")
	return result, nil
}

// mergeLines folds repeated product ids into one line, keeping first-seen order.
func mergeLines(lines []cart.Line) ([]cart.Line, error) {
	merged := make([]cart.Line, 0, len(lines))
	index := make(map[int64]int, len(lines))
	for _, line := range lines {
		if line.Qty < 1 {
			return nil, cart.ErrInvalidQuantity
		}
		if i, ok := index[line.ProductID]; ok {
			merged[i].Qty += line.Qty
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

func itemPricingLines(items []domain.ReceiptItem) []pricing.Line {
	out := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		out = append(out, pricing.Line{UnitPriceCents: item.UnitPriceCents, Qty: item.Qty})
	}
	return out
}
