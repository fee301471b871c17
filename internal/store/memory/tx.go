package memory

import (
	"context"
	"fmt"
	"time"

	"bakerypos/backend/internal/domain"
	"bakerypos/backend/internal/store"
)

// WithinTx serialises sales and product edits on the store's write lock.
// Writes go to a staged overlay that is merged into the store only when fn
// returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		store:         s,
		products:      make(map[int64]domain.Product),
		items:         make(map[int64][]domain.ReceiptItem),
		nextReceiptID: s.nextReceiptID,
		nextItemID:    s.nextItemID,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.apply()
	return nil
}

type memTx struct {
	store    *Store
	products map[int64]domain.Product
	receipts []domain.Receipt
	items    map[int64][]domain.ReceiptItem

	nextReceiptID int64
	nextItemID    int64
}

func (t *memTx) product(id int64) (domain.Product, bool) {
	if p, ok := t.products[id]; ok {
		return p, true
	}
	p, ok := t.store.products[id]
	return p, ok
}

func (t *memTx) GetProductForUpdate(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := t.product(id)
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	return &p, nil
}

func (t *memTx) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	existing, ok := t.product(product.ID)
	if !ok {
		return nil, fmt.Errorf("product %d: %w", product.ID, store.ErrNotFound)
	}
	if t.store.nameTaken(product.Name, product.ID) {
		return nil, fmt.Errorf("product name %q: %w", product.Name, store.ErrConflict)
	}

	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	t.products[product.ID] = product
	return &product, nil
}

func (t *memTx) NextReceiptNo(_ context.Context) (int64, error) {
	highest := domain.ReceiptNoBase
	for _, r := range t.store.receipts {
		highest = max(highest, r.ReceiptNo)
	}
	for _, r := range t.receipts {
		highest = max(highest, r.ReceiptNo)
	}
	return highest + 1, nil
}

func (t *memTx) InsertReceipt(_ context.Context, receipt domain.Receipt) (*domain.Receipt, error) {
	if receipt.ReceiptNo <= domain.ReceiptNoBase {
		return nil, store.ErrInvalidInput
	}
	for _, batch := range [][]domain.Receipt{t.store.receipts, t.receipts} {
		for _, existing := range batch {
			if existing.ReceiptNo == receipt.ReceiptNo {
				return nil, fmt.Errorf("receipt %d: %w", receipt.ReceiptNo, store.ErrConflict)
			}
		}
	}
	t.nextReceiptID++
	receipt.ID = t.nextReceiptID
	receipt.Items = nil
	t.receipts = append(t.receipts, receipt)
	return &receipt, nil
}

func (t *memTx) InsertReceiptItems(_ context.Context, receiptID int64, items []domain.ReceiptItem) ([]domain.ReceiptItem, error) {
	known := false
	for _, r := range t.receipts {
		if r.ID == receiptID {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("receipt id %d: %w", receiptID, store.ErrNotFound)
	}

	saved := make([]domain.ReceiptItem, 0, len(items))
	for _, item := range items {
		if item.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		t.nextItemID++
		item.ID = t.nextItemID
		item.ReceiptID = receiptID
		saved = append(saved, item)
	}
	t.items[receiptID] = append(t.items[receiptID], saved...)
	return saved, nil
}

func (t *memTx) DecrementStock(_ context.Context, productID int64, qty int, at time.Time) error {
	p, ok := t.product(productID)
	if !ok {
		return fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
	}
	if qty < 1 {
		return store.ErrInvalidInput
	}
	if p.Quantity < qty {
		return fmt.Errorf("product %d has %d, need %d: %w", productID, p.Quantity, qty, store.ErrInsufficientStock)
	}
	p.Quantity -= qty
	p.UpdatedAt = at.UTC()
	t.products[productID] = p
	return nil
}

func (t *memTx) apply() {
	s := t.store
	for id, p := range t.products {
		s.products[id] = p
	}
	s.receipts = append(s.receipts, t.receipts...)
	for receiptID, items := range t.items {
		s.itemsByReceipt[receiptID] = append(s.itemsByReceipt[receiptID], items...)
	}
	s.nextReceiptID = t.nextReceiptID
	s.nextItemID = t.nextItemID
}
