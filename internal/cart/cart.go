// Package cart holds the in-progress sale of one operator: the selected lines
// plus the checkout context (discount, customer, tendered amount).
package cart

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"bakerypos/backend/internal/domain"
	"bakerypos/backend/internal/pricing"
	"bakerypos/backend/internal/store"
)

const DefaultMaxPerProduct = 10

var (
	ErrInvalidQuantity       = errors.New("quantity must be a positive integer")
	ErrQuantityLimitExceeded = errors.New("quantity limit exceeded")
	ErrLineNotFound          = fmt.Errorf("cart line: %w", store.ErrNotFound)
)

type LimitError struct {
	ProductID int64
	Requested int
	Limit     int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("product %d: requested %d exceeds the limit of %d per sale", e.ProductID, e.Requested, e.Limit)
}

func (e *LimitError) Unwrap() error {
	return ErrQuantityLimitExceeded
}

// Catalog is the read side of the product catalog the cart validates against.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type Line struct {
	ProductID      int64
	Name           string
	UnitPriceCents int64
	Qty            int
}

type Snapshot struct {
	Lines         []Line
	Discount      domain.DiscountKind
	CustomerName  string
	TenderedCents int64
}

// Cart is not safe for concurrent use; Registry serialises access per session.
type Cart struct {
	catalog       Catalog
	maxPerProduct int

	lines         []Line
	discount      domain.DiscountKind
	customerName  string
	tenderedCents int64
}

func New(catalog Catalog, maxPerProduct int) *Cart {
	if maxPerProduct < 1 {
		maxPerProduct = DefaultMaxPerProduct
	}
	return &Cart{
		catalog:       catalog,
		maxPerProduct: maxPerProduct,
		discount:      domain.DiscountNone,
	}
}

// Add puts qty more of a product in the cart. On any error the cart is unchanged.
func (c *Cart) Add(ctx context.Context, productID int64, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	current := 0
	if idx := c.indexOf(productID); idx >= 0 {
		current = c.lines[idx].Qty
	}
	return c.setQty(ctx, productID, current+qty)
}

func (c *Cart) Increment(ctx context.Context, productID int64) error {
	idx := c.indexOf(productID)
	if idx < 0 {
		return ErrLineNotFound
	}
	return c.setQty(ctx, productID, c.lines[idx].Qty+1)
}

// Decrement removes the line when it reaches zero. Missing lines are ignored.
func (c *Cart) Decrement(_ context.Context, productID int64) error {
	idx := c.indexOf(productID)
	if idx < 0 {
		return nil
	}
	if c.lines[idx].Qty <= 1 {
		c.lines = slices.Delete(c.lines, idx, idx+1)
		return nil
	}
	c.lines[idx].Qty--
	return nil
}

func (c *Cart) Remove(productID int64) {
	if idx := c.indexOf(productID); idx >= 0 {
		c.lines = slices.Delete(c.lines, idx, idx+1)
	}
}

// Clear ends the in-progress sale, including its checkout context.
func (c *Cart) Clear() {
	c.lines = nil
	c.discount = domain.DiscountNone
	c.customerName = ""
	c.tenderedCents = 0
}

func (c *Cart) SetDiscount(kind domain.DiscountKind) error {
	if _, ok := pricing.DiscountRate(kind); !ok {
		return fmt.Errorf("discount %q: %w", kind, store.ErrInvalidInput)
	}
	c.discount = kind
	return nil
}

func (c *Cart) SetCustomerName(name string) {
	c.customerName = strings.TrimSpace(name)
}

func (c *Cart) SetTendered(cents int64) error {
	if cents < 0 {
		return fmt.Errorf("tendered amount must not be negative: %w", store.ErrInvalidInput)
	}
	c.tenderedCents = cents
	return nil
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) Lines() []Line {
	return slices.Clone(c.lines)
}

func (c *Cart) Snapshot() Snapshot {
	return Snapshot{
		Lines:         c.Lines(),
		Discount:      c.discount,
		CustomerName:  c.customerName,
		TenderedCents: c.tenderedCents,
	}
}

// Totals prices the current lines at their captured unit prices.
func (c *Cart) Totals() pricing.Summary {
	return pricing.Compute(PricingLines(c.lines), c.discount, c.tenderedCents)
}

func (c *Cart) View() domain.CartView {
	totals := c.Totals()
	lines := make([]domain.CartLine, 0, len(c.lines))
	for _, line := range c.lines {
		lines = append(lines, domain.CartLine{
			ProductID:      line.ProductID,
			Name:           line.Name,
			UnitPriceCents: line.UnitPriceCents,
			Qty:            line.Qty,
			LineTotalCents: line.UnitPriceCents * int64(line.Qty),
		})
	}
	return domain.CartView{
		Lines:         lines,
		Discount:      c.discount,
		CustomerName:  c.customerName,
		SubtotalCents: totals.SubtotalCents,
		DiscountCents: totals.DiscountCents,
		TaxCents:      totals.TaxCents,
		TotalCents:    totals.TotalCents,
		TenderedCents: totals.TenderedCents,
		ChangeCents:   totals.ChangeCents,
	}
}

func PricingLines(lines []Line) []pricing.Line {
	out := make([]pricing.Line, 0, len(lines))
	for _, line := range lines {
		out = append(out, pricing.Line{UnitPriceCents: line.UnitPriceCents, Qty: line.Qty})
	}
	return out
}

func (c *Cart) setQty(ctx context.Context, productID int64, qty int) error {
	product, err := c.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if qty > c.maxPerProduct {
		return &LimitError{ProductID: productID, Requested: qty, Limit: c.maxPerProduct}
	}
	if qty > product.Quantity {
		return &store.StockError{
			ProductID: productID,
			Name:      product.Name,
			Requested: qty,
			Available: product.Quantity,
		}
	}

	line := Line{
		ProductID:      productID,
		Name:           product.Name,
		UnitPriceCents: product.PriceCents,
		Qty:            qty,
	}
	if idx := c.indexOf(productID); idx >= 0 {
		c.lines[idx] = line
	} else {
		c.lines = append(c.lines, line)
	}
	return nil
}

func (c *Cart) indexOf(productID int64) int {
	return slices.IndexFunc(c.lines, func(l Line) bool { return l.ProductID == productID })
}
