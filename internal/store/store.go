package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bakerypos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
)

// StockError names the product and how much of it is left.
type StockError struct {
	ProductID int64
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

type CatalogStore interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProductByName(ctx context.Context, name string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	// SearchProducts matches a case-insensitive substring of the name.
	SearchProducts(ctx context.Context, keyword string) ([]domain.Product, error)
	ListLowStock(ctx context.Context, threshold int) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	DeleteUser(ctx context.Context, username string) error
}

type ReceiptStore interface {
	// GetReceiptByNo returns the receipt with its items.
	GetReceiptByNo(ctx context.Context, receiptNo int64) (*domain.Receipt, error)
	// ListReceipts returns receipt headers created in [from, to), oldest first.
	ListReceipts(ctx context.Context, from time.Time, to time.Time) ([]domain.Receipt, error)
	// ProductSales groups sold items in [from, to) by captured name.
	ProductSales(ctx context.Context, from time.Time, to time.Time) ([]domain.ProductSales, error)
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}

// Tx is the write surface of a sale or a product edit. Everything done
// through a Tx becomes visible only if the enclosing WithinTx callback
// returns nil.
type Tx interface {
	GetProductForUpdate(ctx context.Context, id int64) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	NextReceiptNo(ctx context.Context) (int64, error)
	InsertReceipt(ctx context.Context, receipt domain.Receipt) (*domain.Receipt, error)
	InsertReceiptItems(ctx context.Context, receiptID int64, items []domain.ReceiptItem) ([]domain.ReceiptItem, error)
	// DecrementStock fails with ErrInsufficientStock rather than going below zero.
	DecrementStock(ctx context.Context, productID int64, qty int, at time.Time) error
}

type Repository interface {
	CatalogStore
	UserStore
	ReceiptStore
	AuditStore
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
