package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"bakerypos/backend/internal/domain"
	"bakerypos/backend/internal/store"
	"bakerypos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[int64]domain.Product
	receipts        []domain.Receipt
	itemsByReceipt  map[int64][]domain.ReceiptItem
	usersByUsername map[string]domain.UserAccount
	auditLogs       []domain.AuditLog

	nextProductID int64
	nextReceiptID int64
	nextItemID    int64
	nextUserID    int64
}

func New() *Store {
	return &Store{
		products:        make(map[int64]domain.Product),
		receipts:        make([]domain.Receipt, 0, 64),
		itemsByReceipt:  make(map[int64][]domain.ReceiptItem),
		usersByUsername: make(map[string]domain.UserAccount),
		auditLogs:       make([]domain.AuditLog, 0, 128),
	}
}

// NewSeeded returns a store stocked with a demo bakery catalog.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	for _, p := range []domain.Product{
		{Name: "Croissant", Category: domain.CategoryPastry, PriceCents: 4500, Quantity: 40},
		{Name: "Pain au Chocolat", Category: domain.CategoryPastry, PriceCents: 5500, Quantity: 30},
		{Name: "Pandesal", Category: domain.CategoryBread, PriceCents: 500, Quantity: 200},
		{Name: "Ensaymada", Category: domain.CategoryBread, PriceCents: 3500, Quantity: 24},
		{Name: "Ube Chiffon Cake", Category: domain.CategoryCake, PriceCents: 65000, Quantity: 4},
		{Name: "Chocolate Chip Cookie", Category: domain.CategoryCookie, PriceCents: 2500, Quantity: 60},
		{Name: "Buko Pie", Category: domain.CategoryPie, PriceCents: 32000, Quantity: 6},
		{Name: "Glazed Donut", Category: domain.CategoryDonut, PriceCents: 3000, Quantity: 36},
		{Name: "Blueberry Muffin", Category: domain.CategoryMuffin, PriceCents: 4000, Quantity: 3},
	} {
		s.nextProductID++
		p.ID = s.nextProductID
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}
	return s
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	return &product, nil
}

func (s *Store) GetProductByName(_ context.Context, name string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name = strings.TrimSpace(name)
	for _, p := range s.products {
		if strings.EqualFold(p.Name, name) {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("product %q: %w", name, store.ErrNotFound)
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	return s.filterProducts(func(domain.Product) bool { return true }), nil
}

func (s *Store) SearchProducts(_ context.Context, keyword string) ([]domain.Product, error) {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	return s.filterProducts(func(p domain.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), needle)
	}), nil
}

func (s *Store) ListLowStock(_ context.Context, threshold int) ([]domain.Product, error) {
	products := s.filterProducts(func(p domain.Product) bool { return p.Quantity <= threshold })
	slices.SortStableFunc(products, func(a, b domain.Product) int {
		return cmp.Compare(a.Quantity, b.Quantity)
	})
	return products, nil
}

func (s *Store) filterProducts(keep func(domain.Product) bool) []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if keep(p) {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return products
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(product.Name, 0) {
		return nil, fmt.Errorf("product name %q: %w", product.Name, store.ErrConflict)
	}

	now := time.Now().UTC()
	s.nextProductID++
	product.ID = s.nextProductID
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, fmt.Errorf("product %d: %w", product.ID, store.ErrNotFound)
	}
	if s.nameTaken(product.Name, product.ID) {
		return nil, fmt.Errorf("product name %q: %w", product.Name, store.ErrConflict)
	}

	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	delete(s.products, id)
	return nil
}

func (s *Store) nameTaken(name string, exceptID int64) bool {
	for id, p := range s.products {
		if id != exceptID && strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func validateProduct(p domain.Product) error {
	if strings.TrimSpace(p.Name) == "" || p.Category == "" || p.PriceCents < 0 || p.Quantity < 0 {
		return store.ErrInvalidInput
	}
	return nil
}

func (s *Store) GetReceiptByNo(_ context.Context, receiptNo int64) (*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.receipts {
		if r.ReceiptNo == receiptNo {
			receipt := r
			receipt.Items = slices.Clone(s.itemsByReceipt[r.ID])
			return &receipt, nil
		}
	}
	return nil, fmt.Errorf("receipt %d: %w", receiptNo, store.ErrNotFound)
}

func (s *Store) ListReceipts(_ context.Context, from time.Time, to time.Time) ([]domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Receipt, 0, 32)
	for _, r := range s.receipts {
		if inRange(r.CreatedAt, from, to) {
			result = append(result, r)
		}
	}
	slices.SortStableFunc(result, func(a, b domain.Receipt) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result, nil
}

func (s *Store) ProductSales(_ context.Context, from time.Time, to time.Time) ([]domain.ProductSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byName := make(map[string]*domain.ProductSales)
	for _, r := range s.receipts {
		if !inRange(r.CreatedAt, from, to) {
			continue
		}
		for _, item := range s.itemsByReceipt[r.ID] {
			row, ok := byName[item.Name]
			if !ok {
				row = &domain.ProductSales{Name: item.Name}
				byName[item.Name] = row
			}
			row.QtySold += item.Qty
			row.RevenueCents += item.LineTotalCents
		}
	}

	result := make([]domain.ProductSales, 0, len(byName))
	for _, row := range byName {
		result = append(result, *row)
	}
	slices.SortFunc(result, func(a, b domain.ProductSales) int {
		if c := cmp.Compare(b.RevenueCents, a.RevenueCents); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.PasswordHash) == "" || !domain.IsValidRole(user.Role) {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return fmt.Errorf("username %q: %w", username, store.ErrConflict)
	}
	s.nextUserID++
	user.ID = s.nextUserID
	user.Username = username
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !exists {
		return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
	}
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmp.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) DeleteUser(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if _, exists := s.usersByUsername[username]; !exists {
		return fmt.Errorf("user %q: %w", username, store.ErrNotFound)
	}
	delete(s.usersByUsername, username)
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if inRange(entry.CreatedAt, from, to) {
			result = append(result, entry)
		}
	}

	slices.SortStableFunc(result, func(a, b domain.AuditLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func inRange(at time.Time, from time.Time, to time.Time) bool {
	return !at.Before(from) && at.Before(to)
}
