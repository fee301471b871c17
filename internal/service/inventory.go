package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"bakerypos/backend/internal/domain"
	"bakerypos/backend/internal/store"
)

// ListProducts returns the whole catalog, or the products whose name contains query.
func (s *Service) ListProducts(ctx context.Context, query string) ([]domain.Product, error) {
	if strings.TrimSpace(query) != "" {
		return s.repo.SearchProducts(ctx, query)
	}
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Product{}, fmt.Errorf("product name is required: %w", store.ErrInvalidInput)
	}
	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
	}
	if req.PriceCents < 0 || req.Quantity < 0 {
		return domain.Product{}, fmt.Errorf("price and quantity must not be negative: %w", store.ErrInvalidInput)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:       name,
		Category:   category,
		PriceCents: req.PriceCents,
		Quantity:   req.Quantity,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", strconv.FormatInt(created.ID, 10),
		fmt.Sprintf("name=%s,price=%d,qty=%d", created.Name, created.PriceCents, created.Quantity))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	// The row lock keeps a concurrent sale's decrement from being overwritten.
	var before, saved domain.Product
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		current, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before = *current
		updated, err := applyProductUpdate(before, req)
		if err != nil {
			return err
		}
		out, err := tx.UpdateProduct(ctx, updated)
		if err != nil {
			return err
		}
		saved = *out
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", strconv.FormatInt(saved.ID, 10),
		fmt.Sprintf("name=%s,price=%d->%d,qty=%d->%d", saved.Name, before.PriceCents, saved.PriceCents, before.Quantity, saved.Quantity))
	return saved, nil
}

func applyProductUpdate(p domain.Product, req domain.ProductUpdateRequest) (domain.Product, error) {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return p, fmt.Errorf("product name is required: %w", store.ErrInvalidInput)
		}
		p.Name = name
	}
	if req.Category != nil {
		category, err := domain.ParseCategory(*req.Category)
		if err != nil {
			return p, fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
		}
		p.Category = category
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return p, fmt.Errorf("price must not be negative: %w", store.ErrInvalidInput)
		}
		p.PriceCents = *req.PriceCents
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return p, fmt.Errorf("quantity must not be negative: %w", store.ErrInvalidInput)
		}
		p.Quantity = *req.Quantity
	}
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "product_delete", "product", strconv.FormatInt(id, 10), "name="+existing.Name)
	return nil
}

func (s *Service) LowStock(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStock(ctx, s.lowStockThreshold)
}

func (s *Service) InventorySummary(ctx context.Context) (domain.InventorySummary, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.InventorySummary{}, err
	}

	summary := domain.InventorySummary{
		ProductCount:  len(products),
		LowStockLimit: s.lowStockThreshold,
	}
	for _, p := range products {
		summary.UnitsOnHand += p.Quantity
		summary.StockValueCents += p.PriceCents * int64(p.Quantity)
		if p.Quantity <= s.lowStockThreshold {
			summary.LowStockCount++
		}
	}
	return summary, nil
}
