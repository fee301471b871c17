package service

import (
	"context"
	"fmt"
	"strconv"

	"bakerypos/backend/internal/cart"
	"bakerypos/backend/internal/checkout"
	"bakerypos/backend/internal/domain"
	"bakerypos/backend/internal/store"
)

// withCart runs fn against the calling operator's cart.
func (s *Service) withCart(ctx context.Context, fn func(c *cart.Cart) error) (domain.CartView, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.CartView{}, err
	}

	var view domain.CartView
	err = s.carts.With(actor.Username, func(c *cart.Cart) error {
		if err := fn(c); err != nil {
			return err
		}
		view = c.View()
		return nil
	})
	return view, err
}

func (s *Service) Cart(ctx context.Context) (domain.CartView, error) {
	return s.withCart(ctx, func(*cart.Cart) error { return nil })
}

func (s *Service) AddToCart(ctx context.Context, req domain.CartAddRequest) (domain.CartView, error) {
	return s.withCart(ctx, func(c *cart.Cart) error {
		return c.Add(ctx, req.ProductID, req.Qty)
	})
}

func (s *Service) IncrementCartItem(ctx context.Context, productID int64) (domain.CartView, error) {
	return s.withCart(ctx, func(c *cart.Cart) error {
		return c.Increment(ctx, productID)
	})
}

func (s *Service) DecrementCartItem(ctx context.Context, productID int64) (domain.CartView, error) {
	return s.withCart(ctx, func(c *cart.Cart) error {
		return c.Decrement(ctx, productID)
	})
}

func (s *Service) RemoveCartItem(ctx context.Context, productID int64) (domain.CartView, error) {
	return s.withCart(ctx, func(c *cart.Cart) error {
		c.Remove(productID)
		return nil
	})
}

func (s *Service) ClearCart(ctx context.Context) (domain.CartView, error) {
	return s.withCart(ctx, func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
}

// UpdateCheckout sets the discount, customer name and tendered amount of the
// in-progress sale. Nil fields keep their current value.
func (s *Service) UpdateCheckout(ctx context.Context, req domain.CartCheckoutRequest) (domain.CartView, error) {
	var discount *domain.DiscountKind
	if req.Discount != nil {
		kind, err := domain.ParseDiscountKind(*req.Discount)
		if err != nil {
			return domain.CartView{}, fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
		}
		discount = &kind
	}

	return s.withCart(ctx, func(c *cart.Cart) error {
		if req.TenderedCents != nil {
			if err := c.SetTendered(*req.TenderedCents); err != nil {
				return err
			}
		}
		if discount != nil {
			if err := c.SetDiscount(*discount); err != nil {
				return err
			}
		}
		if req.CustomerName != nil {
			c.SetCustomerName(*req.CustomerName)
		}
		return nil
	})
}

// Charge finalises the operator's cart. The cart is cleared only when the
// sale is committed.
func (s *Service) Charge(ctx context.Context) (domain.ChargeResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ChargeResponse{}, err
	}

	var result checkout.Result
	err = s.carts.With(actor.Username, func(c *cart.Cart) error {
		snap := c.Snapshot()
		res, err := s.checkout.Charge(ctx, checkout.Request{
			Lines:         snap.Lines,
			Discount:      snap.Discount,
			TenderedCents: snap.TenderedCents,
			Operator:      actor.Username,
			CustomerName:  snap.CustomerName,
		})
		if err != nil {
			return err
		}
		result = res
		c.Clear()
		if err := s.reports.Invalidate(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to invalidate report cache")
		}
		return nil
	})
	if err != nil {
		return domain.ChargeResponse{}, err
	}

	receipt := result.Receipt
	s.logAudit(ctx, "charge", "receipt", strconv.FormatInt(receipt.ReceiptNo, 10),
		fmt.Sprintf("items=%d,total=%d,tendered=%d", len(receipt.Items), receipt.TotalCents, receipt.TenderedCents))

	return domain.ChargeResponse{
		ReceiptNo:     receipt.ReceiptNo,
		SubtotalCents: receipt.SubtotalCents,
		DiscountCents: receipt.DiscountCents,
		TaxCents:      receipt.TaxCents,
		TotalCents:    receipt.TotalCents,
		TenderedCents: receipt.TenderedCents,
		ChangeCents:   receipt.ChangeCents,
		Receipt:       receipt,
	}, nil
}

func (s *Service) GetReceipt(ctx context.Context, receiptNo int64) (domain.Receipt, error) {
	receipt, err := s.repo.GetReceiptByNo(ctx, receiptNo)
	if err != nil {
		return domain.Receipt{}, err
	}
	return *receipt, nil
}
