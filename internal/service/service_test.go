package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"bakerypos/backend/internal/cart"
	"bakerypos/backend/internal/checkout"
	"bakerypos/backend/internal/domain"
	"bakerypos/backend/internal/store"
	"bakerypos/backend/internal/store/memory"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	svc := New(repo, Options{
		MaxQtyPerProduct:  cart.DefaultMaxPerProduct,
		LowStockThreshold: 5,
		Logger:            zerolog.Nop(),
	})
	return svc, repo
}

func staffContext(username string) context.Context {
	return WithActor(context.Background(), domain.Actor{Username: username, Role: domain.RoleStaff})
}

func adminContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

// racingRepo runs onRead once, right after the next product read made by
// either the plain catalog or a transaction.
type racingRepo struct {
	*memory.Store

	mu     sync.Mutex
	onRead func()
}

func (r *racingRepo) arm(fn func()) {
	r.mu.Lock()
	r.onRead = fn
	r.mu.Unlock()
}

func (r *racingRepo) fire() {
	r.mu.Lock()
	fn := r.onRead
	r.onRead = nil
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *racingRepo) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := r.Store.GetProduct(ctx, id)
	r.fire()
	return p, err
}

func (r *racingRepo) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return r.Store.WithinTx(ctx, func(tx store.Tx) error {
		return fn(racingTx{Tx: tx, repo: r})
	})
}

type racingTx struct {
	store.Tx
	repo *racingRepo
}

func (t racingTx) GetProductForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := t.Tx.GetProductForUpdate(ctx, id)
	t.repo.fire()
	return p, err
}

// mapReportCache is an in-process ReportCache. onInvalidate, when set, runs
// inside Invalidate.
type mapReportCache struct {
	mu           sync.Mutex
	reports      map[string]domain.SalesReport
	onInvalidate func()
}

func newMapReportCache() *mapReportCache {
	return &mapReportCache{reports: make(map[string]domain.SalesReport)}
}

func (c *mapReportCache) Get(_ context.Context, key string) (*domain.SalesReport, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	report, ok := c.reports[key]
	if !ok {
		return nil, false, nil
	}
	return &report, true, nil
}

func (c *mapReportCache) Set(_ context.Context, key string, value *domain.SalesReport, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[key] = *value
	return nil
}

func (c *mapReportCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	c.reports = make(map[string]domain.SalesReport)
	hook := c.onInvalidate
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func strPtr(v string) *string { return &v }
func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func TestCartRequiresActor(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddToCart(context.Background(), domain.CartAddRequest{ProductID: 1, Qty: 1})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestChargeCommitsSaleAndClearsCart(t *testing.T) {
	svc, repo := newTestService()
	ctx := staffContext("cashier1")

	if _, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: 1, Qty: 2}); err != nil {
		t.Fatalf("add croissant failed: %v", err)
	}
	if _, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: 3, Qty: 4}); err != nil {
		t.Fatalf("add pandesal failed: %v", err)
	}
	view, err := svc.UpdateCheckout(ctx, domain.CartCheckoutRequest{
		Discount:      strPtr("senior"),
		CustomerName:  strPtr("Lola Remy"),
		TenderedCents: int64Ptr(20000),
	})
	if err != nil {
		t.Fatalf("update checkout failed: %v", err)
	}
	// 2*4500 + 4*500 = 11000; 20% off = 2200; tax 3% of 8800 = 264.
	if view.SubtotalCents != 11000 || view.DiscountCents != 2200 || view.TaxCents != 264 || view.TotalCents != 9064 {
		t.Fatalf("unexpected cart totals: %+v", view)
	}

	resp, err := svc.Charge(ctx)
	if err != nil {
		t.Fatalf("charge failed: %v", err)
	}
	if resp.ReceiptNo != domain.ReceiptNoBase+1 {
		t.Fatalf("expected first receipt number %d, got %d", domain.ReceiptNoBase+1, resp.ReceiptNo)
	}
	if resp.ChangeCents != 20000-9064 {
		t.Fatalf("expected change %d, got %d", 20000-9064, resp.ChangeCents)
	}
	if resp.Receipt.CustomerName != "Lola Remy" || resp.Receipt.Operator != "cashier1" {
		t.Fatalf("unexpected receipt header: %+v", resp.Receipt)
	}

	croissant, err := repo.GetProduct(context.Background(), 1)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if croissant.Quantity != 38 {
		t.Fatalf("expected croissant stock 38, got %d", croissant.Quantity)
	}

	after, err := svc.Cart(ctx)
	if err != nil {
		t.Fatalf("cart failed: %v", err)
	}
	if len(after.Lines) != 0 || after.Discount != domain.DiscountNone || after.TenderedCents != 0 {
		t.Fatalf("expected cart to be reset after charge, got %+v", after)
	}

	receipt, err := svc.GetReceipt(ctx, resp.ReceiptNo)
	if err != nil {
		t.Fatalf("receipt lookup failed: %v", err)
	}
	if len(receipt.Items) != 2 {
		t.Fatalf("expected 2 receipt items, got %d", len(receipt.Items))
	}
}

func TestChargeFailureKeepsCart(t *testing.T) {
	svc, _ := newTestService()
	ctx := staffContext("cashier1")

	if _, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: 1, Qty: 1}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.UpdateCheckout(ctx, domain.CartCheckoutRequest{TenderedCents: int64Ptr(100)}); err != nil {
		t.Fatalf("update checkout failed: %v", err)
	}

	_, err := svc.Charge(ctx)
	var payErr *checkout.PaymentError
	if !errors.As(err, &payErr) {
		t.Fatalf("expected PaymentError, got %v", err)
	}

	view, err := svc.Cart(ctx)
	if err != nil {
		t.Fatalf("cart failed: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].Qty != 1 {
		t.Fatalf("expected cart to survive failed charge, got %+v", view.Lines)
	}
}

func TestChargeEmptyCart(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Charge(staffContext("cashier1"))
	if !errors.Is(err, checkout.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCartsAreIsolatedPerOperator(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.AddToCart(staffContext("alice"), domain.CartAddRequest{ProductID: 2, Qty: 3}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	view, err := svc.Cart(staffContext("bob"))
	if err != nil {
		t.Fatalf("cart failed: %v", err)
	}
	if len(view.Lines) != 0 {
		t.Fatalf("expected bob's cart to be empty, got %+v", view.Lines)
	}
}

func TestCartItemOperations(t *testing.T) {
	svc, _ := newTestService()
	ctx := staffContext("cashier1")

	if _, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: 6, Qty: 9}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	view, err := svc.IncrementCartItem(ctx, 6)
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if view.Lines[0].Qty != 10 {
		t.Fatalf("expected qty 10, got %d", view.Lines[0].Qty)
	}

	_, err = svc.IncrementCartItem(ctx, 6)
	if !errors.Is(err, cart.ErrQuantityLimitExceeded) {
		t.Fatalf("expected limit error, got %v", err)
	}

	view, err = svc.DecrementCartItem(ctx, 6)
	if err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if view.Lines[0].Qty != 9 {
		t.Fatalf("expected qty 9, got %d", view.Lines[0].Qty)
	}

	view, err = svc.RemoveCartItem(ctx, 6)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(view.Lines) != 0 {
		t.Fatalf("expected empty cart, got %+v", view.Lines)
	}

	_, err = svc.IncrementCartItem(ctx, 6)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for missing line, got %v", err)
	}
}

func TestUpdateCheckoutRejectsUnknownDiscount(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.UpdateCheckout(staffContext("cashier1"), domain.CartCheckoutRequest{Discount: strPtr("vip")})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestProductAdminRequiresAdminRole(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateProduct(staffContext("cashier1"), domain.ProductCreateRequest{
		Name: "Cinnamon Roll", Category: "pastry", PriceCents: 6000, Quantity: 12,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestProductLifecycleWritesAuditLog(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminContext()

	created, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name: "Cinnamon Roll", Category: "Pastry", PriceCents: 6000, Quantity: 12,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Category != domain.CategoryPastry {
		t.Fatalf("expected pastry category, got %s", created.Category)
	}

	updated, err := svc.UpdateProduct(ctx, created.ID, domain.ProductUpdateRequest{
		PriceCents: int64Ptr(6500),
		Quantity:   intPtr(20),
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.PriceCents != 6500 || updated.Quantity != 20 || updated.Name != "Cinnamon Roll" {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	if err := svc.DeleteProduct(ctx, created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.GetProduct(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted product to be gone, got %v", err)
	}

	logs, err := svc.ListAuditLogs(ctx, time.Now().UTC().Format(dateLayout), 50)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}
	actions := map[string]bool{}
	for _, entry := range logs {
		actions[entry.Action] = true
	}
	for _, want := range []string{"product_create", "product_update", "product_delete"} {
		if !actions[want] {
			t.Fatalf("expected audit action %s, got %+v", want, logs)
		}
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminContext()

	cases := []domain.ProductCreateRequest{
		{Name: " ", Category: "bread", PriceCents: 100, Quantity: 1},
		{Name: "Rye", Category: "sandwich", PriceCents: 100, Quantity: 1},
		{Name: "Rye", Category: "bread", PriceCents: -1, Quantity: 1},
		{Name: "Rye", Category: "bread", PriceCents: 100, Quantity: -3},
	}
	for _, req := range cases {
		if _, err := svc.CreateProduct(ctx, req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", req, err)
		}
	}
}

func TestInventoryViews(t *testing.T) {
	svc, _ := newTestService()
	ctx := staffContext("cashier1")

	low, err := svc.LowStock(ctx)
	if err != nil {
		t.Fatalf("low stock failed: %v", err)
	}
	if len(low) != 2 || low[0].Name != "Blueberry Muffin" || low[1].Name != "Ube Chiffon Cake" {
		t.Fatalf("unexpected low stock list: %+v", low)
	}

	summary, err := svc.InventorySummary(ctx)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.ProductCount != 9 || summary.LowStockCount != 2 || summary.LowStockLimit != 5 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	found, err := svc.ListProducts(ctx, "CHOC")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 chocolate products, got %+v", found)
	}
}

func TestSalesReportAggregatesToday(t *testing.T) {
	svc, _ := newTestService()
	ctx := staffContext("cashier1")

	sell := func(productID int64, qty int, tendered int64) {
		t.Helper()
		if _, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: productID, Qty: qty}); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if _, err := svc.UpdateCheckout(ctx, domain.CartCheckoutRequest{TenderedCents: int64Ptr(tendered)}); err != nil {
			t.Fatalf("update checkout failed: %v", err)
		}
		if _, err := svc.Charge(ctx); err != nil {
			t.Fatalf("charge failed: %v", err)
		}
	}
	sell(1, 2, 10000) // 9000 + 270 tax
	sell(3, 10, 6000) // 5000 + 150 tax

	report, err := svc.SalesReport(ctx, PeriodToday, "", "")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if report.ReceiptCount != 2 || report.ItemsSold != 12 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if report.GrossCents != 14000 || report.TaxCents != 420 || report.NetCents != 14420 {
		t.Fatalf("unexpected totals: %+v", report)
	}
	if report.TopProduct == nil || report.TopProduct.Name != "Croissant" {
		t.Fatalf("expected croissant as top product, got %+v", report.TopProduct)
	}
}

func TestSalesReportInvalidatedByCharge(t *testing.T) {
	svc, _ := newTestService()
	ctx := staffContext("cashier1")

	before, err := svc.SalesReport(ctx, "", "", "")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if before.ReceiptCount != 0 {
		t.Fatalf("expected empty report, got %d receipts", before.ReceiptCount)
	}

	if _, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: 8, Qty: 1}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.UpdateCheckout(ctx, domain.CartCheckoutRequest{TenderedCents: int64Ptr(5000)}); err != nil {
		t.Fatalf("update checkout failed: %v", err)
	}
	if _, err := svc.Charge(ctx); err != nil {
		t.Fatalf("charge failed: %v", err)
	}

	after, err := svc.SalesReport(ctx, "", "", "")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if after.ReceiptCount != 1 {
		t.Fatalf("expected 1 receipt after charge, got %d", after.ReceiptCount)
	}
}

func TestChargeInvalidatesCachedReportBeforeReleasingCart(t *testing.T) {
	reports := newMapReportCache()
	svc := New(memory.NewSeeded(), Options{
		MaxQtyPerProduct: cart.DefaultMaxPerProduct,
		ReportCache:      reports,
		ReportCacheTTL:   time.Hour,
		Logger:           zerolog.Nop(),
	})
	ctx := staffContext("cashier1")

	cached, err := svc.SalesReport(ctx, "", "", "")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if cached.ReceiptCount != 0 {
		t.Fatalf("expected empty report, got %d receipts", cached.ReceiptCount)
	}

	if _, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: 8, Qty: 1}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.UpdateCheckout(ctx, domain.CartCheckoutRequest{TenderedCents: int64Ptr(5000)}); err != nil {
		t.Fatalf("update checkout failed: %v", err)
	}

	// The cart stays locked while the cache is cleared, so a read of the same
	// cart cannot complete until Charge returns.
	cartRead := make(chan struct{})
	readDuringInvalidate := false
	reports.onInvalidate = func() {
		go func() {
			_, _ = svc.Cart(ctx)
			close(cartRead)
		}()
		select {
		case <-cartRead:
			readDuringInvalidate = true
		case <-time.After(50 * time.Millisecond):
		}
	}
	if _, err := svc.Charge(ctx); err != nil {
		t.Fatalf("charge failed: %v", err)
	}
	<-cartRead
	if readDuringInvalidate {
		t.Fatalf("expected report cache to be invalidated while the cart was still locked")
	}

	after, err := svc.SalesReport(ctx, "", "", "")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if after.ReceiptCount != 1 {
		t.Fatalf("expected cached report to be replaced after charge, got %d receipts", after.ReceiptCount)
	}
}

func TestUpdateProductKeepsConcurrentSaleDecrement(t *testing.T) {
	repo := &racingRepo{Store: memory.NewSeeded()}
	svc := New(repo, Options{MaxQtyPerProduct: cart.DefaultMaxPerProduct, Logger: zerolog.Nop()})
	staff := staffContext("cashier1")
	admin := adminContext()

	if _, err := svc.AddToCart(staff, domain.CartAddRequest{ProductID: 1, Qty: 2}); err != nil {
		t.Fatalf("add croissant failed: %v", err)
	}
	if _, err := svc.UpdateCheckout(staff, domain.CartCheckoutRequest{TenderedCents: int64Ptr(20000)}); err != nil {
		t.Fatalf("update checkout failed: %v", err)
	}

	// A sale is started as soon as the edit has read the product, and is
	// given a moment to commit before the edit writes.
	charged := make(chan error, 1)
	repo.arm(func() {
		go func() {
			_, err := svc.Charge(staff)
			charged <- err
		}()
		select {
		case err := <-charged:
			charged <- err
		case <-time.After(50 * time.Millisecond):
		}
	})

	if _, err := svc.UpdateProduct(admin, 1, domain.ProductUpdateRequest{PriceCents: int64Ptr(5000)}); err != nil {
		t.Fatalf("update product failed: %v", err)
	}
	if err := <-charged; err != nil {
		t.Fatalf("charge failed: %v", err)
	}

	croissant, err := repo.GetProduct(context.Background(), 1)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if croissant.PriceCents != 5000 {
		t.Fatalf("expected price 5000, got %d", croissant.PriceCents)
	}
	if croissant.Quantity != 38 {
		t.Fatalf("expected the sale's decrement to survive the edit, got stock %d", croissant.Quantity)
	}
}

func TestReportRange(t *testing.T) {
	// Thursday.
	now := time.Date(2026, time.October, 15, 14, 30, 0, 0, time.UTC)
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	cases := []struct {
		period, from, to string
		start, end       time.Time
	}{
		{"", "", "", day(2026, 10, 15), day(2026, 10, 16)},
		{"today", "", "", day(2026, 10, 15), day(2026, 10, 16)},
		{"Weekly", "", "", day(2026, 10, 12), day(2026, 10, 19)},
		{"monthly", "", "", day(2026, 10, 1), day(2026, 11, 1)},
		{"", "2026-09-01", "2026-09-30", day(2026, 9, 1), day(2026, 10, 1)},
	}
	for _, tc := range cases {
		start, end, err := reportRange(now, tc.period, tc.from, tc.to)
		if err != nil {
			t.Fatalf("range %q %q..%q failed: %v", tc.period, tc.from, tc.to, err)
		}
		if !start.Equal(tc.start) || !end.Equal(tc.end) {
			t.Fatalf("range %q %q..%q: got [%s, %s)", tc.period, tc.from, tc.to, start, end)
		}
	}

	sunday := time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC)
	start, _, err := reportRange(sunday, PeriodWeekly, "", "")
	if err != nil || !start.Equal(day(2026, 10, 12)) {
		t.Fatalf("expected sunday to fall in the week starting monday 12th, got %s (%v)", start, err)
	}

	for _, bad := range [][3]string{
		{"yearly", "", ""},
		{"", "2026-09-01", ""},
		{"", "2026-13-01", "2026-12-01"},
		{"", "2026-09-10", "2026-09-01"},
	} {
		if _, _, err := reportRange(now, bad[0], bad[1], bad[2]); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %v, got %v", bad, err)
		}
	}
}

func TestListAuditLogsRequiresAdmin(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.ListAuditLogs(staffContext("cashier1"), "", 10)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	_, err = svc.ListAuditLogs(adminContext(), "18-10-2026", 10)
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for malformed date, got %v", err)
	}
}
