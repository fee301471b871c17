package domain

import "time"

// ReceiptNoBase is reserved; the first receipt issued is ReceiptNoBase+1.
const ReceiptNoBase int64 = 1000

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Category   Category  `json:"category"`
	PriceCents int64     `json:"price_cents"`
	Quantity   int       `json:"quantity"`
	CreatedAt  time.Time `json:"date_added"`
	UpdatedAt  time.Time `json:"last_updated"`
}

type ProductCreateRequest struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Category   *string `json:"category,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	Quantity   *int    `json:"quantity,omitempty"`
}

type InventorySummary struct {
	ProductCount    int   `json:"product_count"`
	UnitsOnHand     int   `json:"units_on_hand"`
	StockValueCents int64 `json:"stock_value_cents"`
	LowStockCount   int   `json:"low_stock_count"`
	LowStockLimit   int   `json:"low_stock_threshold"`
}

type Receipt struct {
	ID            int64         `json:"id"`
	ReceiptNo     int64         `json:"receipt_no"`
	CreatedAt     time.Time     `json:"created_at"`
	Operator      string        `json:"operator"`
	CustomerName  string        `json:"customer_name,omitempty"`
	Discount      DiscountKind  `json:"discount"`
	SubtotalCents int64         `json:"subtotal_cents"`
	DiscountCents int64         `json:"discount_cents"`
	TaxCents      int64         `json:"tax_cents"`
	TotalCents    int64         `json:"total_cents"`
	TenderedCents int64         `json:"tendered_cents"`
	ChangeCents   int64         `json:"change_cents"`
	Items         []ReceiptItem `json:"items"`
}

type ReceiptItem struct {
	ID             int64  `json:"id"`
	ReceiptID      int64  `json:"receipt_id"`
	ProductID      int64  `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Qty            int    `json:"qty"`
	LineTotalCents int64  `json:"line_total_cents"`
}

type CartLine struct {
	ProductID      int64  `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Qty            int    `json:"qty"`
	LineTotalCents int64  `json:"line_total_cents"`
}

type CartView struct {
	Lines         []CartLine   `json:"lines"`
	Discount      DiscountKind `json:"discount"`
	CustomerName  string       `json:"customer_name,omitempty"`
	SubtotalCents int64        `json:"subtotal_cents"`
	DiscountCents int64        `json:"discount_cents"`
	TaxCents      int64        `json:"tax_cents"`
	TotalCents    int64        `json:"total_cents"`
	TenderedCents int64        `json:"tendered_cents"`
	ChangeCents   int64        `json:"change_cents"`
}

type CartAddRequest struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

type CartCheckoutRequest struct {
	Discount      *string `json:"discount,omitempty"`
	CustomerName  *string `json:"customer_name,omitempty"`
	TenderedCents *int64  `json:"tendered_cents,omitempty"`
}

type ChargeResponse struct {
	ReceiptNo     int64   `json:"receipt_no"`
	SubtotalCents int64   `json:"subtotal_cents"`
	DiscountCents int64   `json:"discount_cents"`
	TaxCents      int64   `json:"tax_cents"`
	TotalCents    int64   `json:"total_cents"`
	TenderedCents int64   `json:"tendered_cents"`
	ChangeCents   int64   `json:"change_cents"`
	Receipt       Receipt `json:"receipt"`
}

type ProductSales struct {
	Name         string `json:"name"`
	QtySold      int    `json:"qty_sold"`
	RevenueCents int64  `json:"revenue_cents"`
}

type SalesReport struct {
	From          string         `json:"from"`
	To            string         `json:"to"`
	ReceiptCount  int            `json:"receipt_count"`
	ItemsSold     int            `json:"items_sold"`
	GrossCents    int64          `json:"gross_cents"`
	DiscountCents int64          `json:"discount_cents"`
	TaxCents      int64          `json:"tax_cents"`
	NetCents      int64          `json:"net_cents"`
	Products      []ProductSales `json:"products"`
	TopProduct    *ProductSales  `json:"top_product,omitempty"`
	Receipts      []Receipt      `json:"receipts"`
}

type UserAccount struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
