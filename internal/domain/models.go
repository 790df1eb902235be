package domain

import "time"

// Bahan is a raw material tracked by stock quantity and price per base unit.
type Bahan struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Unit          string    `json:"unit"`
	StockQuantity float64   `json:"stock_quantity"`
	UnitPrice     float64   `json:"unit_price"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type BahanCreateRequest struct {
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	InitialStock float64 `json:"initial_stock"`
	UnitPrice    float64 `json:"unit_price"`
}

type BahanUpdateRequest struct {
	Name          *string  `json:"name,omitempty"`
	Unit          *string  `json:"unit,omitempty"`
	StockQuantity *float64 `json:"stock_quantity,omitempty"`
	UnitPrice     *float64 `json:"unit_price,omitempty"`
}

// RecipeLine is one bill-of-materials entry of a menu. Quantity is the
// usable amount of the ingredient per unit sold; WastePercent is the
// fraction of the stock draw lost before it becomes usable material.
type RecipeLine struct {
	BahanID      string  `json:"bahan_id"`
	Quantity     float64 `json:"quantity"`
	WastePercent float64 `json:"waste_percent"`
}

type Menu struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Recipe    []RecipeLine `json:"recipe"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type MenuSaveRequest struct {
	Name   string       `json:"name"`
	Recipe []RecipeLine `json:"recipe"`
}

// UsageDetail is the per-ingredient outcome of one sale. QuantityConsumed
// is the amount debited from stock; QuantityWasted is the portion of it
// that never became usable material.
type UsageDetail struct {
	BahanID          string  `json:"bahan_id"`
	QuantityConsumed float64 `json:"quantity_consumed"`
	QuantityWasted   float64 `json:"quantity_wasted"`
	LineCost         float64 `json:"line_cost"`
}

// Penjualan is a recorded sale. Immutable once committed.
type Penjualan struct {
	ID           string        `json:"id"`
	MenuID       string        `json:"menu_id"`
	Date         string        `json:"date"`
	QuantitySold int           `json:"quantity_sold"`
	TotalCost    float64       `json:"total_cost"`
	TotalWaste   float64       `json:"total_waste"`
	UsageDetails []UsageDetail `json:"usage_details"`
	CreatedAt    time.Time     `json:"created_at"`
}

type SaleRequest struct {
	MenuID       string `json:"menu_id"`
	Date         string `json:"date"`
	QuantitySold int    `json:"quantity_sold"`
}

// DailySummary aggregates all committed sales of one calendar date.
type DailySummary struct {
	Date           string      `json:"date"`
	SaleCount      int         `json:"sale_count"`
	TotalItemsSold int         `json:"total_items_sold"`
	TotalUsage     float64     `json:"total_usage"`
	TotalCost      float64     `json:"total_cost"`
	TotalWaste     float64     `json:"total_waste"`
	Sales          []Penjualan `json:"sales"`
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
	Username string
	Role     string
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

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	RoleAdmin = "admin"
	RoleKasir = "kasir"
)

// DateLayout is the wire format of all calendar dates.
const DateLayout = "2006-01-02"
