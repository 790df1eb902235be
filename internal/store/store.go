package store

import (
	"context"
	"errors"

	"dapurstok/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Repository owns all persisted state: the ingredient ledger, the recipe
// catalog, the sales log, audit entries and user accounts. RecordSale must
// debit every ingredient and append the sale atomically; two concurrent
// sales competing for the same stock must never both commit.
type Repository interface {
	ListBahan(ctx context.Context) ([]domain.Bahan, error)
	GetBahan(ctx context.Context, id string) (*domain.Bahan, error)
	CreateBahan(ctx context.Context, bahan domain.Bahan) (*domain.Bahan, error)
	UpdateBahan(ctx context.Context, bahan domain.Bahan) (*domain.Bahan, error)
	DeleteBahan(ctx context.Context, id string) error
	GetBahanByIDs(ctx context.Context, ids []string) (map[string]domain.Bahan, error)

	ListMenus(ctx context.Context) ([]domain.Menu, error)
	GetMenu(ctx context.Context, id string) (*domain.Menu, error)
	CreateMenu(ctx context.Context, menu domain.Menu) (*domain.Menu, error)
	UpdateMenu(ctx context.Context, menu domain.Menu) (*domain.Menu, error)
	DeleteMenu(ctx context.Context, id string) error

	RecordSale(ctx context.Context, sale domain.Penjualan) (*domain.Penjualan, error)
	GetSale(ctx context.Context, id string) (*domain.Penjualan, error)
	ListSales(ctx context.Context) ([]domain.Penjualan, error)
	ListSalesByDate(ctx context.Context, date string) ([]domain.Penjualan, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}
