package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dapurstok/backend/internal/domain"
	"dapurstok/backend/internal/store"
	"dapurstok/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	bahanByID       map[string]domain.Bahan
	bahanOrder      []string
	menusByID       map[string]domain.Menu
	menuOrder       []string
	salesByID       map[string]domain.Penjualan
	saleOrder       []string
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		bahanByID:       make(map[string]domain.Bahan),
		menusByID:       make(map[string]domain.Menu),
		salesByID:       make(map[string]domain.Penjualan),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_KASIR_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	kasirPwd := envOr("SEED_KASIR_PASSWORD", "kasir123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_KASIR_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_KASIR_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"kasir", kasirPwd, domain.RoleKasir},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store preloaded with a small warung pantry and two
// menus, for dev/demo mode.
func NewSeeded() *Store {
	s := New()
	ctx := context.Background()

	seedBahan := []domain.Bahan{
		{ID: "bhn-tepung", Name: "Tepung Terigu", Unit: "gram", StockQuantity: 10000, UnitPrice: 0.012},
		{ID: "bhn-gula", Name: "Gula Pasir", Unit: "gram", StockQuantity: 8000, UnitPrice: 0.016},
		{ID: "bhn-telur", Name: "Telur", Unit: "butir", StockQuantity: 120, UnitPrice: 2500},
		{ID: "bhn-mentega", Name: "Mentega", Unit: "gram", StockQuantity: 3000, UnitPrice: 0.045},
		{ID: "bhn-susu", Name: "Susu Cair", Unit: "ml", StockQuantity: 6000, UnitPrice: 0.018},
		{ID: "bhn-kopi", Name: "Kopi Bubuk", Unit: "gram", StockQuantity: 2000, UnitPrice: 0.11},
		{ID: "bhn-pisang", Name: "Pisang", Unit: "buah", StockQuantity: 80, UnitPrice: 1500},
		{ID: "bhn-minyak", Name: "Minyak Goreng", Unit: "ml", StockQuantity: 5000, UnitPrice: 0.02},
	}
	for _, b := range seedBahan {
		if _, err := s.CreateBahan(ctx, b); err != nil {
			log.Fatalf("[memory-store] seed bahan %s: %v", b.Name, err)
		}
	}

	seedMenus := []domain.Menu{
		{ID: "mnu-roti-bakar", Name: "Roti Bakar", Recipe: []domain.RecipeLine{
			{BahanID: "bhn-tepung", Quantity: 150, WastePercent: 5},
			{BahanID: "bhn-telur", Quantity: 1, WastePercent: 0},
			{BahanID: "bhn-mentega", Quantity: 20, WastePercent: 2},
			{BahanID: "bhn-gula", Quantity: 15, WastePercent: 0},
		}},
		{ID: "mnu-kopi-susu", Name: "Kopi Susu", Recipe: []domain.RecipeLine{
			{BahanID: "bhn-kopi", Quantity: 18, WastePercent: 8},
			{BahanID: "bhn-susu", Quantity: 120, WastePercent: 0},
			{BahanID: "bhn-gula", Quantity: 10, WastePercent: 0},
		}},
		{ID: "mnu-pisang-goreng", Name: "Pisang Goreng", Recipe: []domain.RecipeLine{
			{BahanID: "bhn-pisang", Quantity: 2, WastePercent: 10},
			{BahanID: "bhn-tepung", Quantity: 60, WastePercent: 5},
			{BahanID: "bhn-minyak", Quantity: 40, WastePercent: 15},
		}},
	}
	for _, m := range seedMenus {
		if _, err := s.CreateMenu(ctx, m); err != nil {
			log.Fatalf("[memory-store] seed menu %s: %v", m.Name, err)
		}
	}

	return s
}

func (s *Store) ListBahan(_ context.Context) ([]domain.Bahan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]domain.Bahan, 0, len(s.bahanOrder))
	for _, id := range s.bahanOrder {
		list = append(list, s.bahanByID[id])
	}
	return list, nil
}

func (s *Store) GetBahan(_ context.Context, id string) (*domain.Bahan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bahan, exists := s.bahanByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := bahan
	return &copied, nil
}

func (s *Store) CreateBahan(_ context.Context, bahan domain.Bahan) (*domain.Bahan, error) {
	if err := validateBahan(bahan); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if bahan.ID == "" {
		bahan.ID = xid.New("bhn")
	}
	if _, exists := s.bahanByID[bahan.ID]; exists {
		return nil, fmt.Errorf("%w: bahan %s already exists", store.ErrConflict, bahan.ID)
	}
	now := time.Now().UTC()
	if bahan.CreatedAt.IsZero() {
		bahan.CreatedAt = now
	}
	bahan.UpdatedAt = now

	s.bahanByID[bahan.ID] = bahan
	s.bahanOrder = append(s.bahanOrder, bahan.ID)
	created := bahan
	return &created, nil
}

func (s *Store) UpdateBahan(_ context.Context, bahan domain.Bahan) (*domain.Bahan, error) {
	if err := validateBahan(bahan); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.bahanByID[bahan.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	bahan.CreatedAt = existing.CreatedAt
	bahan.UpdatedAt = time.Now().UTC()
	s.bahanByID[bahan.ID] = bahan
	updated := bahan
	return &updated, nil
}

func (s *Store) DeleteBahan(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bahanByID[id]; !exists {
		return store.ErrNotFound
	}
	for _, menuID := range s.menuOrder {
		for _, line := range s.menusByID[menuID].Recipe {
			if line.BahanID == id {
				return fmt.Errorf("%w: bahan %s is used by menu %s", store.ErrConflict, id, s.menusByID[menuID].Name)
			}
		}
	}

	delete(s.bahanByID, id)
	s.bahanOrder = slices.DeleteFunc(s.bahanOrder, func(v string) bool { return v == id })
	return nil
}

func (s *Store) GetBahanByIDs(_ context.Context, ids []string) (map[string]domain.Bahan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Bahan, len(ids))
	for _, id := range ids {
		if b, ok := s.bahanByID[id]; ok {
			result[id] = b
		}
	}
	return result, nil
}

func (s *Store) ListMenus(_ context.Context) ([]domain.Menu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]domain.Menu, 0, len(s.menuOrder))
	for _, id := range s.menuOrder {
		list = append(list, cloneMenu(s.menusByID[id]))
	}
	return list, nil
}

func (s *Store) GetMenu(_ context.Context, id string) (*domain.Menu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	menu, exists := s.menusByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := cloneMenu(menu)
	return &copied, nil
}

func (s *Store) CreateMenu(_ context.Context, menu domain.Menu) (*domain.Menu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateMenuLocked(menu); err != nil {
		return nil, err
	}
	if menu.ID == "" {
		menu.ID = xid.New("mnu")
	}
	if _, exists := s.menusByID[menu.ID]; exists {
		return nil, fmt.Errorf("%w: menu %s already exists", store.ErrConflict, menu.ID)
	}
	now := time.Now().UTC()
	if menu.CreatedAt.IsZero() {
		menu.CreatedAt = now
	}
	menu.UpdatedAt = now

	s.menusByID[menu.ID] = cloneMenu(menu)
	s.menuOrder = append(s.menuOrder, menu.ID)
	created := cloneMenu(menu)
	return &created, nil
}

// UpdateMenu replaces the stored recipe wholesale; lines are never merged.
func (s *Store) UpdateMenu(_ context.Context, menu domain.Menu) (*domain.Menu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.menusByID[menu.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if err := s.validateMenuLocked(menu); err != nil {
		return nil, err
	}
	menu.CreatedAt = existing.CreatedAt
	menu.UpdatedAt = time.Now().UTC()
	s.menusByID[menu.ID] = cloneMenu(menu)
	updated := cloneMenu(menu)
	return &updated, nil
}

func (s *Store) DeleteMenu(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.menusByID[id]; !exists {
		return store.ErrNotFound
	}
	for _, saleID := range s.saleOrder {
		if s.salesByID[saleID].MenuID == id {
			return fmt.Errorf("%w: menu %s has recorded sales", store.ErrConflict, id)
		}
	}

	delete(s.menusByID, id)
	s.menuOrder = slices.DeleteFunc(s.menuOrder, func(v string) bool { return v == id })
	return nil
}

// RecordSale validates every debit against current stock before committing
// any of them. The single write lock makes the check-then-debit section
// atomic with respect to concurrent sales.
func (s *Store) RecordSale(_ context.Context, sale domain.Penjualan) (*domain.Penjualan, error) {
	if sale.MenuID == "" || sale.QuantitySold <= 0 || len(sale.UsageDetails) == 0 {
		return nil, store.ErrInvalidArgument
	}
	if _, err := time.Parse(domain.DateLayout, sale.Date); err != nil {
		return nil, fmt.Errorf("%w: invalid date %q, use YYYY-MM-DD", store.ErrInvalidArgument, sale.Date)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.menusByID[sale.MenuID]; !exists {
		return nil, fmt.Errorf("%w: menu %s", store.ErrNotFound, sale.MenuID)
	}

	for _, detail := range sale.UsageDetails {
		bahan, exists := s.bahanByID[detail.BahanID]
		if !exists {
			return nil, fmt.Errorf("%w: bahan %s", store.ErrNotFound, detail.BahanID)
		}
		if detail.QuantityConsumed < 0 {
			return nil, store.ErrInvalidArgument
		}
		if detail.QuantityConsumed > bahan.StockQuantity {
			return nil, fmt.Errorf("%w: %s needs %.2f %s, available %.2f %s",
				store.ErrInsufficientStock, bahan.Name,
				detail.QuantityConsumed, bahan.Unit, bahan.StockQuantity, bahan.Unit)
		}
	}

	now := time.Now().UTC()
	for _, detail := range sale.UsageDetails {
		bahan := s.bahanByID[detail.BahanID]
		bahan.StockQuantity -= detail.QuantityConsumed
		bahan.UpdatedAt = now
		s.bahanByID[detail.BahanID] = bahan
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	s.salesByID[sale.ID] = cloneSale(sale)
	s.saleOrder = append(s.saleOrder, sale.ID)
	committed := cloneSale(sale)
	return &committed, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Penjualan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := cloneSale(sale)
	return &copied, nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Penjualan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]domain.Penjualan, 0, len(s.saleOrder))
	for _, id := range s.saleOrder {
		list = append(list, cloneSale(s.salesByID[id]))
	}
	return list, nil
}

func (s *Store) ListSalesByDate(_ context.Context, date string) ([]domain.Penjualan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]domain.Penjualan, 0, 16)
	for _, id := range s.saleOrder {
		if sale := s.salesByID[id]; sale.Date == date {
			list = append(list, cloneSale(sale))
		}
	}
	slices.SortStableFunc(list, func(a, b domain.Penjualan) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return list, nil
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

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 || limit > len(s.auditLogs) {
		limit = len(s.auditLogs)
	}
	// Newest first.
	result := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.auditLogs[i])
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.TrimSpace(user.Username)
	if username == "" || user.Password == "" {
		return store.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[username]; exists {
		return fmt.Errorf("%w: user %s already exists", store.ErrConflict, username)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Username = username
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func validateBahan(bahan domain.Bahan) error {
	if strings.TrimSpace(bahan.Name) == "" || strings.TrimSpace(bahan.Unit) == "" {
		return fmt.Errorf("%w: name and unit are required", store.ErrInvalidArgument)
	}
	if bahan.StockQuantity < 0 {
		return fmt.Errorf("%w: stock_quantity must be non-negative", store.ErrInvalidArgument)
	}
	if bahan.UnitPrice < 0 {
		return fmt.Errorf("%w: unit_price must be non-negative", store.ErrInvalidArgument)
	}
	return nil
}

func (s *Store) validateMenuLocked(menu domain.Menu) error {
	if strings.TrimSpace(menu.Name) == "" {
		return fmt.Errorf("%w: menu name is required", store.ErrInvalidArgument)
	}
	if len(menu.Recipe) == 0 {
		return fmt.Errorf("%w: menu requires at least one recipe line", store.ErrInvalidArgument)
	}
	for _, line := range menu.Recipe {
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: recipe quantity must be positive", store.ErrInvalidArgument)
		}
		if line.WastePercent < 0 || line.WastePercent >= 100 {
			return fmt.Errorf("%w: waste_percent must be in [0, 100)", store.ErrInvalidArgument)
		}
		if _, exists := s.bahanByID[line.BahanID]; !exists {
			return fmt.Errorf("%w: unknown bahan %s", store.ErrInvalidArgument, line.BahanID)
		}
	}
	return nil
}

func cloneMenu(menu domain.Menu) domain.Menu {
	copied := menu
	copied.Recipe = slices.Clone(menu.Recipe)
	return copied
}

func cloneSale(sale domain.Penjualan) domain.Penjualan {
	copied := sale
	copied.UsageDetails = slices.Clone(sale.UsageDetails)
	return copied
}
