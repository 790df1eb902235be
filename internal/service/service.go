package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dapurstok/backend/internal/cache"
	"dapurstok/backend/internal/costing"
	"dapurstok/backend/internal/domain"
	"dapurstok/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo         store.Repository
	summaryCache cache.SummaryCache
	summaryTTL   time.Duration
}

func New(repo store.Repository, summaryCache cache.SummaryCache, summaryTTL time.Duration) *Service {
	if summaryCache == nil {
		summaryCache = cache.NoopSummaryCache{}
	}
	if summaryTTL <= 0 {
		summaryTTL = 60 * time.Second
	}

	return &Service{
		repo:         repo,
		summaryCache: summaryCache,
		summaryTTL:   summaryTTL,
	}
}

func (s *Service) ListBahan(ctx context.Context) ([]domain.Bahan, error) {
	return s.repo.ListBahan(ctx)
}

func (s *Service) GetBahan(ctx context.Context, id string) (domain.Bahan, error) {
	bahan, err := s.repo.GetBahan(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Bahan{}, err
	}
	return *bahan, nil
}

func (s *Service) CreateBahan(ctx context.Context, req domain.BahanCreateRequest) (domain.Bahan, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Bahan{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Unit = strings.TrimSpace(req.Unit)
	if req.Name == "" || req.Unit == "" {
		return domain.Bahan{}, fmt.Errorf("%w: name and unit are required", store.ErrInvalidArgument)
	}
	if req.InitialStock < 0 || req.UnitPrice < 0 {
		return domain.Bahan{}, fmt.Errorf("%w: initial_stock and unit_price must be non-negative", store.ErrInvalidArgument)
	}

	created, err := s.repo.CreateBahan(ctx, domain.Bahan{
		Name:          req.Name,
		Unit:          req.Unit,
		StockQuantity: req.InitialStock,
		UnitPrice:     req.UnitPrice,
	})
	if err != nil {
		return domain.Bahan{}, err
	}

	s.logAudit(ctx, "bahan_create", "bahan", created.ID, fmt.Sprintf("name=%s,stock=%.2f,price=%.4f", created.Name, created.StockQuantity, created.UnitPrice))
	return *created, nil
}

func (s *Service) UpdateBahan(ctx context.Context, id string, req domain.BahanUpdateRequest) (domain.Bahan, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Bahan{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Bahan{}, fmt.Errorf("%w: bahan id is required", store.ErrInvalidArgument)
	}

	existing, err := s.repo.GetBahan(ctx, id)
	if err != nil {
		return domain.Bahan{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Bahan{}, fmt.Errorf("%w: name must not be empty", store.ErrInvalidArgument)
		}
		updated.Name = name
	}
	if req.Unit != nil {
		unit := strings.TrimSpace(*req.Unit)
		if unit == "" {
			return domain.Bahan{}, fmt.Errorf("%w: unit must not be empty", store.ErrInvalidArgument)
		}
		updated.Unit = unit
	}
	if req.StockQuantity != nil {
		if *req.StockQuantity < 0 {
			return domain.Bahan{}, fmt.Errorf("%w: stock_quantity must be non-negative", store.ErrInvalidArgument)
		}
		updated.StockQuantity = *req.StockQuantity
	}
	if req.UnitPrice != nil {
		if *req.UnitPrice < 0 {
			return domain.Bahan{}, fmt.Errorf("%w: unit_price must be non-negative", store.ErrInvalidArgument)
		}
		updated.UnitPrice = *req.UnitPrice
	}

	saved, err := s.repo.UpdateBahan(ctx, updated)
	if err != nil {
		return domain.Bahan{}, err
	}

	s.logAudit(ctx, "bahan_update", "bahan", saved.ID, fmt.Sprintf("stock=%.2f,price=%.4f", saved.StockQuantity, saved.UnitPrice))
	return *saved, nil
}

func (s *Service) DeleteBahan(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	if err := s.repo.DeleteBahan(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logAudit(ctx, "bahan_delete", "bahan", id, "")
	return nil
}

func (s *Service) ListMenus(ctx context.Context) ([]domain.Menu, error) {
	return s.repo.ListMenus(ctx)
}

func (s *Service) GetMenu(ctx context.Context, id string) (domain.Menu, error) {
	menu, err := s.repo.GetMenu(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Menu{}, err
	}
	return *menu, nil
}

func (s *Service) CreateMenu(ctx context.Context, req domain.MenuSaveRequest) (domain.Menu, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Menu{}, fmt.Errorf("admin role required")
	}

	menu, err := normalizeMenuRequest(req)
	if err != nil {
		return domain.Menu{}, err
	}

	created, err := s.repo.CreateMenu(ctx, menu)
	if err != nil {
		return domain.Menu{}, err
	}

	s.logAudit(ctx, "menu_create", "menu", created.ID, fmt.Sprintf("name=%s,lines=%d", created.Name, len(created.Recipe)))
	return *created, nil
}

// UpdateMenu replaces the recipe wholesale; there is no partial line patching.
func (s *Service) UpdateMenu(ctx context.Context, id string, req domain.MenuSaveRequest) (domain.Menu, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Menu{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Menu{}, fmt.Errorf("%w: menu id is required", store.ErrInvalidArgument)
	}

	menu, err := normalizeMenuRequest(req)
	if err != nil {
		return domain.Menu{}, err
	}
	menu.ID = id

	saved, err := s.repo.UpdateMenu(ctx, menu)
	if err != nil {
		return domain.Menu{}, err
	}

	s.logAudit(ctx, "menu_update", "menu", saved.ID, fmt.Sprintf("name=%s,lines=%d", saved.Name, len(saved.Recipe)))
	return *saved, nil
}

func (s *Service) DeleteMenu(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	if err := s.repo.DeleteMenu(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logAudit(ctx, "menu_delete", "menu", id, "")
	return nil
}

// RecordSale orchestrates one sale: resolve the menu and its ingredients,
// run the consumption calculator, then hand the computed debits to the
// repository, which commits them with the sale record atomically or not at
// all. A sale is either committed or rejected; there is no partial state.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleRequest) (domain.Penjualan, error) {
	if req.QuantitySold <= 0 {
		return domain.Penjualan{}, fmt.Errorf("%w: quantity_sold must be a positive integer", store.ErrInvalidArgument)
	}
	req.MenuID = strings.TrimSpace(req.MenuID)
	if req.MenuID == "" {
		return domain.Penjualan{}, fmt.Errorf("%w: menu_id is required", store.ErrInvalidArgument)
	}
	saleDate, err := time.Parse(domain.DateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return domain.Penjualan{}, fmt.Errorf("%w: invalid date %q, use YYYY-MM-DD", store.ErrInvalidArgument, req.Date)
	}

	menu, err := s.repo.GetMenu(ctx, req.MenuID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Penjualan{}, fmt.Errorf("%w: menu %s", store.ErrNotFound, req.MenuID)
		}
		return domain.Penjualan{}, err
	}

	bahanIDs := make([]string, 0, len(menu.Recipe))
	for _, line := range menu.Recipe {
		bahanIDs = append(bahanIDs, line.BahanID)
	}
	bahanByID, err := s.repo.GetBahanByIDs(ctx, bahanIDs)
	if err != nil {
		return domain.Penjualan{}, err
	}

	result, err := costing.Compute(*menu, bahanByID, req.QuantitySold)
	if err != nil {
		return domain.Penjualan{}, err
	}

	sale := domain.Penjualan{
		MenuID:       menu.ID,
		Date:         saleDate.Format(domain.DateLayout),
		QuantitySold: req.QuantitySold,
		TotalCost:    result.TotalCost,
		TotalWaste:   result.TotalWaste,
		UsageDetails: result.Details,
	}

	committed, err := s.repo.RecordSale(ctx, sale)
	if err != nil {
		return domain.Penjualan{}, err
	}

	if err := s.summaryCache.Del(ctx, committed.Date); err != nil {
		log.Printf("[service] WARN: failed to invalidate summary cache for %s: %v", committed.Date, err)
	}
	s.logAudit(ctx, "sale_record", "penjualan", committed.ID, fmt.Sprintf("menu=%s,qty=%d,cost=%.2f", committed.MenuID, committed.QuantitySold, committed.TotalCost))

	return *committed, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Penjualan, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Penjualan{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Penjualan, error) {
	return s.repo.ListSales(ctx)
}

// DailySummary aggregates all sales of one calendar date. A date with no
// sales yields zero totals and an empty slice, not an error.
func (s *Service) DailySummary(ctx context.Context, date string) (domain.DailySummary, error) {
	date = strings.TrimSpace(date)
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return domain.DailySummary{}, fmt.Errorf("%w: invalid date %q, use YYYY-MM-DD", store.ErrInvalidArgument, date)
	}

	if cached, ok, err := s.summaryCache.Get(ctx, date); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: summary cache read for %s: %v", date, err)
	}

	sales, err := s.repo.ListSalesByDate(ctx, date)
	if err != nil {
		return domain.DailySummary{}, err
	}

	summary := domain.DailySummary{
		Date:  date,
		Sales: sales,
	}
	for _, sale := range sales {
		summary.SaleCount++
		summary.TotalItemsSold += sale.QuantitySold
		summary.TotalCost += sale.TotalCost
		summary.TotalWaste += sale.TotalWaste
		for _, detail := range sale.UsageDetails {
			summary.TotalUsage += detail.QuantityConsumed
		}
	}

	if err := s.summaryCache.Set(ctx, date, &summary, s.summaryTTL); err != nil {
		log.Printf("[service] WARN: summary cache write for %s: %v", date, err)
	}
	return summary, nil
}

// LowStock filters the ingredient ledger against a caller-supplied
// threshold, preserving ledger order.
func (s *Service) LowStock(ctx context.Context, threshold float64) ([]domain.Bahan, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("%w: threshold must be non-negative", store.ErrInvalidArgument)
	}

	all, err := s.repo.ListBahan(ctx)
	if err != nil {
		return nil, err
	}

	low := make([]domain.Bahan, 0, len(all))
	for _, bahan := range all {
		if bahan.StockQuantity < threshold {
			low = append(low, bahan)
		}
	}
	return low, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("admin role required")
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *Service) logAudit(ctx context.Context, action, entityType, entityID, detail string) {
	actor, _ := ActorFromContext(ctx)
	entry := domain.AuditLog{
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		log.Printf("[service] WARN: failed to write audit log action=%s entity=%s: %v", action, entityID, err)
	}
}

func normalizeMenuRequest(req domain.MenuSaveRequest) (domain.Menu, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Menu{}, fmt.Errorf("%w: menu name is required", store.ErrInvalidArgument)
	}
	if len(req.Recipe) == 0 {
		return domain.Menu{}, fmt.Errorf("%w: menu requires at least one recipe line", store.ErrInvalidArgument)
	}

	lines := make([]domain.RecipeLine, 0, len(req.Recipe))
	for _, line := range req.Recipe {
		line.BahanID = strings.TrimSpace(line.BahanID)
		if line.BahanID == "" {
			return domain.Menu{}, fmt.Errorf("%w: recipe line requires bahan_id", store.ErrInvalidArgument)
		}
		if line.Quantity <= 0 {
			return domain.Menu{}, fmt.Errorf("%w: recipe quantity must be positive", store.ErrInvalidArgument)
		}
		if line.WastePercent < 0 || line.WastePercent >= 100 {
			return domain.Menu{}, fmt.Errorf("%w: waste_percent must be in [0, 100)", store.ErrInvalidArgument)
		}
		lines = append(lines, line)
	}

	return domain.Menu{Name: name, Recipe: lines}, nil
}
