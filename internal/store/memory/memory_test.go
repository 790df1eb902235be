package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"dapurstok/backend/internal/domain"
	"dapurstok/backend/internal/store"
)

func newPantryStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	ctx := context.Background()

	for _, b := range []domain.Bahan{
		{ID: "bhn-flour", Name: "Flour", Unit: "gram", StockQuantity: 1000, UnitPrice: 2},
		{ID: "bhn-sugar", Name: "Sugar", Unit: "gram", StockQuantity: 500, UnitPrice: 3},
	} {
		if _, err := s.CreateBahan(ctx, b); err != nil {
			t.Fatalf("seed bahan %s: %v", b.ID, err)
		}
	}
	if _, err := s.CreateMenu(ctx, domain.Menu{
		ID:   "mnu-bread",
		Name: "Bread",
		Recipe: []domain.RecipeLine{
			{BahanID: "bhn-flour", Quantity: 100, WastePercent: 10},
		},
	}); err != nil {
		t.Fatalf("seed menu: %v", err)
	}
	return s
}

func TestListBahan_PreservesInsertionOrder(t *testing.T) {
	s := newPantryStore(t)
	ctx := context.Background()

	if _, err := s.CreateBahan(ctx, domain.Bahan{ID: "bhn-butter", Name: "Butter", Unit: "gram", StockQuantity: 100, UnitPrice: 5}); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := s.ListBahan(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"bhn-flour", "bhn-sugar", "bhn-butter"}
	if len(list) != len(want) {
		t.Fatalf("expected %d bahan, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, list[i].ID, id)
		}
	}
}

func TestCreateBahan_RejectsInvalid(t *testing.T) {
	s := New()
	ctx := context.Background()

	cases := []domain.Bahan{
		{Name: "", Unit: "gram"},
		{Name: "Flour", Unit: ""},
		{Name: "Flour", Unit: "gram", StockQuantity: -1},
		{Name: "Flour", Unit: "gram", UnitPrice: -0.5},
	}
	for _, c := range cases {
		if _, err := s.CreateBahan(ctx, c); !errors.Is(err, store.ErrInvalidArgument) {
			t.Errorf("bahan %+v: expected ErrInvalidArgument, got %v", c, err)
		}
	}
}

func TestCreateMenu_UnknownBahanIsInvalidArgument(t *testing.T) {
	s := newPantryStore(t)

	_, err := s.CreateMenu(context.Background(), domain.Menu{
		Name: "Mystery",
		Recipe: []domain.RecipeLine{
			{BahanID: "bhn-unicorn", Quantity: 1, WastePercent: 0},
		},
	})
	if !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestUpdateMenu_ReplacesRecipeWholesale(t *testing.T) {
	s := newPantryStore(t)
	ctx := context.Background()

	_, err := s.UpdateMenu(ctx, domain.Menu{
		ID:   "mnu-bread",
		Name: "Bread",
		Recipe: []domain.RecipeLine{
			{BahanID: "bhn-sugar", Quantity: 25, WastePercent: 0},
		},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	menu, err := s.GetMenu(ctx, "mnu-bread")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(menu.Recipe) != 1 || menu.Recipe[0].BahanID != "bhn-sugar" {
		t.Fatalf("expected recipe replaced with single sugar line, got %+v", menu.Recipe)
	}
}

func TestDeleteBahan_ConflictsWhenReferencedByMenu(t *testing.T) {
	s := newPantryStore(t)
	ctx := context.Background()

	if err := s.DeleteBahan(ctx, "bhn-flour"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	// Sugar is not in any recipe, so it can go.
	if err := s.DeleteBahan(ctx, "bhn-sugar"); err != nil {
		t.Fatalf("expected sugar delete to succeed, got %v", err)
	}
}

func TestRecordSale_DebitsStockAndPersists(t *testing.T) {
	s := newPantryStore(t)
	ctx := context.Background()

	committed, err := s.RecordSale(ctx, domain.Penjualan{
		MenuID:       "mnu-bread",
		Date:         "2026-08-30",
		QuantitySold: 2,
		TotalCost:    4000.0 / 9.0,
		TotalWaste:   200.0 / 9.0,
		UsageDetails: []domain.UsageDetail{
			{BahanID: "bhn-flour", QuantityConsumed: 2000.0 / 9.0, QuantityWasted: 200.0 / 9.0, LineCost: 4000.0 / 9.0},
		},
	})
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if committed.ID == "" {
		t.Fatal("expected generated sale id")
	}

	flour, err := s.GetBahan(ctx, "bhn-flour")
	if err != nil {
		t.Fatalf("get flour: %v", err)
	}
	remaining := 1000 - 2000.0/9.0
	if diff := flour.StockQuantity - remaining; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("flour stock = %v, want %v", flour.StockQuantity, remaining)
	}

	fetched, err := s.GetSale(ctx, committed.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if fetched.MenuID != "mnu-bread" || fetched.QuantitySold != 2 {
		t.Fatalf("unexpected persisted sale: %+v", fetched)
	}
}

// A sale whose second debit exceeds stock must leave the first ingredient
// untouched as well.
func TestRecordSale_AllOrNothing(t *testing.T) {
	s := newPantryStore(t)
	ctx := context.Background()

	_, err := s.RecordSale(ctx, domain.Penjualan{
		MenuID:       "mnu-bread",
		Date:         "2026-08-30",
		QuantitySold: 1,
		UsageDetails: []domain.UsageDetail{
			{BahanID: "bhn-flour", QuantityConsumed: 100},
			{BahanID: "bhn-sugar", QuantityConsumed: 9999},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	flour, _ := s.GetBahan(ctx, "bhn-flour")
	if flour.StockQuantity != 1000 {
		t.Errorf("flour stock = %v, want untouched 1000", flour.StockQuantity)
	}
	sugar, _ := s.GetBahan(ctx, "bhn-sugar")
	if sugar.StockQuantity != 500 {
		t.Errorf("sugar stock = %v, want untouched 500", sugar.StockQuantity)
	}
	sales, _ := s.ListSales(ctx)
	if len(sales) != 0 {
		t.Errorf("expected no sales recorded, got %d", len(sales))
	}
}

// Two concurrent sales that each need more than half the remaining stock:
// exactly one must win.
func TestRecordSale_ConcurrentContention(t *testing.T) {
	s := newPantryStore(t)
	ctx := context.Background()

	sale := domain.Penjualan{
		MenuID:       "mnu-bread",
		Date:         "2026-08-30",
		QuantitySold: 6,
		UsageDetails: []domain.UsageDetail{
			{BahanID: "bhn-flour", QuantityConsumed: 600},
		},
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = s.RecordSale(ctx, sale)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, store.ErrInsufficientStock) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one sale to commit, got %d", succeeded)
	}

	flour, _ := s.GetBahan(ctx, "bhn-flour")
	if flour.StockQuantity != 400 {
		t.Errorf("flour stock = %v, want 400", flour.StockQuantity)
	}
}

func TestDeleteMenu_ConflictsAfterSale(t *testing.T) {
	s := newPantryStore(t)
	ctx := context.Background()

	if _, err := s.RecordSale(ctx, domain.Penjualan{
		MenuID:       "mnu-bread",
		Date:         "2026-08-30",
		QuantitySold: 1,
		UsageDetails: []domain.UsageDetail{{BahanID: "bhn-flour", QuantityConsumed: 100}},
	}); err != nil {
		t.Fatalf("record sale: %v", err)
	}

	if err := s.DeleteMenu(ctx, "mnu-bread"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestListSalesByDate_FiltersAndOrders(t *testing.T) {
	s := newPantryStore(t)
	ctx := context.Background()

	for _, date := range []string{"2026-08-30", "2026-08-31", "2026-08-30"} {
		if _, err := s.RecordSale(ctx, domain.Penjualan{
			MenuID:       "mnu-bread",
			Date:         date,
			QuantitySold: 1,
			UsageDetails: []domain.UsageDetail{{BahanID: "bhn-flour", QuantityConsumed: 10}},
		}); err != nil {
			t.Fatalf("record sale on %s: %v", date, err)
		}
	}

	sales, err := s.ListSalesByDate(ctx, "2026-08-30")
	if err != nil {
		t.Fatalf("list by date: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected 2 sales on 2026-08-30, got %d", len(sales))
	}
	for _, sale := range sales {
		if sale.Date != "2026-08-30" {
			t.Errorf("sale %s has date %s", sale.ID, sale.Date)
		}
	}
	if sales[0].CreatedAt.After(sales[1].CreatedAt) {
		t.Error("expected sales ordered by creation time")
	}
}

func TestRecordSale_RejectsBadDate(t *testing.T) {
	s := newPantryStore(t)

	_, err := s.RecordSale(context.Background(), domain.Penjualan{
		MenuID:       "mnu-bread",
		Date:         "30-08-2026",
		QuantitySold: 1,
		UsageDetails: []domain.UsageDetail{{BahanID: "bhn-flour", QuantityConsumed: 10}},
	})
	if !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestAuditLog_NewestFirstWithLimit(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, action := range []string{"first", "second", "third"} {
		if err := s.CreateAuditLog(ctx, domain.AuditLog{Action: action}); err != nil {
			t.Fatalf("create audit log: %v", err)
		}
	}

	logs, err := s.ListAuditLogs(ctx, 2)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if logs[0].Action != "third" || logs[1].Action != "second" {
		t.Fatalf("expected newest first, got %s then %s", logs[0].Action, logs[1].Action)
	}
}
