package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"dapurstok/backend/internal/domain"
	"dapurstok/backend/internal/store"
	"dapurstok/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListBahan(ctx context.Context) ([]domain.Bahan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit, stock_quantity, unit_price, created_at, updated_at
		FROM bahan
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]domain.Bahan, 0, 64)
	for rows.Next() {
		var b domain.Bahan
		if err := rows.Scan(&b.ID, &b.Name, &b.Unit, &b.StockQuantity, &b.UnitPrice, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		b.CreatedAt = b.CreatedAt.UTC()
		b.UpdatedAt = b.UpdatedAt.UTC()
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) GetBahan(ctx context.Context, id string) (*domain.Bahan, error) {
	var b domain.Bahan
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, unit, stock_quantity, unit_price, created_at, updated_at
		FROM bahan
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Unit, &b.StockQuantity, &b.UnitPrice, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

func (s *Store) CreateBahan(ctx context.Context, bahan domain.Bahan) (*domain.Bahan, error) {
	if bahan.Name == "" || bahan.Unit == "" || bahan.StockQuantity < 0 || bahan.UnitPrice < 0 {
		return nil, store.ErrInvalidArgument
	}
	if bahan.ID == "" {
		bahan.ID = xid.New("bhn")
	}
	now := time.Now().UTC()
	bahan.CreatedAt = now
	bahan.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bahan (id, name, unit, stock_quantity, unit_price, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, bahan.ID, bahan.Name, bahan.Unit, bahan.StockQuantity, bahan.UnitPrice, bahan.CreatedAt, bahan.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: bahan %s already exists", store.ErrConflict, bahan.ID)
		}
		return nil, err
	}

	created := bahan
	return &created, nil
}

func (s *Store) UpdateBahan(ctx context.Context, bahan domain.Bahan) (*domain.Bahan, error) {
	if bahan.Name == "" || bahan.Unit == "" || bahan.StockQuantity < 0 || bahan.UnitPrice < 0 {
		return nil, store.ErrInvalidArgument
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE bahan
		SET name = $2, unit = $3, stock_quantity = $4, unit_price = $5, updated_at = now()
		WHERE id = $1
	`, bahan.ID, bahan.Name, bahan.Unit, bahan.StockQuantity, bahan.UnitPrice)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetBahan(ctx, bahan.ID)
}

func (s *Store) DeleteBahan(ctx context.Context, id string) error {
	var referencedBy string
	err := s.db.QueryRowContext(ctx, `
		SELECT m.name
		FROM menu_recipe_lines rl
		JOIN menus m ON m.id = rl.menu_id
		WHERE rl.bahan_id = $1
		LIMIT 1
	`, id).Scan(&referencedBy)
	if err == nil {
		return fmt.Errorf("%w: bahan %s is used by menu %s", store.ErrConflict, id, referencedBy)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM bahan WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: bahan %s is still referenced", store.ErrConflict, id)
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetBahanByIDs(ctx context.Context, ids []string) (map[string]domain.Bahan, error) {
	result := make(map[string]domain.Bahan, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit, stock_quantity, unit_price, created_at, updated_at
		FROM bahan
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var b domain.Bahan
		if err := rows.Scan(&b.ID, &b.Name, &b.Unit, &b.StockQuantity, &b.UnitPrice, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		b.CreatedAt = b.CreatedAt.UTC()
		b.UpdatedAt = b.UpdatedAt.UTC()
		result[b.ID] = b
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListMenus(ctx context.Context) ([]domain.Menu, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM menus
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	menus := make([]domain.Menu, 0, 32)
	for rows.Next() {
		var m domain.Menu
		if err := rows.Scan(&m.ID, &m.Name, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		m.UpdatedAt = m.UpdatedAt.UTC()
		menus = append(menus, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range menus {
		recipe, err := s.loadRecipe(ctx, menus[i].ID)
		if err != nil {
			return nil, err
		}
		menus[i].Recipe = recipe
	}
	return menus, nil
}

func (s *Store) GetMenu(ctx context.Context, id string) (*domain.Menu, error) {
	var m domain.Menu
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM menus
		WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()

	recipe, err := s.loadRecipe(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Recipe = recipe
	return &m, nil
}

func (s *Store) loadRecipe(ctx context.Context, menuID string) ([]domain.RecipeLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bahan_id, quantity, waste_percent
		FROM menu_recipe_lines
		WHERE menu_id = $1
		ORDER BY line_no
	`, menuID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipe := make([]domain.RecipeLine, 0, 8)
	for rows.Next() {
		var line domain.RecipeLine
		if err := rows.Scan(&line.BahanID, &line.Quantity, &line.WastePercent); err != nil {
			return nil, err
		}
		recipe = append(recipe, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recipe, nil
}

func (s *Store) CreateMenu(ctx context.Context, menu domain.Menu) (*domain.Menu, error) {
	if err := validateMenu(menu); err != nil {
		return nil, err
	}
	if menu.ID == "" {
		menu.ID = xid.New("mnu")
	}
	now := time.Now().UTC()
	menu.CreatedAt = now
	menu.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := checkBahanExist(ctx, tx, menu.Recipe); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO menus (id, name, created_at, updated_at)
		VALUES ($1,$2,$3,$4)
	`, menu.ID, menu.Name, menu.CreatedAt, menu.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: menu %s already exists", store.ErrConflict, menu.ID)
		}
		return nil, err
	}

	if err := insertRecipeLines(ctx, tx, menu.ID, menu.Recipe); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := menu
	return &created, nil
}

// UpdateMenu discards the previous line set entirely and writes the new one.
func (s *Store) UpdateMenu(ctx context.Context, menu domain.Menu) (*domain.Menu, error) {
	if err := validateMenu(menu); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE menus SET name = $2, updated_at = now() WHERE id = $1
	`, menu.ID, menu.Name)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	if err := checkBahanExist(ctx, tx, menu.Recipe); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM menu_recipe_lines WHERE menu_id = $1`, menu.ID); err != nil {
		return nil, err
	}
	if err := insertRecipeLines(ctx, tx, menu.ID, menu.Recipe); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetMenu(ctx, menu.ID)
}

func (s *Store) DeleteMenu(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var saleID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM penjualan WHERE menu_id = $1 LIMIT 1
	`, id).Scan(&saleID)
	if err == nil {
		return fmt.Errorf("%w: menu %s has recorded sales", store.ErrConflict, id)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM menu_recipe_lines WHERE menu_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM menus WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

// RecordSale debits every ingredient and appends the sale in one
// serializable transaction. The bahan rows are locked with FOR UPDATE in id
// order, all debit amounts are validated against current stock, and only
// then are the debits and inserts applied; any shortfall rolls back the
// whole sale.
func (s *Store) RecordSale(ctx context.Context, sale domain.Penjualan) (*domain.Penjualan, error) {
	if sale.MenuID == "" || sale.QuantitySold <= 0 || len(sale.UsageDetails) == 0 {
		return nil, store.ErrInvalidArgument
	}
	saleDate, err := time.Parse(domain.DateLayout, sale.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q, use YYYY-MM-DD", store.ErrInvalidArgument, sale.Date)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var menuID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM menus WHERE id = $1`, sale.MenuID).Scan(&menuID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: menu %s", store.ErrNotFound, sale.MenuID)
		}
		return nil, err
	}

	bahanIDs := make([]string, 0, len(sale.UsageDetails))
	for _, detail := range sale.UsageDetails {
		if detail.QuantityConsumed < 0 {
			return nil, store.ErrInvalidArgument
		}
		bahanIDs = append(bahanIDs, detail.BahanID)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, unit, stock_quantity
		FROM bahan
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, bahanIDs)
	if err != nil {
		return nil, err
	}
	type lockedBahan struct {
		name  string
		unit  string
		stock float64
	}
	locked := make(map[string]lockedBahan, len(bahanIDs))
	for rows.Next() {
		var id string
		var b lockedBahan
		if err := rows.Scan(&id, &b.name, &b.unit, &b.stock); err != nil {
			_ = rows.Close()
			return nil, err
		}
		locked[id] = b
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for _, detail := range sale.UsageDetails {
		b, exists := locked[detail.BahanID]
		if !exists {
			return nil, fmt.Errorf("%w: bahan %s", store.ErrNotFound, detail.BahanID)
		}
		if detail.QuantityConsumed > b.stock {
			return nil, fmt.Errorf("%w: %s needs %.2f %s, available %.2f %s",
				store.ErrInsufficientStock, b.name,
				detail.QuantityConsumed, b.unit, b.stock, b.unit)
		}
	}

	for _, detail := range sale.UsageDetails {
		_, err := tx.ExecContext(ctx, `
			UPDATE bahan
			SET stock_quantity = stock_quantity - $1, updated_at = now()
			WHERE id = $2
		`, detail.QuantityConsumed, detail.BahanID)
		if err != nil {
			return nil, err
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO penjualan (id, menu_id, sale_date, quantity_sold, total_cost, total_waste, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sale.ID, sale.MenuID, saleDate, sale.QuantitySold, sale.TotalCost, sale.TotalWaste, sale.CreatedAt)
	if err != nil {
		return nil, err
	}

	for i, detail := range sale.UsageDetails {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO penjualan_usage (sale_id, line_no, bahan_id, quantity_consumed, quantity_wasted, line_cost)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, i, detail.BahanID, detail.QuantityConsumed, detail.QuantityWasted, detail.LineCost)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed := sale
	return &committed, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Penjualan, error) {
	var sale domain.Penjualan
	var saleDate time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT id, menu_id, sale_date, quantity_sold, total_cost, total_waste, created_at
		FROM penjualan
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.MenuID, &saleDate, &sale.QuantitySold, &sale.TotalCost, &sale.TotalWaste, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.Date = saleDate.Format(domain.DateLayout)
	sale.CreatedAt = sale.CreatedAt.UTC()

	details, err := s.loadUsage(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.UsageDetails = details[sale.ID]
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Penjualan, error) {
	return s.querySales(ctx, `
		SELECT id, menu_id, sale_date, quantity_sold, total_cost, total_waste, created_at
		FROM penjualan
		ORDER BY created_at, id
	`)
}

func (s *Store) ListSalesByDate(ctx context.Context, date string) ([]domain.Penjualan, error) {
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: invalid date %q, use YYYY-MM-DD", store.ErrInvalidArgument, date)
	}
	return s.querySales(ctx, `
		SELECT id, menu_id, sale_date, quantity_sold, total_cost, total_waste, created_at
		FROM penjualan
		WHERE sale_date = $1
		ORDER BY created_at, id
	`, date)
}

func (s *Store) querySales(ctx context.Context, query string, args ...any) ([]domain.Penjualan, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Penjualan, 0, 32)
	saleIDs := make([]string, 0, 32)
	for rows.Next() {
		var sale domain.Penjualan
		var saleDate time.Time
		if err := rows.Scan(&sale.ID, &sale.MenuID, &saleDate, &sale.QuantitySold, &sale.TotalCost, &sale.TotalWaste, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sale.Date = saleDate.Format(domain.DateLayout)
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
		saleIDs = append(saleIDs, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	details, err := s.loadUsage(ctx, saleIDs)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].UsageDetails = details[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) loadUsage(ctx context.Context, saleIDs []string) (map[string][]domain.UsageDetail, error) {
	result := make(map[string][]domain.UsageDetail, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, bahan_id, quantity_consumed, quantity_wasted, line_cost
		FROM penjualan_usage
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var saleID string
		var detail domain.UsageDetail
		if err := rows.Scan(&saleID, &detail.BahanID, &detail.QuantityConsumed, &detail.QuantityWasted, &detail.LineCost); err != nil {
			return nil, err
		}
		result[saleID] = append(result[saleID], detail)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidArgument
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: user %s already exists", store.ErrConflict, user.Username)
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func validateMenu(menu domain.Menu) error {
	if menu.Name == "" {
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
	}
	return nil
}

func checkBahanExist(ctx context.Context, tx *sql.Tx, recipe []domain.RecipeLine) error {
	ids := make([]string, 0, len(recipe))
	for _, line := range recipe {
		ids = append(ids, line.BahanID)
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM bahan WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	found := make(map[string]struct{}, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return fmt.Errorf("%w: unknown bahan %s", store.ErrInvalidArgument, id)
		}
	}
	return nil
}

func insertRecipeLines(ctx context.Context, tx *sql.Tx, menuID string, recipe []domain.RecipeLine) error {
	for i, line := range recipe {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO menu_recipe_lines (menu_id, line_no, bahan_id, quantity, waste_percent)
			VALUES ($1,$2,$3,$4,$5)
		`, menuID, i, line.BahanID, line.Quantity, line.WastePercent)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: unknown bahan %s", store.ErrInvalidArgument, line.BahanID)
			}
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
