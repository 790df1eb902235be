package costing

import (
	"fmt"

	"dapurstok/backend/internal/domain"
	"dapurstok/backend/internal/store"
)

// Result is the full consumption breakdown of one sale event.
type Result struct {
	Details    []domain.UsageDetail
	TotalCost  float64
	TotalWaste float64
}

// Compute turns a sold quantity into per-ingredient consumption, waste and
// cost. Waste inflates the stock draw: to yield the recipe's usable amount
// the draw is grossed up by 1/(1-w/100), and the surplus over the usable
// amount is the wasted quantity. Pure; it never touches stock.
func Compute(menu domain.Menu, bahanByID map[string]domain.Bahan, quantitySold int) (Result, error) {
	if quantitySold <= 0 {
		return Result{}, fmt.Errorf("%w: quantity_sold must be a positive integer", store.ErrInvalidArgument)
	}

	result := Result{Details: make([]domain.UsageDetail, 0, len(menu.Recipe))}
	for _, line := range menu.Recipe {
		if line.Quantity <= 0 {
			return Result{}, fmt.Errorf("%w: recipe quantity must be positive", store.ErrInvalidArgument)
		}
		if line.WastePercent < 0 || line.WastePercent >= 100 {
			return Result{}, fmt.Errorf("%w: waste_percent must be in [0, 100)", store.ErrInvalidArgument)
		}
		bahan, ok := bahanByID[line.BahanID]
		if !ok {
			return Result{}, fmt.Errorf("%w: bahan %s", store.ErrNotFound, line.BahanID)
		}

		rawNeeded := line.Quantity * float64(quantitySold)
		grossNeed := rawNeeded / (1 - line.WastePercent/100)
		wasted := grossNeed - rawNeeded
		lineCost := grossNeed * bahan.UnitPrice

		result.Details = append(result.Details, domain.UsageDetail{
			BahanID:          bahan.ID,
			QuantityConsumed: grossNeed,
			QuantityWasted:   wasted,
			LineCost:         lineCost,
		})
		result.TotalCost += lineCost
		result.TotalWaste += wasted
	}

	return result, nil
}
