package inventory

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReplayResult is the outcome of replaying a SKU's transactions from a
// baseline up to an as-of date.
type ReplayResult struct {
	BaseSKU string
	// BaselineQuantity is the protected starting quantity (zero when no
	// baseline exists for the SKU)
	BaselineQuantity decimal.Decimal
	// BaselineTakenAt is when the starting snapshot was taken
	BaselineTakenAt time.Time
	// StockOnHand is the signed sum of applied transactions on top of the
	// baseline
	StockOnHand decimal.Decimal
	// Applied is the number of transactions that contributed to the sum
	Applied int
	// Conflicts lists orders for which more than one shipment-kind
	// transaction existed; only one deduction per order was applied
	Conflicts []DeductionConflict
}

// DeductionConflict records a double-deduction risk found during replay:
// the same order produced both a manual shipment entry and a remote-reported
// ship entry (or repeated entries of either kind). Exactly one of them was
// applied; the rest require human reconciliation.
type DeductionConflict struct {
	OrderNumber     string
	AppliedID       uuid.UUID
	AppliedKind     TransactionKind
	AppliedQuantity decimal.Decimal
	IgnoredIDs      []uuid.UUID
	IgnoredQuantity decimal.Decimal
}

// Replay computes stock on hand for one base SKU by replaying transactions
// in chronological order from the baseline. receive and adjust_up add; ship,
// adjust_down and manual_shipment subtract. A single physical shipment event
// contributes exactly one deduction: when several shipment-kind transactions
// carry the same order number, only the most recently recorded one is
// applied and the rest are reported as conflicts.
//
// Transactions at or before the baseline timestamp, or after the as-of date,
// are skipped. The baseline may be nil, in which case replay starts from
// zero. The input slice is not modified.
func Replay(baseSKU string, baseline *StockBaseline, txs []InventoryTransaction, asOf time.Time) ReplayResult {
	result := ReplayResult{
		BaseSKU:          baseSKU,
		BaselineQuantity: decimal.Zero,
		StockOnHand:      decimal.Zero,
	}
	if baseline != nil {
		result.BaselineQuantity = baseline.Quantity
		result.BaselineTakenAt = baseline.TakenAt
	}
	result.StockOnHand = result.BaselineQuantity

	window := make([]InventoryTransaction, 0, len(txs))
	for _, tx := range txs {
		if tx.BaseSKU != baseSKU {
			continue
		}
		if baseline != nil && !tx.OccurredAt.After(baseline.TakenAt) {
			continue
		}
		if tx.OccurredAt.After(asOf) {
			continue
		}
		window = append(window, tx)
	}
	sort.SliceStable(window, func(i, j int) bool {
		if !window[i].OccurredAt.Equal(window[j].OccurredAt) {
			return window[i].OccurredAt.Before(window[j].OccurredAt)
		}
		return window[i].CreatedAt.Before(window[j].CreatedAt)
	})

	winners := shipmentWinners(window)

	for _, tx := range window {
		if tx.Kind.IsShipment() && tx.OrderNumber != "" {
			if winners[tx.OrderNumber] != tx.ID {
				continue
			}
		}
		result.StockOnHand = result.StockOnHand.Add(tx.SignedQuantity())
		result.Applied++
	}

	result.Conflicts = collectConflicts(window, winners)
	return result
}

// shipmentWinners picks, per order number, the single shipment-kind
// transaction whose deduction counts. The most recently recorded entry wins:
// whichever side was written last is treated as the deliberate correction of
// the other.
func shipmentWinners(window []InventoryTransaction) map[string]uuid.UUID {
	winners := make(map[string]uuid.UUID)
	recorded := make(map[string]time.Time)
	for _, tx := range window {
		if !tx.Kind.IsShipment() || tx.OrderNumber == "" {
			continue
		}
		last, seen := recorded[tx.OrderNumber]
		if !seen || tx.CreatedAt.After(last) {
			winners[tx.OrderNumber] = tx.ID
			recorded[tx.OrderNumber] = tx.CreatedAt
		}
	}
	return winners
}

// collectConflicts builds the conflict report for orders with more than one
// shipment-kind transaction in the window.
func collectConflicts(window []InventoryTransaction, winners map[string]uuid.UUID) []DeductionConflict {
	byOrder := make(map[string][]InventoryTransaction)
	for _, tx := range window {
		if tx.Kind.IsShipment() && tx.OrderNumber != "" {
			byOrder[tx.OrderNumber] = append(byOrder[tx.OrderNumber], tx)
		}
	}

	orders := make([]string, 0, len(byOrder))
	for order, group := range byOrder {
		if len(group) > 1 {
			orders = append(orders, order)
		}
	}
	sort.Strings(orders)

	conflicts := make([]DeductionConflict, 0, len(orders))
	for _, order := range orders {
		conflict := DeductionConflict{OrderNumber: order}
		for _, tx := range byOrder[order] {
			if winners[order] == tx.ID {
				conflict.AppliedID = tx.ID
				conflict.AppliedKind = tx.Kind
				conflict.AppliedQuantity = tx.Quantity
				continue
			}
			conflict.IgnoredIDs = append(conflict.IgnoredIDs, tx.ID)
			conflict.IgnoredQuantity = conflict.IgnoredQuantity.Add(tx.Quantity)
		}
		conflicts = append(conflicts, conflict)
	}
	return conflicts
}

// WeekTotal is the shipped quantity for one trailing week
type WeekTotal struct {
	// WeekStart is the inclusive start of the week window
	WeekStart time.Time
	// Quantity is the total ship-kind quantity in the week
	Quantity decimal.Decimal
}

// WeeklyShipTotals buckets ship-kind quantities into trailing 7-day windows
// ending at asOf, oldest first. Only KindShip counts: manual shipments and
// adjustments are stock corrections, not demand signal.
func WeeklyShipTotals(txs []InventoryTransaction, weeks int, asOf time.Time) []WeekTotal {
	if weeks <= 0 {
		return nil
	}
	totals := make([]WeekTotal, weeks)
	for i := 0; i < weeks; i++ {
		totals[i] = WeekTotal{
			WeekStart: asOf.AddDate(0, 0, -7*(weeks-i)),
			Quantity:  decimal.Zero,
		}
	}

	windowStart := totals[0].WeekStart
	for _, tx := range txs {
		if tx.Kind != KindShip {
			continue
		}
		if !tx.OccurredAt.After(windowStart) || tx.OccurredAt.After(asOf) {
			continue
		}
		idx := weeks - 1 - int(asOf.Sub(tx.OccurredAt)/(7*24*time.Hour))
		if idx < 0 || idx >= weeks {
			continue
		}
		totals[idx].Quantity = totals[idx].Quantity.Add(tx.Quantity)
	}
	return totals
}

// WeeklyShipAverage returns the mean shipped quantity per week over the
// trailing window.
func WeeklyShipAverage(txs []InventoryTransaction, weeks int, asOf time.Time) decimal.Decimal {
	totals := WeeklyShipTotals(txs, weeks, asOf)
	if len(totals) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, wt := range totals {
		sum = sum.Add(wt.Quantity)
	}
	return sum.Div(decimal.NewFromInt(int64(len(totals))))
}
