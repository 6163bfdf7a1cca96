package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/domain/inventory"
	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/domain/sku"
	"github.com/oms/backend/internal/infrastructure/telemetry"
)

// DuplicateResolver detects pairs with more than one remote line record
// and resolves them. The keep rule prefers the record already pointing at
// the active lot, then the earliest created; live losers are deleted on
// the provider, shipped or cancelled losers go to manual review as alerts.
//
// An exclusion is final: an excluded pair is skipped before any other
// work, forever, no matter what later scans find.
type DuplicateResolver struct {
	provider   fulfillment.Provider
	lots       inventory.LotRepository
	alerts     fulfillment.DuplicateAlertRepository
	exclusions fulfillment.ExclusionRepository
	metrics    *telemetry.SyncMetrics
}

// NewDuplicateResolver creates a new DuplicateResolver
func NewDuplicateResolver(
	provider fulfillment.Provider,
	lots inventory.LotRepository,
	alerts fulfillment.DuplicateAlertRepository,
	exclusions fulfillment.ExclusionRepository,
) *DuplicateResolver {
	return &DuplicateResolver{
		provider:   provider,
		lots:       lots,
		alerts:     alerts,
		exclusions: exclusions,
	}
}

// SetMetrics attaches duplicate resolution metrics
func (s *DuplicateResolver) SetMetrics(metrics *telemetry.SyncMetrics) {
	s.metrics = metrics
}

func (s *DuplicateResolver) recordResolution(ctx context.Context, resolution telemetry.DuplicateResolution) {
	if s.metrics != nil {
		s.metrics.RecordDuplicate(ctx, resolution)
	}
}

// ---------------------------------------------------------------------------
// Scan
// ---------------------------------------------------------------------------

// remoteLine is one provider line record, tagged with its order number and
// the lot parsed from its token
type remoteLine struct {
	orderNumber string
	lot         string
	item        fulfillment.RemoteOrderItem
}

// pairKey identifies a duplicate group
type pairKey struct {
	orderNumber string
	baseSKU     string
}

// ScanWindow fetches every record changed in the window, groups line
// records by (order number, base SKU) and resolves each group that holds
// more than one record. Groups back down to one record auto-resolve their
// open alert.
func (s *DuplicateResolver) ScanWindow(ctx context.Context, from, to time.Time) (*RunSummary, error) {
	summary := NewRunSummary()

	groups, err := s.collectGroups(ctx, from, to)
	if err != nil {
		return summary.Finish(), err
	}

	keys := make([]pairKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].orderNumber != keys[j].orderNumber {
			return keys[i].orderNumber < keys[j].orderNumber
		}
		return keys[i].baseSKU < keys[j].baseSKU
	})

	for _, key := range keys {
		if ctx.Err() != nil {
			return summary.Finish(), ctx.Err()
		}
		s.resolvePair(ctx, key, groups[key], summary)
	}
	return summary.Finish(), nil
}

// collectGroups pages through the window and buckets line records by pair.
// Records whose token does not parse are ignored: they cannot collide with
// anything the local system tracks.
func (s *DuplicateResolver) collectGroups(ctx context.Context, from, to time.Time) (map[pairKey][]remoteLine, error) {
	groups := make(map[pairKey][]remoteLine)
	seen := make(map[string]bool)

	page := 1
	for {
		req := &fulfillment.ListOrdersRequest{
			UpdatedFrom: from,
			UpdatedTo:   to,
			Page:        page,
			PageSize:    DefaultSyncPageSize,
		}
		resp, err := s.provider.ListOrders(ctx, req)
		if err != nil {
			return nil, err
		}

		for _, remote := range resp.Orders {
			for _, item := range remote.Items {
				if item.RemoteItemID == "" || seen[item.RemoteItemID] {
					continue
				}
				token, err := sku.Parse(item.SKUToken)
				if err != nil {
					continue
				}
				seen[item.RemoteItemID] = true
				key := pairKey{orderNumber: remote.OrderNumber, baseSKU: token.BaseSKU}
				groups[key] = append(groups[key], remoteLine{
					orderNumber: remote.OrderNumber,
					lot:         token.LotNumber,
					item:        item,
				})
			}
		}

		if !resp.HasMore {
			return groups, nil
		}
		page = resp.NextPage
	}
}

// resolvePair resolves one duplicate group
func (s *DuplicateResolver) resolvePair(ctx context.Context, key pairKey, lines []remoteLine, summary *RunSummary) {
	pairID := key.orderNumber + "/" + key.baseSKU

	// Exclusion check comes before everything else. An excluded pair gets
	// no deletions, no alerts, no auto-resolution.
	excluded, err := s.exclusions.Exists(ctx, key.orderNumber, key.baseSKU)
	if err != nil {
		summary.Fail(pairID, err)
		return
	}
	if excluded {
		summary.Skip()
		return
	}

	if len(lines) <= 1 {
		closed, err := s.autoResolve(ctx, key)
		if err != nil {
			summary.Fail(pairID, err)
			return
		}
		if closed {
			s.recordResolution(ctx, telemetry.ResolutionAutoResolved)
		}
		summary.Success()
		return
	}

	keeper, losers, err := s.pickKeeper(ctx, key.baseSKU, lines)
	if err != nil {
		summary.Fail(pairID, err)
		return
	}

	var finalLosers []remoteLine
	deletionsPending := false
	for _, loser := range losers {
		if loser.item.Status.IsFinal() {
			finalLosers = append(finalLosers, loser)
			continue
		}
		if err := s.deleteRemote(ctx, loser.item.RemoteItemID); err != nil {
			if fulfillment.IsTransient(err) {
				deletionsPending = true
				continue
			}
			// The provider refused the delete. Treat the record like a
			// final one: a human decides.
			finalLosers = append(finalLosers, loser)
			continue
		}
	}

	switch {
	case len(finalLosers) > 0:
		if err := s.raiseAlert(ctx, key, keeper, lines, finalLosers); err != nil {
			summary.Fail(pairID, err)
			return
		}
		s.recordResolution(ctx, telemetry.ResolutionAlerted)
		summary.Success()
	case deletionsPending:
		// Some deletes wait on the provider; the next scan finishes the
		// group.
		s.recordResolution(ctx, telemetry.ResolutionDeferred)
		summary.Skip()
	default:
		if _, err := s.autoResolve(ctx, key); err != nil {
			summary.Fail(pairID, err)
			return
		}
		s.recordResolution(ctx, telemetry.ResolutionDeleted)
		summary.Success()
	}
}

// pickKeeper chooses the record to keep: first preference is a record
// whose lot is the SKU's active lot, then the earliest created. Ties break
// on remote item id so concurrent scans agree.
func (s *DuplicateResolver) pickKeeper(ctx context.Context, baseSKU string, lines []remoteLine) (remoteLine, []remoteLine, error) {
	activeLot := ""
	active, err := s.lots.FindActive(ctx, baseSKU)
	if err != nil {
		return remoteLine{}, nil, err
	}
	if active != nil {
		activeLot = active.LotNumber
	}

	ranked := make([]remoteLine, len(lines))
	copy(ranked, lines)
	sort.Slice(ranked, func(i, j int) bool {
		iActive := activeLot != "" && ranked[i].lot == activeLot
		jActive := activeLot != "" && ranked[j].lot == activeLot
		if iActive != jActive {
			return iActive
		}
		if !ranked[i].item.CreatedAt.Equal(ranked[j].item.CreatedAt) {
			return ranked[i].item.CreatedAt.Before(ranked[j].item.CreatedAt)
		}
		return ranked[i].item.RemoteItemID < ranked[j].item.RemoteItemID
	})

	return ranked[0], ranked[1:], nil
}

// deleteRemote deletes a line record, treating an already-gone record as
// success
func (s *DuplicateResolver) deleteRemote(ctx context.Context, remoteItemID string) error {
	err := s.provider.DeleteOrderItem(ctx, remoteItemID)
	if err != nil && errors.Is(err, fulfillment.ErrRemoteItemNotFound) {
		return nil
	}
	return err
}

// raiseAlert opens or refreshes the pair's duplicate alert. One open alert
// per pair: a re-scan updates it instead of stacking a second.
func (s *DuplicateResolver) raiseAlert(ctx context.Context, key pairKey, keeper remoteLine, all, finalLosers []remoteLine) error {
	ids := make([]string, 0, len(all))
	for _, line := range all {
		ids = append(ids, line.item.RemoteItemID)
	}
	sort.Strings(ids)
	detail := fmt.Sprintf("%d records for the pair, %d in a final status; kept %s",
		len(all), len(finalLosers), keeper.item.RemoteItemID)

	existing, err := s.alerts.FindOpenByPair(ctx, key.orderNumber, key.baseSKU)
	if err != nil {
		return err
	}
	if existing != nil {
		if err := existing.SetRemoteItemIDs(ids); err != nil {
			return err
		}
		existing.KeptItemID = keeper.item.RemoteItemID
		existing.Detail = detail
		existing.Touch()
		return s.alerts.Save(ctx, existing)
	}

	alert, err := fulfillment.NewDuplicateAlert(key.orderNumber, key.baseSKU, ids, keeper.item.RemoteItemID, detail)
	if err != nil {
		return err
	}
	return s.alerts.Save(ctx, alert)
}

// autoResolve closes the pair's open alert when a re-scan finds the group
// back down to at most one record. The bool reports whether an alert was
// actually closed.
func (s *DuplicateResolver) autoResolve(ctx context.Context, key pairKey) (bool, error) {
	open, err := s.alerts.FindOpenByPair(ctx, key.orderNumber, key.baseSKU)
	if err != nil {
		return false, err
	}
	if open == nil {
		return false, nil
	}
	if err := open.MarkAutoResolved(); err != nil {
		return false, err
	}
	if err := s.alerts.Save(ctx, open); err != nil {
		return false, err
	}
	return true, nil
}

// ---------------------------------------------------------------------------
// Operator Actions
// ---------------------------------------------------------------------------

// ExcludePair writes the permanent exclusion for an alert's pair and marks
// the alert excluded. The exclusion is irreversible and survives the
// alert: every future scan skips the pair before doing any work on it.
func (s *DuplicateResolver) ExcludePair(ctx context.Context, alertID uuid.UUID, reason, createdBy string) (*fulfillment.ExclusionRecord, error) {
	alert, err := s.alerts.FindByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, shared.ErrNotFound
	}

	record, err := fulfillment.NewExclusionRecord(alert.OrderNumber, alert.BaseSKU, reason, createdBy)
	if err != nil {
		return nil, err
	}
	if err := s.exclusions.Save(ctx, record); err != nil {
		// The pair may already be excluded through another alert. The
		// exclusion stands either way; still close this alert.
		if !errors.Is(err, shared.ErrAlreadyExists) {
			return nil, err
		}
		record, err = s.exclusions.FindByPair(ctx, alert.OrderNumber, alert.BaseSKU)
		if err != nil {
			return nil, err
		}
	}

	if err := alert.MarkExcluded(); err != nil {
		return nil, err
	}
	if err := s.alerts.Save(ctx, alert); err != nil {
		return nil, err
	}
	s.recordResolution(ctx, telemetry.ResolutionExcluded)
	return record, nil
}

// ConfirmDeletion marks an alert manually deleted after the operator
// removed the surplus records outside the system
func (s *DuplicateResolver) ConfirmDeletion(ctx context.Context, alertID uuid.UUID) error {
	alert, err := s.alerts.FindByID(ctx, alertID)
	if err != nil {
		return err
	}
	if alert == nil {
		return shared.ErrNotFound
	}
	if err := alert.MarkManuallyDeleted(); err != nil {
		return err
	}
	return s.alerts.Save(ctx, alert)
}
