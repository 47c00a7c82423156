package upl

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"uplregistry/internal/domain/upl/entities"
	apperrors "uplregistry/pkg/errors"
)

// Service is the operations layer: every entry in the external interface
// table, built on top of Registry's single- and multi-id guards. State
// machine errors surface unchanged; nothing here adds its own taxonomy.
type Service struct {
	registry *Registry
	log      zerolog.Logger

	// onArchived, if set, is invoked with every batch of UPLs that
	// CloseCart just moved into the archive collection. It runs after
	// the collection locks are released, so a slow subscriber (e.g. a
	// cold-storage exporter) never extends the exclusive window.
	onArchived func(archived []*entities.Upl)
}

func NewService(registry *Registry, log zerolog.Logger) *Service {
	return &Service{registry: registry, log: log}
}

// OnArchived registers a callback fired after each CloseCart with the
// batch of UPLs it just archived.
func (s *Service) OnArchived(fn func(archived []*entities.Upl)) {
	s.onArchived = fn
}

// CreateNew constructs and inserts a single UPL.
func (s *Service) CreateNew(spec entities.NewUplSpec) (*entities.Upl, error) {
	upl, err := entities.NewUpl(spec, s.registry.now())
	if err != nil {
		return nil, err
	}
	if err := s.registry.Insert(upl); err != nil {
		return nil, err
	}
	return upl, nil
}

// BulkCreateResult is one outcome of CreateNewBulk: either an accepted
// id or the error that rejected it.
type BulkCreateResult struct {
	UplID entities.UplId
	Err   error
}

// CreateNewBulk accepts a batch of creation payloads, best-effort: a
// per-item failure is logged and skipped, never aborts the rest.
func (s *Service) CreateNewBulk(specs []entities.NewUplSpec) []BulkCreateResult {
	results := make([]BulkCreateResult, 0, len(specs))
	for _, spec := range specs {
		upl, err := s.CreateNew(spec)
		if err != nil {
			s.log.Warn().Err(err).Str("upl_id", spec.UplID.String()).Msg("create_new_bulk: item rejected")
			results = append(results, BulkCreateResult{UplID: spec.UplID, Err: err})
			continue
		}
		results = append(results, BulkCreateResult{UplID: upl.ID})
	}
	return results
}

// GetById returns the active UPL by id.
func (s *Service) GetById(id entities.UplId) (*entities.Upl, error) {
	return s.registry.Get(id)
}

// GetByIdArchive returns the archived UPL by id.
func (s *Service) GetByIdArchive(id entities.UplId) (*entities.Upl, error) {
	return s.registry.GetArchived(id)
}

// GetBulk resolves a batch of ids independently; each lookup takes and
// releases its own guard, so no lock is held across items.
func (s *Service) GetBulk(ids []entities.UplId) []BulkGetResult {
	results := make([]BulkGetResult, 0, len(ids))
	for _, id := range ids {
		upl, err := s.registry.Get(id)
		results = append(results, BulkGetResult{UplID: id, Upl: upl, Err: err})
	}
	return results
}

type BulkGetResult struct {
	UplID entities.UplId
	Upl   *entities.Upl
	Err   error
}

func matchesSku(u *entities.Upl, sku uint32) bool {
	switch u.Kind.Tag {
	case entities.KindSku, entities.KindBulkSku, entities.KindOpenedSku:
		return u.Kind.Sku == sku
	case entities.KindDerivedProduct:
		return u.Kind.ParentSku == sku
	default:
		return false
	}
}

// GetBySku full-scans the active collection for every id of that sku.
func (s *Service) GetBySku(sku uint32) []entities.UplId {
	matches := s.registry.Scan(func(u *entities.Upl) bool { return matchesSku(u, sku) })
	return idsOf(matches)
}

// GetBySkuAndLocation narrows GetBySku by location.
func (s *Service) GetBySkuAndLocation(sku uint32, location entities.Location) []entities.UplId {
	matches := s.registry.Scan(func(u *entities.Upl) bool {
		return matchesSku(u, sku) && u.Location.Equal(location)
	})
	return idsOf(matches)
}

// GetByLocation full-scans the active collection for every id at a
// location.
func (s *Service) GetByLocation(location entities.Location) []entities.UplId {
	matches := s.registry.Scan(func(u *entities.Upl) bool { return u.Location.Equal(location) })
	return idsOf(matches)
}

func idsOf(upls []*entities.Upl) []entities.UplId {
	ids := make([]entities.UplId, 0, len(upls))
	for _, u := range upls {
		ids = append(ids, u.ID)
	}
	return ids
}

func (s *Service) SetBestBefore(id entities.UplId, bestBefore *time.Time, by uint32) (*entities.Upl, error) {
	return s.registry.Update(id, func(u *entities.Upl) error {
		u.SetBestBefore(bestBefore, by, s.registry.now())
		return nil
	})
}

// Split peels piece units off a BulkSku into a new UPL id, inserting the
// child. Both ids are locked together in ascending order so no other
// operation can observe the parent mutated without the child existing.
func (s *Service) Split(id, newID entities.UplId, piece uint32, by uint32) (*entities.Upl, error) {
	unlock := s.registry.lockIDs([]entities.UplId{id, newID})
	defer unlock()

	parent, ok := s.registry.getActiveNoLock(id)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("upl %s not found", id))
	}
	if _, exists := s.registry.getActiveNoLock(newID); exists {
		return nil, apperrors.NewConflictError(fmt.Sprintf("upl %s already exists", newID))
	}
	if s.registry.archivedExistsNoLock(newID) {
		return nil, apperrors.NewConflictError(fmt.Sprintf("upl %s already exists in archive", newID))
	}

	child, err := parent.Split(newID, piece, by, s.registry.now())
	if err != nil {
		return nil, err
	}
	if err := s.registry.saveActiveNoLock(parent); err != nil {
		return nil, err
	}
	if err := s.registry.insertActiveNoLock(child); err != nil {
		return nil, err
	}
	return parent, nil
}

// SplitBulk peels off len(newIDs) single units, validating up front that
// none of them collide and that the bulk can supply that many.
func (s *Service) SplitBulk(id entities.UplId, newIDs []entities.UplId, by uint32) (*entities.Upl, []*entities.Upl, error) {
	ids := append([]entities.UplId{id}, newIDs...)
	unlock := s.registry.lockIDs(ids)
	defer unlock()

	parent, ok := s.registry.getActiveNoLock(id)
	if !ok {
		return nil, nil, apperrors.NewNotFoundError(fmt.Sprintf("upl %s not found", id))
	}
	for _, newID := range newIDs {
		if _, exists := s.registry.getActiveNoLock(newID); exists {
			return nil, nil, apperrors.NewConflictError(fmt.Sprintf("upl %s already exists", newID))
		}
		if s.registry.archivedExistsNoLock(newID) {
			return nil, nil, apperrors.NewConflictError(fmt.Sprintf("upl %s already exists in archive", newID))
		}
	}

	children, err := parent.SplitBulk(newIDs, by, s.registry.now())
	if err != nil {
		return nil, nil, err
	}
	if err := s.registry.saveActiveNoLock(parent); err != nil {
		return nil, nil, err
	}
	for _, child := range children {
		if err := s.registry.insertActiveNoLock(child); err != nil {
			return nil, nil, err
		}
	}
	return parent, children, nil
}

func (s *Service) OpenUpl(id entities.UplId, by uint32) (*entities.Upl, error) {
	return s.registry.Update(id, func(u *entities.Upl) error {
		return u.Open(by, s.registry.now())
	})
}

func (s *Service) CloseUpl(id entities.UplId, by uint32) (*entities.Upl, error) {
	return s.registry.Update(id, func(u *entities.Upl) error {
		return u.Close(by, s.registry.now())
	})
}

// Divide portions amount subunits off an OpenedSku into a new UPL id,
// inserting the child, under the same two-id guard discipline as Split.
func (s *Service) Divide(id, newID entities.UplId, amount uint32, by uint32) (*entities.Upl, error) {
	unlock := s.registry.lockIDs([]entities.UplId{id, newID})
	defer unlock()

	parent, ok := s.registry.getActiveNoLock(id)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("upl %s not found", id))
	}
	if _, exists := s.registry.getActiveNoLock(newID); exists {
		return nil, apperrors.NewConflictError(fmt.Sprintf("upl %s already exists", newID))
	}
	if s.registry.archivedExistsNoLock(newID) {
		return nil, apperrors.NewConflictError(fmt.Sprintf("upl %s already exists in archive", newID))
	}

	child, err := parent.Divide(newID, amount, by, s.registry.now())
	if err != nil {
		return nil, err
	}
	if err := s.registry.saveActiveNoLock(parent); err != nil {
		return nil, err
	}
	if err := s.registry.insertActiveNoLock(child); err != nil {
		return nil, err
	}
	return parent, nil
}

// MergeBack folds a derived child back into its parent's remaining and
// removes the child from the registry.
func (s *Service) MergeBack(childID entities.UplId, by uint32) error {
	peek, err := s.registry.Get(childID)
	if err != nil {
		return err
	}
	if peek.Kind.Tag != entities.KindDerivedProduct {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s is not a derived product", childID))
	}
	parentID := peek.Kind.ParentUpl

	unlock := s.registry.lockIDs([]entities.UplId{parentID, childID})
	defer unlock()

	parent, ok := s.registry.getActiveNoLock(parentID)
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("upl %s not found", parentID))
	}
	child, ok := s.registry.getActiveNoLock(childID)
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("upl %s not found", childID))
	}

	if err := parent.Merge(child, by, s.registry.now()); err != nil {
		return err
	}
	if err := s.registry.saveActiveNoLock(parent); err != nil {
		return err
	}
	return s.registry.removeActiveNoLock(childID)
}

func (s *Service) SetDepreciation(id entities.UplId, depreciationID, comment string, by uint32) (*entities.Upl, error) {
	return s.registry.Update(id, func(u *entities.Upl) error {
		return u.SetDepreciation(depreciationID, comment, by, s.registry.now())
	})
}

func (s *Service) RemoveDepreciation(id entities.UplId, by uint32) (*entities.Upl, error) {
	return s.registry.Update(id, func(u *entities.Upl) error {
		return u.RemoveDepreciation(by, s.registry.now())
	})
}

func (s *Service) SetDepreciationPrice(id entities.UplId, net int64, by uint32) (*entities.Upl, error) {
	return s.registry.Update(id, func(u *entities.Upl) error {
		return u.SetDepreciationPrice(net, by, s.registry.now())
	})
}

func (s *Service) RemoveDepreciationPrice(id entities.UplId, by uint32) (*entities.Upl, error) {
	return s.registry.Update(id, func(u *entities.Upl) error {
		return u.RemoveDepreciationPrice(by, s.registry.now())
	})
}

func (s *Service) LockToCart(id entities.UplId, cartID string, by uint32) (*entities.Upl, error) {
	return s.registry.Update(id, func(u *entities.Upl) error {
		return u.LockUpl(entities.NewCartLock(cartID), by, s.registry.now())
	})
}

func (s *Service) LockToInventory(id entities.UplId, inventoryID uint32, by uint32) (*entities.Upl, error) {
	return s.registry.Update(id, func(u *entities.Upl) error {
		return u.LockUpl(entities.NewInventoryLock(inventoryID), by, s.registry.now())
	})
}

func (s *Service) ReleaseLockFromCart(id entities.UplId, cartID string, by uint32) (*entities.Upl, error) {
	return s.registry.Update(id, func(u *entities.Upl) error {
		return u.UnlockUpl(entities.NewCartLock(cartID), by, s.registry.now())
	})
}

func (s *Service) ReleaseLockFromInventory(id entities.UplId, inventoryID uint32, by uint32) (*entities.Upl, error) {
	return s.registry.Update(id, func(u *entities.Upl) error {
		return u.UnlockUpl(entities.NewInventoryLock(inventoryID), by, s.registry.now())
	})
}

func (s *Service) MoveUpl(id entities.UplId, to entities.Location, by uint32) (*entities.Upl, error) {
	return s.registry.Update(id, func(u *entities.Upl) error {
		return u.MoveUpl(to, by, s.registry.now())
	})
}

// CloseCart moves every UPL locked to cartID into Cart(cartID) (clearing
// the lock), then archives every UPL now at that location, both passes
// under the active collection's exclusive lock. Returns the number of
// UPLs archived.
func (s *Service) CloseCart(cartID string, by uint32) (int, error) {
	now := s.registry.now()
	target := entities.NewCartLocation(cartID)

	s.registry.activeMu.Lock()

	var toMove []entities.UplId
	for id, u := range s.registry.active {
		if u.Lock.Tag == entities.LockCart && u.Lock.CartID == cartID {
			toMove = append(toMove, id)
		}
	}
	sort.Slice(toMove, func(i, j int) bool { return toMove[i] < toMove[j] })

	for _, id := range toMove {
		u := s.registry.active[id]
		if err := u.MoveUpl(target, by, now); err != nil {
			s.registry.activeMu.Unlock()
			return 0, err
		}
		if err := s.registry.activeStore.Save(u); err != nil {
			s.registry.activeMu.Unlock()
			return 0, apperrors.WrapInternalError(err, fmt.Sprintf("persisting upl %s", id))
		}
	}

	var toArchive []entities.UplId
	for id, u := range s.registry.active {
		if u.Location.Equal(target) {
			toArchive = append(toArchive, id)
		}
	}
	sort.Slice(toArchive, func(i, j int) bool { return toArchive[i] < toArchive[j] })

	s.registry.archiveMu.Lock()
	archived, err := s.registry.archiveBatchLocked(context.Background(), toArchive)
	s.registry.archiveMu.Unlock()
	s.registry.activeMu.Unlock()
	if err != nil {
		return 0, err
	}

	if s.onArchived != nil && len(archived) > 0 {
		s.onArchived(archived)
	}
	return len(toArchive), nil
}

// CloseInventory force-unlocks every active UPL held under inventoryID.
func (s *Service) CloseInventory(inventoryID uint32, by uint32) (int, error) {
	now := s.registry.now()

	s.registry.activeMu.Lock()
	defer s.registry.activeMu.Unlock()

	var ids []entities.UplId
	for id, u := range s.registry.active {
		if u.Lock.Tag == entities.LockInventory && u.Lock.InventoryID == inventoryID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		u := s.registry.active[id]
		u.UnlockForced(by, now)
		if err := s.registry.activeStore.Save(u); err != nil {
			return 0, apperrors.WrapInternalError(err, fmt.Sprintf("persisting upl %s", id))
		}
		s.registry.invalidate(id)
	}
	return len(ids), nil
}

// SetSkuPrice rejects net*vat != declaredGross up front, then reprices
// every active UPL of that sku.
func (s *Service) SetSkuPrice(sku uint32, net int64, vat entities.Vat, declaredGross int64, by uint32) (int, error) {
	if !vat.Valid() {
		return 0, apperrors.NewBadRequestError(fmt.Sprintf("invalid vat %q", vat))
	}
	if vat.Gross(net) != declaredGross {
		return 0, apperrors.NewBadRequestError(fmt.Sprintf("net %d * vat %s rounds to %d, not declared gross %d", net, vat, vat.Gross(net), declaredGross))
	}

	now := s.registry.now()
	s.registry.activeMu.Lock()
	defer s.registry.activeMu.Unlock()

	count := 0
	for id, u := range s.registry.active {
		if !matchesSku(u, sku) {
			continue
		}
		if err := u.SetPrice(net, vat, by, now); err != nil {
			return count, err
		}
		if err := s.registry.activeStore.Save(u); err != nil {
			return count, apperrors.WrapInternalError(err, fmt.Sprintf("persisting upl %s", id))
		}
		s.registry.invalidate(id)
		count++
	}
	return count, nil
}

// SetSkuDivisible updates the divisible flag on every active UPL of that
// sku.
func (s *Service) SetSkuDivisible(sku uint32, divisible bool, by uint32) (int, error) {
	now := s.registry.now()
	s.registry.activeMu.Lock()
	defer s.registry.activeMu.Unlock()

	count := 0
	for id, u := range s.registry.active {
		if !matchesSku(u, sku) {
			continue
		}
		u.SetDivisible(divisible, by, now)
		if err := s.registry.activeStore.Save(u); err != nil {
			return count, apperrors.WrapInternalError(err, fmt.Sprintf("persisting upl %s", id))
		}
		s.registry.invalidate(id)
		count++
	}
	return count, nil
}

// LocationInfo is the per-stock-location aggregate get_location_info
// returns: the unit count present, and how many of those are healthy.
type LocationInfo struct {
	Total   uint32 `json:"total"`
	Healthy uint32 `json:"healthy"`
}

// GetLocationInfo full-scans the active collection for a sku and buckets
// matching UPLs by stock location.
func (s *Service) GetLocationInfo(sku uint32, today time.Time) map[uint32]LocationInfo {
	info := make(map[uint32]LocationInfo)
	matches := s.registry.Scan(func(u *entities.Upl) bool {
		return matchesSku(u, sku) && u.Location.Tag == entities.LocationStock
	})
	for _, u := range matches {
		cur := info[u.Location.StockID]
		cur.Total += u.GetUplPiece()
		if u.IsAvailableHealthy(today) {
			cur.Healthy += u.GetUplPiece()
		}
		info[u.Location.StockID] = cur
	}
	return info
}

// GetLocationInfoBulk runs GetLocationInfo over several skus.
func (s *Service) GetLocationInfoBulk(skus []uint32, today time.Time) map[uint32]map[uint32]LocationInfo {
	result := make(map[uint32]map[uint32]LocationInfo, len(skus))
	for _, sku := range skus {
		result[sku] = s.GetLocationInfo(sku, today)
	}
	return result
}
