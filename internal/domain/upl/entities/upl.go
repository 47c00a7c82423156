package entities

import (
	"fmt"
	"time"

	apperrors "uplregistry/pkg/errors"
)

// Upl is one physical occurrence of a SKU tracked by the registry: an id
// bound to a kind, a location, a lock, and the pricing derived from them.
type Upl struct {
	ID          UplId  `json:"id"`
	ProductID   uint32 `json:"product_id"`
	ProductUnit string `json:"product_unit"`

	Kind Kind `json:"kind"`

	SkuDivisibleAmount uint32 `json:"sku_divisible_amount"`
	SkuDivisible       bool   `json:"sku_divisible"`

	ProcurementID          uint32 `json:"procurement_id"`
	ProcurementNetPriceSku int64  `json:"procurement_net_price_sku"`
	ProcurementNetPrice    int64  `json:"procurement_net_price"`

	SkuPriceNet int64 `json:"sku_price_net"`
	Vat         Vat   `json:"vat"`
	PriceNet    int64 `json:"price_net"`
	PriceGross  int64 `json:"price_gross"`
	MarginNet   int64 `json:"margin_net"`

	Location Location `json:"location"`
	Lock     Lock     `json:"lock"`

	Depreciation *Depreciation `json:"depreciation,omitempty"`
	BestBefore   *time.Time    `json:"best_before,omitempty"`

	History []HistoryEvent `json:"history"`

	CreatedAt time.Time `json:"created_at"`
	CreatedBy uint32    `json:"created_by"`

	// IsArchived is set on views returned from the archive collection.
	// It is not part of the persisted record.
	IsArchived bool `json:"is_archived,omitempty"`
}

// NewUplSpec is the payload a caller submits to create a UPL.
type NewUplSpec struct {
	UplID                  UplId
	ProductID              uint32
	ProductUnit            string
	Sku                    uint32
	Piece                  uint32
	SkuDivisibleAmount     uint32
	SkuDivisible           bool
	SkuNetPrice            int64
	SkuVat                 Vat
	ProcurementID          uint32
	ProcurementNetPriceSku int64
	StockID                uint32
	BestBefore             *time.Time
	IsOpened               bool
	CreatedBy              uint32
}

// NewUpl constructs a Upl from a creation payload. Kind derives from
// (IsOpened, Piece): opened implies OpenedSku with remaining=Piece; else
// Piece>1 implies BulkSku; else a plain Sku.
func NewUpl(spec NewUplSpec, now time.Time) (*Upl, error) {
	if !ValidateUplId(spec.UplID.String()) {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("invalid upl id %q", spec.UplID))
	}
	if !spec.SkuVat.Valid() {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("invalid vat %q", spec.SkuVat))
	}

	var kind Kind
	switch {
	case spec.IsOpened:
		kind = NewOpenedSkuKind(spec.Sku, spec.Piece, nil)
	case spec.Piece > 1:
		kind = NewBulkSkuKind(spec.Sku, spec.Piece)
	default:
		kind = NewSkuKind(spec.Sku)
	}
	if err := kind.Validate(); err != nil {
		return nil, apperrors.NewBadRequestError(err.Error())
	}

	u := &Upl{
		ID:                     spec.UplID,
		ProductID:              spec.ProductID,
		ProductUnit:            spec.ProductUnit,
		Kind:                   kind,
		SkuDivisibleAmount:     spec.SkuDivisibleAmount,
		SkuDivisible:           spec.SkuDivisible,
		ProcurementID:          spec.ProcurementID,
		ProcurementNetPriceSku: spec.ProcurementNetPriceSku,
		SkuPriceNet:            spec.SkuNetPrice,
		Vat:                    spec.SkuVat,
		Location:               NewStockLocation(spec.StockID),
		Lock:                   NoLock(),
		BestBefore:             spec.BestBefore,
		CreatedAt:              now,
		CreatedBy:              spec.CreatedBy,
	}
	u.recalculatePrices()
	u.appendHistory(EventCreated, "", spec.CreatedBy, now)
	return u, nil
}

func (u *Upl) appendHistory(tag HistoryEventTag, comment string, by uint32, now time.Time) {
	u.History = append(u.History, NewHistoryEvent(tag, comment, by, now))
}

// recalculatePrices applies the amortization rule. Sku/BulkSku prices
// equal the sku's own price; OpenedSku/DerivedProduct prices are a
// proportional, rounded slice of the sku price over the effective
// quantity (Remaining or Amount).
func (u *Upl) recalculatePrices() {
	if u.Kind.IsAmortized() {
		q := int64(u.Kind.Quantity())
		d := int64(u.SkuDivisibleAmount)
		if d == 0 {
			d = 1
		}
		u.PriceNet = roundProportional(q, u.SkuPriceNet, d)
		u.ProcurementNetPrice = roundProportional(q, u.ProcurementNetPriceSku, d)
	} else {
		u.PriceNet = u.SkuPriceNet
		u.ProcurementNetPrice = u.ProcurementNetPriceSku
	}
	u.PriceGross = u.Vat.Gross(u.PriceNet)
	u.MarginNet = u.PriceNet - u.ProcurementNetPrice
}

// roundProportional computes round(q * total / divisor) with half
// rounding away from zero, matching Vat.Gross's rounding convention.
func roundProportional(q, total, divisor int64) int64 {
	if divisor == 0 {
		return 0
	}
	num := q * total
	neg := num < 0
	if neg {
		num = -num
	}
	result := (num*2 + divisor) / (2 * divisor)
	if neg {
		return -result
	}
	return result
}

// canMove implements the lock -> location transition table of the move
// operation. A move is legal only along the single arrow each lock
// variant authorizes; an unlocked UPL may move anywhere except Discard,
// which requires an Inventory lock.
func canMove(l Lock, to Location) bool {
	switch l.Tag {
	case LockNone:
		return to.Tag != LocationDiscard
	case LockCart:
		return to.Tag == LocationCart && to.CartID == l.CartID
	case LockDelivery:
		return to.Tag == LocationDelivery && to.DeliveryID == l.DeliveryID
	case LockInventory:
		return to.Tag == LocationDiscard
	default:
		return false
	}
}

// MoveUpl relocates the UPL if the current lock authorizes the target
// location. A successful move force-clears the lock: moving consumes it.
func (u *Upl) MoveUpl(to Location, by uint32, now time.Time) error {
	if !canMove(u.Lock, to) {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s: move from lock %s to location %s is not allowed", u.ID, u.Lock.Tag, to.Tag))
	}
	u.Location = to
	u.Lock = NoLock()
	u.appendHistory(EventMoved, fmt.Sprintf("to %s", to.Tag), by, now)
	return nil
}

// LockUpl reserves the UPL under l. Only legal when currently unlocked.
func (u *Upl) LockUpl(l Lock, by uint32, now time.Time) error {
	if !u.Lock.IsNone() {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s: already locked as %s", u.ID, u.Lock.Tag))
	}
	u.Lock = l
	u.appendHistory(EventLocked, string(l.Tag), by, now)
	return nil
}

// UnlockUpl releases the lock if it equals l exactly.
func (u *Upl) UnlockUpl(l Lock, by uint32, now time.Time) error {
	if !u.Lock.Equal(l) {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s: lock %s does not match release request %s", u.ID, u.Lock.Tag, l.Tag))
	}
	u.Lock = NoLock()
	u.appendHistory(EventUnlocked, string(l.Tag), by, now)
	return nil
}

// UnlockForced clears the lock unconditionally. Used internally by move
// and the close-cart/close-inventory bulk flows.
func (u *Upl) UnlockForced(by uint32, now time.Time) {
	if u.Lock.IsNone() {
		return
	}
	tag := u.Lock.Tag
	u.Lock = NoLock()
	u.appendHistory(EventUnlocked, fmt.Sprintf("forced from %s", tag), by, now)
}

// SetBestBefore sets or clears the best-before instant.
func (u *Upl) SetBestBefore(t *time.Time, by uint32, now time.Time) {
	u.BestBefore = t
	u.appendHistory(EventBestBeforeSet, "", by, now)
}

// SetProductUnit rewrites the display unit.
func (u *Upl) SetProductUnit(unit string, by uint32, now time.Time) {
	u.ProductUnit = unit
}

// SetDivisible flips whether the sku may be divided.
func (u *Upl) SetDivisible(divisible bool, by uint32, now time.Time) {
	u.SkuDivisible = divisible
}

// SetPrice writes the sku's net price and vat, then re-amortizes.
func (u *Upl) SetPrice(skuNet int64, vat Vat, by uint32, now time.Time) error {
	if !vat.Valid() {
		return apperrors.NewBadRequestError(fmt.Sprintf("invalid vat %q", vat))
	}
	u.SkuPriceNet = skuNet
	u.Vat = vat
	u.recalculatePrices()
	u.appendHistory(EventRepriced, "", by, now)
	return nil
}

// SetDepreciation attaches a mark-down record.
func (u *Upl) SetDepreciation(depreciationID, comment string, by uint32, now time.Time) error {
	u.Depreciation = &Depreciation{DepreciationID: depreciationID, Comment: comment}
	u.appendHistory(EventDepreciationSet, comment, by, now)
	return nil
}

// RemoveDepreciation detaches any mark-down record.
func (u *Upl) RemoveDepreciation(by uint32, now time.Time) error {
	if u.Depreciation == nil {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s: no depreciation to remove", u.ID))
	}
	u.Depreciation = nil
	u.appendHistory(EventDepreciationRemoved, "", by, now)
	return nil
}

// SetDepreciationPrice sets the depreciation's special net price and
// derives its special margin from the current procurement price.
func (u *Upl) SetDepreciationPrice(net int64, by uint32, now time.Time) error {
	if u.Depreciation == nil {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s: no depreciation to price", u.ID))
	}
	margin := net - u.ProcurementNetPrice
	u.Depreciation.SpecialNetPrice = &net
	u.Depreciation.SpecialMarginNet = &margin
	u.appendHistory(EventDepreciationSet, "special price set", by, now)
	return nil
}

// RemoveDepreciationPrice clears the special price without detaching the
// depreciation record itself.
func (u *Upl) RemoveDepreciationPrice(by uint32, now time.Time) error {
	if u.Depreciation == nil {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s: no depreciation to clear", u.ID))
	}
	u.Depreciation.SpecialNetPrice = nil
	u.Depreciation.SpecialMarginNet = nil
	u.appendHistory(EventDepreciationSet, "special price cleared", by, now)
	return nil
}

// Split peels piece units off a BulkSku into a new child UPL. The parent
// keeps pieces-piece; the child is a clone of the parent (independently
// priced) with kind Sku if piece==1, else BulkSku. The caller is
// responsible for inserting the returned child into the registry.
func (u *Upl) Split(newID UplId, piece uint32, by uint32, now time.Time) (*Upl, error) {
	if u.Kind.Tag != KindBulkSku {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("upl %s: split requires a bulk sku", u.ID))
	}
	if !u.Lock.IsNone() {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("upl %s: cannot split a locked upl", u.ID))
	}
	if piece == 0 || u.Kind.Pieces <= piece {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("upl %s: bulk has %d pieces, cannot split off %d", u.ID, u.Kind.Pieces, piece))
	}

	sku := u.Kind.Sku
	u.Kind.Pieces -= piece
	u.recalculatePrices()
	u.appendHistory(EventSplit, fmt.Sprintf("split off %d as %s", piece, newID), by, now)

	child := *u
	child.ID = newID
	child.History = append([]HistoryEvent(nil), u.History...)
	if piece == 1 {
		child.Kind = NewSkuKind(sku)
	} else {
		child.Kind = NewBulkSkuKind(sku, piece)
	}
	child.CreatedAt = now
	child.CreatedBy = by
	child.recalculatePrices()
	child.appendHistory(EventSplit, fmt.Sprintf("split from %s", u.ID), by, now)
	return &child, nil
}

// SplitBulk peels off len(newIDs) single units by repeated Split. It
// validates up front that the bulk can supply that many pieces.
func (u *Upl) SplitBulk(newIDs []UplId, by uint32, now time.Time) ([]*Upl, error) {
	if u.Kind.Tag != KindBulkSku {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("upl %s: split_bulk requires a bulk sku", u.ID))
	}
	if uint32(len(newIDs)) >= u.Kind.Pieces {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("upl %s: bulk has %d pieces, cannot split off %d", u.ID, u.Kind.Pieces, len(newIDs)))
	}
	children := make([]*Upl, 0, len(newIDs))
	for _, id := range newIDs {
		child, err := u.Split(id, 1, by, now)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// Open breaks an un-opened, divisible Sku's package so subunits can be
// portioned out of it.
func (u *Upl) Open(by uint32, now time.Time) error {
	if u.Kind.Tag != KindSku {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s: open requires a sku", u.ID))
	}
	if !u.SkuDivisible || u.SkuDivisibleAmount <= 1 {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s: sku is not divisible", u.ID))
	}
	if !u.Lock.IsNone() {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s: cannot open a locked upl", u.ID))
	}
	sku := u.Kind.Sku
	u.Kind = NewOpenedSkuKind(sku, u.SkuDivisibleAmount, nil)
	u.recalculatePrices()
	u.appendHistory(EventOpened, "", by, now)
	return nil
}

// Close reverses Open. Legal only when nothing has been portioned out.
func (u *Upl) Close(by uint32, now time.Time) error {
	if u.Kind.Tag != KindOpenedSku {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s: close requires an opened sku", u.ID))
	}
	if u.Kind.Remaining != u.SkuDivisibleAmount {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s: cannot close, %d of %d already portioned out", u.ID, u.SkuDivisibleAmount-u.Kind.Remaining, u.SkuDivisibleAmount))
	}
	if !u.Lock.IsNone() {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s: cannot close a locked upl", u.ID))
	}
	sku := u.Kind.Sku
	u.Kind = NewSkuKind(sku)
	u.recalculatePrices()
	u.appendHistory(EventClosed, "", by, now)
	return nil
}

// Divide portions amount subunits off an OpenedSku into a new
// DerivedProduct child. Both parent and child recompute prices; the
// caller is responsible for inserting the returned child.
func (u *Upl) Divide(newID UplId, amount uint32, by uint32, now time.Time) (*Upl, error) {
	if u.Kind.Tag != KindOpenedSku {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("upl %s: divide requires an opened sku", u.ID))
	}
	if !u.Lock.IsNone() {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("upl %s: cannot divide a locked upl", u.ID))
	}
	if amount == 0 || u.Kind.Remaining <= amount {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("upl %s: only %d remaining, cannot divide off %d", u.ID, u.Kind.Remaining, amount))
	}

	u.Kind.Remaining -= amount
	u.Kind.Successors = append(u.Kind.Successors, newID)
	u.recalculatePrices()
	u.appendHistory(EventDivided, fmt.Sprintf("divided off %d as %s", amount, newID), by, now)

	child := &Upl{
		ID:                     newID,
		ProductID:              u.ProductID,
		ProductUnit:            u.ProductUnit,
		Kind:                   NewDerivedProductKind(u.ID, u.Kind.Sku, amount),
		SkuDivisibleAmount:     u.SkuDivisibleAmount,
		SkuDivisible:           u.SkuDivisible,
		ProcurementID:          u.ProcurementID,
		ProcurementNetPriceSku: u.ProcurementNetPriceSku,
		SkuPriceNet:            u.SkuPriceNet,
		Vat:                    u.Vat,
		Location:               u.Location,
		Lock:                   NoLock(),
		CreatedAt:              now,
		CreatedBy:              by,
	}
	child.recalculatePrices()
	child.appendHistory(EventDivided, fmt.Sprintf("divided from %s", u.ID), by, now)
	return child, nil
}

// Merge folds a DerivedProduct child's amount back into this OpenedSku's
// remaining. The caller is responsible for then removing the child from
// the registry.
func (u *Upl) Merge(child *Upl, by uint32, now time.Time) error {
	if u.Kind.Tag != KindOpenedSku {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s: merge requires an opened sku", u.ID))
	}
	if child.Kind.Tag != KindDerivedProduct || child.Kind.ParentUpl != u.ID {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s: %s is not its derived child", u.ID, child.ID))
	}
	if u.Depreciation != nil || child.Depreciation != nil {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s: cannot merge a depreciated upl", u.ID))
	}
	if !u.Lock.IsNone() || !child.Lock.IsNone() {
		return apperrors.NewBadRequestError(fmt.Sprintf("upl %s: cannot merge while locked", u.ID))
	}

	u.Kind.Remaining += child.Kind.Amount
	successors := make([]UplId, 0, len(u.Kind.Successors))
	for _, s := range u.Kind.Successors {
		if s != child.ID {
			successors = append(successors, s)
		}
	}
	u.Kind.Successors = successors
	u.recalculatePrices()
	u.appendHistory(EventMerged, fmt.Sprintf("merged back %s", child.ID), by, now)
	return nil
}

// IsAvailableHealthy reports whether this UPL counts as healthy,
// sellable stock: unlocked, not depreciated, an un-opened kind, and
// either no best-before date or one that has not yet passed.
func (u *Upl) IsAvailableHealthy(today time.Time) bool {
	if !u.Lock.IsNone() {
		return false
	}
	if u.Depreciation != nil {
		return false
	}
	if u.Kind.Tag != KindSku && u.Kind.Tag != KindBulkSku {
		return false
	}
	if u.BestBefore != nil && u.BestBefore.Before(today) {
		return false
	}
	return true
}

// GetUplPiece returns the unit count this UPL represents on the shelf.
func (u *Upl) GetUplPiece() uint32 {
	return u.Kind.Piece()
}
