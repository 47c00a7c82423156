package entities

import "fmt"

// KindTag discriminates the Kind union.
type KindTag string

const (
	KindSku            KindTag = "sku"
	KindBulkSku        KindTag = "bulk_sku"
	KindOpenedSku      KindTag = "opened_sku"
	KindDerivedProduct KindTag = "derived_product"
)

// Kind is the physical packaging state of a UPL: one retail unit, a
// pallet of identical units, an opened unit with subunits still portioned
// out of it, or a portion derived from an opened unit.
type Kind struct {
	Tag KindTag `json:"tag"`

	// Sku and BulkSku
	Sku    uint32 `json:"sku,omitempty"`
	Pieces uint32 `json:"pieces,omitempty"`

	// OpenedSku
	Remaining  uint32  `json:"remaining,omitempty"`
	Successors []UplId `json:"successors,omitempty"`

	// DerivedProduct
	ParentUpl UplId  `json:"parent_upl,omitempty"`
	ParentSku uint32 `json:"parent_sku,omitempty"`
	Amount    uint32 `json:"amount,omitempty"`
}

func NewSkuKind(sku uint32) Kind {
	return Kind{Tag: KindSku, Sku: sku}
}

func NewBulkSkuKind(sku uint32, pieces uint32) Kind {
	return Kind{Tag: KindBulkSku, Sku: sku, Pieces: pieces}
}

func NewOpenedSkuKind(sku uint32, remaining uint32, successors []UplId) Kind {
	return Kind{Tag: KindOpenedSku, Sku: sku, Remaining: remaining, Successors: successors}
}

func NewDerivedProductKind(parentUpl UplId, parentSku uint32, amount uint32) Kind {
	return Kind{Tag: KindDerivedProduct, ParentUpl: parentUpl, ParentSku: parentSku, Amount: amount}
}

// Validate enforces invariant 1: the shape of each kind's quantity field.
func (k Kind) Validate() error {
	switch k.Tag {
	case KindSku:
		return nil
	case KindBulkSku:
		if k.Pieces < 2 {
			return fmt.Errorf("bulk sku must have pieces >= 2, got %d", k.Pieces)
		}
		return nil
	case KindOpenedSku:
		if k.Remaining < 1 {
			return fmt.Errorf("opened sku must have remaining >= 1, got %d", k.Remaining)
		}
		return nil
	case KindDerivedProduct:
		if k.Amount < 1 {
			return fmt.Errorf("derived product must have amount >= 1, got %d", k.Amount)
		}
		return nil
	default:
		return fmt.Errorf("unknown kind tag %q", k.Tag)
	}
}

// Quantity returns the effective quantity used by price amortization:
// Pieces is not amortized (BulkSku/Sku use the full sku price), Remaining
// for an opened sku, Amount for a derived product.
func (k Kind) Quantity() uint32 {
	switch k.Tag {
	case KindOpenedSku:
		return k.Remaining
	case KindDerivedProduct:
		return k.Amount
	default:
		return 0
	}
}

// IsAmortized reports whether this kind's prices are a proportional slice
// of the sku price rather than the sku price itself.
func (k Kind) IsAmortized() bool {
	return k.Tag == KindOpenedSku || k.Tag == KindDerivedProduct
}

// Piece returns the unit count this UPL represents on the shelf: the
// pallet size for a bulk sku, 1 for everything else.
func (k Kind) Piece() uint32 {
	if k.Tag == KindBulkSku {
		return k.Pieces
	}
	return 1
}
