package entities

// Depreciation is a mark-down record. SpecialNetPrice, when set,
// overrides the retail net price view; SpecialMarginNet is derived from
// it at the time it's set (special_net - procurement_net_price).
type Depreciation struct {
	DepreciationID   string `json:"depreciation_id"`
	Comment          string `json:"comment"`
	SpecialNetPrice  *int64 `json:"special_net_price,omitempty"`
	SpecialMarginNet *int64 `json:"special_margin_net,omitempty"`
}
