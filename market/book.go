package market

// MaxBookLevels is the depth kept per side after the user's levels are merged.
const MaxBookLevels = 15

// DepthLevel is resting size at one price. User marks the level holding the
// user's own resting order.
type DepthLevel struct {
	Price float64 `json:"price"`
	Size  int64   `json:"size"`
	User  bool    `json:"user,omitempty"`
}

// Book is a depth of market snapshot. Bids are sorted by descending price,
// asks by ascending price.
type Book struct {
	Symbol string       `json:"symbol"`
	Bids   []DepthLevel `json:"bids"`
	Asks   []DepthLevel `json:"asks"`
}

// Cumulative returns running size totals for levels, in order.
func Cumulative(levels []DepthLevel) []int64 {
	out := make([]int64, len(levels))
	var sum int64
	for i, l := range levels {
		sum += l.Size
		out[i] = sum
	}
	return out
}
