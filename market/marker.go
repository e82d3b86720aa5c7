package market

import "time"

type MarkerKind string

const (
	MarkerBuy   MarkerKind = "buy"
	MarkerSell  MarkerKind = "sell"
	MarkerClose MarkerKind = "close"
)

// MarkerCapacity bounds the marker history per symbol.
const MarkerCapacity = 600

// Marker annotates a chart with one of the user's own fills or closes.
type Marker struct {
	Time  time.Time  `json:"time"`
	Price float64    `json:"price"`
	Kind  MarkerKind `json:"kind"`
	Label string     `json:"label"`
}
