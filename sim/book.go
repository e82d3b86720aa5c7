package sim

import (
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/rustyeddy/marketsim/market"
)

const (
	// BookLevels is the number of synthetic levels generated per side.
	BookLevels = 12

	levelStep      = 0.05
	minLevelJitter = 0.01
	maxLevelJitter = 0.1
	minLevelSize   = 80
	maxLevelSize   = 1200
)

// BookSynthesizer builds a synthetic depth of market around an instrument's
// price. It only reads the instrument; its random source has its own lock so
// snapshots can be taken from any goroutine.
type BookSynthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewBookSynthesizer(rng *rand.Rand) *BookSynthesizer {
	return &BookSynthesizer{rng: rng}
}

// Snapshot returns the synthetic book for inst with the user's resting
// orders merged in at the current bid/ask.
func (b *BookSynthesizer) Snapshot(inst market.Instrument) market.Book {
	b.mu.Lock()
	defer b.mu.Unlock()

	bids := make([]market.DepthLevel, 0, BookLevels+1)
	asks := make([]market.DepthLevel, 0, BookLevels+1)
	for i := 1; i <= BookLevels; i++ {
		off := float64(i)*levelStep + uniform(b.rng, minLevelJitter, maxLevelJitter)
		bids = append(bids, market.DepthLevel{
			Price: round3(inst.Price - off),
			Size:  uniformInt(b.rng, minLevelSize, maxLevelSize),
		})
		off = float64(i)*levelStep + uniform(b.rng, minLevelJitter, maxLevelJitter)
		asks = append(asks, market.DepthLevel{
			Price: round3(inst.Price + off),
			Size:  uniformInt(b.rng, minLevelSize, maxLevelSize),
		})
	}

	if inst.UserBidSize > 0 {
		bids = append(bids, market.DepthLevel{Price: inst.Bid, Size: inst.UserBidSize, User: true})
	}
	if inst.UserAskSize > 0 {
		asks = append(asks, market.DepthLevel{Price: inst.Ask, Size: inst.UserAskSize, User: true})
	}

	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	return market.Book{
		Symbol: inst.Symbol,
		Bids:   truncate(bids, market.MaxBookLevels),
		Asks:   truncate(asks, market.MaxBookLevels),
	}
}

func truncate(levels []market.DepthLevel, n int) []market.DepthLevel {
	if len(levels) > n {
		return levels[:n]
	}
	return levels
}
