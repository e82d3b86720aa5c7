package market

import "errors"

// ErrUnknownSymbol is returned for a symbol outside the simulated universe.
var ErrUnknownSymbol = errors.New("unknown symbol")
