package orderbook

import "errors"

var (
	ErrInvalidParam    = errors.New("the param is invalid")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidSide     = errors.New("side must be buy or sell")
	ErrTimeout         = errors.New("timeout")
	ErrShutdown        = errors.New("order book is shutting down")
	ErrSequenceGap     = errors.New("book log sequence gap")
)
