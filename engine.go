package orderbook

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"
)

type CommandType int8

const (
	CmdAddOrder CommandType = iota + 1
	CmdRemoveLevel
	CmdMatch
	CmdQuote
	CmdDepth
	CmdGetStats
	CmdSnapshot
	CmdRestore
)

func (t CommandType) mutates() bool {
	switch t {
	case CmdAddOrder, CmdRemoveLevel, CmdMatch, CmdRestore:
		return true
	}
	return false
}

// Command is the unified message sent to the engine loop.
type Command struct {
	Type     CommandType
	Side     Side
	Price    decimal.Decimal
	Quantity int64
	Limit    uint32
	Snapshot *BookSnapshot
	Resp     chan *Response
}

// Response carries the result of one command back to its caller.
type Response struct {
	Error error
	Data  any
}

// Engine owns one OrderBook and serializes every access to it through a
// single goroutine. All exported methods are safe for concurrent use.
type Engine struct {
	id               xid.ID
	book             *OrderBook
	cmdChan          chan Command
	done             chan struct{}
	shutdownComplete chan struct{}
	isShutdown       atomic.Bool
	queryTimeout     time.Duration
	logger           *slog.Logger
}

// NewEngine creates an engine around a fresh OrderBook. Call Start to run it.
func NewEngine(cfg Config, publishLog PublishLog) *Engine {
	cfg = cfg.withDefaults()
	id := xid.New()
	return &Engine{
		id:               id,
		book:             NewOrderBook(cfg, publishLog),
		cmdChan:          make(chan Command, cfg.CommandBuffer),
		done:             make(chan struct{}),
		shutdownComplete: make(chan struct{}),
		queryTimeout:     cfg.QueryTimeout,
		logger:           logger.With("engine_id", id.String()),
	}
}

// ID returns the unique identifier of this engine instance.
func (e *Engine) ID() string {
	return e.id.String()
}

// Start runs the engine loop. It returns nil once Shutdown has been called
// and every queued command has been processed.
func (e *Engine) Start() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.logger.Info("engine started")

	for {
		select {
		case <-e.done:
			return e.drain()
		case cmd := <-e.cmdChan:
			e.handle(cmd)
		}
	}
}

// Shutdown stops accepting commands and waits until queued commands are drained.
// Returns nil if shutdown completed, or ctx.Err() if the context ended first.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.isShutdown.CompareAndSwap(false, true) {
		close(e.done)
	}

	select {
	case <-e.shutdownComplete:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain processes every remaining command before returning.
func (e *Engine) drain() error {
	defer close(e.shutdownComplete)

	var processed int
	for {
		select {
		case cmd := <-e.cmdChan:
			e.handle(cmd)
			processed++
		default:
			e.logger.Info("engine stopped",
				"drained", processed,
				"seq_id", e.book.SequenceID(),
			)
			return nil
		}
	}
}

func (e *Engine) handle(cmd Command) {
	res := &Response{}

	switch cmd.Type {
	case CmdAddOrder:
		res.Error = e.book.AddOrder(cmd.Price, cmd.Quantity, cmd.Side)
	case CmdRemoveLevel:
		res.Data = e.book.RemoveLevel(cmd.Side, cmd.Price)
	case CmdMatch:
		trades := e.book.Match()
		if len(trades) > 0 {
			e.logger.Debug("book matched", "trades", len(trades), "last_trade_id", e.book.TradeID())
		}
		res.Data = trades
	case CmdQuote:
		res.Data = e.book.Quote()
	case CmdDepth:
		res.Data = e.book.Depth(cmd.Limit)
	case CmdGetStats:
		res.Data = e.book.Stats()
	case CmdSnapshot:
		res.Data = e.book.Snapshot()
	case CmdRestore:
		res.Error = e.book.Restore(cmd.Snapshot)
		if res.Error == nil {
			e.logger.Info("book restored", "seq_id", cmd.Snapshot.SeqID)
		}
	default:
		res.Error = ErrInvalidParam
	}

	if cmd.Resp != nil {
		select {
		case cmd.Resp <- res:
		default:
			// Non-blocking send, if no one is listening, just drop it
		}
	}
}

// submit enqueues cmd and waits for its response.
func (e *Engine) submit(ctx context.Context, cmd Command) (*Response, error) {
	if e.isShutdown.Load() {
		return nil, ErrShutdown
	}

	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	cmd.Resp = make(chan *Response, 1)

	select {
	case e.cmdChan <- cmd:
	case <-e.done:
		return nil, ErrShutdown
	case <-ctx.Done():
		return nil, ErrTimeout
	}

	select {
	case res := <-cmd.Resp:
		return res, res.Error
	case <-e.shutdownComplete:
		// The drain may have answered just before completing.
		select {
		case res := <-cmd.Resp:
			return res, res.Error
		default:
			return nil, ErrShutdown
		}
	case <-ctx.Done():
		if cmd.Type.mutates() {
			e.logger.Warn("command timed out after enqueue", "type", cmd.Type)
		}
		return nil, ErrTimeout
	}
}

// AddOrder adds quantity at price on side. Invalid input is rejected
// without reaching the engine loop.
func (e *Engine) AddOrder(ctx context.Context, price decimal.Decimal, quantity int64, side Side) error {
	if err := validateOrder(price, quantity, side); err != nil {
		return err
	}

	_, err := e.submit(ctx, Command{
		Type:     CmdAddOrder,
		Side:     side,
		Price:    price,
		Quantity: quantity,
	})
	return err
}

// RemoveLevel drops the level at price. It reports whether a level existed.
func (e *Engine) RemoveLevel(ctx context.Context, side Side, price decimal.Decimal) (bool, error) {
	res, err := e.submit(ctx, Command{Type: CmdRemoveLevel, Side: side, Price: price})
	if err != nil {
		return false, err
	}
	removed, _ := res.Data.(bool)
	return removed, nil
}

// Match runs the crossing loop and returns the trades it produced.
func (e *Engine) Match(ctx context.Context) ([]Trade, error) {
	res, err := e.submit(ctx, Command{Type: CmdMatch})
	if err != nil {
		return nil, err
	}
	trades, _ := res.Data.([]Trade)
	return trades, nil
}

// Quote returns the best bid and best ask.
func (e *Engine) Quote(ctx context.Context) (*Quote, error) {
	res, err := e.submit(ctx, Command{Type: CmdQuote})
	if err != nil {
		return nil, err
	}
	quote, _ := res.Data.(*Quote)
	return quote, nil
}

// Depth returns the current depth of the order book up to the specified limit.
func (e *Engine) Depth(ctx context.Context, limit uint32) (*Depth, error) {
	if limit == 0 {
		return nil, ErrInvalidParam
	}

	res, err := e.submit(ctx, Command{Type: CmdDepth, Limit: limit})
	if err != nil {
		return nil, err
	}
	depth, _ := res.Data.(*Depth)
	return depth, nil
}

// Stats returns usage statistics for the order book.
func (e *Engine) Stats(ctx context.Context) (*BookStats, error) {
	res, err := e.submit(ctx, Command{Type: CmdGetStats})
	if err != nil {
		return nil, err
	}
	stats, _ := res.Data.(*BookStats)
	return stats, nil
}

// Snapshot captures the current state of the order book.
func (e *Engine) Snapshot(ctx context.Context) (*BookSnapshot, error) {
	res, err := e.submit(ctx, Command{Type: CmdSnapshot})
	if err != nil {
		return nil, err
	}
	snap, _ := res.Data.(*BookSnapshot)
	return snap, nil
}

// Restore replaces the book state with snap.
func (e *Engine) Restore(ctx context.Context, snap *BookSnapshot) error {
	if err := validateSnapshot(snap); err != nil {
		return err
	}
	_, err := e.submit(ctx, Command{Type: CmdRestore, Snapshot: snap})
	return err
}
