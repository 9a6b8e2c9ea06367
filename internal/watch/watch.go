package watch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coldbell/candyshop/internal/chain"
	"github.com/coldbell/candyshop/internal/market"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gorilla/websocket"
)

const (
	websocketReadLimitBytes = 1 << 20
	websocketWriteTimeout   = 5 * time.Second
	defaultReconnectFloor   = time.Second
	maxReconnectBackoff     = 30 * time.Second
)

// Update is one observed state of an auction account. Auction is nil once
// the account has been closed.
type Update struct {
	Address  solana.PublicKey
	Slot     uint64
	Auction  *chain.Auction
	Status   chain.AuctionStatus
	Observed time.Time
}

func (u Update) Closed() bool {
	return u.Auction == nil
}

type Handler func(Update)

type Option func(*Watcher)

func WithCommitment(commitment rpc.CommitmentType) Option {
	return func(w *Watcher) { w.commitment = commitment }
}

func WithReconnectFloor(d time.Duration) Option {
	return func(w *Watcher) { w.reconnectFloor = d }
}

func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// Watcher streams auction accounts over the RPC websocket endpoint.
type Watcher struct {
	endpoint       string
	commitment     rpc.CommitmentType
	reconnectFloor time.Duration
	now            func() time.Time
	logger         *slog.Logger
	requestID      atomic.Uint64
}

func New(endpoint string, logger *slog.Logger, opts ...Option) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		endpoint:       endpoint,
		commitment:     rpc.CommitmentConfirmed,
		reconnectFloor: defaultReconnectFloor,
		now:            time.Now,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WatchAuction subscribes to address and calls handler for every change
// until ctx ends. Dropped connections are re-established with capped
// exponential backoff.
func (w *Watcher) WatchAuction(ctx context.Context, address solana.PublicKey, handler Handler) error {
	backoff := w.reconnectFloor
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		streamed, err := w.stream(ctx, address, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Warn("auction websocket stream failed", "auction", address, "err", err)
		}
		if streamed {
			backoff = w.reconnectFloor
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff = nextBackoff(backoff, w.reconnectFloor)
	}
}

type subscribeRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type message struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	Method string          `json:"method"`
	Params *struct {
		Subscription uint64 `json:"subscription"`
		Result       struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value *accountValue `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

type accountValue struct {
	Lamports uint64   `json:"lamports"`
	Owner    string   `json:"owner"`
	Data     []string `json:"data"`
}

// stream runs one subscription. streamed reports whether at least one
// notification arrived, which resets the reconnect backoff.
func (w *Watcher) stream(ctx context.Context, address solana.PublicKey, handler Handler) (streamed bool, err error) {
	conn, _, err := dialWebsocket(ctx, w.endpoint)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", w.endpoint, err)
	}
	defer conn.Close()
	stopClose := closeConnOnContextDone(ctx, conn)
	defer stopClose()

	id := w.requestID.Add(1)
	if err := writeWebsocketJSON(conn, subscribeRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "accountSubscribe",
		Params: []any{
			address.String(),
			map[string]string{"encoding": "base64", "commitment": string(w.commitment)},
		},
	}); err != nil {
		return false, fmt.Errorf("send accountSubscribe: %w", err)
	}

	var subscription uint64
	subscribed := false
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return streamed, ctx.Err()
			}
			return streamed, err
		}

		var msg message
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		if msg.ID != nil && *msg.ID == id {
			if msg.Error != nil {
				return streamed, fmt.Errorf("accountSubscribe rejected: code=%d msg=%s", msg.Error.Code, msg.Error.Message)
			}
			if err := json.Unmarshal(msg.Result, &subscription); err != nil {
				return streamed, fmt.Errorf("parse subscription id: %w", err)
			}
			subscribed = true
			w.logger.Debug("auction subscription established", "auction", address, "subscription", subscription)
			continue
		}
		if msg.Method != "accountNotification" || msg.Params == nil {
			continue
		}
		if subscribed && msg.Params.Subscription != subscription {
			continue
		}

		update, err := w.decode(address, msg.Params.Result.Context.Slot, msg.Params.Result.Value)
		if err != nil {
			w.logger.Warn("skip undecodable auction notification", "auction", address, "err", err)
			continue
		}
		streamed = true
		handler(update)
	}
}

func (w *Watcher) decode(address solana.PublicKey, slot uint64, value *accountValue) (Update, error) {
	now := w.now()
	update := Update{Address: address, Slot: slot, Observed: now}
	if value == nil || value.Lamports == 0 || len(value.Data) == 0 || value.Data[0] == "" {
		return update, nil
	}
	raw, err := base64.StdEncoding.DecodeString(value.Data[0])
	if err != nil {
		return Update{}, fmt.Errorf("decode account data: %w", err)
	}
	auction, err := chain.DecodeAuction(raw)
	if err != nil {
		return Update{}, err
	}
	update.Auction = auction
	update.Status = market.Classify(*auction, now)
	return update, nil
}

func nextBackoff(current, floor time.Duration) time.Duration {
	if floor <= 0 {
		floor = time.Second
	}
	if current < floor {
		current = floor
	}
	next := current * 2
	if next > maxReconnectBackoff {
		return maxReconnectBackoff
	}
	return next
}

func dialWebsocket(ctx context.Context, endpoint string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  10 * time.Second,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, resp, err
	}
	conn.SetReadLimit(websocketReadLimitBytes)
	return conn, resp, nil
}

func writeWebsocketJSON(conn *websocket.Conn, value any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(websocketWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(value)
}

func closeConnOnContextDone(ctx context.Context, conn *websocket.Conn) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	return func() {
		close(done)
	}
}
