// Package monitor implements the real-time monitor (component I): a
// websocket account-update stream modeled on a Helius/Geyser-style
// accountSubscribe feed, and the price-update loop that reads bonding-
// curve reserves off it and drives position exits.
package monitor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// AccountUpdate is one account-data notification off the stream: the
// subscribed address and its raw (already base64-decoded) account bytes.
type AccountUpdate struct {
	Pubkey string
	Data   []byte
}

// AccountStream is the §6 "Account-update stream" collaborator
// interface: subscribe/unsubscribe a set of addresses, receive
// broadcasts, and report connection health for the 30s disconnect check.
type AccountStream interface {
	Subscribe(ctx context.Context, addresses []string) error
	Unsubscribe(ctx context.Context, addresses []string) error
	Updates() <-chan AccountUpdate
	Connected() bool
	Close() error
}

type jsonrpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type jsonrpcMessage struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Method string          `json:"method"`
	Params struct {
		Subscription int64 `json:"subscription"`
		Result       struct {
			Value struct {
				Data []string `json:"data"` // [base64, encoding]
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// WSAccountStream is the concrete AccountStream adapter: a single
// websocket connection carrying Solana's standard accountSubscribe
// JSON-RPC notifications, the wire format Helius/Geyser-compatible
// endpoints speak unmodified.
type WSAccountStream struct {
	url string

	mu        sync.Mutex
	conn      *websocket.Conn
	nextID    int64
	subByAddr map[string]int64
	addrBySub map[int64]string
	acks      map[int64]chan int64

	updates   chan AccountUpdate
	connected atomic.Bool
	closeOnce sync.Once
}

func NewWSAccountStream(url string) *WSAccountStream {
	return &WSAccountStream{
		url:       url,
		subByAddr: make(map[string]int64),
		addrBySub: make(map[int64]string),
		acks:      make(map[int64]chan int64),
		updates:   make(chan AccountUpdate, 256),
	}
}

// Connect dials the websocket endpoint and starts the read loop. Must be
// called once before Subscribe.
func (s *WSAccountStream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("monitor: dial account-update stream: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.connected.Store(true)
	go s.readLoop()
	return nil
}

func (s *WSAccountStream) readLoop() {
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.connected.Store(false)
			return
		}

		var msg jsonrpcMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		if msg.Method == "accountNotification" {
			s.mu.Lock()
			addr, ok := s.addrBySub[msg.Params.Subscription]
			s.mu.Unlock()
			if !ok || len(msg.Params.Result.Value.Data) == 0 {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(msg.Params.Result.Value.Data[0])
			if err != nil {
				continue
			}
			select {
			case s.updates <- AccountUpdate{Pubkey: addr, Data: data}:
			default:
				// Updates channel is full: drop rather than block the read
				// loop, matching the event bus's own never-block policy.
			}
			continue
		}

		if msg.ID != 0 {
			s.mu.Lock()
			ch, ok := s.acks[msg.ID]
			s.mu.Unlock()
			if ok {
				var subID int64
				_ = json.Unmarshal(msg.Result, &subID)
				ch <- subID
			}
		}
	}
}

// Subscribe issues one accountSubscribe request per address and waits
// for each subscription id to be acknowledged.
func (s *WSAccountStream) Subscribe(ctx context.Context, addresses []string) error {
	for _, addr := range addresses {
		if err := s.subscribeOne(ctx, addr); err != nil {
			return err
		}
	}
	return nil
}

func (s *WSAccountStream) subscribeOne(ctx context.Context, addr string) error {
	s.mu.Lock()
	if _, exists := s.subByAddr[addr]; exists {
		s.mu.Unlock()
		return nil
	}
	id := atomic.AddInt64(&s.nextID, 1)
	ack := make(chan int64, 1)
	s.acks[id] = ack
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("monitor: stream not connected")
	}

	req := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "accountSubscribe",
		Params:  []interface{}{addr, map[string]string{"encoding": "base64", "commitment": "confirmed"}},
	}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("monitor: send accountSubscribe: %w", err)
	}

	select {
	case subID := <-ack:
		s.mu.Lock()
		s.subByAddr[addr] = subID
		s.addrBySub[subID] = addr
		delete(s.acks, id)
		s.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
		return fmt.Errorf("monitor: accountSubscribe ack timed out for %s", addr)
	}
}

// Unsubscribe issues accountUnsubscribe for every address currently
// subscribed among addresses; addresses never subscribed are skipped.
func (s *WSAccountStream) Unsubscribe(ctx context.Context, addresses []string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("monitor: stream not connected")
	}

	for _, addr := range addresses {
		s.mu.Lock()
		subID, ok := s.subByAddr[addr]
		if ok {
			delete(s.subByAddr, addr)
			delete(s.addrBySub, subID)
		}
		s.mu.Unlock()
		if !ok {
			continue
		}

		id := atomic.AddInt64(&s.nextID, 1)
		req := jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: "accountUnsubscribe", Params: []interface{}{subID}}
		if err := conn.WriteJSON(req); err != nil {
			return fmt.Errorf("monitor: send accountUnsubscribe: %w", err)
		}
	}
	return nil
}

func (s *WSAccountStream) Updates() <-chan AccountUpdate { return s.updates }

func (s *WSAccountStream) Connected() bool { return s.connected.Load() }

func (s *WSAccountStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.conn != nil {
			err = s.conn.Close()
		}
		s.connected.Store(false)
	})
	return err
}
