package world

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

const (
	minTickInterval = 10 * time.Millisecond
	maxTickInterval = 10 * time.Second
)

// Envelope is every message pushed to clients.
type Envelope struct {
	Type  string      `json:"type"`
	Board *BoardView  `json:"board,omitempty"`
	Stats *Stats      `json:"stats,omitempty"`
	Tick  *TickReport `json:"tick,omitempty"`
	Error string      `json:"error,omitempty"`
}

type Stats struct {
	Tick    uint64         `json:"tick"`
	Speed   float64        `json:"speed"`
	Paused  bool           `json:"paused"`
	Counts  map[string]int `json:"counts"`
	Clients int            `json:"clients"`
}

type BroadcasterOptions struct {
	TickInterval      time.Duration // at 1x speed
	BroadcastInterval time.Duration
	Autoplay          bool
	Compress          bool // board frames as zstd binary messages
}

// Broadcaster schedules ticks and pushes the board to websocket clients.
type Broadcaster struct {
	world *World
	log   *zap.Logger

	mu           sync.RWMutex
	clients      map[*websocket.Conn]*sync.Mutex // per-conn write locks
	currentSpeed float64
	paused       bool

	baseInterval      time.Duration
	broadcastInterval time.Duration
	updateTicker      *time.Ticker
	updateChan        chan struct{} // speed changed, reset ticker

	zenc *zstd.Encoder
}

func NewBroadcaster(w *World, opts BroadcasterOptions, log *zap.Logger) (*Broadcaster, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 250 * time.Millisecond
	}
	if opts.BroadcastInterval <= 0 {
		opts.BroadcastInterval = 100 * time.Millisecond
	}

	b := &Broadcaster{
		world:             w,
		log:               log,
		clients:           make(map[*websocket.Conn]*sync.Mutex),
		currentSpeed:      1.0,
		paused:            !opts.Autoplay,
		baseInterval:      opts.TickInterval,
		broadcastInterval: opts.BroadcastInterval,
		updateChan:        make(chan struct{}, 1),
	}
	if opts.Compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		b.zenc = enc
	}
	return b, nil
}

// tickInterval is the base interval scaled by speed, clamped.
func (b *Broadcaster) tickInterval() time.Duration {
	b.mu.RLock()
	speed := b.currentSpeed
	b.mu.RUnlock()

	interval := time.Duration(float64(b.baseInterval) / speed)
	if interval < minTickInterval {
		interval = minTickInterval
	} else if interval > maxTickInterval {
		interval = maxTickInterval
	}
	return interval
}

func (b *Broadcaster) resetUpdateTicker() {
	interval := b.tickInterval()
	if b.updateTicker == nil {
		b.updateTicker = time.NewTicker(interval)
	} else {
		b.updateTicker.Reset(interval)
	}
	b.log.Info("tick interval", zap.Duration("interval", interval), zap.Float64("speed", b.Speed()))
}

// Run drives ticks and board pushes until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	broadcastTicker := time.NewTicker(b.broadcastInterval)
	b.resetUpdateTicker()
	defer func() {
		broadcastTicker.Stop()
		b.updateTicker.Stop()
		if b.zenc != nil {
			b.zenc.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return

		case <-broadcastTicker.C:
			b.BroadcastBoard()

		case <-b.updateTicker.C:
			if b.Playing() {
				b.StepOnce()
			}

		case <-b.updateChan:
			b.resetUpdateTicker()
		}
	}
}

// StepOnce runs one tick and pushes the result. A failed tick pauses the
// simulation.
func (b *Broadcaster) StepOnce() (TickReport, error) {
	report, err := b.world.Step()
	if err != nil {
		b.log.Error("tick failed, pausing", zap.Error(err))
		b.SetPlaying(false)
		b.broadcast(Envelope{Type: "error", Error: err.Error()})
		return report, err
	}
	b.broadcast(Envelope{Type: "tick", Tick: &report})
	b.BroadcastStats()
	return report, nil
}

func (b *Broadcaster) Register(conn *websocket.Conn) {
	b.mu.Lock()
	b.clients[conn] = &sync.Mutex{}
	n := len(b.clients)
	b.mu.Unlock()
	b.log.Info("client registered", zap.String("remote", conn.RemoteAddr().String()), zap.Int("clients", n))

	board := b.world.View()
	if err := b.WriteTo(conn, Envelope{Type: "board", Board: &board}); err != nil {
		b.log.Warn("initial send failed", zap.Error(err))
		b.Unregister(conn)
		return
	}
	stats := b.Stats()
	if err := b.WriteTo(conn, Envelope{Type: "stats", Stats: &stats}); err != nil {
		b.Unregister(conn)
	}
}

func (b *Broadcaster) Unregister(conn *websocket.Conn) {
	b.mu.Lock()
	_, ok := b.clients[conn]
	delete(b.clients, conn)
	b.mu.Unlock()
	if ok {
		conn.Close()
		b.log.Info("client unregistered", zap.String("remote", conn.RemoteAddr().String()))
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for conn := range b.clients {
		conns = append(conns, conn)
	}
	b.clients = make(map[*websocket.Conn]*sync.Mutex)
	b.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// SetSpeed changes the tick rate multiplier.
func (b *Broadcaster) SetSpeed(speed float64) {
	if speed <= 0 {
		return
	}
	b.mu.Lock()
	b.currentSpeed = speed
	b.mu.Unlock()

	select {
	case b.updateChan <- struct{}{}:
	default:
		// already pending
	}
	b.BroadcastStats()
}

func (b *Broadcaster) Speed() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.currentSpeed
}

func (b *Broadcaster) TogglePause() {
	b.mu.Lock()
	b.paused = !b.paused
	b.mu.Unlock()
	b.BroadcastStats()
}

func (b *Broadcaster) SetPlaying(playing bool) {
	b.mu.Lock()
	b.paused = !playing
	b.mu.Unlock()
	b.BroadcastStats()
}

func (b *Broadcaster) Playing() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.paused
}

func (b *Broadcaster) Stats() Stats {
	counts := b.world.CountByKind()
	named := make(map[string]int, len(Kinds))
	for _, k := range Kinds {
		named[k.String()] = counts[k]
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		Tick:    b.world.Tick(),
		Speed:   b.currentSpeed,
		Paused:  b.paused,
		Counts:  named,
		Clients: len(b.clients),
	}
}

func (b *Broadcaster) BroadcastStats() {
	stats := b.Stats()
	b.broadcast(Envelope{Type: "stats", Stats: &stats})
}

func (b *Broadcaster) BroadcastBoard() {
	board := b.world.View()
	b.broadcast(Envelope{Type: "board", Board: &board})
}

// frame encodes v. Boards go out compressed when enabled, everything else is
// JSON text.
func (b *Broadcaster) frame(env Envelope) (int, []byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return 0, nil, err
	}
	if b.zenc != nil && env.Board != nil {
		return websocket.BinaryMessage, b.zenc.EncodeAll(data, nil), nil
	}
	return websocket.TextMessage, data, nil
}

// WriteTo sends one message to a single client using its write lock.
func (b *Broadcaster) WriteTo(conn *websocket.Conn, v any) error {
	var (
		msgType int
		data    []byte
		err     error
	)
	if env, ok := v.(Envelope); ok {
		msgType, data, err = b.frame(env)
	} else {
		msgType = websocket.TextMessage
		data, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	b.mu.RLock()
	mu, ok := b.clients[conn]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("client %s not registered", conn.RemoteAddr())
	}

	mu.Lock()
	defer mu.Unlock()
	return conn.WriteMessage(msgType, data)
}

func (b *Broadcaster) broadcast(env Envelope) {
	msgType, data, err := b.frame(env)
	if err != nil {
		b.log.Error("marshal broadcast", zap.String("type", env.Type), zap.Error(err))
		return
	}

	b.mu.RLock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(b.clients))
	for conn, mu := range b.clients {
		targets[conn] = mu
	}
	b.mu.RUnlock()

	for conn, mu := range targets {
		mu.Lock()
		err := conn.WriteMessage(msgType, data)
		mu.Unlock()
		if err != nil {
			b.log.Warn("broadcast failed", zap.String("type", env.Type), zap.Error(err))
			b.Unregister(conn)
		}
	}
}
