// Package presence carries the ephemeral cursor channel. Cursor traffic is
// best-effort and fully decoupled from the durable mutation stream: every
// network call here fails silently, and staleness is judged locally.
package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// minSendDelta is the pointer movement, on either axis, below which a
	// cursor update is not worth sending.
	minSendDelta = 10.0
	// minSendInterval throttles cursor sends regardless of distance.
	minSendInterval = 50 * time.Millisecond
	// pollInterval is how often peers' cursors are fetched.
	pollInterval = 50 * time.Millisecond
	// heartbeatInterval refreshes this client's liveness marker so idle
	// users stay visible.
	heartbeatInterval = 5 * time.Second
	// staleAfter is the local liveness window. The store applies its own
	// TTL; this tighter window decides who is shown as active.
	staleAfter = 60 * time.Second
	// interpolationFactor is the fraction of remaining distance a displayed
	// cursor covers per render tick.
	interpolationFactor = 0.25
)

// Cursor is one user's published cursor state.
type Cursor struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Timestamp time.Time `json:"timestamp"`
}

// CursorStore is the shared ephemeral key-value space, keyed by user id
// within a canvas id.
type CursorStore interface {
	Set(ctx context.Context, canvasID, userID string, cursor Cursor) error
	All(ctx context.Context, canvasID string) (map[string]Cursor, error)
	Delete(ctx context.Context, canvasID, userID string) error
	Touch(ctx context.Context, canvasID, userID string) error
}

// RemoteCursor tracks a peer's cursor with a target (latest polled truth)
// and a current (interpolated display) position, so rendering stays smooth
// between coarse poll samples.
type RemoteCursor struct {
	TargetX  float64
	TargetY  float64
	CurrentX float64
	CurrentY float64
	Name     string
	Color    string
	LastSeen time.Time
}

// Config carries the channel dependencies.
type Config struct {
	Store    CursorStore
	CanvasID string
	UserID   string
	UserName string
	Color    string
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Channel publishes the local cursor and mirrors remote cursors.
type Channel struct {
	store    CursorStore
	canvasID string
	userID   string
	userName string
	color    string
	clock    func() time.Time
	logger   *zap.Logger

	mu         sync.Mutex
	lastSentX  float64
	lastSentY  float64
	lastSentAt time.Time
	everSent   bool
	remote     map[string]*RemoteCursor
}

// NewChannel constructs a presence channel; it does not start any loops.
func NewChannel(cfg Config) *Channel {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		store:    cfg.Store,
		canvasID: cfg.CanvasID,
		userID:   cfg.UserID,
		userName: cfg.UserName,
		color:    cfg.Color,
		clock:    clock,
		logger:   logger,
		remote:   make(map[string]*RemoteCursor),
	}
}

// Start runs the poll and heartbeat loops until the context is cancelled.
// Both loops fire-and-forget; failures are swallowed.
func (c *Channel) Start(ctx context.Context) {
	go c.loop(ctx, pollInterval, func() { c.Poll(ctx) })
	go c.loop(ctx, heartbeatInterval, func() { c.Heartbeat(ctx) })
}

func (c *Channel) loop(ctx context.Context, interval time.Duration, step func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			step()
		case <-ctx.Done():
			return
		}
	}
}

// TrackPointer considers a local pointer position for publishing. A send
// happens only when the pointer has moved more than the delta threshold on
// either axis since the last sent position AND the throttle interval has
// elapsed; both gates together stop high-frequency spam without letting
// small jitter go permanently unreported. Returns whether a send happened.
func (c *Channel) TrackPointer(ctx context.Context, x, y float64) bool {
	c.mu.Lock()
	now := c.clock()
	dx := x - c.lastSentX
	dy := y - c.lastSentY
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	movedEnough := !c.everSent || dx > minSendDelta || dy > minSendDelta
	throttleOpen := !c.everSent || now.Sub(c.lastSentAt) >= minSendInterval
	if !movedEnough || !throttleOpen {
		c.mu.Unlock()
		return false
	}
	c.lastSentX = x
	c.lastSentY = y
	c.lastSentAt = now
	c.everSent = true
	c.mu.Unlock()

	cursor := Cursor{X: x, Y: y, Name: c.userName, Color: c.color, Timestamp: now}
	if err := c.store.Set(ctx, c.canvasID, c.userID, cursor); err != nil {
		// Presence is best-effort; never surface or retry.
		c.logger.Debug("cursor send failed", zap.Error(err))
	}
	return true
}

// Poll fetches all peers' cursors, updates targets, and evicts entries not
// seen within the staleness window.
func (c *Channel) Poll(ctx context.Context) {
	cursors, err := c.store.All(ctx, c.canvasID)
	if err != nil {
		c.logger.Debug("cursor poll failed", zap.Error(err))
		return
	}
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]bool, len(cursors))
	for userID, cursor := range cursors {
		if userID == c.userID {
			continue
		}
		if now.Sub(cursor.Timestamp) > staleAfter {
			continue
		}
		seen[userID] = true
		existing, ok := c.remote[userID]
		if !ok {
			// First sighting snaps current to target; interpolation only
			// smooths subsequent motion.
			c.remote[userID] = &RemoteCursor{
				TargetX:  cursor.X,
				TargetY:  cursor.Y,
				CurrentX: cursor.X,
				CurrentY: cursor.Y,
				Name:     cursor.Name,
				Color:    cursor.Color,
				LastSeen: cursor.Timestamp,
			}
			continue
		}
		existing.TargetX = cursor.X
		existing.TargetY = cursor.Y
		existing.Name = cursor.Name
		existing.Color = cursor.Color
		existing.LastSeen = cursor.Timestamp
	}
	for userID := range c.remote {
		if !seen[userID] {
			delete(c.remote, userID)
		}
	}
}

// Tick advances every displayed cursor one interpolation step toward its
// target: current += (target - current) * 0.25. Names and colors copy
// verbatim; discrete attributes are not interpolated.
func (c *Channel) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cursor := range c.remote {
		cursor.CurrentX += (cursor.TargetX - cursor.CurrentX) * interpolationFactor
		cursor.CurrentY += (cursor.TargetY - cursor.CurrentY) * interpolationFactor
	}
}

// Heartbeat refreshes this client's liveness marker independent of movement.
func (c *Channel) Heartbeat(ctx context.Context) {
	if err := c.store.Touch(ctx, c.canvasID, c.userID); err != nil {
		c.logger.Debug("heartbeat failed", zap.Error(err))
	}
}

// Leave removes this client's cursor from the shared store.
func (c *Channel) Leave(ctx context.Context) {
	if err := c.store.Delete(ctx, c.canvasID, c.userID); err != nil {
		c.logger.Debug("presence delete failed", zap.Error(err))
	}
}

// Cursors returns a snapshot of the visible remote cursors keyed by user id.
func (c *Channel) Cursors() map[string]RemoteCursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make(map[string]RemoteCursor, len(c.remote))
	for userID, cursor := range c.remote {
		snapshot[userID] = *cursor
	}
	return snapshot
}

// ConnectedUsers returns the user ids currently shown as active.
func (c *Channel) ConnectedUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	users := make([]string, 0, len(c.remote))
	for userID := range c.remote {
		users = append(users, userID)
	}
	return users
}
