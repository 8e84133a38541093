// Package board wires one client's view of one canvas: the scene store, the
// mutation sync engine, the undo history, the interaction controller, and
// the presence channel, plus snapshot load/save against the persistence
// collaborator.
package board

import (
	"context"
	"errors"
	"time"

	"github.com/inkforge/boardsync/internal/history"
	"github.com/inkforge/boardsync/internal/interaction"
	"github.com/inkforge/boardsync/internal/mutation"
	"github.com/inkforge/boardsync/internal/presence"
	"github.com/inkforge/boardsync/internal/scene"
	"go.uber.org/zap"
)

// SnapshotStore is the persistence collaborator: whole-scene blobs keyed by
// canvas id. No partial persistence; every save transmits the full scene.
type SnapshotStore interface {
	Save(ctx context.Context, canvasID scene.CanvasID, snapshot *scene.Scene, savedBy scene.UserID) error
	Load(ctx context.Context, canvasID scene.CanvasID) (*scene.Scene, error)
	// NotFound reports whether the error means no snapshot exists yet,
	// which a joining client treats as an empty canvas.
	NotFound(err error) bool
}

// Transport is the durable-event collaborator: publish plus a subscription
// for inbound events. Delivery is at-least-once and may echo the session's
// own events back.
type Transport interface {
	mutation.Transport
	Subscribe(ctx context.Context, canvasID string) (<-chan mutation.Event, func())
}

var (
	errMissingTransport = errors.New("board: transport is required")
	errMissingSnapshots = errors.New("board: snapshot store is required")
	errMissingPresence  = errors.New("board: cursor store is required")
)

// Config carries the session dependencies.
type Config struct {
	CanvasID    scene.CanvasID
	UserID      scene.UserID
	UserName    string
	CursorColor string
	Transport   Transport
	Snapshots   SnapshotStore
	Cursors     presence.CursorStore
	Directory   interaction.Directory
	IDProvider  scene.IDProvider
	Clock       func() time.Time
	Logger      *zap.Logger
}

// Session is one client's live editing session on a canvas.
type Session struct {
	canvasID  scene.CanvasID
	userID    scene.UserID
	store     *scene.Store
	engine    *mutation.Engine
	history   *history.Engine
	control   *interaction.Controller
	presence  *presence.Channel
	snapshots SnapshotStore
	transport Transport
	logger    *zap.Logger

	loadFailed bool
}

// NewSession validates the configuration and assembles a session.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Transport == nil {
		return nil, errMissingTransport
	}
	if cfg.Snapshots == nil {
		return nil, errMissingSnapshots
	}
	if cfg.Cursors == nil {
		return nil, errMissingPresence
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store := scene.NewStore(logger)
	session := &Session{
		canvasID:  cfg.CanvasID,
		userID:    cfg.UserID,
		store:     store,
		snapshots: cfg.Snapshots,
		transport: cfg.Transport,
		logger:    logger,
	}

	engine, err := mutation.NewEngine(mutation.Config{
		Store:     store,
		Transport: cfg.Transport,
		CanvasID:  cfg.CanvasID,
		UserID:    cfg.UserID,
		UserName:  cfg.UserName,
		Listener:  session,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	session.engine = engine
	session.history = history.NewEngine(store, engine, cfg.Clock, logger)

	control, err := interaction.NewController(interaction.Config{
		Store:      store,
		Sync:       engine,
		History:    session.history,
		Directory:  cfg.Directory,
		IDProvider: cfg.IDProvider,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	session.control = control

	session.presence = presence.NewChannel(presence.Config{
		Store:    cfg.Cursors,
		CanvasID: cfg.CanvasID.String(),
		UserID:   cfg.UserID.String(),
		UserName: cfg.UserName,
		Color:    cfg.CursorColor,
		Clock:    cfg.Clock,
		Logger:   logger,
	})

	return session, nil
}

// Store exposes the scene store, read by the rendering collaborator.
func (s *Session) Store() *scene.Store {
	return s.store
}

// Controller exposes the interaction controller.
func (s *Session) Controller() *interaction.Controller {
	return s.control
}

// History exposes the undo/redo engine.
func (s *Session) History() *history.Engine {
	return s.history
}

// Presence exposes the cursor channel.
func (s *Session) Presence() *presence.Channel {
	return s.presence
}

// Sync exposes the mutation engine.
func (s *Session) Sync() *mutation.Engine {
	return s.engine
}

// Join loads the current snapshot, announces this user, and starts the
// presence loops. A missing snapshot is an empty canvas; a load failure is
// surfaced and leaves the session in a sticky failed state until retried.
func (s *Session) Join(ctx context.Context) error {
	if err := s.load(ctx); err != nil {
		s.loadFailed = true
		return err
	}
	s.loadFailed = false
	s.engine.PublishUserJoin()
	s.presence.Start(ctx)
	go s.consume(ctx)
	return nil
}

// LoadFailed reports the sticky load-failure state, which suppresses
// rendering until a retry succeeds.
func (s *Session) LoadFailed() bool {
	return s.loadFailed
}

// RetryLoad re-attempts the snapshot load after a failure.
func (s *Session) RetryLoad(ctx context.Context) error {
	if err := s.load(ctx); err != nil {
		s.loadFailed = true
		return err
	}
	s.loadFailed = false
	return nil
}

func (s *Session) load(ctx context.Context) error {
	snapshot, err := s.snapshots.Load(ctx, s.canvasID)
	if err != nil {
		if s.snapshots.NotFound(err) {
			s.store.Replace(nil)
			return nil
		}
		return err
	}
	s.store.Replace(snapshot)
	return nil
}

func (s *Session) consume(ctx context.Context) {
	events, cancel := s.transport.Subscribe(ctx, s.canvasID.String())
	defer cancel()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			s.engine.Handle(event)
		case <-ctx.Done():
			return
		}
	}
}

// Leave announces departure and clears this user's cursor.
func (s *Session) Leave(ctx context.Context) {
	s.engine.PublishUserLeave()
	s.presence.Leave(ctx)
}

// Save persists the full current scene. Persistence failures are surfaced
// to the caller, unlike presence and publish failures.
func (s *Session) Save(ctx context.Context) error {
	return s.snapshots.Save(ctx, s.canvasID, s.store.SnapshotScene(), s.userID)
}

// EntityRemoved implements mutation.Listener.
func (s *Session) EntityRemoved(entityID string) {
	s.control.EntityRemoved(entityID)
}

// ConnectorMerged implements mutation.Listener.
func (s *Session) ConnectorMerged(connector *scene.Connector) {
	s.control.ConnectorMerged(connector)
}

// PeerJoined implements mutation.Listener. Every already-connected client
// answers a join with a courtesy full-state save, so the fresh client's
// subsequent load sees current state. Redundant writes are the accepted
// price for not having a peer-to-peer state request.
func (s *Session) PeerJoined(userID, userName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Save(ctx); err != nil {
		s.logger.Warn("courtesy save after peer join failed",
			zap.String("peer_user_id", userID),
			zap.Error(err))
	}
}

// PeerLeft implements mutation.Listener. Presence-only; the cursor poll
// evicts the departed user.
func (s *Session) PeerLeft(userID string) {
}
