// ABOUTME: Manages live bot connections keyed by credential and their lifecycle.
// ABOUTME: Serializes start/stop per credential and reconciles against the store.

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vireonhq/vireon/internal/dedupe"
	"github.com/vireonhq/vireon/internal/gateway"
	"github.com/vireonhq/vireon/internal/store"
)

// ErrNotOwner indicates the caller does not own the target bot.
var ErrNotOwner = errors.New("bot is owned by another user")

// DefaultConnectTimeout bounds a single gateway connect attempt.
const DefaultConnectTimeout = 30 * time.Second

// eventHandlerTimeout bounds the processing of one inbound message event.
const eventHandlerTimeout = 30 * time.Second

// MessageHandler processes an inbound message for a bot and optionally
// produces a reply. Implemented by the command router.
type MessageHandler interface {
	Dispatch(ctx context.Context, credential string, ev gateway.Event) (reply string, handled bool)
}

// Connection is the in-memory state of one live bot connection. It is owned
// exclusively by the Registry; no handle ever leaves this package.
type Connection struct {
	botID       string
	credential  string
	handle      gateway.Handle
	identity    gateway.Identity
	node        string
	connectedAt time.Time
}

// BotSummary is the public projection of a bot's state. It never contains the
// credential.
type BotSummary struct {
	ID          string
	DisplayName string
	GatewayID   string
	Node        string
	Status      string
	ConnectedAt time.Time // zero when not live
}

// StartRequest carries the inputs for a start attempt.
type StartRequest struct {
	Credential string
	Node       string
	OwnerID    string
}

// Config contains the dependencies for a Registry.
type Config struct {
	Connector      gateway.Connector
	Store          store.Store
	Handler        MessageHandler // optional; nil disables command handling
	Logger         *slog.Logger
	ConnectTimeout time.Duration
}

// Registry owns the credential-to-connection map and drives the bot
// connection state machine.
type Registry struct {
	connector      gateway.Connector
	store          store.Store
	handler        MessageHandler
	logger         *slog.Logger
	connectTimeout time.Duration
	seen           *dedupe.Cache

	mu    sync.RWMutex
	conns map[string]*Connection

	locksMu sync.Mutex
	locks   map[string]*credLock
}

// credLock serializes operations on a single credential.
type credLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a Registry.
func New(cfg Config) *Registry {
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}

	return &Registry{
		connector:      cfg.Connector,
		store:          cfg.Store,
		handler:        cfg.Handler,
		logger:         cfg.Logger,
		connectTimeout: timeout,
		seen:           dedupe.New(5*time.Minute, 10000),
		conns:          make(map[string]*Connection),
		locks:          make(map[string]*credLock),
	}
}

// lockCredential acquires the per-credential mutex and returns its release
// function. Locks are created on demand and removed once unreferenced, so the
// lock map does not grow with every credential ever seen.
func (r *Registry) lockCredential(credential string) func() {
	r.locksMu.Lock()
	l, ok := r.locks[credential]
	if !ok {
		l = &credLock{}
		r.locks[credential] = l
	}
	l.refs++
	r.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, credential)
		}
		r.locksMu.Unlock()
	}
}

// lookup returns the live connection for a credential, or nil.
func (r *Registry) lookup(credential string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[credential]
}

// Start establishes a connection for the credential, or returns the existing
// one. Idempotent: a credential that is already live never triggers a second
// connect attempt. On connect failure no partial state is left behind and an
// existing record's status is not touched.
func (r *Registry) Start(ctx context.Context, req StartRequest) (*BotSummary, error) {
	if req.Credential == "" {
		return nil, fmt.Errorf("credential is required")
	}

	unlock := r.lockCredential(req.Credential)
	defer unlock()

	rec, err := r.store.GetBotRecord(ctx, req.Credential)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading bot record: %w", err)
	}
	if rec != nil && req.OwnerID != "" && rec.OwnerID != req.OwnerID {
		return nil, ErrNotOwner
	}

	if conn := r.lookup(req.Credential); conn != nil {
		return conn.summary(store.BotStatusOnline), nil
	}

	node := req.Node
	if node == "" && rec != nil {
		node = rec.Node
	}

	cctx, cancel := context.WithTimeout(ctx, r.connectTimeout)
	defer cancel()

	handle, err := r.connector.Connect(cctx, req.Credential)
	if err != nil {
		return nil, err
	}

	identity := handle.Identity()

	botID := uuid.New().String()
	ownerID := req.OwnerID
	createdAt := time.Time{}
	if rec != nil {
		botID = rec.ID
		ownerID = rec.OwnerID
		createdAt = rec.CreatedAt
	}

	conn := &Connection{
		botID:       botID,
		credential:  req.Credential,
		handle:      handle,
		identity:    identity,
		node:        node,
		connectedAt: time.Now().UTC(),
	}

	handle.OnMessage(func(ev gateway.Event) {
		r.handleEvent(conn, ev)
	})

	r.mu.Lock()
	r.conns[req.Credential] = conn
	r.mu.Unlock()

	r.logger.Info("bot connected",
		"bot_id", botID,
		"username", identity.Username,
		"node", node,
	)

	newRec := &store.BotRecord{
		ID:          botID,
		Credential:  req.Credential,
		OwnerID:     ownerID,
		DisplayName: identity.Username,
		GatewayID:   identity.ID,
		Node:        node,
		Status:      store.BotStatusOnline,
		CreatedAt:   createdAt,
	}
	if err := r.store.UpsertBotRecord(ctx, newRec); err != nil {
		// The gateway connection succeeded; the in-memory state stays
		// authoritative and the store failure is surfaced to the caller.
		r.logger.Error("persisting bot record failed, connection stays live",
			"bot_id", botID,
			"error", err,
		)
		return nil, fmt.Errorf("persisting bot record: %w", err)
	}

	return conn.summary(store.BotStatusOnline), nil
}

// Stop disconnects and removes the live connection for a credential.
// A credential with no live connection is a no-op. Disconnect failures are
// logged and treated as already stopped.
func (r *Registry) Stop(ctx context.Context, credential string) error {
	unlock := r.lockCredential(credential)
	defer unlock()

	conn := r.lookup(credential)
	if conn == nil {
		return nil
	}

	if err := conn.handle.Disconnect(); err != nil {
		r.logger.Warn("disconnect failed, treating as stopped",
			"bot_id", conn.botID,
			"error", err,
		)
	}

	r.mu.Lock()
	delete(r.conns, credential)
	r.mu.Unlock()

	r.logger.Info("bot stopped", "bot_id", conn.botID)

	if err := r.store.UpdateBotStatus(ctx, credential, store.BotStatusOffline); err != nil {
		return fmt.Errorf("marking bot offline: %w", err)
	}
	return nil
}

// StopByID resolves a bot by its public id, checks ownership, and stops it.
// The credential never appears in the API surface.
func (r *Registry) StopByID(ctx context.Context, ownerID, botID string) error {
	rec, err := r.store.GetBotRecordByID(ctx, botID)
	if err != nil {
		return err
	}
	if rec.OwnerID != ownerID {
		return ErrNotOwner
	}
	return r.Stop(ctx, rec.Credential)
}

// List returns summaries for every bot owned by ownerID. Live connections are
// preferred; bots with no live connection report their last persisted status,
// which may be stale.
func (r *Registry) List(ctx context.Context, ownerID string) ([]*BotSummary, error) {
	recs, err := r.store.ListBotRecordsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing bot records: %w", err)
	}

	summaries := make([]*BotSummary, 0, len(recs))
	for _, rec := range recs {
		if conn := r.lookup(rec.Credential); conn != nil {
			summaries = append(summaries, conn.summary(store.BotStatusOnline))
			continue
		}
		summaries = append(summaries, &BotSummary{
			ID:          rec.ID,
			DisplayName: rec.DisplayName,
			GatewayID:   rec.GatewayID,
			Node:        rec.Node,
			Status:      rec.Status,
		})
	}
	return summaries, nil
}

// GetFlags returns the explicit command flags for a bot, with ownership check.
func (r *Registry) GetFlags(ctx context.Context, ownerID, botID string) (map[string]bool, error) {
	rec, err := r.store.GetBotRecordByID(ctx, botID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return r.store.GetCommandFlags(ctx, rec.Credential)
}

// ToggleCommand sets a command flag for a bot, with ownership check.
func (r *Registry) ToggleCommand(ctx context.Context, ownerID, botID, command string, enabled bool) error {
	rec, err := r.store.GetBotRecordByID(ctx, botID)
	if err != nil {
		return err
	}
	if rec.OwnerID != ownerID {
		return ErrNotOwner
	}
	return r.store.SetCommandFlag(ctx, rec.Credential, command, enabled)
}

// RestoreAll re-establishes connections for every record persisted as online.
// Restoration is best-effort and independent per record: each runs in its own
// task, failures are logged by bot id, and the record stays online so a later
// retry pass can pick it up.
func (r *Registry) RestoreAll(ctx context.Context) {
	recs, err := r.store.ListBotRecordsByStatus(ctx, store.BotStatusOnline)
	if err != nil {
		r.logger.Error("listing records for restore", "error", err)
		return
	}

	var g errgroup.Group
	for _, rec := range recs {
		g.Go(func() error {
			_, err := r.Start(ctx, StartRequest{
				Credential: rec.Credential,
				Node:       rec.Node,
				OwnerID:    rec.OwnerID,
			})
			if err != nil {
				r.logger.Warn("restore failed, leaving record online",
					"bot_id", rec.ID,
					"error", err,
				)
			}
			return nil
		})
	}
	g.Wait()

	r.logger.Info("restore pass complete", "records", len(recs))
}

// RunRetryLoop periodically re-attempts restore for records that are online in
// the store but have no live connection. A credential the gateway rejects is
// permanent, so such records are flipped to offline instead of retried forever.
// Blocks until ctx is cancelled; interval <= 0 disables the loop.
func (r *Registry) RunRetryLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.retryStale(ctx)
		}
	}
}

// retryStale runs one retry pass over stale-online records.
func (r *Registry) retryStale(ctx context.Context) {
	recs, err := r.store.ListBotRecordsByStatus(ctx, store.BotStatusOnline)
	if err != nil {
		r.logger.Error("listing records for retry", "error", err)
		return
	}

	for _, rec := range recs {
		if r.lookup(rec.Credential) != nil {
			continue
		}

		_, err := r.Start(ctx, StartRequest{
			Credential: rec.Credential,
			Node:       rec.Node,
			OwnerID:    rec.OwnerID,
		})
		switch {
		case errors.Is(err, gateway.ErrInvalidCredential):
			r.logger.Warn("credential rejected during retry, marking offline", "bot_id", rec.ID)
			if uerr := r.store.UpdateBotStatus(ctx, rec.Credential, store.BotStatusOffline); uerr != nil {
				r.logger.Error("marking rejected bot offline", "bot_id", rec.ID, "error", uerr)
			}
		case err != nil:
			r.logger.Debug("retry failed", "bot_id", rec.ID, "error", err)
		default:
			r.logger.Info("bot restored on retry", "bot_id", rec.ID)
		}
	}
}

// ShutdownAll disconnects every live connection without touching persisted
// status, so the next boot's restore pass brings them back.
func (r *Registry) ShutdownAll() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.conns = make(map[string]*Connection)
	r.mu.Unlock()

	for _, conn := range conns {
		if err := conn.handle.Disconnect(); err != nil {
			r.logger.Warn("disconnect during shutdown failed",
				"bot_id", conn.botID,
				"error", err,
			)
		}
	}

	r.seen.Close()
	r.logger.Info("all bots disconnected", "count", len(conns))
}

// Count returns the number of live connections (for health/monitoring).
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// handleEvent processes one inbound message event for a live connection.
// Self-authored messages are ignored and redelivered events are suppressed.
func (r *Registry) handleEvent(conn *Connection, ev gateway.Event) {
	if r.handler == nil {
		return
	}
	if ev.Sender.ID == conn.identity.ID {
		return
	}
	if ev.MessageID != "" && r.seen.CheckAndMark(conn.botID+":"+ev.MessageID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventHandlerTimeout)
	defer cancel()

	reply, handled := r.handler.Dispatch(ctx, conn.credential, ev)
	if !handled || reply == "" {
		return
	}

	if err := ev.Actions.Reply(ev.ChannelID, reply); err != nil {
		r.logger.Warn("sending reply failed",
			"bot_id", conn.botID,
			"channel_id", ev.ChannelID,
			"error", err,
		)
	}
}

// summary builds the public projection of a connection.
func (c *Connection) summary(status string) *BotSummary {
	return &BotSummary{
		ID:          c.botID,
		DisplayName: c.identity.Username,
		GatewayID:   c.identity.ID,
		Node:        c.node,
		Status:      status,
		ConnectedAt: c.connectedAt,
	}
}
