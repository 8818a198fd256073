package session

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/soragane/tilescore/internal/models"
)

// Notifier receives session lifecycle notifications for fan-out to viewers.
// The broadcast hub implements it; tests substitute a recorder. Keeping the
// service behind this interface keeps the settlement path free of any
// transport dependency.
type Notifier interface {
	Publish(code string, snapshot models.Snapshot)
	PublishTeardown(code string)
}

// Recorder persists settlement records out-of-band (Redis queue feeding the
// historian). Failures are logged and never affect the settlement itself.
type Recorder interface {
	RecordSettlement(ctx context.Context, rec models.SettlementRecord) error
}

// DefaultLockTimeout bounds the wait for a session's settlement gate.
const DefaultLockTimeout = 5 * time.Second

// Service orchestrates the session lifecycle: create, fetch, settle, delete.
// All state lives in the Store; the Service enforces one settlement in flight
// per session via the session gate.
type Service struct {
	Store       *Store
	Notifier    Notifier
	Recorder    Recorder // optional
	Logger      *logrus.Logger
	LockTimeout time.Duration
}

// NewService wires a Service around a fresh Store.
func NewService(notifier Notifier, logger *logrus.Logger) *Service {
	return &Service{
		Store:       NewStore(),
		Notifier:    notifier,
		Logger:      logger,
		LockTimeout: DefaultLockTimeout,
	}
}

// defaultPlayerNames fills a create request that supplied no names at all.
var defaultPlayerNames = []string{"Player 1", "Player 2", "Player 3", "Player 4"}

// CreateSession validates the player list, creates the session, and returns
// its first snapshot. An empty list falls back to default names; anything
// else must be exactly four non-blank names.
func (svc *Service) CreateSession(names []string) (models.Snapshot, error) {
	if len(names) == 0 {
		names = defaultPlayerNames
	}
	if len(names) != 4 {
		return models.Snapshot{}, validationErrorf("expected 4 player names, got %d", len(names))
	}
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return models.Snapshot{}, validationErrorf("player name %d is blank", i+1)
		}
	}

	sess := svc.Store.Create(names)
	svc.Logger.WithFields(logrus.Fields{
		"code":    sess.Code,
		"players": names,
	}).Info("Session created")
	return sess.Snapshot(), nil
}

// GetSession returns the current snapshot for a code.
func (svc *Service) GetSession(code string) (models.Snapshot, error) {
	sess, ok := svc.Store.Get(code)
	if !ok {
		return models.Snapshot{}, ErrNotFound
	}
	if err := sess.Acquire(svc.LockTimeout); err != nil {
		return models.Snapshot{}, err
	}
	defer sess.Release()
	if sess.closed {
		return models.Snapshot{}, ErrNotFound
	}
	return sess.Snapshot(), nil
}

// DeclareWin applies a win declaration to the session under its gate and
// publishes the resulting snapshot to every subscribed viewer. Concurrent
// declarations against the same code are serialized, never interleaved; each
// sees the effect of the prior one. The snapshot is published before the gate
// is released so viewers observe states in settlement order.
func (svc *Service) DeclareWin(ctx context.Context, code string, win models.WinDeclaration) (models.Snapshot, error) {
	sess, ok := svc.Store.Get(code)
	if !ok {
		return models.Snapshot{}, ErrNotFound
	}
	if err := sess.Acquire(svc.LockTimeout); err != nil {
		return models.Snapshot{}, err
	}
	defer sess.Release()

	// The session may have been torn down while we waited on the gate.
	if sess.closed {
		return models.Snapshot{}, ErrNotFound
	}

	if err := ApplySettlement(sess, win); err != nil {
		return models.Snapshot{}, err
	}

	snapshot := sess.Snapshot()
	svc.Notifier.Publish(code, snapshot)
	svc.recordSettlement(ctx, sess)

	svc.Logger.WithFields(logrus.Fields{
		"code":      code,
		"winner":    win.WinnerID,
		"win_type":  win.WinType,
		"amount":    win.Amount,
		"dealer":    sess.DealerSeat,
		"wind":      sess.RoundWind,
		"continues": sess.Continues,
	}).Info("Settlement applied")

	return snapshot, nil
}

// EndSession deletes all session state and notifies subscribed viewers with a
// one-shot teardown notice. Deletion acquires the gate so it serializes with
// any in-flight settlement; a settlement still waiting on the gate will then
// observe NotFound.
func (svc *Service) EndSession(code string) error {
	sess, ok := svc.Store.Get(code)
	if !ok {
		return ErrNotFound
	}
	if err := sess.Acquire(svc.LockTimeout); err != nil {
		return err
	}
	if sess.closed {
		sess.Release()
		return ErrNotFound
	}
	svc.Store.Delete(code)
	svc.Notifier.PublishTeardown(code)
	sess.Release()

	svc.Logger.WithField("code", code).Info("Session ended")
	return nil
}

// recordSettlement enqueues a persistence record, best-effort. Must be called
// under the session gate so the captured dealer/wind state matches the
// published snapshot.
func (svc *Service) recordSettlement(ctx context.Context, sess *Session) {
	if svc.Recorder == nil {
		return
	}
	last := sess.Rounds[len(sess.Rounds)-1]
	rec := models.SettlementRecord{
		ID:          newRecordID(),
		SessionCode: sess.Code,
		WinnerID:    last.WinnerID,
		DiscarderID: last.DiscarderID,
		Amount:      last.Amount,
		WinType:     last.WinType,
		DealerWin:   last.DealerWin,
		RoundWind:   sess.RoundWind,
		DealerSeat:  sess.DealerSeat,
		Continues:   sess.Continues,
		Timestamp:   time.Now().UnixMilli(),
	}
	if err := svc.Recorder.RecordSettlement(ctx, rec); err != nil {
		svc.Logger.WithError(err).WithField("code", sess.Code).Warn("Failed to enqueue settlement record")
	}
}
