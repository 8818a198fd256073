package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/soragane/tilescore/internal/models"
)

// Message is a single push to a viewer. "type" distinguishes snapshot pushes
// ("session_state") from the one-shot teardown notice ("session_ended").
type Message map[string]interface{}

// Viewer is a single subscribed connection's presence in the hub.
type Viewer struct {
	ID uuid.UUID
	// Cancel stops the goroutines attached to the underlying connection.
	Cancel func()
	// OutChan buffers pushes to this viewer. The hub never blocks on it: a
	// full channel means the viewer is too slow and the message is dropped.
	OutChan chan Message

	logger *logrus.Logger
}

// NewViewer allocates a viewer with a buffered out-channel.
func NewViewer(logger *logrus.Logger, cancel func()) *Viewer {
	return &Viewer{
		ID:      uuid.New(),
		Cancel:  cancel,
		OutChan: make(chan Message, 16),
		logger:  logger,
	}
}

// Write pushes a message onto the viewer's OutChan non-blockingly. A slow or
// dead viewer loses the message; it never delays delivery to other viewers or
// the settlement that produced it.
func (v *Viewer) Write(msg Message) {
	select {
	case v.OutChan <- msg:
	default:
		msgType, _ := msg["type"].(string)
		v.logger.WithFields(logrus.Fields{
			"viewer": v.ID,
			"type":   msgType,
		}).Warn("Viewer channel full, dropping message")
	}
}

// Hub maintains, per session code, the set of currently-subscribed viewers
// and fans out snapshots and teardown notices to them.
//
// Ordering: Publish enqueues to every viewer while holding the hub lock, so
// each viewer receives snapshots for a code in the order they were published.
// No ordering is guaranteed between different viewers.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Viewer]struct{}
	logger *logrus.Logger
}

// New initializes an empty Hub.
func New(logger *logrus.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[*Viewer]struct{}),
		logger: logger,
	}
}

// Subscribe registers a viewer under a session code. Existence of the code is
// the caller's concern; the WS handler rejects unknown codes before reaching
// the hub.
func (h *Hub) Subscribe(code string, v *Viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[code]
	if !ok {
		set = make(map[*Viewer]struct{})
		h.subs[code] = set
	}
	set[v] = struct{}{}
	h.logger.WithFields(logrus.Fields{
		"code":    code,
		"viewer":  v.ID,
		"viewers": len(set),
	}).Info("Viewer subscribed")
}

// Unsubscribe removes a viewer from a code. Calling it twice, or for a viewer
// that was never subscribed, is a no-op.
func (h *Hub) Unsubscribe(code string, v *Viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[code]
	if !ok {
		return
	}
	if _, subscribed := set[v]; !subscribed {
		return
	}
	delete(set, v)
	if len(set) == 0 {
		delete(h.subs, code)
	}
	h.logger.WithFields(logrus.Fields{
		"code":   code,
		"viewer": v.ID,
	}).Info("Viewer unsubscribed")
}

// Publish pushes a snapshot to every viewer subscribed to code.
func (h *Hub) Publish(code string, snapshot models.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.subs[code] {
		v.Write(Message{
			"type":    "session_state",
			"session": snapshot,
		})
	}
}

// PublishTeardown delivers exactly one teardown notice to every subscriber of
// code and clears the subscriber set. Later subscribe attempts for the code
// are rejected upstream as not-found.
func (h *Hub) PublishTeardown(code string) {
	h.mu.Lock()
	viewers := h.subs[code]
	delete(h.subs, code)
	h.mu.Unlock()

	for v := range viewers {
		v.Write(Message{
			"type": "session_ended",
			"code": code,
		})
	}
	h.logger.WithFields(logrus.Fields{
		"code":    code,
		"viewers": len(viewers),
	}).Info("Session teardown broadcast")
}

// SubscriberCount returns how many viewers are subscribed to code.
func (h *Hub) SubscriberCount(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[code])
}
