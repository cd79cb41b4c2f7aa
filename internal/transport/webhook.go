package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Dispatcher consumes inbound messages.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message)
}

// dispatchTimeout bounds one conversation turn end to end, including a full
// generation job.
const dispatchTimeout = 15 * time.Minute

// WebhookHandler accepts inbound messages from the messaging platform
// integration and hands them to the router. The webhook acknowledges
// immediately; the turn runs in the background because generation can take
// minutes.
type WebhookHandler struct {
	dispatcher Dispatcher
	logger     Logger

	mu      sync.Mutex
	senders map[string]*sync.Mutex
}

func NewWebhookHandler(d Dispatcher, log Logger) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: d,
		logger:     log,
		senders:    make(map[string]*sync.Mutex),
	}
}

// senderLock returns the mutex serializing turns for one sender. Entries are
// never evicted; the sender space is phone numbers.
func (h *WebhookHandler) senderLock(from string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.senders[from]
	if !ok {
		m = &sync.Mutex{}
		h.senders[from] = m
	}
	return m
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.logger.Warn("invalid webhook payload", map[string]interface{}{
			"error": err.Error(),
		})
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if msg.From == "" {
		http.Error(w, "missing sender", http.StatusBadRequest)
		return
	}

	// Turns from the same sender run one at a time so a rapid second
	// message cannot interleave an open flow session.
	go func() {
		lock := h.senderLock(msg.From)
		lock.Lock()
		defer lock.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		h.dispatcher.Dispatch(ctx, msg)
	}()

	w.WriteHeader(http.StatusAccepted)
}
