// Package session implements the multi-turn clarification protocol. Each
// conversation is a small state machine keyed by session ID: an ambiguous
// query parks the conversation in a clarifying state, and every further
// message extends the accumulated query until the combined text resolves.
package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/velestore/podbor/internal/resolver"
)

// State of one conversation.
type State int

const (
	StateIdle State = iota
	StateAwaitingClarification
)

// Audit event names, one per protocol transition.
const (
	EventStart         = "start"
	EventQuery         = "query"
	EventClarification = "clarification"
	EventResultSent    = "result_sent"
)

// Resolver resolves one query against the current corpus snapshot.
type Resolver interface {
	Resolve(text string) resolver.Resolution
}

// AuditLog receives session events. Implementations own persistence; the
// session layer only emits and never reads events back.
type AuditLog interface {
	LogEvent(ctx context.Context, sessionID, event, text string) error
}

// PopularityStore counts how often each product has been shown to a user.
type PopularityStore interface {
	IncrementShown(ctx context.Context, r resolver.Result) error
}

// TurnResult is what the transport layer sends back for one user message.
// Prompt is set only when clarification is needed.
type TurnResult struct {
	Results            []resolver.Result `json:"results"`
	NeedsClarification bool              `json:"needs_clarification"`
	Prompt             string            `json:"prompt,omitempty"`
}

// conversation is the per-session state. Fields are only touched under mu, so
// turns for the same session run strictly one at a time.
type conversation struct {
	mu                       sync.Mutex
	state                    State
	originalQuery            string
	accumulatedClarification string
}

func (c *conversation) reset() {
	c.state = StateIdle
	c.originalQuery = ""
	c.accumulatedClarification = ""
}

// Manager keys conversations by session ID. Sessions are independent:
// different users' turns may run in parallel. There is no turn limit and no
// expiry; accumulation grows until the combined query matches or the user
// resets.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*conversation

	resolver Resolver
	audit    AuditLog
	popular  PopularityStore
	logger   *zap.Logger
}

// NewManager creates a session manager. audit and popular may be nil, which
// disables the corresponding notifications.
func NewManager(r Resolver, audit AuditLog, popular PopularityStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*conversation),
		resolver: r,
		audit:    audit,
		popular:  popular,
		logger:   logger,
	}
}

// Turn processes one user message for the given session and returns either
// results or a clarifying prompt. It never returns an error for well-formed
// input: "no match" is data, not a failure.
func (m *Manager) Turn(ctx context.Context, sessionID, text string) TurnResult {
	text = strings.TrimSpace(text)
	conv := m.get(sessionID)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	if conv.state == StateAwaitingClarification {
		return m.clarifyingTurn(ctx, sessionID, conv, text)
	}
	return m.initialTurn(ctx, sessionID, conv, text)
}

func (m *Manager) initialTurn(ctx context.Context, sessionID string, conv *conversation, text string) TurnResult {
	m.logEvent(ctx, sessionID, EventQuery, text)

	res := m.resolver.Resolve(text)
	if res.NeedsClarification {
		conv.state = StateAwaitingClarification
		conv.originalQuery = text
		conv.accumulatedClarification = ""
		return TurnResult{
			Results:            res.Results,
			NeedsClarification: true,
			Prompt:             noMatchPreamble + "\n\n" + pick(initialPrompts),
		}
	}
	return m.send(ctx, sessionID, res)
}

func (m *Manager) clarifyingTurn(ctx context.Context, sessionID string, conv *conversation, text string) TurnResult {
	m.logEvent(ctx, sessionID, EventClarification,
		fmt.Sprintf("Original: %s | New: %s", conv.originalQuery, text))

	if conv.accumulatedClarification == "" {
		conv.accumulatedClarification = text
	} else {
		conv.accumulatedClarification += " " + text
	}
	combined := conv.originalQuery + " " + conv.accumulatedClarification

	res := m.resolver.Resolve(combined)
	if res.NeedsClarification {
		// Accumulation persists: the next turn searches a strict superset.
		return TurnResult{
			Results:            res.Results,
			NeedsClarification: true,
			Prompt:             pick(followupPrompts),
		}
	}
	conv.reset()
	return m.send(ctx, sessionID, res)
}

// send emits the popularity and result_sent events for every shown result.
func (m *Manager) send(ctx context.Context, sessionID string, res resolver.Resolution) TurnResult {
	for _, r := range res.Results {
		if m.popular != nil {
			if err := m.popular.IncrementShown(ctx, r); err != nil {
				m.logger.Warn("popularity increment failed",
					zap.String("name", r.Name), zap.Error(err))
			}
		}
		m.logEvent(ctx, sessionID, EventResultSent,
			fmt.Sprintf("Product: %s | Price: %v", r.Name, r.Price))
	}
	return TurnResult{Results: res.Results, NeedsClarification: false}
}

// Reset unconditionally clears the session state and returns it to idle.
func (m *Manager) Reset(ctx context.Context, sessionID string) {
	conv := m.get(sessionID)
	conv.mu.Lock()
	conv.reset()
	conv.mu.Unlock()
	m.logEvent(ctx, sessionID, EventStart, "reset")
}

// StateOf reports the current protocol state of a session. Unknown sessions
// are idle.
func (m *Manager) StateOf(sessionID string) State {
	m.mu.RLock()
	conv, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return StateIdle
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return conv.state
}

// Count returns the number of known sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) get(sessionID string) *conversation {
	m.mu.RLock()
	conv, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok {
		return conv
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok = m.sessions[sessionID]; ok {
		return conv
	}
	conv = &conversation{}
	m.sessions[sessionID] = conv
	return conv
}

// logEvent writes an audit event best-effort; a storage failure never fails
// the turn.
func (m *Manager) logEvent(ctx context.Context, sessionID, event, text string) {
	if m.audit == nil {
		return
	}
	if err := m.audit.LogEvent(ctx, sessionID, event, text); err != nil {
		m.logger.Warn("audit log failed",
			zap.String("session_id", sessionID),
			zap.String("event", event),
			zap.Error(err))
	}
}

func pick(prompts []string) string {
	return prompts[rand.IntN(len(prompts))]
}
