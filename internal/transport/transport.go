package transport

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/relayhub/relay-gateway/internal/metrics"
)

// State is the transport session state
type State string

const (
	StateUninitialized   State = "uninitialized"
	StateAwaitingPairing State = "awaiting_pairing"
	StateConnected       State = "connected"
	StateReconnecting    State = "reconnecting"
	StateLoggedOut       State = "logged_out"
)

// disconnect reason that ends the session permanently
const reasonLogout = "logout"

var (
	// ErrNotConnected is returned by Send while the session is not usable
	ErrNotConnected = errors.New("transport not connected")
	// ErrLoggedOut marks the terminal state; re-pairing is required
	ErrLoggedOut = errors.New("session logged out")
)

// frame is the JSON wire format exchanged with the transport
type frame struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Challenge string `json:"challenge,omitempty"`
	Reason    string `json:"reason,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Content   string `json:"content,omitempty"`
	MediaRef  string `json:"media_ref,omitempty"`
	Audio     string `json:"audio,omitempty"`
	Token     string `json:"token,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Handler receives inbound messages from the session
type Handler func(userID, text, mediaRef string)

// Status is a point-in-time snapshot of the session
type Status struct {
	State            State     `json:"state"`
	RetryCount       int       `json:"retry_count"`
	LastTransitionAt time.Time `json:"last_transition_at"`
	PairingChallenge string    `json:"pairing_challenge,omitempty"`
}

// Manager owns the single transport session: pairing, the connected read
// loop, and reconnect scheduling. All state mutation happens under one
// mutex; at most one reconnect attempt is ever pending.
type Manager struct {
	mu               sync.Mutex
	state            State
	challenge        string
	challengeExpires time.Time
	challengeTimer   *time.Timer
	retryCount       int
	lastTransition   time.Time
	reconnectPending bool
	reconnectTimer   *time.Timer
	closed           bool

	conn           *websocket.Conn
	url            string
	reconnectDelay time.Duration
	pairingTimeout time.Duration
	creds          CredentialStore
	handler        Handler
	onChallenge    func(challenge string)
	logger         *slog.Logger

	// injectable for tests
	dial func(url string) (*websocket.Conn, error)
}

// NewManager creates a manager for the transport at url
func NewManager(url string, reconnectDelay, pairingTimeout time.Duration, creds CredentialStore, logger *slog.Logger) *Manager {
	return &Manager{
		state:          StateUninitialized,
		url:            url,
		reconnectDelay: reconnectDelay,
		pairingTimeout: pairingTimeout,
		creds:          creds,
		logger:         logger,
		lastTransition: time.Now(),
		dial: func(url string) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			return conn, err
		},
	}
}

// SetHandler registers the inbound message handler
func (m *Manager) SetHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// SetChallengeCallback registers the out-of-band pairing challenge sink
func (m *Manager) SetChallengeCallback(fn func(challenge string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChallenge = fn
}

// Connect establishes the session. With stored credentials it authenticates
// directly; otherwise it requests a pairing challenge and waits for
// out-of-band confirmation.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.state == StateLoggedOut {
		m.mu.Unlock()
		return ErrLoggedOut
	}
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("transport manager is shut down")
	}
	url := m.url
	m.mu.Unlock()

	conn, err := m.dial(url)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	creds, err := m.creds.Load()
	if err != nil {
		m.logger.Warn("failed to load credentials, starting pairing", "error", err)
		creds = nil
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	if creds != nil {
		if err := conn.WriteJSON(frame{Type: "auth", Token: creds.Token, SessionID: creds.SessionID}); err != nil {
			conn.Close()
			return fmt.Errorf("auth write failed: %w", err)
		}
	} else {
		m.transition(StateAwaitingPairing)
		if err := conn.WriteJSON(frame{Type: "pair"}); err != nil {
			conn.Close()
			return fmt.Errorf("pair request failed: %w", err)
		}
	}

	go m.readLoop(conn)
	return nil
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			m.handleDisconnect(fmt.Sprintf("read error: %v", err))
			return
		}
		switch f.Type {
		case "challenge":
			m.handleChallenge(f.Challenge)
		case "paired":
			m.handlePaired(f)
		case "message":
			m.handleMessage(f)
		case "disconnect":
			m.handleDisconnect(f.Reason)
			return
		default:
			m.logger.Debug("ignoring unknown frame", "type", f.Type)
		}
	}
}

// handleChallenge stores a fresh pairing challenge and arms its expiry.
// An expired challenge is never retried; a new one is requested instead.
func (m *Manager) handleChallenge(challenge string) {
	m.mu.Lock()
	if m.state != StateAwaitingPairing {
		m.mu.Unlock()
		return
	}
	m.challenge = challenge
	m.challengeExpires = time.Now().Add(m.pairingTimeout)
	if m.challengeTimer != nil {
		m.challengeTimer.Stop()
	}
	m.challengeTimer = time.AfterFunc(m.pairingTimeout, m.refreshChallenge)
	onChallenge := m.onChallenge
	m.mu.Unlock()

	m.logger.Info("pairing challenge received")
	if onChallenge != nil {
		onChallenge(challenge)
	}
}

func (m *Manager) refreshChallenge() {
	m.mu.Lock()
	if m.state != StateAwaitingPairing || m.closed {
		m.mu.Unlock()
		return
	}
	m.challenge = ""
	conn := m.conn
	m.mu.Unlock()

	m.logger.Info("pairing challenge expired, requesting a new one")
	if conn != nil {
		if err := conn.WriteJSON(frame{Type: "pair"}); err != nil {
			m.handleDisconnect(fmt.Sprintf("pair refresh failed: %v", err))
		}
	}
}

func (m *Manager) handlePaired(f frame) {
	m.mu.Lock()
	if m.challengeTimer != nil {
		m.challengeTimer.Stop()
		m.challengeTimer = nil
	}
	m.challenge = ""
	m.retryCount = 0
	m.mu.Unlock()

	if f.Token != "" {
		creds := &Credentials{SessionID: f.SessionID, Token: f.Token, PairedAt: time.Now()}
		if err := m.creds.Save(creds); err != nil {
			m.logger.Error("failed to persist credentials", "error", err)
		}
	}
	m.transition(StateConnected)
	m.logger.Info("session connected")
}

func (m *Manager) handleMessage(f frame) {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()
	if handler == nil {
		return
	}
	// one goroutine per message; no ordering guarantee, even per user
	go handler(f.UserID, f.Content, f.MediaRef)
}

// handleDisconnect inspects the failure reason. Explicit logout is terminal
// and discards all pairing state; anything else schedules one reconnect.
func (m *Manager) handleDisconnect(reason string) {
	m.mu.Lock()
	if m.state == StateLoggedOut || m.closed {
		m.mu.Unlock()
		return
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	if reason == reasonLogout {
		m.logger.Info("explicit logout, session is terminal")
		m.mu.Lock()
		m.stopTimersLocked()
		m.mu.Unlock()
		if err := m.creds.Clear(); err != nil {
			m.logger.Error("failed to clear credentials", "error", err)
		}
		m.transition(StateLoggedOut)
		return
	}

	m.logger.Warn("session lost, scheduling reconnect", "reason", reason)
	m.transition(StateReconnecting)
	m.scheduleReconnect()
}

// scheduleReconnect arms a single flat-delay reconnect attempt. The pending
// flag guarantees at most one timer exists at any time.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reconnectPending || m.closed || m.state == StateLoggedOut {
		return
	}
	m.reconnectPending = true
	m.retryCount++
	m.reconnectTimer = time.AfterFunc(m.reconnectDelay, m.attemptReconnect)
}

func (m *Manager) attemptReconnect() {
	m.mu.Lock()
	m.reconnectPending = false
	m.reconnectTimer = nil
	if m.closed || m.state == StateLoggedOut {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if err := m.Connect(); err != nil {
		m.logger.Warn("reconnect attempt failed", "error", err, "retries", m.RetryCount())
		m.transition(StateReconnecting)
		m.scheduleReconnect()
	}
}

// Send transmits a reply through the active session
func (m *Manager) Send(userID, text string, audio []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.conn == nil {
		return ErrNotConnected
	}
	f := frame{
		Type:    "reply",
		ID:      uuid.NewString(),
		UserID:  userID,
		Content: text,
	}
	if len(audio) > 0 {
		f.Audio = base64.StdEncoding.EncodeToString(audio)
	}
	return m.conn.WriteJSON(f)
}

// Connected reports whether the session is currently usable
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateConnected
}

// Status returns a snapshot reflecting the latest transition
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{
		State:            m.state,
		RetryCount:       m.retryCount,
		LastTransitionAt: m.lastTransition,
	}
	if m.state == StateAwaitingPairing && time.Now().Before(m.challengeExpires) {
		s.PairingChallenge = m.challenge
	}
	return s
}

// RetryCount returns the number of reconnect attempts since the last
// successful connection
func (m *Manager) RetryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryCount
}

// Shutdown closes the session and stops any pending timers
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.stopTimersLocked()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	m.logger.Info("transport shut down")
}

func (m *Manager) stopTimersLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.reconnectPending = false
	if m.challengeTimer != nil {
		m.challengeTimer.Stop()
		m.challengeTimer = nil
	}
}

func (m *Manager) transition(to State) {
	m.mu.Lock()
	if m.state == to {
		m.mu.Unlock()
		return
	}
	m.state = to
	m.lastTransition = time.Now()
	m.mu.Unlock()
	metrics.SessionTransitions.WithLabelValues(string(to)).Inc()
}
