package transport

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCredStore struct {
	mu    sync.Mutex
	creds *Credentials
}

func (m *memCredStore) Load() (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds, nil
}

func (m *memCredStore) Save(c *Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = c
	return nil
}

func (m *memCredStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
	return nil
}

// fakeTransport is a scripted websocket peer for driving the manager
type fakeTransport struct {
	t        *testing.T
	upgrader websocket.Upgrader
	server   *httptest.Server
	script   func(conn *websocket.Conn)
}

func newFakeTransport(t *testing.T, script func(conn *websocket.Conn)) *fakeTransport {
	f := &fakeTransport{t: t, script: script}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.script(conn)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeTransport) url() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func newTestManager(url string, creds CredentialStore) *Manager {
	return NewManager(url, 20*time.Millisecond, 30*time.Second, creds, slog.Default())
}

func TestPairingFlow(t *testing.T) {
	store := &memCredStore{}
	ft := newFakeTransport(t, func(conn *websocket.Conn) {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		require.Equal(t, "pair", f.Type)
		conn.WriteJSON(frame{Type: "challenge", Challenge: "opaque-qr-data"})
		conn.WriteJSON(frame{Type: "paired", Token: "tok-1", SessionID: "sess-1"})
		select {}
	})

	m := newTestManager(ft.url(), store)
	var gotChallenge atomic.Value
	m.SetChallengeCallback(func(c string) { gotChallenge.Store(c) })

	require.NoError(t, m.Connect())

	require.Eventually(t, m.Connected, time.Second, 10*time.Millisecond)
	assert.Equal(t, "opaque-qr-data", gotChallenge.Load())

	saved, _ := store.Load()
	require.NotNil(t, saved)
	assert.Equal(t, "tok-1", saved.Token)

	m.Shutdown()
}

func TestAuthWithStoredCredentials(t *testing.T) {
	store := &memCredStore{creds: &Credentials{SessionID: "sess-1", Token: "tok-1"}}
	ft := newFakeTransport(t, func(conn *websocket.Conn) {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		require.Equal(t, "auth", f.Type)
		require.Equal(t, "tok-1", f.Token)
		conn.WriteJSON(frame{Type: "paired"})
		select {}
	})

	m := newTestManager(ft.url(), store)
	require.NoError(t, m.Connect())
	require.Eventually(t, m.Connected, time.Second, 10*time.Millisecond)
	m.Shutdown()
}

func TestInboundMessageDispatch(t *testing.T) {
	store := &memCredStore{creds: &Credentials{Token: "tok"}}
	ft := newFakeTransport(t, func(conn *websocket.Conn) {
		var f frame
		conn.ReadJSON(&f)
		conn.WriteJSON(frame{Type: "paired"})
		conn.WriteJSON(frame{Type: "message", UserID: "u1", Content: "hello"})
		select {}
	})

	m := newTestManager(ft.url(), store)
	type inbound struct{ user, text string }
	got := make(chan inbound, 1)
	m.SetHandler(func(userID, text, mediaRef string) {
		got <- inbound{userID, text}
	})

	require.NoError(t, m.Connect())
	select {
	case in := <-got:
		assert.Equal(t, "u1", in.user)
		assert.Equal(t, "hello", in.text)
	case <-time.After(time.Second):
		t.Fatal("inbound message never dispatched")
	}
	m.Shutdown()
}

func TestLogoutIsTerminal(t *testing.T) {
	store := &memCredStore{creds: &Credentials{Token: "tok"}}
	ft := newFakeTransport(t, func(conn *websocket.Conn) {
		var f frame
		conn.ReadJSON(&f)
		conn.WriteJSON(frame{Type: "paired"})
		conn.WriteJSON(frame{Type: "disconnect", Reason: "logout"})
		select {}
	})

	m := newTestManager(ft.url(), store)
	require.NoError(t, m.Connect())

	require.Eventually(t, func() bool {
		return m.Status().State == StateLoggedOut
	}, time.Second, 10*time.Millisecond)

	creds, _ := store.Load()
	assert.Nil(t, creds, "logout must discard credentials")

	// no reconnect may ever be scheduled after logout
	time.Sleep(100 * time.Millisecond)
	m.mu.Lock()
	pending := m.reconnectPending
	m.mu.Unlock()
	assert.False(t, pending)
	assert.Equal(t, StateLoggedOut, m.Status().State)

	assert.ErrorIs(t, m.Connect(), ErrLoggedOut)
}

func TestReconnectSingleFlight(t *testing.T) {
	store := &memCredStore{creds: &Credentials{Token: "tok"}}
	var dials int64
	m := newTestManager("ws://unused", store)
	m.dial = func(url string) (*websocket.Conn, error) {
		atomic.AddInt64(&dials, 1)
		return nil, assert.AnError
	}

	// simulate several concurrent disconnect signals
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.handleDisconnect("network error")
		}()
	}
	wg.Wait()

	m.mu.Lock()
	pendingAfterBurst := m.reconnectPending
	m.mu.Unlock()
	assert.True(t, pendingAfterBurst, "exactly one reconnect should be pending")

	// each failed attempt re-arms exactly one timer; dials grow one at a time
	time.Sleep(110 * time.Millisecond)
	m.Shutdown()
	got := atomic.LoadInt64(&dials)
	assert.GreaterOrEqual(t, got, int64(1))
	assert.LessOrEqual(t, got, int64(6), "reconnect attempts must be serialized, got %d in ~5 delay periods", got)
}

func TestSendWhileDisconnected(t *testing.T) {
	m := newTestManager("ws://unused", &memCredStore{})
	err := m.Send("u1", "hello", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestChallengeRefreshAfterExpiry(t *testing.T) {
	store := &memCredStore{}
	var pairRequests int64
	ft := newFakeTransport(t, func(conn *websocket.Conn) {
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			if f.Type == "pair" {
				n := atomic.AddInt64(&pairRequests, 1)
				conn.WriteJSON(frame{Type: "challenge", Challenge: "challenge-" + string(rune('0'+n))})
			}
		}
	})

	m := NewManager(ft.url(), 20*time.Millisecond, 50*time.Millisecond, store, slog.Default())
	require.NoError(t, m.Connect())

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&pairRequests) >= 2
	}, time.Second, 10*time.Millisecond, "expired challenge must trigger a fresh pair request")

	m.Shutdown()
}

func TestStatusReflectsTransitions(t *testing.T) {
	m := newTestManager("ws://unused", &memCredStore{})
	assert.Equal(t, StateUninitialized, m.Status().State)

	m.transition(StateReconnecting)
	s := m.Status()
	assert.Equal(t, StateReconnecting, s.State)
	assert.WithinDuration(t, time.Now(), s.LastTransitionAt, time.Second)
}

func TestFileCredentialStoreRoundtrip(t *testing.T) {
	path := t.TempDir() + "/creds.json"
	store := NewFileCredentialStore(path)

	creds, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, creds, "missing file must load as nil")

	require.NoError(t, store.Save(&Credentials{SessionID: "s", Token: "t", PairedAt: time.Now()}))
	creds, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "t", creds.Token)

	require.NoError(t, store.Clear())
	creds, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, creds)
}
