package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/momentics/pbxlive/control"
	"github.com/momentics/pbxlive/fake"
	"github.com/momentics/pbxlive/internal/session"
	"github.com/momentics/pbxlive/protocol"
	"github.com/momentics/pbxlive/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	clientKey      = "dGhlIHNhbXBsZSBub25jZQ=="
	upgradeRequest = "GET /ws HTTP/1.1\r\n" +
		"Host: pbx.example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: " + clientKey + "\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	listenerFd = 1000
)

var maskKey = [4]byte{0x37, 0xfa, 0x21, 0x3d}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

type harness struct {
	srv      *Server
	cfg      *Config
	reactor  *fake.Reactor
	listener *fake.Listener
	provider *fake.Provider
	clock    *testClock
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	h := &harness{
		cfg:      cfg,
		reactor:  fake.NewReactor(),
		listener: fake.NewListener(listenerFd),
		provider: fake.NewProvider(fake.Snapshot(2)),
		clock:    &testClock{t: time.Unix(1700000000, 0)},
	}
	srv, err := New(cfg, h.provider,
		WithReactor(h.reactor),
		WithListener(h.listener),
		WithClock(h.clock.now),
	)
	require.NoError(t, err)
	require.NoError(t, srv.Listen())
	h.srv = srv
	return h
}

func (h *harness) step(t *testing.T) {
	t.Helper()
	require.NoError(t, h.srv.step(context.Background()))
}

func (h *harness) readable(t *testing.T, fd int) {
	t.Helper()
	h.reactor.Push(reactor.Event{Fd: fd, Events: reactor.EventRead})
	h.step(t)
}

func (h *harness) connect(t *testing.T, fd int) *fake.Conn {
	t.Helper()
	sock := fake.NewConn(fd)
	h.listener.Queue(sock)
	h.readable(t, listenerFd)
	return sock
}

func (h *harness) open(t *testing.T, fd int) *fake.Conn {
	t.Helper()
	sock := h.connect(t, fd)
	sock.Feed([]byte(upgradeRequest))
	h.readable(t, fd)
	c, ok := h.srv.registry.Get(fd)
	require.True(t, ok)
	require.Equal(t, session.StateOpen, c.State())
	return sock
}

func (h *harness) sendText(t *testing.T, sock *fake.Conn, payload string) {
	t.Helper()
	sock.Feed(protocol.EncodeMasked(protocol.OpcodeText, []byte(payload), maskKey))
	h.readable(t, sock.Fd())
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	h.clock.t = h.clock.t.Add(h.cfg.PollInterval)
	h.step(t)
}

func (h *harness) gone(t *testing.T, sock *fake.Conn) {
	t.Helper()
	_, ok := h.srv.registry.Get(sock.Fd())
	assert.False(t, ok, "connection still registered")
	assert.True(t, sock.Closed(), "socket not closed")
	_, watched := h.reactor.Interest(sock.Fd())
	assert.False(t, watched, "socket still watched")
}

func payloads(t *testing.T, sock *fake.Conn) []string {
	t.Helper()
	frames, err := sock.Frames()
	require.NoError(t, err)
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		assert.Equal(t, byte(protocol.OpcodeText), f.Opcode)
		assert.True(t, f.Fin)
		assert.False(t, f.Masked)
		out = append(out, string(f.Payload))
	}
	return out
}

func types(t *testing.T, sock *fake.Conn) []string {
	t.Helper()
	var out []string
	for _, p := range payloads(t, sock) {
		var m struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal([]byte(p), &m))
		out = append(out, m.Type)
	}
	return out
}

func TestNewRequiresProvider(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestHandshakeAndWelcome(t *testing.T) {
	h := newHarness(t, nil)
	sock := h.open(t, 7)

	want := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n\r\n"
	assert.Equal(t, want, string(sock.Written()[:len(want)]))
	assert.Equal(t, []string{`{"type":"connected"}`}, payloads(t, sock))
	assert.EqualValues(t, 1, h.srv.Metrics().Get(control.ConnectionsAccepted))
	assert.EqualValues(t, 1, h.srv.Metrics().Get(control.ConnectionsOpen))
}

func TestIncompleteHandshakeWaits(t *testing.T) {
	h := newHarness(t, nil)
	sock := h.connect(t, 7)

	sock.Feed([]byte(upgradeRequest[:40]))
	h.readable(t, 7)
	assert.Empty(t, sock.Written())
	c, ok := h.srv.registry.Get(7)
	require.True(t, ok)
	assert.Equal(t, session.StateConnecting, c.State())

	sock.Feed([]byte(upgradeRequest[40:]))
	h.readable(t, 7)
	assert.Equal(t, session.StateOpen, c.State())
	assert.Equal(t, []string{"connected"}, types(t, sock))
}

func TestHandshakeWithPipelinedFrame(t *testing.T) {
	h := newHarness(t, nil)
	sock := h.connect(t, 7)
	buf := append([]byte(upgradeRequest), protocol.EncodeMasked(protocol.OpcodeText, []byte(`{"action":"ping"}`), maskKey)...)
	sock.Feed(buf)
	h.readable(t, 7)
	assert.Equal(t, []string{"connected", "pong"}, types(t, sock))
}

func TestMalformedHandshakeDrops(t *testing.T) {
	cases := map[string]string{
		"bad verb":   "POST /ws HTTP/1.1\r\nUpgrade: websocket\r\nSec-WebSocket-Key: " + clientKey + "\r\n\r\n",
		"no upgrade": "GET /ws HTTP/1.1\r\nSec-WebSocket-Key: " + clientKey + "\r\n\r\n",
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, nil)
			sock := h.connect(t, 7)
			sock.Feed([]byte(req))
			h.readable(t, 7)
			assert.Empty(t, sock.Written(), "no response on a rejected handshake")
			h.gone(t, sock)
		})
	}
}

func TestReadsPerEventAreCapped(t *testing.T) {
	h := newHarness(t, nil)
	sock := h.open(t, 7)
	for i := 0; i < maxReadsPerEvent+2; i++ {
		sock.Feed(protocol.EncodeMasked(protocol.OpcodeText, []byte(`{"action":"ping"}`), maskKey))
	}

	h.readable(t, 7)
	assert.Len(t, types(t, sock), 1+maxReadsPerEvent, "one welcome plus one pong per read")

	h.readable(t, 7)
	assert.Len(t, types(t, sock), 1+maxReadsPerEvent+2)
}

func TestHandshakeWithoutKeyStaysConnecting(t *testing.T) {
	h := newHarness(t, nil)
	sock := h.connect(t, 7)
	sock.Feed([]byte("GET /ws HTTP/1.1\r\nUpgrade: websocket\r\n\r\n"))
	h.readable(t, 7)

	c, ok := h.srv.registry.Get(7)
	require.True(t, ok)
	assert.Equal(t, session.StateConnecting, c.State())
	assert.Empty(t, sock.Written())
	assert.False(t, sock.Closed())
}

func TestOversizedHandshakeDrops(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.HandshakeLimit = 512 })
	sock := h.connect(t, 7)
	junk := make([]byte, 600)
	for i := range junk {
		junk[i] = 'a'
	}
	sock.Feed(append([]byte("GET / HTTP/1.1\r\nX-Pad: "), junk...))
	h.readable(t, 7)
	h.gone(t, sock)
}

func TestRouterRepliesGoToRequester(t *testing.T) {
	h := newHarness(t, nil)
	a := h.open(t, 7)
	b := h.open(t, 8)

	h.sendText(t, a, `{"action":"ping"}`)
	h.sendText(t, a, `{"action":"get_queues"}`)
	h.sendText(t, a, `{"action":"get_agents"}`)
	assert.Equal(t, []string{"connected", "pong", "queues", "agents"}, types(t, a))
	assert.Equal(t, []string{"connected"}, types(t, b))
	assert.EqualValues(t, 3, h.srv.Metrics().Get(control.FramesReceived))
}

func TestProviderErrorOnRequestRepliesError(t *testing.T) {
	h := newHarness(t, nil)
	sock := h.open(t, 7)
	h.provider.Set(nil, errors.New("ami unreachable"))

	h.sendText(t, sock, `{"action":"get_queues"}`)
	got := payloads(t, sock)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"type":"error","message":"ami unreachable"}`, got[1])
	_, ok := h.srv.registry.Get(7)
	assert.True(t, ok)
}

func TestInvalidJSONKeepsConnection(t *testing.T) {
	h := newHarness(t, nil)
	sock := h.open(t, 7)
	h.sendText(t, sock, `{"action":`)
	h.sendText(t, sock, `{"action":"ping"}`)
	assert.Equal(t, []string{"connected", "pong"}, types(t, sock))
	assert.EqualValues(t, 1, h.srv.Metrics().Get(control.MessagesInvalid))
}

func TestSubscribeThenUpdate(t *testing.T) {
	h := newHarness(t, nil)
	sock := h.open(t, 7)
	h.sendText(t, sock, `{"action":"subscribe","channel":"queues"}`)
	require.Equal(t, []string{"connected", "subscribed"}, types(t, sock))
	assert.JSONEq(t, `{"type":"subscribed","channel":"queues"}`, payloads(t, sock)[1])

	h.tick(t)
	got := payloads(t, sock)
	require.Len(t, got, 3)
	var update struct {
		Type      string `json:"type"`
		Timestamp int64  `json:"timestamp"`
		Data      struct {
			Queues      []json.RawMessage `json:"queues"`
			ActiveCalls int               `json:"active_calls"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(got[2]), &update))
	assert.Equal(t, "update", update.Type)
	assert.Len(t, update.Data.Queues, 2)
	assert.Equal(t, 1, update.Data.ActiveCalls)
	assert.EqualValues(t, 1, h.srv.Metrics().Get(control.BroadcastTicks))
}

func TestNoTickBeforeInterval(t *testing.T) {
	h := newHarness(t, nil)
	sock := h.open(t, 7)
	h.sendText(t, sock, `{"action":"subscribe","channel":"all"}`)
	h.clock.t = h.clock.t.Add(h.cfg.PollInterval - time.Second)
	h.step(t)
	assert.Zero(t, h.provider.Calls())
	assert.Equal(t, []string{"connected", "subscribed"}, types(t, sock))
}

func TestUnsubscribedConnectionGetsNoUpdate(t *testing.T) {
	h := newHarness(t, nil)
	sock := h.open(t, 7)
	h.sendText(t, sock, `{"action":"subscribe","channel":"queues"}`)
	h.sendText(t, sock, `{"action":"unsubscribe","channel":"queues"}`)
	before := sock.Writes()

	h.tick(t)
	assert.Equal(t, 1, h.provider.Calls())
	assert.Equal(t, before, sock.Writes())
	assert.Equal(t, []string{"connected", "subscribed"}, types(t, sock))
}

func TestBroadcastFailureDropsOnlyFailingConnection(t *testing.T) {
	h := newHarness(t, nil)
	const n = 4
	socks := make([]*fake.Conn, 0, n)
	for i := 0; i < n; i++ {
		s := h.open(t, 10+i)
		h.sendText(t, s, `{"action":"subscribe","channel":"all"}`)
		socks = append(socks, s)
	}
	socks[2].FailWrites(errors.New("broken pipe"))
	before := make([]int, n)
	for i, s := range socks {
		before[i] = s.Writes()
	}

	h.tick(t)
	for i, s := range socks {
		assert.Equal(t, before[i]+1, s.Writes(), "one write attempt per subscriber")
		if i == 2 {
			continue
		}
		assert.Equal(t, []string{"connected", "subscribed", "update"}, types(t, s))
	}
	h.gone(t, socks[2])
	assert.Equal(t, n-1, h.srv.registry.Len())
	assert.EqualValues(t, 1, h.srv.Metrics().Get(control.BroadcastFailures))
}

func TestProviderErrorSkipsTick(t *testing.T) {
	h := newHarness(t, nil)
	a := h.open(t, 7)
	b := h.open(t, 8)
	h.sendText(t, a, `{"action":"subscribe","channel":"all"}`)
	h.sendText(t, b, `{"action":"subscribe","channel":"queues"}`)
	h.provider.Set(nil, errors.New("ami timeout"))
	wa, wb := a.Writes(), b.Writes()

	h.tick(t)
	assert.Equal(t, wa, a.Writes())
	assert.Equal(t, wb, b.Writes())
	assert.Equal(t, 2, h.srv.registry.Len())
	assert.EqualValues(t, 1, h.srv.Metrics().Get(control.BroadcastSkipped))

	h.provider.Set(fake.Snapshot(1), nil)
	h.tick(t)
	assert.Equal(t, []string{"connected", "subscribed", "update"}, types(t, a))
	assert.Equal(t, []string{"connected", "subscribed", "update"}, types(t, b))
}

func TestReadErrorRemovesConnectionEverywhere(t *testing.T) {
	h := newHarness(t, nil)
	sock := h.open(t, 7)
	other := h.open(t, 8)
	h.sendText(t, sock, `{"action":"subscribe","channel":"all"}`)
	h.sendText(t, sock, `{"action":"subscribe","channel":"queues"}`)
	h.sendText(t, other, `{"action":"subscribe","channel":"all"}`)

	sock.FailReads(errors.New("connection reset by peer"))
	h.readable(t, 7)

	h.gone(t, sock)
	assert.Equal(t, map[string]int{"all": 1}, h.srv.registry.Channels())
	subs := h.srv.registry.Subscribers("all", "queues")
	require.Len(t, subs, 1)
	assert.Equal(t, 8, subs[0].Fd())
	assert.EqualValues(t, 1, h.srv.Metrics().Get(control.ConnectionsDropped))
}

func TestPeerEOFRemovesConnection(t *testing.T) {
	h := newHarness(t, nil)
	sock := h.open(t, 7)
	sock.FailReads(io.EOF)
	h.reactor.Push(reactor.Event{Fd: 7, Events: reactor.EventHangup})
	h.step(t)
	h.gone(t, sock)
}

func TestCloseFrameRemovesConnectionWithoutReply(t *testing.T) {
	h := newHarness(t, nil)
	sock := h.open(t, 7)
	before := sock.Writes()
	sock.Feed(protocol.EncodeMasked(protocol.OpcodeClose, nil, maskKey))
	h.readable(t, 7)
	assert.Equal(t, before, sock.Writes())
	h.gone(t, sock)
}

func TestProtocolViolationsDrop(t *testing.T) {
	cases := map[string][]byte{
		"unmasked": protocol.EncodeText([]byte(`{"action":"ping"}`)),
		"binary":   protocol.EncodeMasked(protocol.OpcodeBinary, []byte{1, 2, 3}, maskKey),
		"ping":     protocol.EncodeMasked(protocol.OpcodePing, nil, maskKey),
		"oversize": {0x81, 0x80 | 126, 0x08, 0x00},
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, func(c *Config) { c.MaxFrameSize = 1024 })
			sock := h.open(t, 7)
			sock.Feed(frame)
			h.readable(t, 7)
			h.gone(t, sock)
		})
	}
}

func TestConnectionLimit(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxConnections = 1 })
	first := h.connect(t, 7)
	second := h.connect(t, 8)

	assert.False(t, first.Closed())
	assert.True(t, second.Closed())
	assert.Equal(t, 1, h.srv.registry.Len())
	assert.EqualValues(t, 1, h.srv.Metrics().Get(control.ConnectionsRejected))
}

func TestBackloggedWritesFlushOnWritable(t *testing.T) {
	h := newHarness(t, nil)
	sock := h.open(t, 7)
	sock.BlockWrites(true)

	h.sendText(t, sock, `{"action":"ping"}`)
	interest, _ := h.reactor.Interest(7)
	assert.Equal(t, reactor.EventRead|reactor.EventWrite, interest)
	assert.Equal(t, []string{"connected"}, types(t, sock))

	sock.BlockWrites(false)
	h.reactor.Push(reactor.Event{Fd: 7, Events: reactor.EventWrite})
	h.step(t)
	assert.Equal(t, []string{"connected", "pong"}, types(t, sock))
	interest, _ = h.reactor.Interest(7)
	assert.Equal(t, reactor.EventRead, interest)
}

func TestBacklogLimitDropsStalledClient(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxPendingBytes = 16 })
	sock := h.open(t, 7)
	sock.BlockWrites(true)
	h.sendText(t, sock, `{"action":"get_queues"}`)
	h.gone(t, sock)
}

func TestProbes(t *testing.T) {
	h := newHarness(t, nil)
	sock := h.open(t, 7)
	h.open(t, 8)
	h.sendText(t, sock, `{"action":"subscribe","channel":"all"}`)

	state := h.srv.Probes().DumpState()
	assert.Equal(t, 2, state["connections"])
	assert.Equal(t, map[string]int{"all": 1}, state["channels"])
}

func TestProbesReadableWhileLoopRuns(t *testing.T) {
	h := newHarness(t, nil)
	h.open(t, 7)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = h.srv.Probes().DumpState()
		}
	}()
	for i := 0; i < 20; i++ {
		h.connect(t, 100+i)
	}
	<-done

	assert.Equal(t, 21, h.srv.Probes().DumpState()["connections"])
}

func TestShutdownBeforeRun(t *testing.T) {
	h := newHarness(t, nil)
	sock := h.open(t, 7)

	h.srv.Shutdown()
	require.NoError(t, h.srv.Run(context.Background()))
	assert.True(t, sock.Closed())
	assert.Empty(t, types(t, sock)[1:], "no close frame on shutdown")
	assert.True(t, h.listener.Closed())
	assert.True(t, h.reactor.Closed())
	assert.Zero(t, h.srv.registry.Len())

	assert.ErrorIs(t, h.srv.Run(context.Background()), ErrAlreadyRunning)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, h.reactor.Closed())
}
