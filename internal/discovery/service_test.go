package discovery

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// startService binds a service on an ephemeral port with a collecting
// peer handler. The long announce interval keeps periodic broadcasts out
// of the test.
func startService(t *testing.T, username string) (*Service, chan Message) {
	t.Helper()

	peers := make(chan Message, 4)
	svc := NewService(username, 0, time.Hour, func(m Message) {
		peers <- m
	}, testLogger())

	require.NoError(t, svc.Start())
	t.Cleanup(svc.Stop)
	return svc, peers
}

// testConn opens a plain UDP socket playing the part of a remote peer.
func testConn(t *testing.T) *net.UDPConn {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendTo(t *testing.T, conn *net.UDPConn, port int, data []byte) {
	t.Helper()

	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
	_, err := conn.WriteToUDP(data, addr)
	require.NoError(t, err)
}

func TestService_AnnounceGetsUnicastResponse(t *testing.T) {
	svc, peers := startService(t, "alice")
	remote := testConn(t)

	announce := Message{
		Username:    "bob",
		IPAddress:   "127.0.0.1",
		Port:        remote.LocalAddr().(*net.UDPAddr).Port,
		Timestamp:   time.Now().Format(time.RFC3339),
		MessageType: MessageAnnounce,
		Version:     3,
	}
	data, err := announce.Encode()
	require.NoError(t, err)
	sendTo(t, remote, svc.Port(), data)

	// The handler sees bob's announcement.
	select {
	case msg := <-peers:
		assert.Equal(t, "bob", msg.Username)
		assert.Equal(t, MessageAnnounce, msg.MessageType)
		assert.Equal(t, 3, msg.Version)
	case <-time.After(3 * time.Second):
		t.Fatal("peer handler was not called")
	}

	// And bob gets a direct response back.
	require.NoError(t, remote.SetReadDeadline(time.Now().Add(3*time.Second)))
	buf := make([]byte, 1024)
	n, _, err := remote.ReadFromUDP(buf)
	require.NoError(t, err)

	response, err := DecodeMessage(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, "alice", response.Username)
	assert.Equal(t, MessageResponse, response.MessageType)
}

func TestService_ResponseIsNotAnswered(t *testing.T) {
	svc, peers := startService(t, "alice")
	remote := testConn(t)

	response := Message{
		Username:    "bob",
		IPAddress:   "127.0.0.1",
		Port:        remote.LocalAddr().(*net.UDPAddr).Port,
		Timestamp:   time.Now().Format(time.RFC3339),
		MessageType: MessageResponse,
	}
	data, err := response.Encode()
	require.NoError(t, err)
	sendTo(t, remote, svc.Port(), data)

	// Still delivered to the handler.
	select {
	case msg := <-peers:
		assert.Equal(t, MessageResponse, msg.MessageType)
	case <-time.After(3 * time.Second):
		t.Fatal("peer handler was not called")
	}

	// But no packet comes back, or responses would ping-pong forever.
	require.NoError(t, remote.SetReadDeadline(time.Now().Add(500*time.Millisecond)))
	buf := make([]byte, 1024)
	_, _, err = remote.ReadFromUDP(buf)
	assert.Error(t, err)
}

func TestService_IgnoresOwnMessages(t *testing.T) {
	svc, peers := startService(t, "alice")
	remote := testConn(t)

	echo := Message{
		Username:    "alice",
		IPAddress:   "127.0.0.1",
		Port:        remote.LocalAddr().(*net.UDPAddr).Port,
		MessageType: MessageAnnounce,
	}
	data, err := echo.Encode()
	require.NoError(t, err)
	sendTo(t, remote, svc.Port(), data)

	select {
	case msg := <-peers:
		t.Fatalf("handler called for our own message: %+v", msg)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestService_IgnoresMalformedPackets(t *testing.T) {
	svc, peers := startService(t, "alice")
	remote := testConn(t)

	sendTo(t, remote, svc.Port(), []byte("{not json"))

	select {
	case msg := <-peers:
		t.Fatalf("handler called for malformed packet: %+v", msg)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestService_StopBeforeStart(t *testing.T) {
	svc := NewService("alice", 0, time.Hour, nil, testLogger())
	svc.Stop() // must not panic or block
}

func TestService_StartIsIdempotent(t *testing.T) {
	svc, _ := startService(t, "alice")
	port := svc.Port()

	require.NoError(t, svc.Start())
	assert.Equal(t, port, svc.Port())
}
