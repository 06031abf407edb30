package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/sys/unix"
)

const readTimeout = time.Second

// PeerHandler receives every datagram from another user, announces and
// responses alike.
type PeerHandler func(Message)

// Service announces this node over UDP broadcast and listens for other
// nodes doing the same. Announcements are answered with a unicast
// response so the announcer learns about peers that were already
// running.
type Service struct {
	username      string
	port          int
	announceEvery time.Duration
	onPeer        PeerHandler
	log           *slog.Logger

	mu      sync.Mutex
	conn    *net.UDPConn
	running bool
	done    chan struct{}
	wg      sync.WaitGroup

	isHost  bool
	version int
}

func NewService(username string, port int, announceEvery time.Duration, onPeer PeerHandler, log *slog.Logger) *Service {
	return &Service{
		username:      username,
		port:          port,
		announceEvery: announceEvery,
		onPeer:        onPeer,
		log:           log.With(slog.String("component", "discovery")),
	}
}

// Start binds the discovery socket and launches the listen and announce
// loops. Starting a running service is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	conn, err := listenBroadcast(s.port)
	if err != nil {
		return fmt.Errorf("bind discovery socket: %w", err)
	}

	s.conn = conn
	s.running = true
	s.done = make(chan struct{})

	s.wg.Add(2)
	go s.listenLoop(conn)
	go s.announceLoop()

	s.log.Info("discovery started", slog.Int("port", s.portLocked()))
	s.announceLocked()
	return nil
}

// Stop shuts the loops down and closes the socket. Safe to call on a
// service that was never started.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	s.wg.Wait()
	if err := conn.Close(); err != nil {
		s.log.Warn("failed to close discovery socket", slog.String("error", err.Error()))
	}
	s.log.Info("discovery stopped")
}

// Port reports the bound port, which matters when the service was
// configured with port 0.
func (s *Service) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portLocked()
}

func (s *Service) portLocked() int {
	if s.conn == nil {
		return s.port
	}
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

// SetHostStatus flips the host flag carried in outgoing messages.
func (s *Service) SetHostStatus(isHost bool) {
	s.mu.Lock()
	s.isHost = isHost
	s.mu.Unlock()
}

// SetVersion updates the version carried in outgoing messages, letting
// peers notice they are behind without an HTTP round trip.
func (s *Service) SetVersion(version int) {
	s.mu.Lock()
	s.version = version
	s.mu.Unlock()
}

// Announce broadcasts this node's presence once.
func (s *Service) Announce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announceLocked()
}

func (s *Service) announceLocked() {
	if s.conn == nil {
		return
	}

	msg := s.messageLocked(MessageAnnounce)
	data, err := msg.Encode()
	if err != nil {
		s.log.Warn("failed to encode announcement", slog.String("error", err.Error()))
		return
	}

	addr := &net.UDPAddr{IP: net.IPv4bcast, Port: s.portLocked()}
	if _, err := s.conn.WriteToUDP(data, addr); err != nil {
		s.log.Warn("failed to broadcast announcement", slog.String("error", err.Error()))
	}
}

func (s *Service) messageLocked(messageType string) Message {
	return Message{
		Username:    s.username,
		IPAddress:   LocalIP(),
		Port:        s.portLocked(),
		IsHost:      s.isHost,
		Timestamp:   time.Now().Format(time.RFC3339),
		MessageType: messageType,
		Version:     s.version,
	}
}

func (s *Service) listenLoop(conn *net.UDPConn) {
	defer s.wg.Done()

	buf := make([]byte, 1024)
	for {
		select {
		case <-s.done:
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			select {
			case <-s.done:
			default:
				s.log.Warn("discovery read failed", slog.String("error", err.Error()))
			}
			continue
		}

		s.handleDatagram(buf[:n])
	}
}

func (s *Service) announceLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.announceEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.Announce()
		}
	}
}

func (s *Service) handleDatagram(data []byte) {
	msg, err := DecodeMessage(data)
	if err != nil {
		return // malformed packets are noise, not faults
	}

	// Broadcast echoes our own announcements back at us.
	if msg.Username == s.username {
		return
	}

	if msg.MessageType == MessageAnnounce {
		s.respond(msg)
	}

	s.log.Debug("peer message",
		slog.String("peer", msg.Username),
		slog.String("type", msg.MessageType),
	)
	if s.onPeer != nil {
		s.onPeer(msg)
	}
}

// respond answers an announcement with a unicast response so the new
// node learns about us without waiting for our next broadcast.
func (s *Service) respond(announce Message) {
	s.mu.Lock()
	msg := s.messageLocked(MessageResponse)
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return
	}

	data, err := msg.Encode()
	if err != nil {
		s.log.Warn("failed to encode response", slog.String("error", err.Error()))
		return
	}

	addr := &net.UDPAddr{IP: net.ParseIP(announce.IPAddress), Port: announce.Port}
	if addr.IP == nil {
		return
	}
	if _, err := conn.WriteToUDP(data, addr); err != nil {
		s.log.Warn("failed to answer announcement",
			slog.String("peer", announce.Username),
			slog.String("error", err.Error()),
		)
	}
}

// listenBroadcast binds a UDP socket with SO_REUSEADDR and SO_BROADCAST
// so several nodes on one machine can share the discovery port.
func listenBroadcast(port int) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var serr error
			err := c.Control(func(fd uintptr) {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
					serr = err
					return
				}
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
			})
			if err != nil {
				return err
			}
			return serr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}

// LocalIP finds the address this machine uses to reach the network. The
// dial never sends a packet, it only selects a route.
func LocalIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
