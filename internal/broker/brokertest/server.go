// Package brokertest runs a minimal in-process MQTT 3.1.1 broker for tests.
// It records publishes and answers every CONNECT with a configurable code.
package brokertest

import (
	"crypto/tls"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// Message is a publish received by the server.
type Message struct {
	ClientID string
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// Login is the credential set sent in a CONNECT packet.
type Login struct {
	ClientID string
	Username string
	Password string
}

// Server is a fake MQTT broker bound to 127.0.0.1.
type Server struct {
	ln net.Listener

	returnCode byte
	dropAcks   bool

	mu          sync.Mutex
	logins      []Login
	messages    []Message
	disconnects int
	closed      bool
	conns       map[net.Conn]struct{}
	wg          sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithReturnCode makes the server answer every CONNECT with code.
func WithReturnCode(code byte) Option {
	return func(s *Server) { s.returnCode = code }
}

// WithoutAcks stops the server from acknowledging QoS 1 and 2 publishes.
func WithoutAcks() Option {
	return func(s *Server) { s.dropAcks = true }
}

// WithTLS serves MQTT over TLS using cert.
func WithTLS(cert tls.Certificate) Option {
	return func(s *Server) {
		s.ln = tls.NewListener(s.ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
	}
}

// New starts a Server and stops it when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("brokertest: listen: %v", err)
	}

	s := &Server{ln: ln, conns: make(map[net.Conn]struct{})}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.serve()

	t.Cleanup(s.Close)
	return s
}

// Host returns the listening host.
func (s *Server) Host() string { return "127.0.0.1" }

// Port returns the listening port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host(), strconv.Itoa(s.Port()))
}

// Close stops accepting connections, drops open clients and waits for
// handlers to exit.
func (s *Server) Close() {
	_ = s.ln.Close()

	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Messages returns a copy of all publishes received so far.
func (s *Server) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Logins returns every CONNECT the server has seen.
func (s *Server) Logins() []Login {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Login(nil), s.logins...)
}

// Disconnects returns the number of DISCONNECT packets received.
func (s *Server) Disconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)

			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	var clientID string
	for {
		cp, err := packets.ReadPacket(conn)
		if err != nil {
			return
		}

		var reply packets.ControlPacket
		switch p := cp.(type) {
		case *packets.ConnectPacket:
			clientID = p.ClientIdentifier
			s.mu.Lock()
			s.logins = append(s.logins, Login{
				ClientID: p.ClientIdentifier,
				Username: p.Username,
				Password: string(p.Password),
			})
			s.mu.Unlock()

			ack := packets.NewControlPacket(packets.Connack).(*packets.ConnackPacket)
			ack.ReturnCode = s.returnCode
			if err := ack.Write(conn); err != nil || s.returnCode != packets.Accepted {
				return
			}
			continue

		case *packets.PublishPacket:
			s.mu.Lock()
			s.messages = append(s.messages, Message{
				ClientID: clientID,
				Topic:    p.TopicName,
				Payload:  append([]byte(nil), p.Payload...),
				QoS:      p.Qos,
				Retained: p.Retain,
			})
			s.mu.Unlock()

			if s.dropAcks {
				continue
			}
			switch p.Qos {
			case 1:
				ack := packets.NewControlPacket(packets.Puback).(*packets.PubackPacket)
				ack.MessageID = p.MessageID
				reply = ack
			case 2:
				rec := packets.NewControlPacket(packets.Pubrec).(*packets.PubrecPacket)
				rec.MessageID = p.MessageID
				reply = rec
			}

		case *packets.PubrelPacket:
			comp := packets.NewControlPacket(packets.Pubcomp).(*packets.PubcompPacket)
			comp.MessageID = p.MessageID
			reply = comp

		case *packets.PingreqPacket:
			reply = packets.NewControlPacket(packets.Pingresp)

		case *packets.DisconnectPacket:
			s.mu.Lock()
			s.disconnects++
			s.mu.Unlock()
			return
		}

		if reply != nil {
			if err := reply.Write(conn); err != nil {
				return
			}
		}
	}
}
