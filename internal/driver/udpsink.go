package driver

import (
	"net"

	"go.uber.org/zap"
)

// UDPSink is the consumed transport collaborator: fire-and-forget delivery
// of one already-encrypted RTP packet. Implementations must not block the
// caller on backpressure — a dropped packet is acceptable, a stalled mixer
// tick is not.
type UDPSink interface {
	Send(packet []byte) error
	Close() error
}

// udpConnSink is the default UDPSink, writing to a connected net.UDPConn
// via a small buffered relay so a transient kernel send-buffer stall never
// stalls the mixer goroutine itself.
type udpConnSink struct {
	conn   *net.UDPConn
	outbox chan []byte
	done   chan struct{}
	log    *zap.Logger
}

// NewUDPConnSink uses the already-connected conn as the fixed destination
// for all future sends and starts the relay goroutine with the given outbox
// capacity.
func NewUDPConnSink(conn *net.UDPConn, outboxCapacity int, log *zap.Logger) UDPSink {
	s := &udpConnSink{
		conn:   conn,
		outbox: make(chan []byte, outboxCapacity),
		done:   make(chan struct{}),
		log:    log,
	}
	go s.relay()

	return s
}

func (s *udpConnSink) relay() {
	defer close(s.done)
	for packet := range s.outbox {
		if _, err := s.conn.Write(packet); err != nil {
			s.log.Debug("udp send failed", zap.Error(err))
		}
	}
}

// Send enqueues packet for delivery, dropping it if the outbox is full
// rather than blocking the mixer tick.
func (s *udpConnSink) Send(packet []byte) error {
	cp := make([]byte, len(packet))
	copy(cp, packet)
	select {
	case s.outbox <- cp:
		return nil
	default:
		return NewTransportError(errOutboxFull)
	}
}

func (s *udpConnSink) Close() error {
	close(s.outbox)
	<-s.done

	return s.conn.Close()
}

var errOutboxFull = &outboxFullError{}

type outboxFullError struct{}

func (*outboxFullError) Error() string { return "driver: udp outbox full, packet dropped" }
