package simulator

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Emitter delivers one command to the simulator.
type Emitter interface {
	Send(ctx context.Context, control string, action uint8) error
}

// Command is one emitted control change.
type Command struct {
	Control   string    `json:"control"`
	Action    uint8     `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Datagram returns the wire form of the command.
func (c Command) Datagram() string {
	return string(FormatCommand(c.Control, c.Action))
}

// FormatCommand renders "<control>,<action>\n".
func FormatCommand(control string, action uint8) []byte {
	buf := make([]byte, 0, len(control)+4)
	buf = append(buf, control...)
	buf = append(buf, ',')
	buf = strconv.AppendUint(buf, uint64(action), 10)
	return append(buf, '\n')
}

// UDPEmitter sends each command as one datagram. The socket is opened and
// closed per send.
type UDPEmitter struct {
	address      string
	localAddress string
	timeout      time.Duration
}

func NewUDPEmitter(address, localAddress string, timeout time.Duration) *UDPEmitter {
	return &UDPEmitter{
		address:      address,
		localAddress: localAddress,
		timeout:      timeout,
	}
}

func (e *UDPEmitter) Send(ctx context.Context, control string, action uint8) error {
	dialer := net.Dialer{Timeout: e.timeout}

	if e.localAddress != "" {
		local, err := net.ResolveUDPAddr("udp", e.localAddress)
		if err != nil {
			return fmt.Errorf("resolve local address %s: %w", e.localAddress, err)
		}
		dialer.LocalAddr = local
	}

	conn, err := dialer.DialContext(ctx, "udp", e.address)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", e.address, err)
	}
	defer conn.Close()

	if e.timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(e.timeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	if _, err := conn.Write(FormatCommand(control, action)); err != nil {
		return fmt.Errorf("send to %s: %w", e.address, err)
	}

	return nil
}
