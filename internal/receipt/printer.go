package receipt

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Printer delivers rendered receipt bytes.
type Printer interface {
	Print(ctx context.Context, data []byte) error
}

// NetworkPrinter writes raw ESC/POS to a printer listening on a TCP port,
// usually 9100.
type NetworkPrinter struct {
	Addr    string
	Timeout time.Duration
}

func NewNetworkPrinter(addr string, timeout time.Duration) *NetworkPrinter {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &NetworkPrinter{Addr: addr, Timeout: timeout}
}

func (p *NetworkPrinter) Print(ctx context.Context, data []byte) error {
	dialer := net.Dialer{Timeout: p.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return fmt.Errorf("dial printer %s: %w", p.Addr, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(p.Timeout)); err != nil {
		return fmt.Errorf("set printer deadline: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("write to printer %s: %w", p.Addr, err)
	}
	return nil
}
