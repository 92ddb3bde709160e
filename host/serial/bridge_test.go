package serial

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"gobus/core"
	"gobus/protocol"
)

// loopbackSPI answers every byte with its complement
type loopbackSPI struct {
	txs int
}

func (l *loopbackSPI) Tx(w, r []byte) error {
	l.txs++
	for i := range r {
		if i < len(w) {
			r[i] = ^w[i]
		}
	}
	return nil
}

func (l *loopbackSPI) Transfer(b byte) (byte, error) {
	return ^b, nil
}

// bridgePort serves requests through a firmware-side bridge in memory
type bridgePort struct {
	bridge  *core.Bridge
	out     protocol.ScratchOutput
	pending []byte
	writes  int
	drop    bool

	entered chan struct{}
	block   chan struct{}
}

func (p *bridgePort) Write(b []byte) (int, error) {
	if p.entered != nil {
		p.entered <- struct{}{}
		<-p.block
	}
	p.writes++
	if p.drop {
		return len(b), nil
	}
	p.out.Reset()
	p.bridge.Receive(b, &p.out)
	p.pending = append(p.pending, p.out.Result()...)
	return len(b), nil
}

func (p *bridgePort) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		return 0, io.EOF
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *bridgePort) Flush() error { return nil }
func (p *bridgePort) Close() error { return nil }

func newBridgePort(t *testing.T) (*bridgePort, *core.SharedSPI) {
	t.Helper()
	remote := core.NewSharedSPI(&loopbackSPI{})
	b := core.NewBridge(remote)
	if err := b.AddChipSelect(0, remote.DeviceWithoutCS()); err != nil {
		t.Fatal(err)
	}
	return &bridgePort{bridge: b}, remote
}

func testClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:     20 * time.Millisecond,
		MaxFailures: 2,
		OpenTimeout: time.Minute,
	}
}

func TestBridgeClientTransfer(t *testing.T) {
	port, _ := newBridgePort(t)
	c := NewBridgeClient(port, testClientConfig())

	rx, err := c.Transfer(0, []byte{0x9F, 0x00, 0x00})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rx, []byte{0x60, 0xFF, 0xFF}) {
		t.Errorf("Unexpected rx %x", rx)
	}
	if err := c.Send(0, []byte{0x06}); err != nil {
		t.Fatal(err)
	}

	st, err := c.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.Locked || st.Borrows != 2 || st.Releases != 2 || st.Contended != 0 {
		t.Errorf("Unexpected status %+v", st)
	}
}

func TestBridgeClientRemoteErrors(t *testing.T) {
	port, remote := newBridgePort(t)
	c := NewBridgeClient(port, testClientConfig())

	if _, err := c.Transfer(5, []byte{1}); err != ErrBadChipSelect {
		t.Errorf("Expected ErrBadChipSelect, got %v", err)
	}

	held, err := remote.TryBorrow()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := c.Transfer(0, []byte{1}); err != ErrRemoteBusy {
			t.Errorf("Expected ErrRemoteBusy, got %v", err)
		}
	}
	held.Release()

	// Remote status errors do not trip the breaker
	if c.BreakerState() != gobreaker.StateClosed {
		t.Errorf("Breaker %v after remote status errors", c.BreakerState())
	}
	if _, err := c.Transfer(0, []byte{1}); err != nil {
		t.Errorf("Transfer after release failed: %v", err)
	}

	if _, err := c.Transfer(0, make([]byte, MaxTransfer+1)); err != ErrTransferTooLarge {
		t.Errorf("Expected ErrTransferTooLarge, got %v", err)
	}
	if _, err := c.Transfer(0, make([]byte, MaxTransfer)); err != nil {
		t.Errorf("Max size transfer failed: %v", err)
	}
}

func TestBridgeClientBreaker(t *testing.T) {
	port, _ := newBridgePort(t)
	port.drop = true
	c := NewBridgeClient(port, testClientConfig())

	for i := 0; i < 2; i++ {
		if _, err := c.Status(); err != ErrTimeout {
			t.Fatalf("Attempt %d: expected ErrTimeout, got %v", i, err)
		}
	}
	if c.BreakerState() != gobreaker.StateOpen {
		t.Fatalf("Breaker %v after repeated timeouts", c.BreakerState())
	}

	_, err := c.Status()
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Expected ErrOpenState, got %v", err)
	}
	if port.writes != 2 {
		t.Errorf("Open breaker still wrote to the port (%d writes)", port.writes)
	}
}

func TestBridgeClientSkipsStaleResponses(t *testing.T) {
	port, _ := newBridgePort(t)
	c := NewBridgeClient(port, testClientConfig())

	// Response to a request that already timed out
	stale := protocol.NewScratchOutput()
	payload := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(payload, uint32(protocol.MsgTransferResponse))
	protocol.EncodeVLQUint(payload, protocol.StatusBusy)
	protocol.EncodeVLQBytes(payload, nil)
	protocol.EncodeFrame(stale, 0x0F, payload.Result())
	port.pending = append(port.pending, stale.Result()...)

	if err := c.Send(0, []byte{1}); err != nil {
		t.Errorf("Stale busy response was taken for the current one: %v", err)
	}
}

func TestBridgeClientSingleFlight(t *testing.T) {
	port, _ := newBridgePort(t)
	port.entered = make(chan struct{})
	port.block = make(chan struct{})
	c := NewBridgeClient(port, testClientConfig())

	done := make(chan error)
	go func() {
		_, err := c.Status()
		done <- err
	}()

	<-port.entered
	if _, err := c.Status(); err != core.ErrAlreadyBorrowed {
		t.Errorf("Overlapping request: expected ErrAlreadyBorrowed, got %v", err)
	}
	close(port.block)

	if err := <-done; err != nil {
		t.Errorf("First request failed: %v", err)
	}
}

func TestBridgeSPIWithSharedBus(t *testing.T) {
	port, _ := newBridgePort(t)
	c := NewBridgeClient(port, testClientConfig())

	// The remote chip select is an ordinary bus on the host side
	local := core.NewSharedSPI(c.SPI(0))
	err := local.WithBorrow(func(b *core.SPIBorrow) error {
		if err := b.Write([]byte{0x06}); err != nil {
			return err
		}
		r := make([]byte, 2)
		if err := b.Tx([]byte{0x0F, 0xF0}, r); err != nil {
			return err
		}
		if r[0] != 0xF0 || r[1] != 0x0F {
			t.Errorf("Tx got %x", r)
		}
		if err := b.Read(r); err != nil {
			return err
		}
		if r[0] != 0xFF {
			t.Errorf("Read got %x", r)
		}
		got, err := b.Transfer(0xAA)
		if err != nil {
			return err
		}
		if got != 0x55 {
			t.Errorf("Transfer got 0x%02X", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

}

func TestBridgeSPIUnequalLengths(t *testing.T) {
	port, _ := newBridgePort(t)
	c := NewBridgeClient(port, testClientConfig())

	testCases := []struct {
		name string
		w    []byte
		rLen int
		want []byte
	}{
		{"long write", []byte{0x01, 0x02}, 1, []byte{0xFE}},
		{"long read", []byte{0x01}, 3, []byte{0xFE, 0xFF, 0xFF}},
		{"read only", nil, 2, []byte{0xFF, 0xFF}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := make([]byte, tc.rLen)
			if err := c.SPI(0).Tx(tc.w, r); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(r, tc.want) {
				t.Errorf("Read %x, want %x", r, tc.want)
			}
		})
	}
}
