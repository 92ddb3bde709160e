package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sony/gobreaker"
	"tinygo.org/x/drivers"

	"gobus/core"
	"gobus/protocol"
)

// Status errors reported by the firmware. They mean the link works, so
// they never trip the breaker.
var (
	ErrRemoteBusy       = errors.New("remote bus busy")
	ErrRemoteBus        = errors.New("remote bus error")
	ErrBadChipSelect    = errors.New("no device at chip select")
	ErrTimeout          = errors.New("bridge response timeout")
	ErrTransferTooLarge = errors.New("transfer exceeds one frame")
)

// MaxTransfer is the largest Tx that fits one request frame
// (id, cs and a two-byte length ahead of the data)
const MaxTransfer = protocol.MessagePayloadMax - 4

// ClientConfig tunes the bridge client
type ClientConfig struct {
	// Timeout bounds one request/response exchange
	Timeout time.Duration

	// MaxFailures is the number of consecutive link failures that opens
	// the breaker
	MaxFailures uint32

	// OpenTimeout is how long the breaker stays open before probing again
	OpenTimeout time.Duration
}

// DefaultClientConfig returns settings suited to USB CDC links
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:     500 * time.Millisecond,
		MaxFailures: 3,
		OpenTimeout: 2 * time.Second,
	}
}

// RemoteStatus is the firmware's view of its shared bus
type RemoteStatus struct {
	Locked    bool
	Borrows   uint32
	Releases  uint32
	Contended uint32
}

// BridgeClient issues bus requests to the firmware bridge. One request is
// in flight at a time; a caller that overlaps another gets
// core.ErrAlreadyBorrowed, the same answer a busy local bus gives.
type BridgeClient struct {
	port     Port
	timeout  time.Duration
	inflight core.HardwareFlag
	breaker  *gobreaker.CircuitBreaker

	seq     uint8
	decoder protocol.FrameDecoder
	out     protocol.ScratchOutput
	rbuf    [128]byte
}

// NewBridgeClient wraps an open port
func NewBridgeClient(port Port, cfg ClientConfig) *BridgeClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultClientConfig().Timeout
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = DefaultClientConfig().MaxFailures
	}

	c := &BridgeClient{
		port:    port,
		timeout: cfg.Timeout,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "bus-bridge",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isRemoteStatus(err)
		},
	})
	return c
}

// Dial opens the serial device and returns a client for it
func Dial(cfg *Config, clientCfg ClientConfig) (*BridgeClient, error) {
	port, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return NewBridgeClient(port, clientCfg), nil
}

// Close closes the underlying port
func (c *BridgeClient) Close() error {
	return c.port.Close()
}

// BreakerState reports the link breaker state
func (c *BridgeClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Transfer clocks w out on chip select cs and returns what came back
func (c *BridgeClient) Transfer(cs uint8, w []byte) ([]byte, error) {
	resp, err := c.request(protocol.MsgTransfer, cs, w)
	if err != nil {
		return nil, err
	}
	return decodeTransferResponse(resp)
}

// Send clocks w out on chip select cs and discards the received bytes
func (c *BridgeClient) Send(cs uint8, w []byte) error {
	resp, err := c.request(protocol.MsgSend, cs, w)
	if err != nil {
		return err
	}
	_, err = decodeTransferResponse(resp)
	return err
}

// Status queries the remote bus counters
func (c *BridgeClient) Status() (RemoteStatus, error) {
	var st RemoteStatus

	payload := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(payload, uint32(protocol.MsgStatus))
	resp, err := c.roundTrip(payload.Result())
	if err != nil {
		return st, err
	}

	var vals [5]uint32
	for i := range vals {
		if vals[i], err = protocol.DecodeVLQUint(&resp); err != nil {
			return st, fmt.Errorf("status response: %w", err)
		}
	}
	if vals[0] != uint32(protocol.MsgStatusResponse) {
		return st, fmt.Errorf("unexpected response id %d", vals[0])
	}
	st.Locked = vals[1] != 0
	st.Borrows, st.Releases, st.Contended = vals[2], vals[3], vals[4]
	return st, nil
}

func (c *BridgeClient) request(msg uint16, cs uint8, w []byte) ([]byte, error) {
	if len(w) > MaxTransfer {
		return nil, ErrTransferTooLarge
	}
	payload := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(payload, uint32(msg))
	protocol.EncodeVLQUint(payload, uint32(cs))
	protocol.EncodeVLQBytes(payload, w)
	return c.roundTrip(payload.Result())
}

// roundTrip sends one request frame and waits for the response carrying
// the same sequence number
func (c *BridgeClient) roundTrip(payload []byte) ([]byte, error) {
	if c.inflight.TestAndSet() {
		return nil, core.ErrAlreadyBorrowed
	}
	defer c.inflight.Clear()

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.exchange(payload)
	})
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

func (c *BridgeClient) exchange(payload []byte) ([]byte, error) {
	seq := c.seq & protocol.MessageSeqMask
	c.seq++

	c.out.Reset()
	if err := protocol.EncodeFrame(&c.out, protocol.MessageDest|seq, payload); err != nil {
		return nil, err
	}
	if _, err := c.port.Write(c.out.Result()); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	deadline := time.Now().Add(c.timeout)
	for {
		for {
			rseq, resp, ok := c.decoder.Next()
			if !ok {
				break
			}
			if rseq&protocol.MessageSeqMask == seq {
				return append([]byte(nil), resp...), nil
			}
			// Stale response from an earlier timed-out request
		}

		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
		n, err := c.port.Read(c.rbuf[:])
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read response: %w", err)
		}
		// After Next drains, at most one partial frame is buffered, so a
		// full read always fits
		c.decoder.Feed(c.rbuf[:n])
	}
}

func decodeTransferResponse(resp []byte) ([]byte, error) {
	id, err := protocol.DecodeVLQUint(&resp)
	if err != nil {
		return nil, fmt.Errorf("transfer response: %w", err)
	}
	if id != uint32(protocol.MsgTransferResponse) {
		return nil, fmt.Errorf("unexpected response id %d", id)
	}
	status, err := protocol.DecodeVLQUint(&resp)
	if err != nil {
		return nil, fmt.Errorf("transfer response: %w", err)
	}
	data, err := protocol.DecodeVLQBytes(&resp)
	if err != nil {
		return nil, fmt.Errorf("transfer response: %w", err)
	}

	switch status {
	case protocol.StatusOK:
		return data, nil
	case protocol.StatusBusy:
		return nil, ErrRemoteBusy
	case protocol.StatusBadChipSelect:
		return nil, ErrBadChipSelect
	default:
		return nil, ErrRemoteBus
	}
}

func isRemoteStatus(err error) bool {
	return errors.Is(err, ErrRemoteBusy) ||
		errors.Is(err, ErrRemoteBus) ||
		errors.Is(err, ErrBadChipSelect)
}

// SPI returns a drivers.SPI for one remote chip select. Each Tx is one
// bridge request, so chip select frames exactly one Tx.
func (c *BridgeClient) SPI(cs uint8) *BridgeSPI {
	return &BridgeSPI{client: c, cs: cs}
}

// BridgeSPI is a remote chip select seen as a local SPI bus
type BridgeSPI struct {
	client *BridgeClient
	cs     uint8
}

var _ drivers.SPI = (*BridgeSPI)(nil)

// Tx implements drivers.SPI. Zeros are clocked out past the end of w and
// bytes read past the end of r are dropped.
func (b *BridgeSPI) Tx(w, r []byte) error {
	if len(r) == 0 {
		return b.client.Send(b.cs, w)
	}
	if len(w) < len(r) {
		padded := make([]byte, len(r))
		copy(padded, w)
		w = padded
	}
	rx, err := b.client.Transfer(b.cs, w)
	if err != nil {
		return err
	}
	copy(r, rx)
	return nil
}

// Transfer implements drivers.SPI
func (b *BridgeSPI) Transfer(c byte) (byte, error) {
	var r [1]byte
	if err := b.Tx([]byte{c}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}
