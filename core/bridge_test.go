package core

import (
	"bytes"
	"testing"

	"gobus/protocol"
)

func bridgeRequest(t *testing.T, seq uint8, cmd uint16, args ...interface{}) []byte {
	t.Helper()
	payload := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(payload, uint32(cmd))
	for _, a := range args {
		switch v := a.(type) {
		case int:
			protocol.EncodeVLQUint(payload, uint32(v))
		case []byte:
			protocol.EncodeVLQBytes(payload, v)
		default:
			t.Fatalf("unsupported arg %T", a)
		}
	}
	frame := protocol.NewScratchOutput()
	if err := protocol.EncodeFrame(frame, seq, payload.Result()); err != nil {
		t.Fatal(err)
	}
	return append([]byte(nil), frame.Result()...)
}

func decodeResponses(t *testing.T, stream []byte) [][]byte {
	t.Helper()
	var d protocol.FrameDecoder
	var out [][]byte
	d.Feed(stream)
	for {
		_, payload, ok := d.Next()
		if !ok {
			break
		}
		out = append(out, append([]byte(nil), payload...))
	}
	return out
}

func decodeTransferResponse(t *testing.T, payload []byte) (uint32, []byte) {
	t.Helper()
	id, err := protocol.DecodeVLQUint(&payload)
	if err != nil || id != uint32(protocol.MsgTransferResponse) {
		t.Fatalf("Not a transfer response: id=%d err=%v", id, err)
	}
	status, _ := protocol.DecodeVLQUint(&payload)
	data, err := protocol.DecodeVLQBytes(&payload)
	if err != nil {
		t.Fatal(err)
	}
	return status, data
}

func newTestBridge(t *testing.T) (*Bridge, *SharedSPI, *[]string) {
	var log []string
	SetGPIODriver(newMockGPIO(&log))
	s := NewSharedSPI(&fakeSPI{log: &log})
	dev, err := s.Device(9, false)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBridge(s)
	if err := b.AddChipSelect(0, dev); err != nil {
		t.Fatal(err)
	}
	log = nil
	return b, s, &log
}

func TestBridgeDictionaryMatchesProtocol(t *testing.T) {
	resetCore(t)
	b, _, _ := newTestBridge(t)

	ids := map[string]uint16{
		"bus_transfer_response": protocol.MsgTransferResponse,
		"bus_status_response":   protocol.MsgStatusResponse,
		"bus_transfer":          protocol.MsgTransfer,
		"bus_send":              protocol.MsgSend,
		"bus_status":            protocol.MsgStatus,
	}
	for name, id := range ids {
		cmd, ok := b.registry.GetCommandByName(name)
		if !ok || cmd.ID != id {
			t.Errorf("%s registered as %v, expected id %d", name, cmd, id)
		}
	}
	if b.Dictionary() == "" {
		t.Error("Empty dictionary")
	}
}

func TestBridgeTransfer(t *testing.T) {
	resetCore(t)
	b, _, log := newTestBridge(t)

	out := protocol.NewScratchOutput()
	b.Receive(bridgeRequest(t, protocol.MessageDest|2, protocol.MsgTransfer, 0, []byte{0x9F, 0x00}), out)

	var d protocol.FrameDecoder
	d.Feed(out.Result())
	seq, payload, ok := d.Next()
	if !ok {
		t.Fatal("No response frame")
	}
	if seq != 2 {
		t.Errorf("Response seq %d, expected 2", seq)
	}
	status, data := decodeTransferResponse(t, payload)
	if status != protocol.StatusOK || !bytes.Equal(data, []byte{0x60, 0xFF}) {
		t.Errorf("status=%d data=%x", status, data)
	}
	equalLog(t, *log, []string{"cs9=0", "tx 9f00", "cs9=1"})
}

func TestBridgeStatusCodes(t *testing.T) {
	resetCore(t)
	b, s, log := newTestBridge(t)

	out := protocol.NewScratchOutput()
	b.Receive(bridgeRequest(t, 0, protocol.MsgTransfer, 5, []byte{1}), out)
	b.Receive(bridgeRequest(t, 1, protocol.MsgSend, 0, []byte{1, 2}), out)

	// Bus held locally: the bridge reports busy instead of waiting
	held, _ := s.TryBorrow()
	b.Receive(bridgeRequest(t, 2, protocol.MsgTransfer, 0, []byte{1}), out)
	held.Release()

	responses := decodeResponses(t, out.Result())
	if len(responses) != 3 {
		t.Fatalf("Expected 3 responses, got %d", len(responses))
	}
	want := []uint32{protocol.StatusBadChipSelect, protocol.StatusOK, protocol.StatusBusy}
	for i, payload := range responses {
		status, _ := decodeTransferResponse(t, payload)
		if status != want[i] {
			t.Errorf("Response %d: status %d, expected %d", i, status, want[i])
		}
	}
	equalLog(t, *log, []string{"cs9=0", "tx 0102", "cs9=1"})
}

func TestBridgeBusError(t *testing.T) {
	resetCore(t)
	SetGPIODriver(newMockGPIO(nil))
	bus := &fakeSPI{err: ErrNoChipSelect}
	s := NewSharedSPI(bus)
	b := NewBridge(s)
	b.AddChipSelect(1, s.DeviceWithoutCS())

	out := protocol.NewScratchOutput()
	b.Receive(bridgeRequest(t, 0, protocol.MsgTransfer, 1, []byte{1}), out)
	responses := decodeResponses(t, out.Result())
	if len(responses) != 1 {
		t.Fatalf("Expected 1 response, got %d", len(responses))
	}
	if status, _ := decodeTransferResponse(t, responses[0]); status != protocol.StatusBusError {
		t.Errorf("Expected bus error status, got %d", status)
	}
}

func TestBridgeStatus(t *testing.T) {
	resetCore(t)
	b, s, _ := newTestBridge(t)

	held, _ := s.TryBorrow()
	s.TryBorrow()

	out := protocol.NewScratchOutput()
	b.Receive(bridgeRequest(t, 0, protocol.MsgStatus), out)
	held.Release()

	responses := decodeResponses(t, out.Result())
	if len(responses) != 1 {
		t.Fatalf("Expected 1 response, got %d", len(responses))
	}
	payload := responses[0]
	var vals [5]uint32
	for i := range vals {
		v, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			t.Fatal(err)
		}
		vals[i] = v
	}
	want := [5]uint32{uint32(protocol.MsgStatusResponse), 1, 1, 0, 1}
	if vals != want {
		t.Errorf("Status response %v, expected %v", vals, want)
	}
}

func TestBridgeRejectsBadInput(t *testing.T) {
	resetCore(t)
	b, _, _ := newTestBridge(t)

	if err := b.AddChipSelect(MaxChipSelects, nil); err != ErrInvalidChipSelect {
		t.Errorf("Expected ErrInvalidChipSelect, got %v", err)
	}

	out := protocol.NewScratchOutput()
	// Unknown command, a response id, and a truncated argument list
	b.Receive(bridgeRequest(t, 0, 42), out)
	b.Receive(bridgeRequest(t, 0, protocol.MsgStatusResponse), out)
	b.Receive(bridgeRequest(t, 0, protocol.MsgTransfer, 0), out)

	if out.CurPosition() != 0 {
		t.Errorf("Bad requests produced output: %x", out.Result())
	}
	if b.Errors != 3 {
		t.Errorf("Expected 3 errors, got %d", b.Errors)
	}

	// Corrupted frame is dropped by the decoder
	frame := bridgeRequest(t, 0, protocol.MsgStatus)
	frame[1] ^= 0x01
	b.Receive(frame, out)
	if b.FrameErrors() == 0 {
		t.Error("Corrupt frame not counted")
	}
}
