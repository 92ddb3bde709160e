package core

import (
	"errors"

	"gobus/protocol"
)

// MaxChipSelects is the size of the bridge's chip-select table
const MaxChipSelects = 8

// ErrInvalidChipSelect is returned for a chip-select index outside the table
var ErrInvalidChipSelect = errors.New("invalid chip select index")

// Bridge serves bus transfers requested over the framed protocol. It is one
// more user of the SharedSPI: a transfer arriving while the bus is borrowed
// is answered with StatusBusy instead of waiting.
type Bridge struct {
	bus      *SharedSPI
	registry *CommandRegistry
	devices  [MaxChipSelects]*SPIDevice
	decoder  protocol.FrameDecoder
	reply    protocol.ScratchOutput
	rx       [protocol.MessagePayloadMax]byte

	// Errors counts frames that decoded but could not be handled
	Errors uint32
}

// NewBridge creates a bridge over bus. Message ids follow registration
// order and match the protocol.Msg* constants.
func NewBridge(bus *SharedSPI) *Bridge {
	b := &Bridge{
		bus:      bus,
		registry: NewCommandRegistry(),
	}

	b.registry.RegisterResponse("bus_transfer_response", "status=%c data=%*s")
	b.registry.RegisterResponse("bus_status_response",
		"locked=%c borrows=%u releases=%u contended=%u")
	b.registry.Register("bus_transfer", "cs=%c data=%*s", b.handleTransfer)
	b.registry.Register("bus_send", "cs=%c data=%*s", b.handleSend)
	b.registry.Register("bus_status", "", b.handleStatus)

	return b
}

// AddChipSelect makes dev reachable from the host as index
func (b *Bridge) AddChipSelect(index uint8, dev *SPIDevice) error {
	if int(index) >= len(b.devices) {
		return ErrInvalidChipSelect
	}
	b.devices[index] = dev
	return nil
}

// Dictionary returns the message dictionary, one "id name format" per line
func (b *Bridge) Dictionary() string {
	return b.registry.GetDictionary()
}

// Receive feeds raw bytes from the transport and writes a response frame to
// out for every complete request
func (b *Bridge) Receive(data []byte, out protocol.OutputBuffer) {
	for len(data) > 0 {
		n := b.decoder.Feed(data)
		data = data[n:]
		for {
			seq, payload, ok := b.decoder.Next()
			if !ok {
				break
			}
			if err := b.HandleFrame(seq, payload, out); err != nil {
				b.Errors++
				DebugPrintln("[BRIDGE] " + err.Error())
			}
		}
	}
}

// FrameErrors returns how many corrupt frames the decoder dropped
func (b *Bridge) FrameErrors() uint32 {
	return b.decoder.Errors
}

// HandleFrame runs the request in payload and writes the response frame to
// out. The response echoes the request sequence number.
func (b *Bridge) HandleFrame(seq uint8, payload []byte, out protocol.OutputBuffer) error {
	args := payload
	cmdID, err := protocol.DecodeVLQUint(&args)
	if err != nil {
		return err
	}

	b.reply.Reset()
	if err := b.registry.Dispatch(uint16(cmdID), &args, &b.reply); err != nil {
		return err
	}
	return protocol.EncodeFrame(out, seq&protocol.MessageSeqMask, b.reply.Result())
}

func (b *Bridge) decodeRequest(args *[]byte) (*SPIDevice, []byte, error) {
	cs, err := protocol.DecodeVLQUint(args)
	if err != nil {
		return nil, nil, err
	}
	data, err := protocol.DecodeVLQBytes(args)
	if err != nil {
		return nil, nil, err
	}
	if cs >= MaxChipSelects {
		return nil, data, nil
	}
	return b.devices[cs], data, nil
}

func (b *Bridge) handleTransfer(args *[]byte, reply protocol.OutputBuffer) error {
	dev, data, err := b.decodeRequest(args)
	if err != nil {
		return err
	}
	if dev == nil {
		writeTransferResponse(reply, protocol.StatusBadChipSelect, nil)
		return nil
	}

	rx := b.rx[:len(data)]
	if err := dev.Tx(data, rx); err != nil {
		writeTransferResponse(reply, transferStatus(err), nil)
		return nil
	}
	writeTransferResponse(reply, protocol.StatusOK, rx)
	return nil
}

func (b *Bridge) handleSend(args *[]byte, reply protocol.OutputBuffer) error {
	dev, data, err := b.decodeRequest(args)
	if err != nil {
		return err
	}
	if dev == nil {
		writeTransferResponse(reply, protocol.StatusBadChipSelect, nil)
		return nil
	}

	writeTransferResponse(reply, transferStatus(dev.Tx(data, nil)), nil)
	return nil
}

func (b *Bridge) handleStatus(args *[]byte, reply protocol.OutputBuffer) error {
	stats := b.bus.Stats()
	locked := uint32(0)
	if b.bus.Locked() {
		locked = 1
	}

	protocol.EncodeVLQUint(reply, uint32(protocol.MsgStatusResponse))
	protocol.EncodeVLQUint(reply, locked)
	protocol.EncodeVLQUint(reply, stats.Borrows)
	protocol.EncodeVLQUint(reply, stats.Releases)
	protocol.EncodeVLQUint(reply, stats.Contended)
	return nil
}

func writeTransferResponse(reply protocol.OutputBuffer, status uint32, data []byte) {
	protocol.EncodeVLQUint(reply, uint32(protocol.MsgTransferResponse))
	protocol.EncodeVLQUint(reply, status)
	protocol.EncodeVLQBytes(reply, data)
}

func transferStatus(err error) uint32 {
	switch {
	case err == nil:
		return protocol.StatusOK
	case errors.Is(err, ErrAlreadyBorrowed):
		return protocol.StatusBusy
	default:
		return protocol.StatusBusError
	}
}
