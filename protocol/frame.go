package protocol

import (
	"bytes"
	"errors"
)

var (
	ErrFrameTooLarge = errors.New("frame payload too large")
	ErrBadFrame      = errors.New("malformed frame")
)

// BeginFrame reserves the frame header in output and returns its position
// for FinishFrame. The payload is written with the usual Output calls.
func BeginFrame(output OutputBuffer) int {
	start := output.CurPosition()
	output.Output([]byte{0, 0})
	return start
}

// FinishFrame fills in the header of the frame started at start and appends
// the CRC and sync trailer
func FinishFrame(output OutputBuffer, start int, seq uint8) error {
	msgLen := output.CurPosition() - start + MessageTrailerSize
	if msgLen > MessageLengthMax {
		return ErrFrameTooLarge
	}
	output.Update(start+MessagePositionLen, uint8(msgLen))
	output.Update(start+MessagePositionSeq, seq)

	crc := CRC16(output.DataSince(start))
	output.Output([]byte{byte(crc >> 8), byte(crc), MessageValueSync})
	return nil
}

// EncodeFrame writes a complete frame carrying payload
func EncodeFrame(output OutputBuffer, seq uint8, payload []byte) error {
	if len(payload) > MessagePayloadMax {
		return ErrFrameTooLarge
	}
	start := BeginFrame(output)
	output.Output(payload)
	return FinishFrame(output, start, seq)
}

// FrameDecoder pulls frames out of a byte stream. Garbage, bad lengths and
// CRC failures drop the decoder out of sync until the next sync byte.
type FrameDecoder struct {
	buf      [2 * MessageLengthMax]byte
	n        int
	consumed int
	unsynced bool

	// Errors counts frames discarded since creation
	Errors uint32
}

// Feed appends raw bytes and returns how many were accepted.
// Call Next until it reports no frame before feeding more.
func (d *FrameDecoder) Feed(p []byte) int {
	d.compact()
	n := copy(d.buf[d.n:], p)
	d.n += n
	return n
}

// Next returns the next complete frame. The payload aliases the decoder's
// buffer and stays valid until the following Feed or Next call.
func (d *FrameDecoder) Next() (seq uint8, payload []byte, ok bool) {
	d.compact()
	for d.n > 0 {
		data := d.buf[:d.n]

		if d.unsynced {
			i := bytes.IndexByte(data, MessageValueSync)
			if i < 0 {
				d.n = 0
				return 0, nil, false
			}
			d.drop(i + 1)
			d.unsynced = false
			continue
		}

		// Skip leading sync bytes
		if data[0] == MessageValueSync {
			d.drop(1)
			continue
		}
		if len(data) < MessageLengthMin {
			return 0, nil, false
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin {
			d.resync()
			continue
		}
		if len(data) < msgLen {
			// Wait for full message
			return 0, nil, false
		}
		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.resync()
			continue
		}
		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.resync()
			continue
		}

		d.consumed = msgLen
		return data[MessagePositionSeq], data[MessageHeaderSize : msgLen-MessageTrailerSize], true
	}
	return 0, nil, false
}

// Reset discards buffered bytes
func (d *FrameDecoder) Reset() {
	d.n = 0
	d.consumed = 0
	d.unsynced = false
}

func (d *FrameDecoder) resync() {
	d.Errors++
	d.unsynced = true
	d.drop(1)
}

func (d *FrameDecoder) drop(n int) {
	copy(d.buf[:], d.buf[n:d.n])
	d.n -= n
}

func (d *FrameDecoder) compact() {
	if d.consumed > 0 {
		d.drop(d.consumed)
		d.consumed = 0
	}
}
