// Package protocol implements the framed wire format used to reach a shared
// bus from the host through the firmware's bus bridge.
package protocol

// Frame layout: [len][seq][payload ...][crc hi][crc lo][sync]
// len counts the whole frame; the CRC covers len, seq and payload.
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 255
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E

	MessageMax = 512 // Scratch buffer size

	// Message sequence masks
	MessageSeqMask = 0x0F
	MessageDest    = 0x10 // host → firmware frames carry this in seq
)

// Bridge message ids. The firmware registers its commands in this order so
// both sides agree without exchanging a dictionary.
const (
	MsgTransferResponse uint16 = iota // status=%c data=%*s
	MsgStatusResponse                 // locked=%c borrows=%u releases=%u contended=%u
	MsgTransfer                       // cs=%c data=%*s
	MsgSend                           // cs=%c data=%*s
	MsgStatus                         // (no args)
)

// Transfer status codes carried in MsgTransferResponse
const (
	StatusOK            = 0
	StatusBusy          = 1 // bus borrowed by another user, retry
	StatusBusError      = 2 // the bus reported an error
	StatusBadChipSelect = 3 // no device at that chip select index
)
