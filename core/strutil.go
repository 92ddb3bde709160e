package core

import "unsafe"

// Number formatting without fmt, which is too heavy for the firmware image.

// appendUint writes n in decimal to the end of dst
func appendUint(dst []byte, n uint64) []byte {
	var buf [20]byte
	i := len(buf)
	for {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(dst, buf[i:]...)
}

func formatUint(n uint64) string {
	var buf [20]byte
	return string(appendUint(buf[:0], n))
}

// itoa converts an integer to a decimal string
func itoa(n int) string {
	if n < 0 {
		return "-" + formatUint(uint64(-int64(n)))
	}
	return formatUint(uint64(n))
}

// utoa converts an unsigned integer to a decimal string
func utoa(n uint32) string {
	return formatUint(uint64(n))
}

// lineBuf builds one report line in fixed storage, for paths that must not
// touch the heap. Text past the end is dropped. The string from String
// aliases the storage and is only valid until the next reset.
type lineBuf struct {
	buf [256]byte
	n   int
}

func (b *lineBuf) reset() *lineBuf {
	b.n = 0
	return b
}

func (b *lineBuf) str(s string) *lineBuf {
	b.n += copy(b.buf[b.n:], s)
	return b
}

func (b *lineBuf) uint(n uint64) *lineBuf {
	var tmp [20]byte
	b.n += copy(b.buf[b.n:], appendUint(tmp[:0], n))
	return b
}

func (b *lineBuf) int(n int) *lineBuf {
	if n < 0 {
		b.str("-")
		return b.uint(uint64(-int64(n)))
	}
	return b.uint(uint64(n))
}

func (b *lineBuf) String() string {
	if b.n == 0 {
		return ""
	}
	return unsafe.String(&b.buf[0], b.n)
}
