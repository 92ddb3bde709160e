package protocol

// OutputBuffer provides an abstraction for writing outgoing protocol data
type OutputBuffer interface {
	// Output writes data to the buffer
	Output(data []byte)

	// CurPosition returns the current write position
	CurPosition() int

	// Update modifies a byte at a specific position
	Update(pos int, val byte)

	// DataSince returns data from a specific position to current
	DataSince(pos int) []byte
}

// ScratchOutput implements OutputBuffer using a fixed-size scratch buffer.
// Output past the end is dropped; Overflowed reports it.
type ScratchOutput struct {
	buf      [MessageMax]byte
	pos      int
	overflow bool
}

// NewScratchOutput creates a new ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
	if n < len(data) {
		s.overflow = true
	}
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos < len(s.buf) {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns the accumulated output data
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Overflowed reports whether any Output was truncated since the last Reset
func (s *ScratchOutput) Overflowed() bool {
	return s.overflow
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
	s.overflow = false
}

// FifoBuffer is a byte ring between a transport reader and the frame
// decoder. All capacity is usable.
type FifoBuffer struct {
	buf   []byte
	head  int // next byte to read
	count int
}

// NewFifoBuffer creates a new FifoBuffer with the specified capacity
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the byte count
func (f *FifoBuffer) Write(data []byte) int {
	n := min(len(data), f.Free())
	tail := (f.head + f.count) % len(f.buf)
	c := copy(f.buf[tail:], data[:n])
	copy(f.buf, data[c:n])
	f.count += n
	return n
}

// Read moves up to len(data) bytes out of the buffer
func (f *FifoBuffer) Read(data []byte) int {
	n := min(len(data), f.count)
	end := min(f.head+n, len(f.buf))
	c := copy(data, f.buf[f.head:end])
	copy(data[c:n], f.buf)
	f.head = (f.head + n) % len(f.buf)
	f.count -= n
	return n
}

// Available returns the number of bytes available for reading
func (f *FifoBuffer) Available() int {
	return f.count
}

// Free returns the number of bytes available for writing
func (f *FifoBuffer) Free() int {
	return len(f.buf) - f.count
}

// IsEmpty returns true if the buffer is empty
func (f *FifoBuffer) IsEmpty() bool {
	return f.count == 0
}

// Reset clears the buffer
func (f *FifoBuffer) Reset() {
	f.head = 0
	f.count = 0
}
