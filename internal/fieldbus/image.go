// internal/fieldbus/image.go
package fieldbus

import (
	"fmt"
	"strings"
)

// Span is a byte range inside the process image.
type Span struct {
	Offset int
	Len    int
}

// End returns the first offset after the span.
func (s Span) End() int { return s.Offset + s.Len }

// ProcessImage is the I/O map shared by the master and the adapter.
// The same buffer is reused every cycle; offsets assigned by mapping stay
// valid for the life of the session.
type ProcessImage struct {
	buf []byte
}

// NewProcessImage allocates an image of size bytes.
func NewProcessImage(size int) *ProcessImage {
	return &ProcessImage{buf: make([]byte, size)}
}

// Size returns the total image size in bytes.
func (p *ProcessImage) Size() int { return len(p.buf) }

// Raw returns the backing buffer. Only the adapter holds it, to move frame
// data in and out.
func (p *ProcessImage) Raw() []byte { return p.buf }

// Region returns a read-only view over span.
func (p *ProcessImage) Region(s Span) (Region, error) {
	if s.Offset < 0 || s.Len < 0 || s.End() > len(p.buf) {
		return Region{}, fmt.Errorf("%w: span %d+%d, image %d bytes", ErrOutOfRange, s.Offset, s.Len, len(p.buf))
	}
	return Region{data: p.buf[s.Offset:s.End():s.End()], base: s.Offset}, nil
}

// Outputs returns a writable view over span.
func (p *ProcessImage) Outputs(s Span) (Outputs, error) {
	r, err := p.Region(s)
	if err != nil {
		return Outputs{}, err
	}
	return Outputs{Region: r}, nil
}

// Region is a bounds-checked read-only view into the process image.
type Region struct {
	data []byte
	base int
}

// Len returns the region size in bytes.
func (r Region) Len() int { return len(r.data) }

// Offset returns the absolute image offset of the first byte.
func (r Region) Offset() int { return r.base }

// Byte returns the byte at off, relative to the region start.
func (r Region) Byte(off int) (byte, error) {
	if off < 0 || off >= len(r.data) {
		return 0, fmt.Errorf("%w: byte %d, region %d bytes", ErrOutOfRange, off, len(r.data))
	}
	return r.data[off], nil
}

// Bit returns bit (0..7) of the byte at off.
func (r Region) Bit(off int, bit uint8) (bool, error) {
	if bit > 7 {
		return false, fmt.Errorf("%w: bit %d", ErrOutOfRange, bit)
	}
	b, err := r.Byte(off)
	if err != nil {
		return false, err
	}
	return b&(1<<bit) != 0, nil
}

// Slice returns a sub-view of n bytes at off.
func (r Region) Slice(off, n int) (Region, error) {
	if off < 0 || n < 0 || off+n > len(r.data) {
		return Region{}, fmt.Errorf("%w: slice %d+%d, region %d bytes", ErrOutOfRange, off, n, len(r.data))
	}
	return Region{data: r.data[off : off+n : off+n], base: r.base + off}, nil
}

// Copy returns a snapshot of the region contents.
func (r Region) Copy() []byte {
	out := make([]byte, len(r.data))
	copy(out, r.data)
	return out
}

// Hex renders the region as space separated hex bytes.
func (r Region) Hex() string {
	var sb strings.Builder
	sb.Grow(len(r.data) * 3)
	for i, b := range r.data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// Outputs is a writable view over an output region.
type Outputs struct {
	Region
}

// SetByte writes v at off.
func (o Outputs) SetByte(off int, v byte) error {
	if off < 0 || off >= len(o.data) {
		return fmt.Errorf("%w: byte %d, region %d bytes", ErrOutOfRange, off, len(o.data))
	}
	o.data[off] = v
	return nil
}

// SetBit sets or clears bit (0..7) of the byte at off.
func (o Outputs) SetBit(off int, bit uint8, v bool) error {
	if bit > 7 {
		return fmt.Errorf("%w: bit %d", ErrOutOfRange, bit)
	}
	if off < 0 || off >= len(o.data) {
		return fmt.Errorf("%w: byte %d, region %d bytes", ErrOutOfRange, off, len(o.data))
	}
	if v {
		o.data[off] |= 1 << bit
	} else {
		o.data[off] &^= 1 << bit
	}
	return nil
}

// SliceOutputs returns a writable sub-view of n bytes at off.
func (o Outputs) SliceOutputs(off, n int) (Outputs, error) {
	r, err := o.Slice(off, n)
	if err != nil {
		return Outputs{}, err
	}
	return Outputs{Region: r}, nil
}
