// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/golang/snappy"
)

// PixelType identifies the element type of a pixel buffer, using the
// server's names.
type PixelType string

const (
	PixelInt8   PixelType = "int8"
	PixelUint8  PixelType = "uint8"
	PixelInt16  PixelType = "int16"
	PixelUint16 PixelType = "uint16"
	PixelInt32  PixelType = "int32"
	PixelUint32 PixelType = "uint32"
	PixelFloat  PixelType = "float"
	PixelDouble PixelType = "double"
)

// Bytes returns the storage width of one element, or 0 for an unknown
// type.
func (t PixelType) Bytes() int {
	switch t {
	case PixelInt8, PixelUint8:
		return 1
	case PixelInt16, PixelUint16:
		return 2
	case PixelInt32, PixelUint32, PixelFloat:
		return 4
	case PixelDouble:
		return 8
	default:
		return 0
	}
}

// Pixels is a dense 5-D pixel buffer. Storage order is T, Z, Y, X, C
// with C varying fastest; elements are little endian. The accessors
// take acquisition-style x, y, z, c, t coordinates.
type Pixels struct {
	SizeX int
	SizeY int
	SizeZ int
	SizeC int
	SizeT int
	Type  PixelType
	Data  []byte
}

// NewPixels allocates a zero-filled buffer of the given shape.
func NewPixels(x, y, z, c, t int, typ PixelType) (*Pixels, error) {
	width := typ.Bytes()
	if width == 0 {
		return nil, fmt.Errorf("unsupported pixel type %q: %w", typ, ErrInvalidArgument)
	}
	if x <= 0 || y <= 0 || z <= 0 || c <= 0 || t <= 0 {
		return nil, fmt.Errorf("pixel buffer sizes must be positive: %w", ErrInvalidArgument)
	}
	return &Pixels{
		SizeX: x, SizeY: y, SizeZ: z, SizeC: c, SizeT: t,
		Type: typ,
		Data: make([]byte, x*y*z*c*t*width),
	}, nil
}

// offset returns the byte offset of element (x,y,z,c,t):
// ((((t*SizeZ+z)*SizeY+y)*SizeX+x)*SizeC+c) * element width.
func (p *Pixels) offset(x, y, z, c, t int) int {
	return ((((t*p.SizeZ+z)*p.SizeY+y)*p.SizeX+x)*p.SizeC + c) * p.Type.Bytes()
}

// At returns the element at (x,y,z,c,t) widened to float64. Like
// slice indexing, out-of-range coordinates panic.
func (p *Pixels) At(x, y, z, c, t int) float64 {
	off := p.offset(x, y, z, c, t)
	switch p.Type {
	case PixelInt8:
		return float64(int8(p.Data[off]))
	case PixelUint8:
		return float64(p.Data[off])
	case PixelInt16:
		return float64(int16(binary.LittleEndian.Uint16(p.Data[off:])))
	case PixelUint16:
		return float64(binary.LittleEndian.Uint16(p.Data[off:]))
	case PixelInt32:
		return float64(int32(binary.LittleEndian.Uint32(p.Data[off:])))
	case PixelUint32:
		return float64(binary.LittleEndian.Uint32(p.Data[off:]))
	case PixelFloat:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p.Data[off:])))
	case PixelDouble:
		return math.Float64frombits(binary.LittleEndian.Uint64(p.Data[off:]))
	default:
		return 0
	}
}

// SetAt stores v, narrowed to the buffer's element type, at
// (x,y,z,c,t).
func (p *Pixels) SetAt(x, y, z, c, t int, v float64) {
	off := p.offset(x, y, z, c, t)
	switch p.Type {
	case PixelInt8, PixelUint8:
		p.Data[off] = byte(int64(v))
	case PixelInt16, PixelUint16:
		binary.LittleEndian.PutUint16(p.Data[off:], uint16(int64(v)))
	case PixelInt32, PixelUint32:
		binary.LittleEndian.PutUint32(p.Data[off:], uint32(int64(v)))
	case PixelFloat:
		binary.LittleEndian.PutUint32(p.Data[off:], math.Float32bits(float32(v)))
	case PixelDouble:
		binary.LittleEndian.PutUint64(p.Data[off:], math.Float64bits(v))
	}
}

// PlaneBytes copies out the (z,c,t) plane as little-endian row-major
// bytes: y rows of x elements.
func (p *Pixels) PlaneBytes(z, c, t int) []byte {
	width := p.Type.Bytes()
	out := make([]byte, p.SizeX*p.SizeY*width)
	if p.SizeC == 1 {
		// Single-channel planes are contiguous in storage.
		off := p.offset(0, 0, z, c, t)
		copy(out, p.Data[off:off+len(out)])
		return out
	}
	i := 0
	for y := 0; y < p.SizeY; y++ {
		for x := 0; x < p.SizeX; x++ {
			off := p.offset(x, y, z, c, t)
			copy(out[i:i+width], p.Data[off:off+width])
			i += width
		}
	}
	return out
}

// SetPlaneBytes fills the (z,c,t) plane from little-endian row-major
// bytes, the inverse of PlaneBytes.
func (p *Pixels) SetPlaneBytes(z, c, t int, buf []byte) error {
	width := p.Type.Bytes()
	if want := p.SizeX * p.SizeY * width; len(buf) != want {
		return fmt.Errorf("plane has %d bytes, want %d: %w", len(buf), want, ErrInvalidArgument)
	}
	if p.SizeC == 1 {
		off := p.offset(0, 0, z, c, t)
		copy(p.Data[off:off+len(buf)], buf)
		return nil
	}
	i := 0
	for y := 0; y < p.SizeY; y++ {
		for x := 0; x < p.SizeX; x++ {
			off := p.offset(x, y, z, c, t)
			copy(p.Data[off:off+width], buf[i:i+width])
			i += width
		}
	}
	return nil
}

// setSubPlane copies little-endian row-major src (h rows of w
// elements) into the top-left corner of the (z,c,t) plane. Used when
// an edge-clipped fetch fills part of a padded buffer.
func (p *Pixels) setSubPlane(z, c, t, w, h int, src []byte) error {
	width := p.Type.Bytes()
	if want := w * h * width; len(src) != want {
		return fmt.Errorf("sub-plane has %d bytes, want %d: %w", len(src), want, ErrInvalidArgument)
	}
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := p.offset(x, y, z, c, t)
			copy(p.Data[off:off+width], src[i:i+width])
			i += width
		}
	}
	return nil
}

// encodePlane prepares plane bytes for the wire with the given
// compression ("", "none", or "snappy").
func encodePlane(buf []byte, compression string) ([]byte, error) {
	switch compression {
	case "", "none":
		return buf, nil
	case "snappy":
		return snappy.Encode(nil, buf), nil
	default:
		return nil, fmt.Errorf("unsupported plane compression %q: %w", compression, ErrInvalidArgument)
	}
}

// decodePlane undoes encodePlane and validates the decoded size.
func decodePlane(buf []byte, compression string, want int) ([]byte, error) {
	switch compression {
	case "", "none":
	case "snappy":
		var err error
		buf, err = snappy.Decode(nil, buf)
		if err != nil {
			return nil, fmt.Errorf("decoding snappy plane: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported plane compression %q: %w", compression, ErrInvalidArgument)
	}
	if len(buf) != want {
		return nil, fmt.Errorf("plane has %d bytes after decoding, want %d", len(buf), want)
	}
	return buf, nil
}

// axisRegion is one axis of a clipped fetch window: the requested
// buffer extent plus the part of it actually present in the image.
type axisRegion struct {
	bufSize    int // requested extent: size of the result buffer
	fetchStart int // first coordinate present in the image
	fetchSpan  int // extent present in the image (0 = padding only)
}

// clipAxis resolves a requested start/span against the image size on
// one axis. Span zero means "to the edge from start". Requests
// crossing the edge fail with a BoundsError unless pad is set, in
// which case the overhang is left for the caller to zero-fill.
func clipAxis(name string, start, span, size int, pad bool) (axisRegion, error) {
	if start < 0 || span < 0 {
		return axisRegion{}, fmt.Errorf("axis %s start/span must not be negative: %w", name, ErrInvalidArgument)
	}
	if span == 0 {
		span = size - start
		if span <= 0 {
			return axisRegion{}, BoundsError{Axis: name, Want: start, Size: size}
		}
	}
	if start+span > size {
		if !pad {
			return axisRegion{}, BoundsError{Axis: name, Want: start + span, Size: size}
		}
		fetch := size - start
		if fetch < 0 {
			fetch = 0
		}
		return axisRegion{bufSize: span, fetchStart: start, fetchSpan: fetch}, nil
	}
	return axisRegion{bufSize: span, fetchStart: start, fetchSpan: span}, nil
}
