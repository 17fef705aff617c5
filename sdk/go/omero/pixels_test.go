// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"encoding/binary"
	"errors"

	"github.com/golang/snappy"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(&pixelsSuite{})

type pixelsSuite struct{}

func (*pixelsSuite) TestPixelTypeBytes(c *check.C) {
	for typ, want := range map[PixelType]int{
		PixelInt8:        1,
		PixelUint8:       1,
		PixelInt16:       2,
		PixelUint16:      2,
		PixelInt32:       4,
		PixelUint32:      4,
		PixelFloat:       4,
		PixelDouble:      8,
		PixelType("bit"): 0,
		PixelType(""):    0,
	} {
		c.Check(typ.Bytes(), check.Equals, want, check.Commentf("%q", typ))
	}
}

func (*pixelsSuite) TestNewPixels(c *check.C) {
	p, err := NewPixels(4, 3, 2, 2, 1, PixelUint16)
	c.Assert(err, check.IsNil)
	c.Check(p.Data, check.HasLen, 4*3*2*2*1*2)
	for _, b := range p.Data {
		c.Assert(b, check.Equals, byte(0))
	}

	_, err = NewPixels(4, 3, 2, 2, 1, PixelType("bogus"))
	c.Check(err, check.ErrorMatches, `unsupported pixel type "bogus": invalid argument`)
	c.Check(errors.Is(err, ErrInvalidArgument), check.Equals, true)

	_, err = NewPixels(4, 0, 2, 2, 1, PixelUint16)
	c.Check(err, check.ErrorMatches, `pixel buffer sizes must be positive: invalid argument`)
	c.Check(errors.Is(err, ErrInvalidArgument), check.Equals, true)
}

// Storage order is T, Z, Y, X, C with C varying fastest; elements are
// little endian.
func (*pixelsSuite) TestStorageOrder(c *check.C) {
	p, err := NewPixels(2, 2, 1, 3, 1, PixelUint8)
	c.Assert(err, check.IsNil)
	p.SetAt(1, 0, 0, 2, 0, 9)
	c.Check(p.Data[(0*2+1)*3+2], check.Equals, byte(9))
	p.SetAt(0, 1, 0, 0, 0, 7)
	c.Check(p.Data[(1*2+0)*3+0], check.Equals, byte(7))

	wide, err := NewPixels(1, 1, 1, 1, 1, PixelUint16)
	c.Assert(err, check.IsNil)
	wide.SetAt(0, 0, 0, 0, 0, 0x0102)
	c.Check(wide.Data, check.DeepEquals, []byte{0x02, 0x01})
}

func (*pixelsSuite) TestAtSetAt(c *check.C) {
	for _, trial := range []struct {
		typ    PixelType
		values []float64
	}{
		{PixelInt8, []float64{-128, -1, 0, 127}},
		{PixelUint8, []float64{0, 1, 200, 255}},
		{PixelInt16, []float64{-32768, -3, 0, 32767}},
		{PixelUint16, []float64{0, 10000, 65535}},
		{PixelInt32, []float64{-2147483648, -70000, 0, 2147483647}},
		{PixelUint32, []float64{0, 3000000000, 4294967295}},
		{PixelFloat, []float64{-2.25, 0, 1.5}},
		{PixelDouble, []float64{-0.1, 0, 12345.6789}},
	} {
		p, err := NewPixels(len(trial.values), 1, 1, 1, 1, trial.typ)
		c.Assert(err, check.IsNil)
		for x, v := range trial.values {
			p.SetAt(x, 0, 0, 0, 0, v)
		}
		for x, v := range trial.values {
			c.Check(p.At(x, 0, 0, 0, 0), check.Equals, v, check.Commentf("%s [%d]", trial.typ, x))
		}
	}
}

func (*pixelsSuite) TestPlaneBytes(c *check.C) {
	p, err := NewPixels(3, 2, 2, 2, 1, PixelUint16)
	c.Assert(err, check.IsNil)
	for z := 0; z < 2; z++ {
		for ch := 0; ch < 2; ch++ {
			for y := 0; y < 2; y++ {
				for x := 0; x < 3; x++ {
					p.SetAt(x, y, z, ch, 0, float64(1000*z+100*ch+10*y+x))
				}
			}
		}
	}
	want := make([]byte, 3*2*2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			binary.LittleEndian.PutUint16(want[(y*3+x)*2:], uint16(1000+100+10*y+x))
		}
	}
	plane := p.PlaneBytes(1, 1, 0)
	c.Check(plane, check.DeepEquals, want)

	q, err := NewPixels(3, 2, 2, 2, 1, PixelUint16)
	c.Assert(err, check.IsNil)
	c.Assert(q.SetPlaneBytes(1, 1, 0, plane), check.IsNil)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			c.Check(q.At(x, y, 1, 1, 0), check.Equals, float64(1000+100+10*y+x))
		}
	}
	// Planes not written stay zero.
	c.Check(q.At(0, 0, 0, 0, 0), check.Equals, float64(0))

	err = q.SetPlaneBytes(0, 0, 0, plane[:3])
	c.Check(err, check.ErrorMatches, `plane has 3 bytes, want 12: invalid argument`)
	c.Check(errors.Is(err, ErrInvalidArgument), check.Equals, true)
}

// A single-channel plane is contiguous in storage, so PlaneBytes can
// return it with one copy.
func (*pixelsSuite) TestPlaneBytesSingleChannel(c *check.C) {
	p, err := NewPixels(4, 2, 2, 1, 1, PixelUint8)
	c.Assert(err, check.IsNil)
	for i := range p.Data {
		p.Data[i] = byte(i)
	}
	c.Check(p.PlaneBytes(0, 0, 0), check.DeepEquals, p.Data[:8])
	c.Check(p.PlaneBytes(1, 0, 0), check.DeepEquals, p.Data[8:])

	q, err := NewPixels(4, 2, 2, 1, 1, PixelUint8)
	c.Assert(err, check.IsNil)
	c.Assert(q.SetPlaneBytes(1, 0, 0, p.PlaneBytes(1, 0, 0)), check.IsNil)
	c.Check(q.Data[8:], check.DeepEquals, p.Data[8:])
	c.Check(q.Data[:8], check.DeepEquals, make([]byte, 8))
}

func (*pixelsSuite) TestSetSubPlane(c *check.C) {
	p, err := NewPixels(4, 3, 1, 1, 1, PixelUint8)
	c.Assert(err, check.IsNil)
	c.Assert(p.setSubPlane(0, 0, 0, 2, 2, []byte{1, 2, 3, 4}), check.IsNil)
	c.Check(p.At(0, 0, 0, 0, 0), check.Equals, float64(1))
	c.Check(p.At(1, 0, 0, 0, 0), check.Equals, float64(2))
	c.Check(p.At(0, 1, 0, 0, 0), check.Equals, float64(3))
	c.Check(p.At(1, 1, 0, 0, 0), check.Equals, float64(4))
	// Outside the sub-plane stays zero.
	c.Check(p.At(2, 0, 0, 0, 0), check.Equals, float64(0))
	c.Check(p.At(3, 2, 0, 0, 0), check.Equals, float64(0))

	err = p.setSubPlane(0, 0, 0, 2, 2, []byte{1, 2, 3})
	c.Check(err, check.ErrorMatches, `sub-plane has 3 bytes, want 4: invalid argument`)
	c.Check(errors.Is(err, ErrInvalidArgument), check.Equals, true)
}

func (*pixelsSuite) TestPlaneCompression(c *check.C) {
	plane := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	for _, compression := range []string{"", "none"} {
		buf, err := encodePlane(plane, compression)
		c.Check(err, check.IsNil)
		c.Check(buf, check.DeepEquals, plane)
		out, err := decodePlane(buf, compression, len(plane))
		c.Check(err, check.IsNil)
		c.Check(out, check.DeepEquals, plane)
	}

	buf, err := encodePlane(plane, "snappy")
	c.Assert(err, check.IsNil)
	c.Check(buf, check.Not(check.DeepEquals), plane)
	out, err := decodePlane(buf, "snappy", len(plane))
	c.Check(err, check.IsNil)
	c.Check(out, check.DeepEquals, plane)

	_, err = encodePlane(plane, "gzip")
	c.Check(err, check.ErrorMatches, `unsupported plane compression "gzip": invalid argument`)
	c.Check(errors.Is(err, ErrInvalidArgument), check.Equals, true)
	_, err = decodePlane(plane, "gzip", len(plane))
	c.Check(err, check.ErrorMatches, `unsupported plane compression "gzip": invalid argument`)

	_, err = decodePlane([]byte{0xff, 0xff, 0xff}, "snappy", len(plane))
	c.Check(err, check.ErrorMatches, `decoding snappy plane: .*`)

	_, err = decodePlane(plane[:4], "", len(plane))
	c.Check(err, check.ErrorMatches, `plane has 4 bytes after decoding, want 8`)

	short := snappy.Encode(nil, plane[:4])
	_, err = decodePlane(short, "snappy", len(plane))
	c.Check(err, check.ErrorMatches, `plane has 4 bytes after decoding, want 8`)
}

func (*pixelsSuite) TestClipAxis(c *check.C) {
	for _, trial := range []struct {
		start, span, size int
		pad               bool
		region            axisRegion
		err               string
		bounds            *BoundsError
	}{
		// span 0 means "from start to the edge"
		{start: 0, span: 0, size: 8, region: axisRegion{bufSize: 8, fetchStart: 0, fetchSpan: 8}},
		{start: 2, span: 0, size: 8, region: axisRegion{bufSize: 6, fetchStart: 2, fetchSpan: 6}},
		// ...which requires start inside the image, pad or not
		{start: 8, span: 0, size: 8, pad: true, bounds: &BoundsError{Axis: "X", Want: 8, Size: 8}},
		{start: 2, span: 4, size: 8, region: axisRegion{bufSize: 4, fetchStart: 2, fetchSpan: 4}},
		{start: 6, span: 4, size: 8, bounds: &BoundsError{Axis: "X", Want: 10, Size: 8}},
		{start: 6, span: 4, size: 8, pad: true, region: axisRegion{bufSize: 4, fetchStart: 6, fetchSpan: 2}},
		// entirely past the edge: nothing left to fetch
		{start: 100, span: 4, size: 8, pad: true, region: axisRegion{bufSize: 4, fetchStart: 100, fetchSpan: 0}},
		{start: -1, span: 4, size: 8, err: `axis X start/span must not be negative: invalid argument`},
		{start: 2, span: -1, size: 8, err: `axis X start/span must not be negative: invalid argument`},
	} {
		c.Logf("%+v", trial)
		region, err := clipAxis("X", trial.start, trial.span, trial.size, trial.pad)
		if trial.err != "" {
			c.Check(err, check.ErrorMatches, trial.err)
			c.Check(errors.Is(err, ErrInvalidArgument), check.Equals, true)
			continue
		}
		if trial.bounds != nil {
			var be BoundsError
			c.Assert(errors.As(err, &be), check.Equals, true)
			c.Check(be, check.Equals, *trial.bounds)
			continue
		}
		c.Check(err, check.IsNil)
		c.Check(region, check.Equals, trial.region)
	}
}
