// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"net/http"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&roiSuite{})

type roiSuite struct{}

func (*roiSuite) TestPackColor(c *check.C) {
	for _, trial := range []struct {
		rgba   color.RGBA
		packed int32
	}{
		{color.RGBA{R: 255, A: 255}, -16776961}, // 0xff0000ff wraps negative
		{color.RGBA{G: 128, A: 64}, 8388672},
		{color.RGBA{B: 255, A: 255}, 65535},
		{color.RGBA{}, 0},
		{color.RGBA{R: 1, G: 2, B: 3, A: 4}, 0x01020304},
	} {
		rgba := trial.rgba
		packed := packColor(&rgba)
		c.Assert(packed, check.NotNil)
		c.Check(*packed, check.Equals, trial.packed, check.Commentf("%+v", trial.rgba))
		back := unpackColor(packed)
		c.Assert(back, check.NotNil)
		c.Check(*back, check.Equals, trial.rgba)
	}
	c.Check(packColor(nil), check.IsNil)
	c.Check(unpackColor(nil), check.IsNil)
}

func (*roiSuite) TestPointsWireForm(c *check.C) {
	points := []PointXY{{X: 1, Y: 2}, {X: 3.5, Y: 4.25}, {X: -1, Y: 0}}
	s := formatPoints(points)
	c.Check(s, check.Equals, "1,2 3.5,4.25 -1,0")
	back, err := parsePoints(s)
	c.Check(err, check.IsNil)
	c.Check(back, check.DeepEquals, points)

	back, err = parsePoints("  ")
	c.Check(err, check.IsNil)
	c.Check(back, check.IsNil)

	_, err = parsePoints("1")
	c.Check(err, check.ErrorMatches, `bad point "1"`)
	_, err = parsePoints("1,2 x,y")
	c.Check(err, check.ErrorMatches, `bad point "x,y": .*`)
}

// On the wire a shape is its own fields plus @type, colors packed into
// signed 32-bit integers, and polygon vertices as one string.
func (*roiSuite) TestMarshalShapeWireForm(c *check.C) {
	z, t := 1, 0
	width := 2.5
	buf, err := marshalShape(Rectangle{
		ShapeProps: ShapeProps{
			Z:           &z,
			T:           &t,
			Text:        "tumor",
			FillColor:   &color.RGBA{G: 128, A: 64},
			StrokeColor: &color.RGBA{R: 255, A: 255},
			StrokeWidth: &width,
		},
		X: 1.5, Y: 2, Width: 3, Height: 4,
	})
	c.Assert(err, check.IsNil)
	var m map[string]interface{}
	c.Assert(json.Unmarshal(buf, &m), check.IsNil)
	c.Check(m["@type"], check.Equals, typeRectangle)
	c.Check(m["X"], check.Equals, 1.5)
	c.Check(m["Width"], check.Equals, 3.0)
	c.Check(m["TheZ"], check.Equals, 1.0)
	c.Check(m["TheT"], check.Equals, 0.0)
	c.Check(m["Text"], check.Equals, "tumor")
	c.Check(m["FillColor"], check.Equals, 8388672.0)
	c.Check(m["StrokeColor"], check.Equals, -16776961.0)
	c.Check(m["StrokeWidth"], check.Equals, 2.5)

	buf, err = marshalShape(Polygon{Points: []PointXY{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 5, Y: 8.5}}})
	c.Assert(err, check.IsNil)
	m = nil
	c.Assert(json.Unmarshal(buf, &m), check.IsNil)
	c.Check(m["@type"], check.Equals, typePolygon)
	c.Check(m["Points"], check.Equals, "0,0 10,0 5,8.5")
	_, have := m["FillColor"]
	c.Check(have, check.Equals, false)
}

func (*roiSuite) TestShapeRoundTrip(c *check.C) {
	z, ch, t := 2, 1, 0
	width := 1.25
	for _, shape := range []Shape{
		Point{ShapeProps: ShapeProps{Z: &z, T: &t, Text: "spot", StrokeColor: &color.RGBA{R: 255, A: 255}, StrokeWidth: &width}, X: 4.5, Y: 6},
		Line{ShapeProps: ShapeProps{C: &ch}, X1: 0, Y1: 0, X2: 10, Y2: 5, MarkerEnd: "Arrow"},
		Rectangle{ShapeProps: ShapeProps{FillColor: &color.RGBA{G: 128, A: 64}}, X: 1, Y: 2, Width: 3, Height: 4},
		Ellipse{X: 5, Y: 5, RadiusX: 2, RadiusY: 3},
		Polygon{ShapeProps: ShapeProps{Z: &z}, Points: []PointXY{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 2, Y: 3.5}}},
		Polyline{Points: []PointXY{{X: 0.5, Y: 1.5}, {X: 2.25, Y: 3}}},
		Label{ShapeProps: ShapeProps{Text: "legend"}, X: 10, Y: 20, FontSize: 14},
	} {
		buf, err := marshalShape(shape)
		c.Assert(err, check.IsNil, check.Commentf("%T", shape))
		back, err := unmarshalShape(buf)
		c.Assert(err, check.IsNil, check.Commentf("%T", shape))
		c.Check(back, check.DeepEquals, shape)
	}
}

func (*roiSuite) TestUnmarshalShapeUnknownType(c *check.C) {
	shape, err := unmarshalShape(json.RawMessage(`{"@type":"` + schemaOME + `Mask","X":1,"Y":2}`))
	c.Check(err, check.IsNil)
	c.Check(shape, check.IsNil)

	_, err = unmarshalShape(json.RawMessage(`{"@type":"` + typePolygon + `","Points":"1,2 bogus"}`))
	c.Check(err, check.ErrorMatches, `bad point "bogus"`)
}

func (*roiSuite) TestPostROIRequiresShapes(c *check.C) {
	stub := &stubTransport{}
	client := &Client{
		Client:  &http.Client{Transport: stub},
		WebHost: "omero.example.net",
	}
	_, err := client.PostROI(context.Background(), 301, ROI{Name: "empty"})
	c.Check(err, check.ErrorMatches, `an ROI needs at least one shape: invalid argument`)
	c.Check(errors.Is(err, ErrInvalidArgument), check.Equals, true)
	c.Check(stub.Requests, check.HasLen, 0)
}
