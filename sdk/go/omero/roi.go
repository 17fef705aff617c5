// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/openmicroscopy/omero-go/sdk/go/ctxlog"
)

const (
	typePoint     = schemaOME + "Point"
	typeLine      = schemaOME + "Line"
	typeRectangle = schemaOME + "Rectangle"
	typeEllipse   = schemaOME + "Ellipse"
	typePolygon   = schemaOME + "Polygon"
	typePolyline  = schemaOME + "Polyline"
	typeLabel     = schemaOME + "Label"
)

// ROI is a region of interest on an image: a named collection of
// shapes.
type ROI struct {
	ID          int64    `json:"@id,omitempty"`
	Type        string   `json:"@type,omitempty"`
	Name        string   `json:"Name,omitempty"`
	Description string   `json:"Description,omitempty"`
	Shapes      []Shape  `json:"-"`
	Details     *Details `json:"omero:details,omitempty"`
}

func (ROI) resourceName() string { return "rois" }

// A Shape is one geometric element of an ROI.
type Shape interface {
	shapeType() string
	shapeProps() ShapeProps
}

// ShapeProps are the optional attributes every shape shares. A nil
// Z/C/T attaches the shape to every plane on that axis.
type ShapeProps struct {
	Z *int `json:"TheZ,omitempty"`
	C *int `json:"TheC,omitempty"`
	T *int `json:"TheT,omitempty"`

	Text string `json:"Text,omitempty"`

	// Colors ride the wire packed into a signed 32-bit integer;
	// see packColor.
	FillColor   *color.RGBA `json:"-"`
	StrokeColor *color.RGBA `json:"-"`
	StrokeWidth *float64    `json:"StrokeWidth,omitempty"`
}

func (p ShapeProps) shapeProps() ShapeProps { return p }

// PointXY is one vertex of a polygon or polyline.
type PointXY struct {
	X float64
	Y float64
}

// Point marks a single position.
type Point struct {
	ShapeProps
	X float64 `json:"X"`
	Y float64 `json:"Y"`
}

func (Point) shapeType() string { return typePoint }

// Line joins two positions, optionally with arrowheads.
type Line struct {
	ShapeProps
	X1          float64 `json:"X1"`
	Y1          float64 `json:"Y1"`
	X2          float64 `json:"X2"`
	Y2          float64 `json:"Y2"`
	MarkerStart string  `json:"MarkerStart,omitempty"`
	MarkerEnd   string  `json:"MarkerEnd,omitempty"`
}

func (Line) shapeType() string { return typeLine }

// Rectangle is an axis-aligned box anchored at its top-left corner.
type Rectangle struct {
	ShapeProps
	X      float64 `json:"X"`
	Y      float64 `json:"Y"`
	Width  float64 `json:"Width"`
	Height float64 `json:"Height"`
}

func (Rectangle) shapeType() string { return typeRectangle }

// Ellipse is an axis-aligned ellipse around a center point.
type Ellipse struct {
	ShapeProps
	X       float64 `json:"X"`
	Y       float64 `json:"Y"`
	RadiusX float64 `json:"RadiusX"`
	RadiusY float64 `json:"RadiusY"`
}

func (Ellipse) shapeType() string { return typeEllipse }

// Polygon is a closed vertex path.
type Polygon struct {
	ShapeProps
	Points []PointXY `json:"-"`
}

func (Polygon) shapeType() string { return typePolygon }

// Polyline is an open vertex path.
type Polyline struct {
	ShapeProps
	Points []PointXY `json:"-"`
}

func (Polyline) shapeType() string { return typePolyline }

// Label places text at a position; the text itself is the shared
// Text attribute.
type Label struct {
	ShapeProps
	X        float64 `json:"X"`
	Y        float64 `json:"Y"`
	FontSize float64 `json:"FontSize,omitempty"`
}

func (Label) shapeType() string { return typeLabel }

// packColor packs RGBA into the wire's signed 32-bit form,
// r<<24 | g<<16 | b<<8 | a, wrapping negative past 2^31-1.
func packColor(c *color.RGBA) *int32 {
	if c == nil {
		return nil
	}
	v := int32(uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A))
	return &v
}

func unpackColor(v *int32) *color.RGBA {
	if v == nil {
		return nil
	}
	u := uint32(*v)
	return &color.RGBA{R: uint8(u >> 24), G: uint8(u >> 16), B: uint8(u >> 8), A: uint8(u)}
}

// formatPoints renders vertices in the wire's "x,y x,y ..." form.
func formatPoints(points []PointXY) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = strconv.FormatFloat(p.X, 'f', -1, 64) + "," + strconv.FormatFloat(p.Y, 'f', -1, 64)
	}
	return strings.Join(parts, " ")
}

func parsePoints(s string) ([]PointXY, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	fields := strings.Fields(s)
	points := make([]PointXY, 0, len(fields))
	for _, field := range fields {
		xy := strings.SplitN(field, ",", 2)
		if len(xy) != 2 {
			return nil, fmt.Errorf("bad point %q", field)
		}
		x, err := strconv.ParseFloat(xy[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bad point %q: %v", field, err)
		}
		y, err := strconv.ParseFloat(xy[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad point %q: %v", field, err)
		}
		points = append(points, PointXY{X: x, Y: y})
	}
	return points, nil
}

// marshalShape renders one shape in its wire form: the shape's own
// fields plus @type, packed colors, and stringified points.
func marshalShape(s Shape) (json.RawMessage, error) {
	buf, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	m := map[string]interface{}{}
	if err := json.Unmarshal(buf, &m); err != nil {
		return nil, err
	}
	m["@type"] = s.shapeType()
	props := s.shapeProps()
	if v := packColor(props.FillColor); v != nil {
		m["FillColor"] = *v
	}
	if v := packColor(props.StrokeColor); v != nil {
		m["StrokeColor"] = *v
	}
	switch v := s.(type) {
	case Polygon:
		m["Points"] = formatPoints(v.Points)
	case Polyline:
		m["Points"] = formatPoints(v.Points)
	}
	return json.Marshal(m)
}

// unmarshalShape decodes one wire shape. An unknown @type returns
// (nil, nil) so callers can skip it.
func unmarshalShape(data json.RawMessage) (Shape, error) {
	var head struct {
		Type        string `json:"@type"`
		FillColor   *int32 `json:"FillColor"`
		StrokeColor *int32 `json:"StrokeColor"`
		Points      string `json:"Points"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	fill := unpackColor(head.FillColor)
	stroke := unpackColor(head.StrokeColor)
	switch head.Type {
	case typePoint:
		var v Point
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		v.FillColor, v.StrokeColor = fill, stroke
		return v, nil
	case typeLine:
		var v Line
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		v.FillColor, v.StrokeColor = fill, stroke
		return v, nil
	case typeRectangle:
		var v Rectangle
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		v.FillColor, v.StrokeColor = fill, stroke
		return v, nil
	case typeEllipse:
		var v Ellipse
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		v.FillColor, v.StrokeColor = fill, stroke
		return v, nil
	case typePolygon:
		var v Polygon
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		points, err := parsePoints(head.Points)
		if err != nil {
			return nil, err
		}
		v.Points = points
		v.FillColor, v.StrokeColor = fill, stroke
		return v, nil
	case typePolyline:
		var v Polyline
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		points, err := parsePoints(head.Points)
		if err != nil {
			return nil, err
		}
		v.Points = points
		v.FillColor, v.StrokeColor = fill, stroke
		return v, nil
	case typeLabel:
		var v Label
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		v.FillColor, v.StrokeColor = fill, stroke
		return v, nil
	default:
		return nil, nil
	}
}

// PostROI saves an ROI and its shapes onto an image in one request
// and returns the new ROI's ID. An ROI without shapes is rejected
// client side.
func (c *Client) PostROI(ctx context.Context, imageID int64, roi ROI) (int64, error) {
	if len(roi.Shapes) == 0 {
		return 0, fmt.Errorf("an ROI needs at least one shape: %w", ErrInvalidArgument)
	}
	shapes := make([]json.RawMessage, 0, len(roi.Shapes))
	for i, s := range roi.Shapes {
		buf, err := marshalShape(s)
		if err != nil {
			return 0, fmt.Errorf("shape %d: %w", i, err)
		}
		shapes = append(shapes, buf)
	}
	doc := map[string]interface{}{
		"@type":  typeROI,
		"Image":  ObjRef{Type: typeImage, ID: imageID},
		"Shapes": shapes,
	}
	if roi.Name != "" {
		doc["Name"] = roi.Name
	}
	if roi.Description != "" {
		doc["Description"] = roi.Description
	}
	var saved idOnly
	if err := c.createObject(ctx, &saved, doc); err != nil {
		return 0, fmt.Errorf("creating ROI on image %d: %w", imageID, err)
	}
	return saved.ID, nil
}

// GetROIs returns every ROI on an image, shapes decoded by their
// @type. Shapes of kinds this SDK does not know are skipped with a
// debug log.
func (c *Client) GetROIs(ctx context.Context, imageID int64) ([]ROI, error) {
	query, err := ListOptions{}.values(c)
	if err != nil {
		return nil, err
	}
	base, err := c.childURL(ctx, Image{}, imageID, ROI{})
	if err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)
	var rois []ROI
	err = c.listPages(ctx, base, query, func(data json.RawMessage) (int, error) {
		var items []struct {
			ID          int64             `json:"@id"`
			Type        string            `json:"@type"`
			Name        string            `json:"Name"`
			Description string            `json:"Description"`
			Details     *Details          `json:"omero:details"`
			Shapes      []json.RawMessage `json:"Shapes"`
		}
		if err := json.Unmarshal(data, &items); err != nil {
			return 0, err
		}
		for _, item := range items {
			roi := ROI{
				ID:          item.ID,
				Type:        item.Type,
				Name:        item.Name,
				Description: item.Description,
				Details:     item.Details,
			}
			for _, raw := range item.Shapes {
				shape, err := unmarshalShape(raw)
				if err != nil {
					return 0, fmt.Errorf("ROI %d: %w", item.ID, err)
				}
				if shape == nil {
					logger.WithField("roiID", item.ID).Debug("skipping shape with unknown @type")
					continue
				}
				roi.Shapes = append(roi.Shapes, shape)
			}
			rois = append(rois, roi)
		}
		return len(items), nil
	})
	if err != nil {
		return nil, wrapNotFound(err, fmt.Sprintf("image %d", imageID))
	}
	return rois, nil
}
