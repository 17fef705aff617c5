// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/openmicroscopy/omero-go/sdk/go/httpserver"
)

// NSBulkAnnotations is the namespace of the file annotations that
// carry tabular data.
const NSBulkAnnotations = "openmicroscopy.org/omero/bulk_annotations"

var tableTitleGen = httpserver.IDGenerator{Prefix: "Table:"}

// tableColumn describes one column in the table wire format.
type tableColumn struct {
	Name string `json:"name"`
	Type string `json:"type"` // "bool", "long", "double", or "string"
}

// tableDoc is the upload form of a whole table.
type tableDoc struct {
	Columns []tableColumn   `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// wireTable is the download form; cells decode per column type.
type wireTable struct {
	Columns []tableColumn       `json:"columns"`
	Rows    [][]json.RawMessage `json:"rows"`
}

// PostTable uploads an Arrow record as a table attached to the given
// object and returns the resulting file annotation's ID (namespace
// NSBulkAnnotations). Supported column types are BOOL, INT64, FLOAT64
// and STRING; anything else, and null cells, are rejected client
// side. An empty title gets a generated "Table:..." name.
func (c *Client) PostTable(ctx context.Context, objType ObjectType, objID int64, rec arrow.Record, title string) (int64, error) {
	if _, err := objType.typeURI(); err != nil {
		return 0, err
	}
	if rec == nil || rec.NumCols() == 0 {
		return 0, fmt.Errorf("table has no columns: %w", ErrInvalidArgument)
	}
	schema := rec.Schema()
	columns := make([]tableColumn, rec.NumCols())
	for i := range columns {
		field := schema.Field(i)
		var wireType string
		switch field.Type.ID() {
		case arrow.BOOL:
			wireType = "bool"
		case arrow.INT64:
			wireType = "long"
		case arrow.FLOAT64:
			wireType = "double"
		case arrow.STRING:
			wireType = "string"
		default:
			return 0, fmt.Errorf("column %q has unsupported type %s: %w", field.Name, field.Type, ErrInvalidArgument)
		}
		columns[i] = tableColumn{Name: field.Name, Type: wireType}
	}
	rows := make([][]interface{}, rec.NumRows())
	for j := range rows {
		rows[j] = make([]interface{}, rec.NumCols())
	}
	for i := 0; i < int(rec.NumCols()); i++ {
		if rec.Column(i).NullN() > 0 {
			return 0, fmt.Errorf("column %q has null cells: %w", schema.Field(i).Name, ErrInvalidArgument)
		}
		switch col := rec.Column(i).(type) {
		case *array.Boolean:
			for j := 0; j < col.Len(); j++ {
				rows[j][i] = col.Value(j)
			}
		case *array.Int64:
			for j := 0; j < col.Len(); j++ {
				rows[j][i] = col.Value(j)
			}
		case *array.Float64:
			for j := 0; j < col.Len(); j++ {
				rows[j][i] = col.Value(j)
			}
		case *array.String:
			for j := 0; j < col.Len(); j++ {
				rows[j][i] = col.Value(j)
			}
		default:
			return 0, fmt.Errorf("column %q has unsupported type %s: %w", schema.Field(i).Name, schema.Field(i).Type, ErrInvalidArgument)
		}
	}
	if title == "" {
		title = tableTitleGen.Next()
	}
	base, err := c.dirURL(ctx, "url:tables")
	if err != nil {
		return 0, err
	}
	buf, err := json.Marshal(tableDoc{Columns: columns, Rows: rows})
	if err != nil {
		return 0, err
	}
	query := url.Values{"title": {title}}
	query.Set(string(objType), strconv.FormatInt(objID, 10))
	var envelope struct {
		Data idOnly `json:"data"`
	}
	err = c.RequestAndDecodeContext(ctx, &envelope, "POST", base, bytes.NewReader(buf), query)
	if err != nil {
		return 0, fmt.Errorf("creating table on %s %d: %w", objType, objID, err)
	}
	return envelope.Data.ID, nil
}

// GetTable downloads the table stored in a file annotation and
// rebuilds it as an Arrow record. The caller owns the record and must
// Release() it.
func (c *Client) GetTable(ctx context.Context, fileAnnID int64) (arrow.Record, error) {
	base, err := c.dirURL(ctx, "url:tables")
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Data wireTable `json:"data"`
		Meta ListMeta  `json:"meta"`
	}
	err = c.RequestAndDecodeContext(ctx, &envelope, "GET", fmt.Sprintf("%s%d/", base, fileAnnID), nil, nil)
	if err != nil {
		return nil, wrapNotFound(err, fmt.Sprintf("table %d", fileAnnID))
	}
	fields := make([]arrow.Field, len(envelope.Data.Columns))
	for i, col := range envelope.Data.Columns {
		var typ arrow.DataType
		switch col.Type {
		case "bool":
			typ = arrow.FixedWidthTypes.Boolean
		case "long":
			typ = arrow.PrimitiveTypes.Int64
		case "double":
			typ = arrow.PrimitiveTypes.Float64
		case "string":
			typ = arrow.BinaryTypes.String
		default:
			return nil, fmt.Errorf("table %d: unknown column type %q", fileAnnID, col.Type)
		}
		fields[i] = arrow.Field{Name: col.Name, Type: typ}
	}
	builder := array.NewRecordBuilder(memory.DefaultAllocator, arrow.NewSchema(fields, nil))
	defer builder.Release()
	for rowIdx, row := range envelope.Data.Rows {
		if len(row) != len(fields) {
			return nil, fmt.Errorf("table %d: row %d has %d cells, want %d", fileAnnID, rowIdx, len(row), len(fields))
		}
		for i, cell := range row {
			cellErr := func(err error) error {
				return fmt.Errorf("table %d: row %d, column %q: %w", fileAnnID, rowIdx, fields[i].Name, err)
			}
			switch b := builder.Field(i).(type) {
			case *array.BooleanBuilder:
				var v bool
				if err := json.Unmarshal(cell, &v); err != nil {
					return nil, cellErr(err)
				}
				b.Append(v)
			case *array.Int64Builder:
				var v json.Number
				if err := json.Unmarshal(cell, &v); err != nil {
					return nil, cellErr(err)
				}
				n, err := v.Int64()
				if err != nil {
					return nil, cellErr(err)
				}
				b.Append(n)
			case *array.Float64Builder:
				var v float64
				if err := json.Unmarshal(cell, &v); err != nil {
					return nil, cellErr(err)
				}
				b.Append(v)
			case *array.StringBuilder:
				var v string
				if err := json.Unmarshal(cell, &v); err != nil {
					return nil, cellErr(err)
				}
				b.Append(v)
			}
		}
	}
	return builder.NewRecord(), nil
}
