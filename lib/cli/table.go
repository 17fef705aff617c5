// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/openmicroscopy/omero-go/lib/cmd"
	"github.com/openmicroscopy/omero-go/sdk/go/ctxlog"
)

// Table groups the table subcommands. Tables live in file annotations
// (namespace openmicroscopy.org/omero/bulk_annotations).
var Table = cmd.Multi(map[string]cmd.Handler{
	"get": tableGetCommand{},
})

type tableGetCommand struct{}

func (tableGetCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := newLogger(stderr)
	var err error
	defer func() {
		if err != nil {
			logger.Error(err.Error())
		}
	}()

	flags := flag.NewFlagSet(prog, flag.ContinueOnError)
	format := flags.String("format", "csv", "output format: csv or json")
	flags.StringVar(format, "f", "csv", "shorthand for -format")
	if ok, code := cmd.ParseFlags(flags, prog, args, "file-annotation-id", stderr); !ok {
		return code
	}
	if flags.NArg() != 1 {
		fmt.Fprintf(stderr, "usage: %s [options] file-annotation-id (try -help)\n", prog)
		return 2
	}
	switch *format {
	case "csv", "json":
	default:
		fmt.Fprintf(stderr, "unsupported format %q: want csv or json\n", *format)
		return 2
	}
	annID, err := strconv.ParseInt(flags.Args()[0], 10, 64)
	if err != nil {
		err = fmt.Errorf("bad file annotation id %q: %v", flags.Args()[0], err)
		return 2
	}

	ctx := ctxlog.Context(context.Background(), logger)
	client, err := Connect(ctx, stdin, stderr)
	if err != nil {
		return 1
	}
	defer client.Logout(ctx)

	rec, err := client.GetTable(ctx, annID)
	if err != nil {
		return 1
	}
	defer rec.Release()

	if *format == "json" {
		err = writeTableJSON(stdout, rec)
	} else {
		err = writeTableCSV(stdout, rec)
	}
	if err != nil {
		return 1
	}
	return 0
}

// tableCell renders one cell of an Arrow column as a string for CSV
// output.
func tableCell(col arrow.Array, row int) string {
	switch col := col.(type) {
	case *array.Boolean:
		return strconv.FormatBool(col.Value(row))
	case *array.Int64:
		return strconv.FormatInt(col.Value(row), 10)
	case *array.Float64:
		return strconv.FormatFloat(col.Value(row), 'g', -1, 64)
	case *array.String:
		return col.Value(row)
	default:
		return col.ValueStr(row)
	}
}

// tableValue renders one cell as a JSON-encodable value.
func tableValue(col arrow.Array, row int) interface{} {
	switch col := col.(type) {
	case *array.Boolean:
		return col.Value(row)
	case *array.Int64:
		return col.Value(row)
	case *array.Float64:
		return col.Value(row)
	case *array.String:
		return col.Value(row)
	default:
		return col.ValueStr(row)
	}
}

func writeTableCSV(stdout io.Writer, rec arrow.Record) error {
	w := csv.NewWriter(stdout)
	header := make([]string, rec.NumCols())
	for i := range header {
		header[i] = rec.Schema().Field(i).Name
	}
	if err := w.Write(header); err != nil {
		return err
	}
	row := make([]string, rec.NumCols())
	for j := 0; j < int(rec.NumRows()); j++ {
		for i := range row {
			row[i] = tableCell(rec.Column(i), j)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeTableJSON(stdout io.Writer, rec arrow.Record) error {
	rows := make([]map[string]interface{}, 0, rec.NumRows())
	for j := 0; j < int(rec.NumRows()); j++ {
		row := make(map[string]interface{}, rec.NumCols())
		for i := 0; i < int(rec.NumCols()); i++ {
			row[rec.Schema().Field(i).Name] = tableValue(rec.Column(i), j)
		}
		rows = append(rows, row)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
