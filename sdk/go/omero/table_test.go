// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"errors"
	"net/http"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(&tableSuite{})

type tableSuite struct{}

// tableStub serves one canned table document through the usual
// discovery endpoints.
func tableStub(doc string) *Client {
	stub := &stubTransport{
		Responses: map[string]string{
			"/api/":                 `{"data":[{"version":"0","url:base":"https://omero.example.net/api/v0/"}]}`,
			"/api/v0/":              `{"url:tables":"https://omero.example.net/api/v0/m/tables/"}`,
			"/api/v0/m/tables/801/": `{"data":` + doc + `,"meta":{"totalCount":1}}`,
		},
	}
	return &Client{Client: &http.Client{Transport: stub}, WebHost: "omero.example.net"}
}

func (*tableSuite) TestPostTableNoColumns(c *check.C) {
	stub := &stubTransport{}
	client := &Client{Client: &http.Client{Transport: stub}, WebHost: "omero.example.net"}

	_, err := client.PostTable(context.Background(), ObjectImage, 301, nil, "")
	c.Check(err, check.ErrorMatches, `table has no columns: invalid argument`)
	c.Check(errors.Is(err, ErrInvalidArgument), check.Equals, true)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, arrow.NewSchema([]arrow.Field{}, nil))
	defer builder.Release()
	rec := builder.NewRecord()
	defer rec.Release()
	_, err = client.PostTable(context.Background(), ObjectImage, 301, rec, "")
	c.Check(errors.Is(err, ErrInvalidArgument), check.Equals, true)

	c.Check(stub.Requests, check.HasLen, 0)
}

func (*tableSuite) TestGetTableInt64Precision(c *check.C) {
	// 2^53+1 would not survive a float64 detour.
	client := tableStub(`{"columns":[{"name":"n","type":"long"}],"rows":[[9007199254740993]]}`)
	rec, err := client.GetTable(context.Background(), 801)
	c.Assert(err, check.IsNil)
	defer rec.Release()
	c.Check(rec.Column(0).(*array.Int64).Value(0), check.Equals, int64(9007199254740993))
}

func (*tableSuite) TestGetTableUnknownColumnType(c *check.C) {
	client := tableStub(`{"columns":[{"name":"n","type":"float16"}],"rows":[]}`)
	_, err := client.GetTable(context.Background(), 801)
	c.Check(err, check.ErrorMatches, `table 801: unknown column type "float16"`)
}

func (*tableSuite) TestGetTableRaggedRow(c *check.C) {
	client := tableStub(`{"columns":[{"name":"a","type":"long"},{"name":"b","type":"long"}],"rows":[[1]]}`)
	_, err := client.GetTable(context.Background(), 801)
	c.Check(err, check.ErrorMatches, `table 801: row 0 has 1 cells, want 2`)
}

func (*tableSuite) TestGetTableBadCell(c *check.C) {
	client := tableStub(`{"columns":[{"name":"n","type":"long"}],"rows":[["abc"]]}`)
	_, err := client.GetTable(context.Background(), 801)
	c.Check(err, check.ErrorMatches, `table 801: row 0, column "n": .*`)
}
