// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"errors"
	"net/http"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&annotationSuite{})

type annotationSuite struct{}

// annotationStub serves one canned annotation document through the
// usual discovery endpoints.
func annotationStub(doc string) *Client {
	stub := &stubTransport{
		Responses: map[string]string{
			"/api/":                      `{"data":[{"version":"0","url:base":"https://omero.example.net/api/v0/"}]}`,
			"/api/v0/":                   `{"url:annotations":"https://omero.example.net/api/v0/m/annotations/"}`,
			"/api/v0/m/annotations/701/": `{"data":` + doc + `}`,
		},
	}
	return &Client{Client: &http.Client{Transport: stub}, WebHost: "omero.example.net"}
}

func (*annotationSuite) TestSortedPairs(c *check.C) {
	c.Check(sortedPairs(nil), check.HasLen, 0)
	c.Check(sortedPairs(map[string]string{}), check.HasLen, 0)
	pairs := sortedPairs(map[string]string{"stage": "e12", "genotype": "wt", "note": ""})
	c.Check(pairs, check.DeepEquals, [][2]string{{"genotype", "wt"}, {"note", ""}, {"stage", "e12"}})
}

func (*annotationSuite) TestMapAnnotationDuplicateKeys(c *check.C) {
	// The wire form is ordered and can repeat keys; the object form
	// keeps every pair, the map form keeps the last occurrence.
	client := annotationStub(`{"@id":701,"@type":"` + typeMapAnnotation + `","Namespace":"test.ns","Value":[["k","old"],["k","new"],["other","x"]]}`)

	ann, err := client.GetMapAnnotationObj(context.Background(), 701)
	c.Assert(err, check.IsNil)
	c.Check(ann.Namespace, check.Equals, "test.ns")
	c.Check(ann.Value, check.DeepEquals, [][2]string{{"k", "old"}, {"k", "new"}, {"other", "x"}})

	kv, err := client.GetMapAnnotation(context.Background(), 701)
	c.Assert(err, check.IsNil)
	c.Check(kv, check.DeepEquals, map[string]string{"k": "new", "other": "x"})
}

func (*annotationSuite) TestTagKindMismatch(c *check.C) {
	client := annotationStub(`{"@id":701,"@type":"` + typeMapAnnotation + `","Value":[["k","v"]]}`)

	_, err := client.GetTag(context.Background(), 701)
	c.Check(err, check.ErrorMatches, `tag 701: not found`)
	c.Check(errors.Is(err, ErrNotFound), check.Equals, true)

	// The stub 404s unknown IDs.
	_, err = client.GetMapAnnotationObj(context.Background(), 999)
	c.Check(err, check.ErrorMatches, `map annotation 999: not found`)
	c.Check(errors.Is(err, ErrNotFound), check.Equals, true)
}
