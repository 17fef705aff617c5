// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&listSuite{})

type listSuite struct{}

func (*listSuite) TestListOptionsValues(c *check.C) {
	client := &Client{WebHost: "omero.example.net"}

	v, err := ListOptions{}.values(client)
	c.Assert(err, check.IsNil)
	// The group scope is always sent; everything else only when
	// set.
	c.Check(v, check.DeepEquals, url.Values{"group": {"-1"}})

	v, err = ListOptions{Group: 3}.values(client)
	c.Assert(err, check.IsNil)
	c.Check(v.Get("group"), check.Equals, "3")

	v, err = ListOptions{}.values(client.WithGroup(4))
	c.Assert(err, check.IsNil)
	c.Check(v.Get("group"), check.Equals, "4")

	v, err = ListOptions{
		Offset:     40,
		Limit:      20,
		Owner:      5,
		ChildCount: true,
		Orphaned:   true,
		Dataset:    201,
		Name:       "run 1",
		Filename:   "plateA",
		Strict:     true,
		Key:        "genotype",
		Value:      "wt",
		TagValue:   "golden",
		ClientPath: "/data/run1/plateA_1.tiff",
		Namespace:  "test.namespace",
		AnnType:    "map",
	}.values(client)
	c.Assert(err, check.IsNil)
	c.Check(v, check.DeepEquals, url.Values{
		"group":      {"-1"},
		"offset":     {"40"},
		"limit":      {"20"},
		"owner":      {"5"},
		"childCount": {"true"},
		"orphaned":   {"true"},
		"dataset":    {"201"},
		"name":       {"run 1"},
		"filename":   {"plateA"},
		"strict":     {"true"},
		"key":        {"genotype"},
		"value":      {"wt"},
		"tagvalue":   {"golden"},
		"clientpath": {"/data/run1/plateA_1.tiff"},
		"ns":         {"test.namespace"},
		"type":       {"map"},
	})

	_, err = ListOptions{Project: 101, Dataset: 201}.values(client)
	c.Check(err, check.Equals, ErrListArguments)
	_, err = ListOptions{Screen: 401, Well: 601}.values(client)
	c.Check(err, check.Equals, ErrListArguments)
}

func (*listSuite) TestListPages(c *check.C) {
	all := []int64{11, 22, 33, 44, 55}
	var reqs []url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs = append(reqs, r.URL.Query())
		offset, _ := strconv.Atoi(r.FormValue("offset"))
		end := offset + 2
		if end > len(all) {
			end = len(all)
		}
		items := []map[string]int64{}
		for _, id := range all[offset:end] {
			items = append(items, map[string]int64{"@id": id})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": items,
			"meta": map[string]int{
				"offset":     offset,
				"limit":      2,
				"maxLimit":   2,
				"totalCount": len(all),
			},
		})
	}))
	defer server.Close()
	client := &Client{
		Scheme:  "http",
		WebHost: strings.TrimPrefix(server.URL, "http://"),
	}

	ids, err := client.listIDs(context.Background(), server.URL+"/m/things/", url.Values{"group": {"-1"}})
	c.Assert(err, check.IsNil)
	c.Check(ids, check.DeepEquals, all)
	c.Assert(reqs, check.HasLen, 3)
	c.Check(reqs[0].Get("offset"), check.Equals, "0")
	c.Check(reqs[0].Get("group"), check.Equals, "-1")
	// The server's maxLimit becomes the page size after the first
	// page.
	c.Check(reqs[1].Get("offset"), check.Equals, "2")
	c.Check(reqs[1].Get("limit"), check.Equals, "2")
	c.Check(reqs[2].Get("offset"), check.Equals, "4")
}

func (*listSuite) TestListPagesEmpty(c *check.C) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		// An inconsistent totalCount must not cause another
		// fetch once a page comes back empty.
		w.Write([]byte(`{"data":[],"meta":{"offset":0,"limit":200,"maxLimit":500,"totalCount":10}}`))
	}))
	defer server.Close()
	client := &Client{
		Scheme:  "http",
		WebHost: strings.TrimPrefix(server.URL, "http://"),
	}

	ids, err := client.listIDs(context.Background(), server.URL+"/m/things/", nil)
	c.Check(err, check.IsNil)
	c.Check(ids, check.HasLen, 0)
	c.Check(requests, check.Equals, 1)
}
