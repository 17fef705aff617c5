// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// ListOptions control paging and filtering of list queries.
//
// At most one of the container filters (Project, Dataset, Screen,
// Plate, Well) may be set; setting more than one fails with
// ErrListArguments before any request is sent.
type ListOptions struct {
	Offset int
	Limit  int // 0 = server default page size

	Group      int64 // overrides the client's group scope; 0 = client default
	Owner      int64 // only objects owned by this experimenter
	ChildCount bool  // ask the server to annotate each item with omero:childCount
	Orphaned   bool  // only objects not contained anywhere

	// Container filters.
	Project int64
	Dataset int64
	Screen  int64
	Plate   int64
	Well    int64

	// Match filters, applied server side.
	Name       string
	Filename   string // import filename (fileset entry)
	Strict     bool   // Filename must match whole name, not substring
	Key        string // map annotation key
	Value      string // map annotation value
	TagValue   string // tag annotation text
	ClientPath string // fileset entry client path

	// Annotation list filters.
	Namespace string
	AnnType   string // "map", "tag", or "file"
}

// values converts opts to the query string the server understands.
// The group scope falls back to the client's when opts.Group is zero.
func (opts ListOptions) values(c *Client) (url.Values, error) {
	containers := 0
	for _, id := range []int64{opts.Project, opts.Dataset, opts.Screen, opts.Plate, opts.Well} {
		if id != 0 {
			containers++
		}
	}
	if containers > 1 {
		return nil, ErrListArguments
	}
	v := url.Values{}
	group := opts.Group
	if group == 0 {
		group = c.queryGroup()
	}
	v.Set("group", strconv.FormatInt(group, 10))
	if opts.Offset > 0 {
		v.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Limit > 0 {
		v.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Owner != 0 {
		v.Set("owner", strconv.FormatInt(opts.Owner, 10))
	}
	if opts.ChildCount {
		v.Set("childCount", "true")
	}
	if opts.Orphaned {
		v.Set("orphaned", "true")
	}
	for key, id := range map[string]int64{
		"project": opts.Project,
		"dataset": opts.Dataset,
		"screen":  opts.Screen,
		"plate":   opts.Plate,
		"well":    opts.Well,
	} {
		if id != 0 {
			v.Set(key, strconv.FormatInt(id, 10))
		}
	}
	for key, s := range map[string]string{
		"name":       opts.Name,
		"filename":   opts.Filename,
		"key":        opts.Key,
		"value":      opts.Value,
		"tagvalue":   opts.TagValue,
		"clientpath": opts.ClientPath,
		"ns":         opts.Namespace,
		"type":       opts.AnnType,
	} {
		if s != "" {
			v.Set(key, s)
		}
	}
	if opts.Strict {
		v.Set("strict", "true")
	}
	return v, nil
}

// listPages fetches consecutive pages of the list endpoint at base
// and hands each page's raw data array to decode, which returns the
// number of items it saw. Paging stops when the server's totalCount
// is reached. After the first page the server's maxLimit is used as
// the page size.
func (c *Client) listPages(ctx context.Context, base string, query url.Values, decode func(data json.RawMessage) (n int, err error)) error {
	if query == nil {
		query = url.Values{}
	}
	offset, _ := strconv.Atoi(query.Get("offset"))
	for {
		query.Set("offset", strconv.Itoa(offset))
		var page listEnvelope
		err := c.RequestAndDecodeContext(ctx, &page, "GET", base, nil, query)
		if err != nil {
			return err
		}
		n, err := decode(page.Data)
		if err != nil {
			return err
		}
		offset += n
		if n == 0 || int64(offset) >= page.Meta.TotalCount {
			return nil
		}
		if page.Meta.MaxLimit > 0 {
			query.Set("limit", strconv.Itoa(page.Meta.MaxLimit))
		}
	}
}

// idOnly decodes just the identity of a wire object.
type idOnly struct {
	ID int64 `json:"@id"`
}

// listIDs pages through the whole list at base and collects every
// object's @id, in server order.
func (c *Client) listIDs(ctx context.Context, base string, query url.Values) ([]int64, error) {
	var ids []int64
	err := c.listPages(ctx, base, query, func(data json.RawMessage) (int, error) {
		var items []idOnly
		if err := json.Unmarshal(data, &items); err != nil {
			return 0, err
		}
		for _, item := range items {
			ids = append(ids, item.ID)
		}
		return len(items), nil
	})
	return ids, err
}

// childURL returns the containment list URL for children of one
// object, e.g. m/projects/5/datasets/.
func (c *Client) childURL(ctx context.Context, parent resource, parentID int64, child resource) (string, error) {
	base, err := c.dirURL(ctx, "url:"+parent.resourceName())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d/%s/", base, parentID, child.resourceName()), nil
}
