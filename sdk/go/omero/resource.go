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
	"strings"
)

// schemaOME prefixes the @type URI of every object defined by the OME
// 2016-06 schema.
const schemaOME = "http://www.openmicroscopy.org/Schemas/OME/2016-06#"

// Model types that never made it into the published schema use the
// placeholder prefix the server uses for them.
const schemaTBD = "TBD#"

const (
	typeProject        = schemaOME + "Project"
	typeDataset        = schemaOME + "Dataset"
	typeImage          = schemaOME + "Image"
	typePixels         = schemaOME + "Pixels"
	typePixelsType     = schemaOME + "PixelsType"
	typeChannel        = schemaOME + "Channel"
	typeScreen         = schemaOME + "Screen"
	typePlate          = schemaOME + "Plate"
	typeWell           = schemaOME + "Well"
	typeROI            = schemaOME + "ROI"
	typeAnnotation     = schemaOME + "Annotation"
	typeMapAnnotation  = schemaOME + "MapAnnotation"
	typeTagAnnotation  = schemaOME + "TagAnnotation"
	typeFileAnnotation = schemaOME + "FileAnnotation"

	typeOriginalFile = schemaTBD + "OriginalFile"

	typeProjectDatasetLink    = schemaTBD + "ProjectDatasetLink"
	typeDatasetImageLink      = schemaTBD + "DatasetImageLink"
	typeScreenPlateLink       = schemaTBD + "ScreenPlateLink"
	typeProjectAnnotationLink = schemaTBD + "ProjectAnnotationLink"
	typeDatasetAnnotationLink = schemaTBD + "DatasetAnnotationLink"
	typeImageAnnotationLink   = schemaTBD + "ImageAnnotationLink"
	typeScreenAnnotationLink  = schemaTBD + "ScreenAnnotationLink"
	typePlateAnnotationLink   = schemaTBD + "PlateAnnotationLink"
	typeWellAnnotationLink    = schemaTBD + "WellAnnotationLink"
)

// A resource knows the URL fragment its endpoints hang off,
// e.g. "projects" for m/projects/.
type resource interface {
	resourceName() string
}

// ObjectType names a kind of container object that annotations and
// links can attach to. Values are the lowercase singular names used
// in query parameters.
type ObjectType string

const (
	ObjectProject ObjectType = "project"
	ObjectDataset ObjectType = "dataset"
	ObjectImage   ObjectType = "image"
	ObjectScreen  ObjectType = "screen"
	ObjectPlate   ObjectType = "plate"
	ObjectWell    ObjectType = "well"
)

// ParseObjectType recognizes a container kind name like "image" or
// "Dataset", case-insensitively.
func ParseObjectType(s string) (ObjectType, error) {
	t := ObjectType(strings.ToLower(s))
	switch t {
	case ObjectProject, ObjectDataset, ObjectImage, ObjectScreen, ObjectPlate, ObjectWell:
		return t, nil
	}
	return "", fmt.Errorf("unknown object type %q: %w", s, ErrInvalidArgument)
}

// typeURI returns the @type URI of the object kind.
func (t ObjectType) typeURI() (string, error) {
	switch t {
	case ObjectProject:
		return typeProject, nil
	case ObjectDataset:
		return typeDataset, nil
	case ObjectImage:
		return typeImage, nil
	case ObjectScreen:
		return typeScreen, nil
	case ObjectPlate:
		return typePlate, nil
	case ObjectWell:
		return typeWell, nil
	default:
		return "", fmt.Errorf("unknown object type %q: %w", t, ErrInvalidArgument)
	}
}

// Details describe ownership and permissions of a server-side object.
type Details struct {
	Owner       *Experimenter      `json:"owner,omitempty"`
	Group       *ExperimenterGroup `json:"group,omitempty"`
	Permissions *Permissions       `json:"permissions,omitempty"`
}

// Permissions is the string form of an object's permission bits,
// e.g. "rwra--".
type Permissions struct {
	Perm string `json:"perm,omitempty"`
}

// ListMeta is the paging information attached to every list response.
type ListMeta struct {
	Offset     int   `json:"offset"`
	Limit      int   `json:"limit"`
	MaxLimit   int   `json:"maxLimit"`
	TotalCount int64 `json:"totalCount"`
}

// objectEnvelope is the {"data": ...} wrapper around single objects.
type objectEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// listEnvelope is the {"data": [...], "meta": {...}} wrapper around
// list responses.
type listEnvelope struct {
	Data json.RawMessage `json:"data"`
	Meta ListMeta        `json:"meta"`
}

// getObject fetches m/<plural>/<id>/ into dst. Extra query params
// (childCount etc.) may be nil.
func (c *Client) getObject(ctx context.Context, dst interface{}, rsc resource, id int64, query url.Values) error {
	base, err := c.dirURL(ctx, "url:"+rsc.resourceName())
	if err != nil {
		return err
	}
	var envelope objectEnvelope
	err = c.RequestAndDecodeContext(ctx, &envelope, "GET", fmt.Sprintf("%s%d/", base, id), nil, query)
	if err != nil {
		return err
	}
	return json.Unmarshal(envelope.Data, dst)
}

// createObject POSTs a new object graph through m/save/ into the
// write group and decodes the saved copy into dst (which may be nil).
func (c *Client) createObject(ctx context.Context, dst interface{}, obj interface{}) error {
	group, err := c.saveGroup()
	if err != nil {
		return err
	}
	saveURL, err := c.dirURL(ctx, "url:save")
	if err != nil {
		return err
	}
	buf, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	var envelope objectEnvelope
	err = c.RequestAndDecodeContext(ctx, &envelope, "POST", saveURL, bytes.NewReader(buf), url.Values{"group": {strconv.FormatInt(group, 10)}})
	if err != nil {
		return err
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, dst)
}

// UpdateObject PUTs obj through m/save/, replacing the server-side
// copy. obj must carry its @id and @type; objects returned by the
// fetch conveniences do. The server's canonical version is decoded
// into dst when dst is non-nil.
func (c *Client) UpdateObject(ctx context.Context, dst interface{}, obj resource) error {
	saveURL, err := c.dirURL(ctx, "url:save")
	if err != nil {
		return err
	}
	buf, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	var envelope objectEnvelope
	err = c.RequestAndDecodeContext(ctx, &envelope, "PUT", saveURL, bytes.NewReader(buf), nil)
	if err != nil {
		return err
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, dst)
}

// DeleteObject removes one object by endpoint and ID:
// DeleteObject(ctx, Image{}, 42). Only the type of the resource
// argument is used.
func (c *Client) DeleteObject(ctx context.Context, rsc resource, id int64) error {
	base, err := c.dirURL(ctx, "url:"+rsc.resourceName())
	if err != nil {
		return err
	}
	err = c.RequestAndDecodeContext(ctx, nil, "DELETE", fmt.Sprintf("%s%d/", base, id), nil, nil)
	return wrapNotFound(err, fmt.Sprintf("%s %d", strings.TrimSuffix(rsc.resourceName(), "s"), id))
}
