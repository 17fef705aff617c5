// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// MapAnnotation is a list of key-value pairs attached to an object.
// The wire form is ordered and allows duplicate keys.
type MapAnnotation struct {
	ID        int64       `json:"@id,omitempty"`
	Type      string      `json:"@type,omitempty"`
	Namespace string      `json:"Namespace,omitempty"`
	Value     [][2]string `json:"Value,omitempty"`
	Details   *Details    `json:"omero:details,omitempty"`
}

func (MapAnnotation) resourceName() string { return "annotations" }

// TagAnnotation is a short text label attached to objects.
type TagAnnotation struct {
	ID        int64    `json:"@id,omitempty"`
	Type      string   `json:"@type,omitempty"`
	Namespace string   `json:"Namespace,omitempty"`
	Value     string   `json:"Value,omitempty"`
	Details   *Details `json:"omero:details,omitempty"`
}

func (TagAnnotation) resourceName() string { return "annotations" }

// FileAnnotation wraps an uploaded file so it can be attached to
// objects.
type FileAnnotation struct {
	ID        int64         `json:"@id,omitempty"`
	Type      string        `json:"@type,omitempty"`
	Namespace string        `json:"Namespace,omitempty"`
	File      *OriginalFile `json:"File,omitempty"`
	Details   *Details      `json:"omero:details,omitempty"`
}

func (FileAnnotation) resourceName() string { return "annotations" }

// OriginalFile is a file stored on the server.
type OriginalFile struct {
	ID       int64  `json:"@id,omitempty"`
	Type     string `json:"@type,omitempty"`
	Name     string `json:"Name,omitempty"`
	Size     int64  `json:"Size,omitempty"`
	Mimetype string `json:"Mimetype,omitempty"`
	Path     string `json:"Path,omitempty"`
}

// annotationProbe decodes any annotation far enough to check its
// concrete @type before committing to a value shape. All annotation
// kinds share the m/annotations/ endpoint and one ID space.
type annotationProbe struct {
	ID        int64           `json:"@id"`
	Type      string          `json:"@type"`
	Namespace string          `json:"Namespace"`
	Value     json.RawMessage `json:"Value"`
	File      *OriginalFile   `json:"File"`
	Details   *Details        `json:"omero:details"`
}

func (annotationProbe) resourceName() string { return "annotations" }

// annotationIDs lists annotations of one kind attached to an object,
// optionally restricted to a namespace.
func (c *Client) annotationIDs(ctx context.Context, annType string, objType ObjectType, objID int64, ns string) ([]int64, error) {
	if _, err := objType.typeURI(); err != nil {
		return nil, err
	}
	query, err := ListOptions{AnnType: annType, Namespace: ns}.values(c)
	if err != nil {
		return nil, err
	}
	query.Set(string(objType), strconv.FormatInt(objID, 10))
	base, err := c.dirURL(ctx, "url:annotations")
	if err != nil {
		return nil, err
	}
	ids, err := c.listIDs(ctx, base, query)
	return ids, wrapNotFound(err, fmt.Sprintf("%s %d", objType, objID))
}

// GetMapAnnotationIDs returns the IDs of the map annotations attached
// to an object. Empty ns means all namespaces.
func (c *Client) GetMapAnnotationIDs(ctx context.Context, objType ObjectType, objID int64, ns string) ([]int64, error) {
	return c.annotationIDs(ctx, "map", objType, objID, ns)
}

// GetTagIDs returns the IDs of the tags attached to an object. Empty
// ns means all namespaces.
func (c *Client) GetTagIDs(ctx context.Context, objType ObjectType, objID int64, ns string) ([]int64, error) {
	return c.annotationIDs(ctx, "tag", objType, objID, ns)
}

// GetFileAnnotationIDs returns the IDs of the file annotations
// attached to an object. Empty ns means all namespaces.
func (c *Client) GetFileAnnotationIDs(ctx context.Context, objType ObjectType, objID int64, ns string) ([]int64, error) {
	return c.annotationIDs(ctx, "file", objType, objID, ns)
}

// GetMapAnnotationObj fetches one map annotation. An existing
// annotation of a different kind counts as not found.
func (c *Client) GetMapAnnotationObj(ctx context.Context, id int64) (MapAnnotation, error) {
	var probe annotationProbe
	err := c.getObject(ctx, &probe, probe, id, nil)
	if err != nil {
		return MapAnnotation{}, wrapNotFound(err, fmt.Sprintf("map annotation %d", id))
	}
	if probe.Type != typeMapAnnotation {
		return MapAnnotation{}, fmt.Errorf("map annotation %d: %w", id, ErrNotFound)
	}
	ann := MapAnnotation{ID: probe.ID, Type: probe.Type, Namespace: probe.Namespace, Details: probe.Details}
	if len(probe.Value) > 0 {
		if err := json.Unmarshal(probe.Value, &ann.Value); err != nil {
			return MapAnnotation{}, fmt.Errorf("map annotation %d: %w", id, err)
		}
	}
	return ann, nil
}

// GetMapAnnotation returns a map annotation's pairs as a map. The
// wire form allows duplicate keys; the last occurrence wins.
func (c *Client) GetMapAnnotation(ctx context.Context, id int64) (map[string]string, error) {
	ann, err := c.GetMapAnnotationObj(ctx, id)
	if err != nil {
		return nil, err
	}
	kv := make(map[string]string, len(ann.Value))
	for _, pair := range ann.Value {
		kv[pair[0]] = pair[1]
	}
	return kv, nil
}

// GetTag returns a tag annotation's text.
func (c *Client) GetTag(ctx context.Context, id int64) (string, error) {
	var probe annotationProbe
	err := c.getObject(ctx, &probe, probe, id, nil)
	if err != nil {
		return "", wrapNotFound(err, fmt.Sprintf("tag %d", id))
	}
	if probe.Type != typeTagAnnotation {
		return "", fmt.Errorf("tag %d: %w", id, ErrNotFound)
	}
	var text string
	if len(probe.Value) > 0 {
		if err := json.Unmarshal(probe.Value, &text); err != nil {
			return "", fmt.Errorf("tag %d: %w", id, err)
		}
	}
	return text, nil
}

// GetFileAnnotation downloads a file annotation's payload into dir
// (creating it if needed) and returns the path written. The filename
// comes from the server-side file name.
func (c *Client) GetFileAnnotation(ctx context.Context, id int64, dir string) (string, error) {
	var probe annotationProbe
	err := c.getObject(ctx, &probe, probe, id, nil)
	if err != nil {
		return "", wrapNotFound(err, fmt.Sprintf("file annotation %d", id))
	}
	if probe.Type != typeFileAnnotation || probe.File == nil {
		return "", fmt.Errorf("file annotation %d: %w", id, ErrNotFound)
	}
	buf, err := c.getBytes(ctx, fmt.Sprintf("webgateway/original_file/%d/", probe.File.ID), nil)
	if err != nil {
		return "", fmt.Errorf("downloading file annotation %d: %w", id, err)
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return "", err
	}
	name := probe.File.Name
	if name == "" {
		name = fmt.Sprintf("file_annotation_%d", id)
	}
	// Base() keeps server-supplied names from escaping dir.
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, buf, 0666); err != nil {
		return "", err
	}
	return path, nil
}

// PostMapAnnotation creates a map annotation from kv and attaches it
// to the given object, returning the annotation ID. Keys are sorted
// so the saved pair order is deterministic. An empty kv is allowed.
func (c *Client) PostMapAnnotation(ctx context.Context, objType ObjectType, objID int64, kv map[string]string, ns string) (int64, error) {
	if _, err := objType.typeURI(); err != nil {
		return 0, err
	}
	var saved MapAnnotation
	err := c.createObject(ctx, &saved, MapAnnotation{Type: typeMapAnnotation, Namespace: ns, Value: sortedPairs(kv)})
	if err != nil {
		return 0, fmt.Errorf("creating map annotation: %w", err)
	}
	if err := c.LinkAnnotation(ctx, objType, objID, saved.ID); err != nil {
		return saved.ID, fmt.Errorf("map annotation %d created, but linking to %s %d failed: %w", saved.ID, objType, objID, err)
	}
	return saved.ID, nil
}

// PutMapAnnotation replaces the pairs of an existing map annotation
// with kv (and its namespace with ns, when ns is non-empty).
func (c *Client) PutMapAnnotation(ctx context.Context, annID int64, kv map[string]string, ns string) error {
	existing, err := c.GetMapAnnotationObj(ctx, annID)
	if err != nil {
		return err
	}
	existing.Value = sortedPairs(kv)
	if ns != "" {
		existing.Namespace = ns
	}
	return c.UpdateObject(ctx, nil, existing)
}

// PostTagAnnotation creates a tag with the given text and attaches it
// to the given object, returning the annotation ID.
func (c *Client) PostTagAnnotation(ctx context.Context, objType ObjectType, objID int64, text, ns string) (int64, error) {
	if _, err := objType.typeURI(); err != nil {
		return 0, err
	}
	var saved TagAnnotation
	err := c.createObject(ctx, &saved, TagAnnotation{Type: typeTagAnnotation, Namespace: ns, Value: text})
	if err != nil {
		return 0, fmt.Errorf("creating tag: %w", err)
	}
	if err := c.LinkAnnotation(ctx, objType, objID, saved.ID); err != nil {
		return saved.ID, fmt.Errorf("tag %d created, but linking to %s %d failed: %w", saved.ID, objType, objID, err)
	}
	return saved.ID, nil
}

// PostFileAnnotation uploads the file at path, wraps it in a file
// annotation, and attaches that to the given object, returning the
// annotation ID. Empty mimetype defaults to application/octet-stream.
func (c *Client) PostFileAnnotation(ctx context.Context, objType ObjectType, objID int64, path, ns, mimetype string) (int64, error) {
	if _, err := objType.typeURI(); err != nil {
		return 0, err
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if mimetype == "" {
		mimetype = "application/octet-stream"
	}
	fileID, err := c.uploadFile(ctx, filepath.Base(path), mimetype, buf)
	if err != nil {
		return 0, fmt.Errorf("uploading %s: %w", path, err)
	}
	var saved FileAnnotation
	err = c.createObject(ctx, &saved, FileAnnotation{
		Type:      typeFileAnnotation,
		Namespace: ns,
		File:      &OriginalFile{Type: typeOriginalFile, ID: fileID},
	})
	if err != nil {
		return 0, fmt.Errorf("creating file annotation: %w", err)
	}
	if err := c.LinkAnnotation(ctx, objType, objID, saved.ID); err != nil {
		return saved.ID, fmt.Errorf("file annotation %d created, but linking to %s %d failed: %w", saved.ID, objType, objID, err)
	}
	return saved.ID, nil
}

// uploadFile stores a new original file on the server and returns its
// ID.
func (c *Client) uploadFile(ctx context.Context, name, mimetype string, buf []byte) (int64, error) {
	var envelope struct {
		Data OriginalFile `json:"data"`
	}
	query := url.Values{"name": {name}, "mimetype": {mimetype}}
	err := c.sendBytes(ctx, "POST", "webgateway/original_file/", query, mimetype, buf, &envelope)
	if err != nil {
		return 0, err
	}
	return envelope.Data.ID, nil
}

// sortedPairs flattens kv into wire pairs, sorted by key.
func sortedPairs(kv map[string]string) [][2]string {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([][2]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]string{k, kv[k]})
	}
	return pairs
}
