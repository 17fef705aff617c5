// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"fmt"
)

// filterImages runs one server-side image query and intersects the
// result with the caller's IDs, preserving the caller's order.
func (c *Client) filterImages(ctx context.Context, imageIDs []int64, opts ListOptions) ([]int64, error) {
	if len(imageIDs) == 0 {
		return nil, nil
	}
	query, err := opts.values(c)
	if err != nil {
		return nil, err
	}
	base, err := c.dirURL(ctx, "url:images")
	if err != nil {
		return nil, err
	}
	matched, err := c.listIDs(ctx, base, query)
	if err != nil {
		return nil, err
	}
	matchSet := make(map[int64]bool, len(matched))
	for _, id := range matched {
		matchSet[id] = true
	}
	var keep []int64
	for _, id := range imageIDs {
		if matchSet[id] {
			keep = append(keep, id)
		}
	}
	return keep, nil
}

// FilterByFilename returns the subset of imageIDs whose import
// filename matches, in the input order. Strict requires the whole
// name to match; otherwise substring. Empty input short-circuits with
// no server query.
func (c *Client) FilterByFilename(ctx context.Context, imageIDs []int64, filename string, strict bool) ([]int64, error) {
	if filename == "" {
		return nil, fmt.Errorf("empty filename filter: %w", ErrInvalidArgument)
	}
	return c.filterImages(ctx, imageIDs, ListOptions{Filename: filename, Strict: strict})
}

// FilterByKV returns the subset of imageIDs carrying the map
// annotation pair key=value, in the input order.
func (c *Client) FilterByKV(ctx context.Context, imageIDs []int64, key, value string) ([]int64, error) {
	if key == "" {
		return nil, fmt.Errorf("empty key filter: %w", ErrInvalidArgument)
	}
	return c.filterImages(ctx, imageIDs, ListOptions{Key: key, Value: value})
}

// FilterByTagValue returns the subset of imageIDs tagged with exactly
// text, in the input order.
func (c *Client) FilterByTagValue(ctx context.Context, imageIDs []int64, text string) ([]int64, error) {
	if text == "" {
		return nil, fmt.Errorf("empty tag filter: %w", ErrInvalidArgument)
	}
	return c.filterImages(ctx, imageIDs, ListOptions{TagValue: text})
}
