// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Screen is a container of plates.
type Screen struct {
	ID          int64    `json:"@id,omitempty"`
	Type        string   `json:"@type,omitempty"`
	Name        string   `json:"Name,omitempty"`
	Description string   `json:"Description,omitempty"`
	Details     *Details `json:"omero:details,omitempty"`
	PlateCount  int64    `json:"omero:childCount,omitempty"`
}

func (Screen) resourceName() string { return "screens" }

// Plate is a grid of wells.
type Plate struct {
	ID          int64    `json:"@id,omitempty"`
	Type        string   `json:"@type,omitempty"`
	Name        string   `json:"Name,omitempty"`
	Description string   `json:"Description,omitempty"`
	Columns     int      `json:"Columns,omitempty"`
	Rows        int      `json:"Rows,omitempty"`
	Details     *Details `json:"omero:details,omitempty"`
	WellCount   int64    `json:"omero:childCount,omitempty"`
}

func (Plate) resourceName() string { return "plates" }

// Well is one position in a plate's grid, holding the field images
// acquired there.
type Well struct {
	ID      int64        `json:"@id,omitempty"`
	Type    string       `json:"@type,omitempty"`
	Column  int          `json:"Column"`
	Row     int          `json:"Row"`
	Samples []WellSample `json:"WellSamples,omitempty"`
	Details *Details     `json:"omero:details,omitempty"`
}

func (Well) resourceName() string { return "wells" }

// WellSample is one acquisition field of a well.
type WellSample struct {
	ID    int64  `json:"@id,omitempty"`
	Type  string `json:"@type,omitempty"`
	Image *Image `json:"Image,omitempty"`
}

// ScreenList is one page of screens.
type ScreenList struct {
	Items []Screen `json:"data"`
	Meta  ListMeta `json:"meta"`
}

// PlateList is one page of plates.
type PlateList struct {
	Items []Plate  `json:"data"`
	Meta  ListMeta `json:"meta"`
}

// WellList is one page of wells.
type WellList struct {
	Items []Well   `json:"data"`
	Meta  ListMeta `json:"meta"`
}

// GetScreen fetches one screen, including its plate count.
func (c *Client) GetScreen(ctx context.Context, id int64) (Screen, error) {
	var screen Screen
	err := c.getObject(ctx, &screen, screen, id, url.Values{"childCount": {"true"}})
	return screen, wrapNotFound(err, fmt.Sprintf("screen %d", id))
}

// GetPlate fetches one plate, including its well count.
func (c *Client) GetPlate(ctx context.Context, id int64) (Plate, error) {
	var plate Plate
	err := c.getObject(ctx, &plate, plate, id, url.Values{"childCount": {"true"}})
	return plate, wrapNotFound(err, fmt.Sprintf("plate %d", id))
}

// GetWell fetches one well with its samples.
func (c *Client) GetWell(ctx context.Context, id int64) (Well, error) {
	var well Well
	err := c.getObject(ctx, &well, well, id, nil)
	return well, wrapNotFound(err, fmt.Sprintf("well %d", id))
}

// ListScreens returns one page of screens in the client's group
// scope. Use opts.Offset/Limit (and the returned Meta) to page.
func (c *Client) ListScreens(ctx context.Context, opts ListOptions) (ScreenList, error) {
	var list ScreenList
	query, err := opts.values(c)
	if err != nil {
		return list, err
	}
	base, err := c.dirURL(ctx, "url:screens")
	if err != nil {
		return list, err
	}
	return list, c.RequestAndDecodeContext(ctx, &list, "GET", base, nil, query)
}

// GetScreenIDs returns the ID of every screen visible in the client's
// group scope.
func (c *Client) GetScreenIDs(ctx context.Context) ([]int64, error) {
	query, err := ListOptions{}.values(c)
	if err != nil {
		return nil, err
	}
	base, err := c.dirURL(ctx, "url:screens")
	if err != nil {
		return nil, err
	}
	return c.listIDs(ctx, base, query)
}

// GetPlateIDs returns the ID of every plate inside the given screen,
// or of every orphaned plate when screenID is zero.
func (c *Client) GetPlateIDs(ctx context.Context, screenID int64) ([]int64, error) {
	opts := ListOptions{}
	if screenID == 0 {
		opts.Orphaned = true
	}
	query, err := opts.values(c)
	if err != nil {
		return nil, err
	}
	var base string
	if screenID != 0 {
		base, err = c.childURL(ctx, Screen{}, screenID, Plate{})
	} else {
		base, err = c.dirURL(ctx, "url:plates")
	}
	if err != nil {
		return nil, err
	}
	ids, err := c.listIDs(ctx, base, query)
	if screenID != 0 {
		err = wrapNotFound(err, fmt.Sprintf("screen %d", screenID))
	}
	return ids, err
}

// GetWellIDs returns the ID of every well in the given plate.
func (c *Client) GetWellIDs(ctx context.Context, plateID int64) ([]int64, error) {
	query, err := ListOptions{}.values(c)
	if err != nil {
		return nil, err
	}
	base, err := c.childURL(ctx, Plate{}, plateID, Well{})
	if err != nil {
		return nil, err
	}
	ids, err := c.listIDs(ctx, base, query)
	return ids, wrapNotFound(err, fmt.Sprintf("plate %d", plateID))
}

// GetWellID returns the ID of the well at the given grid position of
// a plate. Row and column are zero based. A plate without that
// position fails with ErrNotFound.
func (c *Client) GetWellID(ctx context.Context, plateID int64, row, col int) (int64, error) {
	query, err := ListOptions{}.values(c)
	if err != nil {
		return 0, err
	}
	base, err := c.childURL(ctx, Plate{}, plateID, Well{})
	if err != nil {
		return 0, err
	}
	found := int64(0)
	err = c.listPages(ctx, base, query, func(data json.RawMessage) (int, error) {
		var wells []Well
		if err := json.Unmarshal(data, &wells); err != nil {
			return 0, err
		}
		for _, well := range wells {
			if well.Row == row && well.Column == col {
				found = well.ID
			}
		}
		return len(wells), nil
	})
	if err != nil {
		return 0, wrapNotFound(err, fmt.Sprintf("plate %d", plateID))
	}
	if found == 0 {
		return 0, fmt.Errorf("plate %d has no well at row %d, column %d: %w", plateID, row, col, ErrNotFound)
	}
	return found, nil
}

// CreateScreen makes a new empty screen in the write group and
// returns its ID.
func (c *Client) CreateScreen(ctx context.Context, name, description string) (int64, error) {
	var saved Screen
	err := c.createObject(ctx, &saved, Screen{Type: typeScreen, Name: name, Description: description})
	if err != nil {
		return 0, fmt.Errorf("creating screen: %w", err)
	}
	return saved.ID, nil
}
