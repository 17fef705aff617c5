// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"fmt"
	"net/url"
)

// Dataset is a container of images.
type Dataset struct {
	ID          int64    `json:"@id,omitempty"`
	Type        string   `json:"@type,omitempty"`
	Name        string   `json:"Name,omitempty"`
	Description string   `json:"Description,omitempty"`
	Details     *Details `json:"omero:details,omitempty"`
	ImageCount  int64    `json:"omero:childCount,omitempty"`
}

func (Dataset) resourceName() string { return "datasets" }

// DatasetList is one page of datasets.
type DatasetList struct {
	Items []Dataset `json:"data"`
	Meta  ListMeta  `json:"meta"`
}

// GetDataset fetches one dataset, including its image count.
func (c *Client) GetDataset(ctx context.Context, id int64) (Dataset, error) {
	var dataset Dataset
	err := c.getObject(ctx, &dataset, dataset, id, url.Values{"childCount": {"true"}})
	return dataset, wrapNotFound(err, fmt.Sprintf("dataset %d", id))
}

// ListDatasets returns one page of datasets: the datasets inside
// opts.Project when it is set, otherwise all datasets in the client's
// group scope (opts.Orphaned narrows to unfiled ones).
func (c *Client) ListDatasets(ctx context.Context, opts ListOptions) (DatasetList, error) {
	var list DatasetList
	query, err := opts.values(c)
	if err != nil {
		return list, err
	}
	var base string
	if opts.Project != 0 {
		base, err = c.childURL(ctx, Project{}, opts.Project, Dataset{})
		query.Del("project")
	} else {
		base, err = c.dirURL(ctx, "url:datasets")
	}
	if err != nil {
		return list, err
	}
	return list, c.RequestAndDecodeContext(ctx, &list, "GET", base, nil, query)
}

// GetDatasetIDs returns the ID of every dataset inside the given
// project, or of every orphaned dataset when projectID is zero.
func (c *Client) GetDatasetIDs(ctx context.Context, projectID int64) ([]int64, error) {
	opts := ListOptions{}
	if projectID == 0 {
		opts.Orphaned = true
	}
	query, err := opts.values(c)
	if err != nil {
		return nil, err
	}
	var base string
	if projectID != 0 {
		base, err = c.childURL(ctx, Project{}, projectID, Dataset{})
	} else {
		base, err = c.dirURL(ctx, "url:datasets")
	}
	if err != nil {
		return nil, err
	}
	ids, err := c.listIDs(ctx, base, query)
	if projectID != 0 {
		err = wrapNotFound(err, fmt.Sprintf("project %d", projectID))
	}
	return ids, err
}

// CreateDataset makes a new empty dataset in the write group and
// returns its ID. A nonzero projectID also links the dataset into
// that project; zero leaves it orphaned.
func (c *Client) CreateDataset(ctx context.Context, name, description string, projectID int64) (int64, error) {
	var saved Dataset
	err := c.createObject(ctx, &saved, Dataset{Type: typeDataset, Name: name, Description: description})
	if err != nil {
		return 0, fmt.Errorf("creating dataset: %w", err)
	}
	if projectID != 0 {
		err = c.LinkDatasetsToProject(ctx, []int64{saved.ID}, projectID)
		if err != nil {
			return saved.ID, fmt.Errorf("dataset %d created, but linking to project %d failed: %w", saved.ID, projectID, err)
		}
	}
	return saved.ID, nil
}
