// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"fmt"
	"net/url"
)

// Project is a container of datasets.
type Project struct {
	ID           int64    `json:"@id,omitempty"`
	Type         string   `json:"@type,omitempty"`
	Name         string   `json:"Name,omitempty"`
	Description  string   `json:"Description,omitempty"`
	Details      *Details `json:"omero:details,omitempty"`
	DatasetCount int64    `json:"omero:childCount,omitempty"`
}

func (Project) resourceName() string { return "projects" }

// ProjectList is one page of projects.
type ProjectList struct {
	Items []Project `json:"data"`
	Meta  ListMeta  `json:"meta"`
}

// GetProject fetches one project, including its dataset count.
func (c *Client) GetProject(ctx context.Context, id int64) (Project, error) {
	var project Project
	err := c.getObject(ctx, &project, project, id, url.Values{"childCount": {"true"}})
	return project, wrapNotFound(err, fmt.Sprintf("project %d", id))
}

// ListProjects returns one page of projects in the client's group
// scope. Use opts.Offset/Limit (and the returned Meta) to page.
func (c *Client) ListProjects(ctx context.Context, opts ListOptions) (ProjectList, error) {
	var list ProjectList
	query, err := opts.values(c)
	if err != nil {
		return list, err
	}
	base, err := c.dirURL(ctx, "url:projects")
	if err != nil {
		return list, err
	}
	return list, c.RequestAndDecodeContext(ctx, &list, "GET", base, nil, query)
}

// GetProjectIDs returns the ID of every project visible in the
// client's group scope, in server order.
func (c *Client) GetProjectIDs(ctx context.Context) ([]int64, error) {
	query, err := ListOptions{}.values(c)
	if err != nil {
		return nil, err
	}
	base, err := c.dirURL(ctx, "url:projects")
	if err != nil {
		return nil, err
	}
	return c.listIDs(ctx, base, query)
}

// CreateProject makes a new empty project in the write group and
// returns its ID.
func (c *Client) CreateProject(ctx context.Context, name, description string) (int64, error) {
	var saved Project
	err := c.createObject(ctx, &saved, Project{Type: typeProject, Name: name, Description: description})
	if err != nil {
		return 0, fmt.Errorf("creating project: %w", err)
	}
	return saved.ID, nil
}
