// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"encoding/json"
	"fmt"
)

// Experimenter is a user account on the server.
type Experimenter struct {
	ID        int64    `json:"@id,omitempty"`
	Type      string   `json:"@type,omitempty"`
	OmeName   string   `json:"UserName,omitempty"`
	FirstName string   `json:"FirstName,omitempty"`
	LastName  string   `json:"LastName,omitempty"`
	Email     string   `json:"Email,omitempty"`
	Details   *Details `json:"omero:details,omitempty"`
}

func (Experimenter) resourceName() string { return "experimenters" }

// ExperimenterGroup is a permissions group.
type ExperimenterGroup struct {
	ID          int64    `json:"@id,omitempty"`
	Type        string   `json:"@type,omitempty"`
	Name        string   `json:"Name,omitempty"`
	Description string   `json:"Description,omitempty"`
	Details     *Details `json:"omero:details,omitempty"`
}

func (ExperimenterGroup) resourceName() string { return "experimentergroups" }

// ExperimenterList is one page of experimenters.
type ExperimenterList struct {
	Items []Experimenter `json:"data"`
	Meta  ListMeta       `json:"meta"`
}

// ExperimenterGroupList is one page of groups.
type ExperimenterGroupList struct {
	Items []ExperimenterGroup `json:"data"`
	Meta  ListMeta            `json:"meta"`
}

// GetExperimenter fetches one user account.
func (c *Client) GetExperimenter(ctx context.Context, id int64) (Experimenter, error) {
	var user Experimenter
	err := c.getObject(ctx, &user, user, id, nil)
	return user, wrapNotFound(err, fmt.Sprintf("experimenter %d", id))
}

// GetGroup fetches one group.
func (c *Client) GetGroup(ctx context.Context, id int64) (ExperimenterGroup, error) {
	var group ExperimenterGroup
	err := c.getObject(ctx, &group, group, id, nil)
	return group, wrapNotFound(err, fmt.Sprintf("group %d", id))
}

// ListGroups returns one page of the groups visible to the session.
func (c *Client) ListGroups(ctx context.Context, opts ListOptions) (ExperimenterGroupList, error) {
	var list ExperimenterGroupList
	query, err := opts.values(c)
	if err != nil {
		return list, err
	}
	base, err := c.dirURL(ctx, "url:experimentergroups")
	if err != nil {
		return list, err
	}
	return list, c.RequestAndDecodeContext(ctx, &list, "GET", base, nil, query)
}

// ListUserGroups returns every group the given user is a member of.
func (c *Client) ListUserGroups(ctx context.Context, userID int64) ([]ExperimenterGroup, error) {
	base, err := c.childURL(ctx, Experimenter{}, userID, ExperimenterGroup{})
	if err != nil {
		return nil, err
	}
	var groups []ExperimenterGroup
	err = c.listPages(ctx, base, nil, func(data json.RawMessage) (int, error) {
		var page []ExperimenterGroup
		if err := json.Unmarshal(data, &page); err != nil {
			return 0, err
		}
		groups = append(groups, page...)
		return len(page), nil
	})
	return groups, wrapNotFound(err, fmt.Sprintf("experimenter %d", userID))
}

// ListGroupMembers returns every member of the given group.
func (c *Client) ListGroupMembers(ctx context.Context, groupID int64) ([]Experimenter, error) {
	base, err := c.childURL(ctx, ExperimenterGroup{}, groupID, Experimenter{})
	if err != nil {
		return nil, err
	}
	var members []Experimenter
	err = c.listPages(ctx, base, nil, func(data json.RawMessage) (int, error) {
		var page []Experimenter
		if err := json.Unmarshal(data, &page); err != nil {
			return 0, err
		}
		members = append(members, page...)
		return len(page), nil
	})
	return members, wrapNotFound(err, fmt.Sprintf("group %d", groupID))
}

// GetUserID returns the ID of the user account with exactly the given
// login name (case sensitive). No match fails with ErrNotFound.
func (c *Client) GetUserID(ctx context.Context, omeName string) (int64, error) {
	base, err := c.dirURL(ctx, "url:experimenters")
	if err != nil {
		return 0, err
	}
	var found int64
	ok := false
	err = c.listPages(ctx, base, nil, func(data json.RawMessage) (int, error) {
		var page []Experimenter
		if err := json.Unmarshal(data, &page); err != nil {
			return 0, err
		}
		for _, user := range page {
			if user.OmeName == omeName {
				found, ok = user.ID, true
			}
		}
		return len(page), nil
	})
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("user %q: %w", omeName, ErrNotFound)
	}
	return found, nil
}

// GetGroupID returns the ID of the group with exactly the given name
// (case sensitive). No match fails with ErrNotFound.
func (c *Client) GetGroupID(ctx context.Context, name string) (int64, error) {
	base, err := c.dirURL(ctx, "url:experimentergroups")
	if err != nil {
		return 0, err
	}
	var found int64
	ok := false
	err = c.listPages(ctx, base, nil, func(data json.RawMessage) (int, error) {
		var page []ExperimenterGroup
		if err := json.Unmarshal(data, &page); err != nil {
			return 0, err
		}
		for _, group := range page {
			if group.Name == name {
				found, ok = group.ID, true
			}
		}
		return len(page), nil
	})
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("group %q: %w", name, ErrNotFound)
	}
	return found, nil
}
