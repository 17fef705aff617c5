// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	check "gopkg.in/check.v1"
)

var _ = check.Suite(&loginSuite{})

type loginSuite struct{}

func (*loginSuite) TestQueryGroup(c *check.C) {
	client := &Client{WebHost: "omero.example.net"}
	// Unselected group means "query across all groups".
	c.Check(client.queryGroup(), check.Equals, int64(-1))
	c.Check(client.WithGroup(3).queryGroup(), check.Equals, int64(3))
	c.Check(client.AllGroups().queryGroup(), check.Equals, int64(-1))
	// WithGroup copies; the original stays unselected.
	c.Check(client.GroupID, check.Equals, int64(0))
}

func (*loginSuite) TestSaveGroup(c *check.C) {
	client := &Client{WebHost: "omero.example.net"}
	_, err := client.saveGroup()
	c.Check(err, check.Equals, ErrNoSession)

	gid, err := client.WithGroup(4).saveGroup()
	c.Check(err, check.IsNil)
	c.Check(gid, check.Equals, int64(4))

	state := client.state()
	state.mtx.Lock()
	state.session = &Session{UserID: 5, GroupID: 7}
	state.mtx.Unlock()

	// Unselected group: writes go to the session's default group.
	gid, err = client.saveGroup()
	c.Check(err, check.IsNil)
	c.Check(gid, check.Equals, int64(7))

	// "All groups" scopes reads only; writes still go to the
	// session's default group.
	gid, err = client.AllGroups().saveGroup()
	c.Check(err, check.IsNil)
	c.Check(gid, check.Equals, int64(7))
}
