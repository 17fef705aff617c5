// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"io"
	"testing"

	check "gopkg.in/check.v1"
)

// Gocheck boilerplate
func Test(t *testing.T) {
	check.TestingT(t)
}

var _ = check.Suite(&ClientSuite{})

type ClientSuite struct{}

func (s *ClientSuite) TestBadCommand(c *check.C) {
	exited := handler.RunCommand("omero-client", []string{"no such command"}, bytes.NewReader(nil), io.Discard, io.Discard)
	c.Check(exited, check.Equals, 2)
}

func (s *ClientSuite) TestBadSubcommandArgs(c *check.C) {
	exited := handler.RunCommand("omero-client", []string{"get"}, bytes.NewReader(nil), io.Discard, io.Discard)
	c.Check(exited, check.Equals, 2)
}

func (s *ClientSuite) TestVersion(c *check.C) {
	stdout := bytes.NewBuffer(nil)
	stderr := bytes.NewBuffer(nil)
	exited := handler.RunCommand("omero-client", []string{"version"}, bytes.NewReader(nil), stdout, stderr)
	c.Check(exited, check.Equals, 0)
	c.Check(stdout.String(), check.Matches, `omero-client dev \(go[0-9\.]+\)\n`)
	c.Check(stderr.String(), check.Equals, "")
}

func (s *ClientSuite) TestSubcommandToFront(c *check.C) {
	args := fixArgs([]string{"-format", "yaml", "get", "image/42"})
	c.Check(args, check.DeepEquals, []string{"get", "-format", "yaml", "image/42"})
}
