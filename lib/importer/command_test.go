// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package importer

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/openmicroscopy/omero-go/sdk/go/omerotest"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(&commandSuite{})

type commandSuite struct {
	server *omerotest.Server
}

func (s *commandSuite) SetUpSuite(c *check.C) {
	s.server = omerotest.NewServer()
}

func (s *commandSuite) TearDownSuite(c *check.C) {
	s.server.Close()
}

func (s *commandSuite) SetUpTest(c *check.C) {
	s.server.Reset()
	os.Setenv("OMERO_WEB_HOST", s.server.URL)
	os.Setenv("OMERO_USER", omerotest.Username)
	os.Setenv("OMERO_PASS", omerotest.Password)
	os.Setenv("OMERO_SETTINGS_PATH", filepath.Join(c.MkDir(), "nonexistent.yml"))
}

func (s *commandSuite) TearDownTest(c *check.C) {
	for _, key := range []string{"OMERO_WEB_HOST", "OMERO_USER", "OMERO_PASS", "OMERO_SETTINGS_PATH"} {
		os.Unsetenv(key)
	}
}

func (s *commandSuite) run(c *check.C, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Command.RunCommand("omero-client import", args, bytes.NewReader(nil), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (s *commandSuite) TestUsage(c *check.C) {
	code, _, stderr := s.run(c)
	c.Check(code, check.Equals, 2)
	c.Check(stderr, check.Matches, `(?s)usage: .*`)

	code, _, stderr = s.run(c, "-m", "x.json", "-dataset", "d")
	c.Check(code, check.Equals, 2)
	c.Check(stderr, check.Matches, `(?s)cannot use both -m and -dataset.*`)

	code, _, stderr = s.run(c, "-m", "x.json", "leftover")
	c.Check(code, check.Equals, 2)
	c.Check(stderr, check.Matches, `(?s)unrecognized command line arguments.*`)

	code, _, stderr = s.run(c, "-dataset", "d")
	c.Check(code, check.Equals, 2)
	c.Check(stderr, check.Matches, `(?s)usage: .*-dataset name path.*`)
}

func (s *commandSuite) TestMissingManifest(c *check.C) {
	code, _, stderr := s.run(c, "-m", filepath.Join(c.MkDir(), "nope.json"))
	c.Check(code, check.Equals, 1)
	c.Check(stderr, check.Matches, `(?s).*nope\.json.*`)
}

func (s *commandSuite) TestDryRunManifest(c *check.C) {
	dir := c.MkDir()
	c.Assert(os.WriteFile(filepath.Join(dir, "a.tiff"), []byte("x"), 0666), check.IsNil)
	manifest := filepath.Join(dir, "import.json")
	c.Assert(os.WriteFile(manifest, []byte(`[{"path": "*.tiff", "dataset": "scratch"}]`), 0666), check.IsNil)

	code, stdout, stderr := s.run(c, "-n", "-m", manifest)
	c.Check(code, check.Equals, 0, check.Commentf("stderr: %s", stderr))
	c.Check(stdout, check.Equals, "would import 1 file\n")
}

func (s *commandSuite) TestDryRunDatasetShorthand(c *check.C) {
	dir := c.MkDir()
	c.Assert(os.WriteFile(filepath.Join(dir, "a.tiff"), []byte("x"), 0666), check.IsNil)
	c.Assert(os.WriteFile(filepath.Join(dir, "b.tiff"), []byte("x"), 0666), check.IsNil)

	code, stdout, stderr := s.run(c, "-dry-run", "-dataset", "scratch", filepath.Join(dir, "*.tiff"))
	c.Check(code, check.Equals, 0, check.Commentf("stderr: %s", stderr))
	c.Check(stdout, check.Equals, "would import 2 files\n")
}
