// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package importer

import (
	"os"
	"path/filepath"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&manifestSuite{})

type manifestSuite struct{}

func (s *manifestSuite) writeManifest(c *check.C, dir, body string) string {
	path := filepath.Join(dir, "import.json")
	c.Assert(os.WriteFile(path, []byte(body), 0666), check.IsNil)
	return path
}

func (s *manifestSuite) TestLoadManifest(c *check.C) {
	dir := c.MkDir()
	for _, name := range []string{"data/a.tiff", "data/b.tiff", "data/skip.txt", "deep/run2/c.tiff"} {
		path := filepath.Join(dir, name)
		c.Assert(os.MkdirAll(filepath.Dir(path), 0777), check.IsNil)
		c.Assert(os.WriteFile(path, []byte("x"), 0666), check.IsNil)
	}
	path := s.writeManifest(c, dir, `[
		{"path": "data/*.tiff", "project": "trial", "dataset": "batch 1",
		 "kv": {"genotype": "wt"}, "namespace": "example.org/ns"},
		{"path": "deep/**/*.tiff", "dataset": "batch 2"}
	]`)

	m, err := LoadManifest(path)
	c.Assert(err, check.IsNil)
	c.Check(m.Dir, check.Equals, dir)
	c.Assert(m.Entries, check.HasLen, 2)

	entry := m.Entries[0]
	c.Check(entry.Project, check.Equals, "trial")
	c.Check(entry.Dataset, check.Equals, "batch 1")
	c.Check(entry.KV, check.DeepEquals, map[string]string{"genotype": "wt"})
	c.Check(entry.Namespace, check.Equals, "example.org/ns")
	// Globs expand relative to the manifest dir, sorted, and the
	// non-matching file is left out.
	c.Check(entry.Files, check.DeepEquals, []string{
		filepath.Join(dir, "data/a.tiff"),
		filepath.Join(dir, "data/b.tiff"),
	})
	// ** crosses directories.
	c.Check(m.Entries[1].Files, check.DeepEquals, []string{
		filepath.Join(dir, "deep/run2/c.tiff"),
	})
}

func (s *manifestSuite) TestAbsolutePattern(c *check.C) {
	dir := c.MkDir()
	other := c.MkDir()
	c.Assert(os.WriteFile(filepath.Join(other, "a.tiff"), []byte("x"), 0666), check.IsNil)
	path := s.writeManifest(c, dir, `[{"path": "`+other+`/*.tiff", "dataset": "d"}]`)

	m, err := LoadManifest(path)
	c.Assert(err, check.IsNil)
	c.Check(m.Entries[0].Files, check.DeepEquals, []string{filepath.Join(other, "a.tiff")})
}

func (s *manifestSuite) TestGlobMatchesNothing(c *check.C) {
	dir := c.MkDir()
	path := s.writeManifest(c, dir, `[{"path": "missing/*.tiff", "dataset": "d"}]`)

	_, err := LoadManifest(path)
	c.Check(err, check.ErrorMatches, `.*glob "missing/\*\.tiff" matches nothing`)
}

func (s *manifestSuite) TestSchemaViolations(c *check.C) {
	dir := c.MkDir()
	c.Assert(os.WriteFile(filepath.Join(dir, "a.tiff"), []byte("x"), 0666), check.IsNil)
	for _, body := range []string{
		`{}`,
		`[]`,
		`[{"dataset": "d"}]`,
		`[{"path": "", "dataset": "d"}]`,
		`[{"path": "a.tiff", "dataset": "d", "bogus": 1}]`,
		`[{"path": "a.tiff", "dataset": "d", "kv": {"n": 5}}]`,
	} {
		_, err := LoadManifest(s.writeManifest(c, dir, body))
		c.Check(err, check.NotNil, check.Commentf("body: %s", body))
	}
}

func (s *manifestSuite) TestEntryRules(c *check.C) {
	dir := c.MkDir()
	c.Assert(os.WriteFile(filepath.Join(dir, "a.tiff"), []byte("x"), 0666), check.IsNil)

	_, err := LoadManifest(s.writeManifest(c, dir,
		`[{"path": "a.tiff", "screen": "s", "dataset": "d"}]`))
	c.Check(err, check.ErrorMatches, `.*screen and project/dataset are mutually exclusive`)

	_, err = LoadManifest(s.writeManifest(c, dir,
		`[{"path": "a.tiff", "project": "p"}]`))
	c.Check(err, check.ErrorMatches, `.*project given without a dataset`)

	_, err = LoadManifest(s.writeManifest(c, dir,
		`[{"path": "a.tiff"}]`))
	c.Check(err, check.ErrorMatches, `.*need a dataset or a screen`)
}

func (s *manifestSuite) TestBadJSON(c *check.C) {
	dir := c.MkDir()
	_, err := LoadManifest(s.writeManifest(c, dir, `[{"path":`))
	c.Check(err, check.NotNil)

	_, err = LoadManifest(filepath.Join(dir, "nonexistent.json"))
	c.Check(os.IsNotExist(err), check.Equals, true)
}
