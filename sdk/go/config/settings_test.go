// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"time"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&SettingsSuite{})

type SettingsSuite struct{}

var settingsEnvVars = []string{
	"OMERO_WEB_HOST", "OMERO_USER", "OMERO_GROUP", "OMERO_SERVER_ID",
	"OMERO_SECURE", "OMERO_TIMEOUT", "OMERO_SETTINGS_PATH",
}

func (s *SettingsSuite) SetUpTest(c *check.C) {
	for _, k := range settingsEnvVars {
		os.Unsetenv(k)
	}
}

func (s *SettingsSuite) TestDefaults(c *check.C) {
	settings := Defaults()
	c.Check(settings.Timeout.Duration(), check.Equals, 5*time.Minute)
	c.Check(settings.WebHost, check.Equals, "")
	c.Check(settings.Insecure, check.Equals, false)
}

func (s *SettingsSuite) TestLoadFileMissing(c *check.C) {
	settings, err := LoadFile(filepath.Join(c.MkDir(), "nope.yml"))
	c.Check(err, check.IsNil)
	c.Check(settings, check.DeepEquals, Defaults())
}

func (s *SettingsSuite) TestLoadFile(c *check.C) {
	path := filepath.Join(c.MkDir(), "settings.yml")
	err := os.WriteFile(path, []byte(`
web_host: omero.example.edu
user: alice
group: imaging
server_id: 2
insecure: true
timeout: 30s
`), 0600)
	c.Assert(err, check.IsNil)
	settings, err := LoadFile(path)
	c.Assert(err, check.IsNil)
	c.Check(settings.WebHost, check.Equals, "omero.example.edu")
	c.Check(settings.User, check.Equals, "alice")
	c.Check(settings.Group, check.Equals, "imaging")
	c.Check(settings.ServerID, check.Equals, int64(2))
	c.Check(settings.Insecure, check.Equals, true)
	c.Check(settings.Timeout.Duration(), check.Equals, 30*time.Second)
}

func (s *SettingsSuite) TestLoadFilePartial(c *check.C) {
	path := filepath.Join(c.MkDir(), "settings.yml")
	err := os.WriteFile(path, []byte("web_host: omero.example.edu\n"), 0600)
	c.Assert(err, check.IsNil)
	settings, err := LoadFile(path)
	c.Assert(err, check.IsNil)
	c.Check(settings.WebHost, check.Equals, "omero.example.edu")
	// Fields absent from the file keep their defaults.
	c.Check(settings.Timeout.Duration(), check.Equals, 5*time.Minute)
}

func (s *SettingsSuite) TestLoadFileBadYAML(c *check.C) {
	path := filepath.Join(c.MkDir(), "settings.yml")
	err := os.WriteFile(path, []byte("{foo: [}\n"), 0600)
	c.Assert(err, check.IsNil)
	_, err = LoadFile(path)
	c.Check(err, check.NotNil)
}

func (s *SettingsSuite) TestApplyEnv(c *check.C) {
	os.Setenv("OMERO_WEB_HOST", "omero.internal:4080")
	os.Setenv("OMERO_USER", "bob")
	os.Setenv("OMERO_GROUP", "screening")
	os.Setenv("OMERO_SERVER_ID", "3")
	os.Setenv("OMERO_SECURE", "no")
	os.Setenv("OMERO_TIMEOUT", "90s")
	settings, err := Defaults().ApplyEnv()
	c.Assert(err, check.IsNil)
	c.Check(settings.WebHost, check.Equals, "omero.internal:4080")
	c.Check(settings.User, check.Equals, "bob")
	c.Check(settings.Group, check.Equals, "screening")
	c.Check(settings.ServerID, check.Equals, int64(3))
	c.Check(settings.Insecure, check.Equals, true)
	c.Check(settings.Timeout.Duration(), check.Equals, 90*time.Second)
}

func (s *SettingsSuite) TestApplyEnvSecureSpellings(c *check.C) {
	for value, insecure := range map[string]bool{
		"1": false, "y": false, "Yes": false, "TRUE": false,
		"0": true, "n": true, "No": true, "false": true,
	} {
		os.Setenv("OMERO_SECURE", value)
		settings, err := Defaults().ApplyEnv()
		c.Assert(err, check.IsNil, check.Commentf("OMERO_SECURE=%s", value))
		c.Check(settings.Insecure, check.Equals, insecure, check.Commentf("OMERO_SECURE=%s", value))
	}
	os.Setenv("OMERO_SECURE", "maybe")
	_, err := Defaults().ApplyEnv()
	c.Check(err, check.ErrorMatches, `OMERO_SECURE: .*"maybe".*`)
}

func (s *SettingsSuite) TestApplyEnvBadValues(c *check.C) {
	os.Setenv("OMERO_SERVER_ID", "two")
	_, err := Defaults().ApplyEnv()
	c.Check(err, check.ErrorMatches, `OMERO_SERVER_ID: .*`)
	os.Unsetenv("OMERO_SERVER_ID")

	os.Setenv("OMERO_TIMEOUT", "fast")
	_, err = Defaults().ApplyEnv()
	c.Check(err, check.ErrorMatches, `OMERO_TIMEOUT: .*`)
}

func (s *SettingsSuite) TestSaveRoundTrip(c *check.C) {
	path := filepath.Join(c.MkDir(), "sub", "settings.yml")
	saved := Settings{
		WebHost:  "omero.example.edu",
		User:     "alice",
		Group:    "7",
		ServerID: 1,
		Timeout:  Duration(time.Minute),
	}
	c.Assert(saved.Save(path), check.IsNil)

	fi, err := os.Stat(path)
	c.Assert(err, check.IsNil)
	c.Check(fi.Mode().Perm(), check.Equals, os.FileMode(0600))

	loaded, err := LoadFile(path)
	c.Assert(err, check.IsNil)
	c.Check(loaded, check.DeepEquals, saved)
}

func (s *SettingsSuite) TestPath(c *check.C) {
	os.Setenv("OMERO_SETTINGS_PATH", "/tmp/custom.yml")
	c.Check(Path(), check.Equals, "/tmp/custom.yml")
	os.Unsetenv("OMERO_SETTINGS_PATH")
	c.Check(filepath.Base(Path()), check.Equals, "settings.yml")
}
