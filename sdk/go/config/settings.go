// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package config loads and saves omero-go connection settings.
//
// Settings come from (in increasing precedence) built-in defaults, a
// YAML settings file, and OMERO_* environment variables. Passwords are
// deliberately not part of Settings: they are prompted for or passed
// per call, never stored.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/ghodss/yaml"
)

// Settings are the connection parameters for one OMERO.web gateway.
type Settings struct {
	// WebHost is the host[:port] (or full URL) of OMERO.web.
	WebHost string `json:"web_host,omitempty"`

	// User is the login name interactive tools offer as the
	// default.
	User string `json:"user,omitempty"`

	// Group to select after login: a group name or a numeric ID.
	Group string `json:"group,omitempty"`

	// ServerID picks the backend server when the gateway offers
	// more than one.
	ServerID int64 `json:"server_id,omitempty"`

	// Insecure accepts unverified TLS certificates.
	Insecure bool `json:"insecure,omitempty"`

	// Timeout bounds each API request, including retries.
	Timeout Duration `json:"timeout,omitempty"`
}

// Defaults returns the built-in settings underlying every load.
func Defaults() Settings {
	return Settings{
		Timeout: Duration(5 * time.Minute),
	}
}

// Path returns the settings file location: $OMERO_SETTINGS_PATH if
// set, otherwise ~/.config/omero/settings.yml.
func Path() string {
	if p := os.Getenv("OMERO_SETTINGS_PATH"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "omero", "settings.yml")
}

// Load returns the defaults overlaid with the settings file (if one
// exists) and then with the OMERO_* environment variables.
func Load() (Settings, error) {
	settings, err := LoadFile(Path())
	if err != nil {
		return settings, err
	}
	return settings.ApplyEnv()
}

// LoadFile returns the defaults overlaid with the YAML settings at
// path. A missing file is not an error: the defaults come back as is.
func LoadFile(path string) (Settings, error) {
	settings := Defaults()
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return settings, nil
	} else if err != nil {
		return settings, err
	}
	var loaded Settings
	if err := yaml.Unmarshal(buf, &loaded); err != nil {
		return settings, fmt.Errorf("%s: %v", path, err)
	}
	if err := mergo.Merge(&settings, loaded, mergo.WithOverride); err != nil {
		return settings, err
	}
	return settings, nil
}

// ApplyEnv overlays the OMERO_* environment variables onto s and
// returns the result. OMERO_PASS is deliberately not read here:
// passwords never enter Settings.
func (s Settings) ApplyEnv() (Settings, error) {
	if v := os.Getenv("OMERO_WEB_HOST"); v != "" {
		s.WebHost = v
	}
	if v := os.Getenv("OMERO_USER"); v != "" {
		s.User = v
	}
	if v := os.Getenv("OMERO_GROUP"); v != "" {
		s.Group = v
	}
	if v := os.Getenv("OMERO_SERVER_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return s, fmt.Errorf("OMERO_SERVER_ID: %v", err)
		}
		s.ServerID = id
	}
	if v := os.Getenv("OMERO_SECURE"); v != "" {
		secure, err := parseBool(v)
		if err != nil {
			return s, fmt.Errorf("OMERO_SECURE: %v", err)
		}
		s.Insecure = !secure
	}
	if v := os.Getenv("OMERO_TIMEOUT"); v != "" {
		var d Duration
		if err := d.Set(v); err != nil {
			return s, fmt.Errorf("OMERO_TIMEOUT: %v", err)
		}
		s.Timeout = d
	}
	return s, nil
}

// Save writes s as YAML at path, creating parent directories as
// needed. The file is written 0600; it carries no credentials but may
// name internal hosts.
func (s Settings) Save(path string) error {
	buf, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0600)
}

// parseBool interprets the usual spellings of yes and no.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "y", "yes", "t", "true":
		return true, nil
	case "0", "n", "no", "f", "false":
		return false, nil
	}
	return false, fmt.Errorf("cannot interpret %q as a boolean", s)
}
