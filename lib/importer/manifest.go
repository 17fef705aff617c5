// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// manifestSchema constrains the manifest document before any entry is
// interpreted. Cross-field rules (screen vs. dataset, project needs
// dataset) are checked separately so their errors can name the entry.
const manifestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"required": ["path"],
		"additionalProperties": false,
		"properties": {
			"path": {"type": "string", "minLength": 1},
			"project": {"type": "string", "minLength": 1},
			"dataset": {"type": "string", "minLength": 1},
			"screen": {"type": "string", "minLength": 1},
			"kv": {"type": "object", "additionalProperties": {"type": "string"}},
			"namespace": {"type": "string"}
		}
	}
}`

var compiledSchema = jsonschema.MustCompileString("manifest.json", manifestSchema)

// Entry is one import manifest item: the files matching Path go into
// the named container, and each resulting image (or plate, for screen
// targets) gets the KV pairs as a map annotation.
type Entry struct {
	Path      string            `json:"path"`
	Project   string            `json:"project,omitempty"`
	Dataset   string            `json:"dataset,omitempty"`
	Screen    string            `json:"screen,omitempty"`
	KV        map[string]string `json:"kv,omitempty"`
	Namespace string            `json:"namespace,omitempty"`

	// Files are the matches of Path, expanded at load time.
	Files []string `json:"-"`
}

func (e *Entry) check() error {
	if e.Screen != "" && (e.Project != "" || e.Dataset != "") {
		return errors.New("screen and project/dataset are mutually exclusive")
	}
	if e.Project != "" && e.Dataset == "" {
		return errors.New("project given without a dataset")
	}
	if e.Screen == "" && e.Dataset == "" {
		return errors.New("need a dataset or a screen")
	}
	return nil
}

// Manifest is a parsed, schema-checked import plan with all globs
// expanded.
type Manifest struct {
	// Dir anchors the entries' relative globs.
	Dir     string
	Entries []Entry
}

// LoadManifest reads and validates an import manifest. Entry globs
// expand relative to the manifest's own directory; a glob matching
// nothing is an error, because it is usually a typo.
func LoadManifest(path string) (*Manifest, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	m, err := parseManifest(buf, dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func parseManifest(buf []byte, dir string) (*Manifest, error) {
	var doc interface{}
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, err
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return nil, err
	}
	m := &Manifest{Dir: dir}
	if err := json.Unmarshal(buf, &m.Entries); err != nil {
		return nil, err
	}
	for i := range m.Entries {
		entry := &m.Entries[i]
		if err := entry.check(); err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, entry.Path, err)
		}
		files, err := expandGlob(dir, entry.Path)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entry.Files = files
	}
	return m, nil
}

// expandGlob resolves one glob pattern. Absolute patterns stand
// alone; relative ones are anchored at dir. Matches come back sorted
// so runs are reproducible.
func expandGlob(dir, pattern string) ([]string, error) {
	full := pattern
	if !filepath.IsAbs(full) {
		full = filepath.Join(dir, full)
	}
	matches, err := doublestar.FilepathGlob(full)
	if err != nil {
		return nil, fmt.Errorf("bad glob %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("glob %q matches nothing", pattern)
	}
	sort.Strings(matches)
	return matches, nil
}
