// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"io"

	"github.com/ghodss/yaml"
)

// Dump writes the given settings to w as YAML.
func Dump(w io.Writer, settings Settings) error {
	y, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = w.Write(y)
	return err
}
