// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"flag"
	"io"

	"github.com/openmicroscopy/omero-go/lib/cmd"
	"github.com/openmicroscopy/omero-go/sdk/go/config"
)

// Config prints the effective connection settings: file defaults
// overlaid with OMERO_* environment variables. Handy for checking
// what the other subcommands will connect to.
var Config = configCommand{}

type configCommand struct{}

func (configCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := newLogger(stderr)
	var err error
	defer func() {
		if err != nil {
			logger.Error(err.Error())
		}
	}()

	flags := flag.NewFlagSet(prog, flag.ContinueOnError)
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}

	settings, err := config.Load()
	if err != nil {
		return 1
	}
	if err = config.Dump(stdout, settings); err != nil {
		return 1
	}
	return 0
}
