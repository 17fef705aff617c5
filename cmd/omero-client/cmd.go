// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/openmicroscopy/omero-go/lib/cli"
	"github.com/openmicroscopy/omero-go/lib/cmd"
	"github.com/openmicroscopy/omero-go/lib/importer"
)

var (
	handler = cmd.Multi(map[string]cmd.Handler{
		"version":   cmd.Version,
		"-version":  cmd.Version,
		"--version": cmd.Version,

		"config": cli.Config,
		"login":  cli.Login,
		"logout": cli.Logout,

		"annotation": cli.Annotation,
		"datasets":   cli.Datasets,
		"get":        cli.Get,
		"groups":     cli.Groups,
		"images":     cli.Images,
		"projects":   cli.Projects,
		"render":     cli.Render,
		"table":      cli.Table,

		"import": importer.Command,
	})
)

// fixArgs moves the subcommand in front of any flags the user put
// first, as in "omero-client -format yaml get image/42".
func fixArgs(args []string) []string {
	flags, _ := cli.CommonFlagSet()
	return cmd.SubcommandToFront(args, flags)
}

func main() {
	os.Exit(handler.RunCommand(os.Args[0], fixArgs(os.Args[1:]), os.Stdin, os.Stdout, os.Stderr))
}
