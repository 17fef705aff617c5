// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package importer

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize/english"
	"github.com/openmicroscopy/omero-go/lib/cli"
	"github.com/openmicroscopy/omero-go/lib/cmd"
	"github.com/openmicroscopy/omero-go/sdk/go/ctxlog"
)

// Command is the "import" subcommand of omero-client.
var Command = command{}

type command struct{}

func (command) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := ctxlog.New(stderr, "text", "info")
	logger.SetFormatter(cmd.NoPrefixFormatter{})
	var err error
	defer func() {
		if err != nil {
			logger.Error(err.Error())
		}
	}()

	flags := flag.NewFlagSet("", flag.ContinueOnError)
	manifestPath := flags.String("m", "", "import manifest `file` (exclusive with -dataset)")
	dataset := flags.String("dataset", "", "import everything into the dataset with this `name`")
	dryRun := flags.Bool("dry-run", false, "show what would be imported without importing")
	flags.BoolVar(dryRun, "n", false, "shorthand for -dry-run")
	lnS := flags.Bool("ln-s", false, "import in place (--transfer=ln_s) instead of copying files to the server")
	extraArgs := flags.String("extra-args", "", "extra `arguments` for the import tool, split like a shell would")
	if ok, code := cmd.ParseFlags(flags, prog, args, "[path ...]", stderr); !ok {
		return code
	}

	var m *Manifest
	switch {
	case *manifestPath != "" && *dataset != "":
		fmt.Fprintf(stderr, "cannot use both -m and -dataset (try -help)\n")
		return 2
	case *manifestPath != "":
		if flags.NArg() > 0 {
			fmt.Fprintf(stderr, "unrecognized command line arguments with -m: %v (try -help)\n", flags.Args())
			return 2
		}
		m, err = LoadManifest(*manifestPath)
		if err != nil {
			return 1
		}
	case *dataset != "":
		if flags.NArg() == 0 {
			fmt.Fprintf(stderr, "usage: %s -dataset name path ... (try -help)\n", prog)
			return 2
		}
		m, err = argsManifest(*dataset, flags.Args())
		if err != nil {
			return 1
		}
	default:
		fmt.Fprintf(stderr, "usage: %s -m manifest.json, or %s -dataset name path ... (try -help)\n", prog, prog)
		return 2
	}

	ctx := ctxlog.Context(context.Background(), logger)
	client, err := cli.Connect(ctx, stdin, stderr)
	if err != nil {
		return 1
	}
	defer client.Logout(ctx)

	imp := &Importer{
		Client:    client,
		LnS:       *lnS,
		ExtraArgs: *extraArgs,
		DryRun:    *dryRun,
		Output:    stderr,
	}
	report, err := imp.Run(ctx, m)
	if err != nil {
		return 1
	}
	for _, failure := range report.Failures {
		logger.Error(failure)
	}
	if *dryRun {
		fmt.Fprintf(stdout, "would import %s\n", english.Plural(report.Imported, "file", ""))
	} else {
		fmt.Fprintf(stdout, "imported %s, linked %d, annotated %d\n", english.Plural(report.Imported, "file", ""), report.Linked, report.Annotated)
	}
	if report.Failed() {
		return 1
	}
	return 0
}

// argsManifest builds the single-target manifest behind the
// "-dataset name path ..." shorthand: one entry per path, globs
// anchored at the current directory.
func argsManifest(dataset string, paths []string) (*Manifest, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m := &Manifest{Dir: dir}
	for _, path := range paths {
		files, err := expandGlob(dir, path)
		if err != nil {
			return nil, err
		}
		m.Entries = append(m.Entries, Entry{Path: path, Dataset: dataset, Files: files})
	}
	return m, nil
}
