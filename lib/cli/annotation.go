// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/openmicroscopy/omero-go/lib/cmd"
	"github.com/openmicroscopy/omero-go/sdk/go/ctxlog"
)

// Annotation groups the annotation subcommands: show a map
// annotation, attach key-value pairs, attach a file.
var Annotation = cmd.Multi(map[string]cmd.Handler{
	"show": annotationShowCommand{},
	"set":  annotationSetCommand{},
	"file": annotationFileCommand{},
})

type annotationShowCommand struct{}

func (annotationShowCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := newLogger(stderr)
	var err error
	defer func() {
		if err != nil {
			logger.Error(err.Error())
		}
	}()

	flags := flag.NewFlagSet(prog, flag.ContinueOnError)
	if ok, code := cmd.ParseFlags(flags, prog, args, "annotation-id", stderr); !ok {
		return code
	}
	if flags.NArg() != 1 {
		fmt.Fprintf(stderr, "usage: %s annotation-id (try -help)\n", prog)
		return 2
	}
	annID, err := strconv.ParseInt(flags.Args()[0], 10, 64)
	if err != nil {
		err = fmt.Errorf("bad annotation id %q: %v", flags.Args()[0], err)
		return 2
	}

	ctx := ctxlog.Context(context.Background(), logger)
	client, err := Connect(ctx, stdin, stderr)
	if err != nil {
		return 1
	}
	defer client.Logout(ctx)

	ann, err := client.GetMapAnnotationObj(ctx, annID)
	if err != nil {
		return 1
	}
	if ann.Namespace != "" {
		fmt.Fprintf(stdout, "namespace: %s\n", ann.Namespace)
	}
	table := newTable(stdout)
	for _, pair := range ann.Value {
		fmt.Fprintf(table, "%s\t%s\n", pair[0], pair[1])
	}
	if err = table.Flush(); err != nil {
		return 1
	}
	return 0
}

type annotationSetCommand struct{}

func (annotationSetCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := newLogger(stderr)
	var err error
	defer func() {
		if err != nil {
			logger.Error(err.Error())
		}
	}()

	flags := flag.NewFlagSet(prog, flag.ContinueOnError)
	ns := flags.String("ns", "", "annotation `namespace`")
	if ok, code := cmd.ParseFlags(flags, prog, args, "type/id key=value ...", stderr); !ok {
		return code
	}
	if flags.NArg() < 2 {
		fmt.Fprintf(stderr, "usage: %s [options] type/id key=value ... (try -help)\n", prog)
		return 2
	}
	objType, objID, err := parseTypeID(flags.Args()[0])
	if err != nil {
		return 2
	}
	kv := map[string]string{}
	for _, arg := range flags.Args()[1:] {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			err = fmt.Errorf("bad pair %q: want key=value", arg)
			return 2
		}
		kv[key] = value
	}

	ctx := ctxlog.Context(context.Background(), logger)
	client, err := Connect(ctx, stdin, stderr)
	if err != nil {
		return 1
	}
	defer client.Logout(ctx)

	annID, err := client.PostMapAnnotation(ctx, objType, objID, kv, *ns)
	if err != nil {
		return 1
	}
	fmt.Fprintln(stdout, annID)
	return 0
}

type annotationFileCommand struct{}

func (annotationFileCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := newLogger(stderr)
	var err error
	defer func() {
		if err != nil {
			logger.Error(err.Error())
		}
	}()

	flags := flag.NewFlagSet(prog, flag.ContinueOnError)
	ns := flags.String("ns", "", "annotation `namespace`")
	mimetype := flags.String("mimetype", "", "mimetype of the uploaded file (default application/octet-stream)")
	if ok, code := cmd.ParseFlags(flags, prog, args, "type/id path", stderr); !ok {
		return code
	}
	if flags.NArg() != 2 {
		fmt.Fprintf(stderr, "usage: %s [options] type/id path (try -help)\n", prog)
		return 2
	}
	objType, objID, err := parseTypeID(flags.Args()[0])
	if err != nil {
		return 2
	}

	ctx := ctxlog.Context(context.Background(), logger)
	client, err := Connect(ctx, stdin, stderr)
	if err != nil {
		return 1
	}
	defer client.Logout(ctx)

	annID, err := client.PostFileAnnotation(ctx, objType, objID, flags.Args()[1], *ns, *mimetype)
	if err != nil {
		return 1
	}
	fmt.Fprintln(stdout, annID)
	return 0
}
