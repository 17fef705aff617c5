// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/openmicroscopy/omero-go/lib/cmd"
	"github.com/openmicroscopy/omero-go/sdk/go/ctxlog"
	"github.com/openmicroscopy/omero-go/sdk/go/omero"
)

// Get fetches one object by "type/id" and prints it.
var Get = getCommand{}

type getCommand struct{}

func (getCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := newLogger(stderr)
	var err error
	defer func() {
		if err != nil {
			logger.Error(err.Error())
		}
	}()

	flags := flag.NewFlagSet(prog, flag.ContinueOnError)
	format := flags.String("format", "json", "output format: json, yaml, or id")
	flags.StringVar(format, "f", "json", "shorthand for -format")
	if ok, code := cmd.ParseFlags(flags, prog, args, "type/id", stderr); !ok {
		return code
	}
	if flags.NArg() != 1 {
		fmt.Fprintf(stderr, "usage: %s [options] type/id (try -help)\n", prog)
		return 2
	}
	switch *format {
	case "json", "yaml", "id":
	default:
		fmt.Fprintf(stderr, "unsupported format %q: want json, yaml, or id\n", *format)
		return 2
	}

	kind, idStr, ok := strings.Cut(flags.Args()[0], "/")
	if !ok {
		err = fmt.Errorf("bad object %q: want type/id, like image/42", flags.Args()[0])
		return 2
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		err = fmt.Errorf("bad object id %q: %v", idStr, err)
		return 2
	}

	ctx := ctxlog.Context(context.Background(), logger)
	client, err := Connect(ctx, stdin, stderr)
	if err != nil {
		return 1
	}
	defer client.Logout(ctx)

	var obj interface{}
	switch strings.ToLower(kind) {
	case "experimenter", "user":
		obj, err = client.GetExperimenter(ctx, id)
	case "group":
		obj, err = client.GetGroup(ctx, id)
	default:
		var objType omero.ObjectType
		objType, err = omero.ParseObjectType(kind)
		if err != nil {
			return 2
		}
		switch objType {
		case omero.ObjectProject:
			obj, err = client.GetProject(ctx, id)
		case omero.ObjectDataset:
			obj, err = client.GetDataset(ctx, id)
		case omero.ObjectImage:
			obj, _, err = client.GetImage(ctx, id, omero.GetImageOptions{NoPixels: true})
		case omero.ObjectScreen:
			obj, err = client.GetScreen(ctx, id)
		case omero.ObjectPlate:
			obj, err = client.GetPlate(ctx, id)
		case omero.ObjectWell:
			obj, err = client.GetWell(ctx, id)
		}
	}
	if err != nil {
		return 1
	}

	switch *format {
	case "yaml":
		var buf []byte
		buf, err = yaml.Marshal(obj)
		if err == nil {
			_, err = stdout.Write(buf)
		}
	case "id":
		_, err = fmt.Fprintln(stdout, id)
	default:
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(obj)
	}
	if err != nil {
		return 1
	}
	return 0
}
