// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/openmicroscopy/omero-go/lib/cmd"
	"github.com/openmicroscopy/omero-go/sdk/go/ctxlog"
)

// Render downloads a JPEG rendering of an image, using the server's
// current rendering settings.
var Render = renderCommand{}

type renderCommand struct{}

func (renderCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := newLogger(stderr)
	var err error
	defer func() {
		if err != nil {
			logger.Error(err.Error())
		}
	}()

	flags := flag.NewFlagSet(prog, flag.ContinueOnError)
	scale := flags.Float64("scale", 1, "scale the longest side to this fraction of the original, in (0, 1]")
	output := flags.String("o", "", "write the JPEG to `file` instead of stdout")
	if ok, code := cmd.ParseFlags(flags, prog, args, "image-id", stderr); !ok {
		return code
	}
	if flags.NArg() != 1 {
		fmt.Fprintf(stderr, "usage: %s [options] image-id (try -help)\n", prog)
		return 2
	}
	imageID, err := strconv.ParseInt(flags.Args()[0], 10, 64)
	if err != nil {
		err = fmt.Errorf("bad image id %q: %v", flags.Args()[0], err)
		return 2
	}

	ctx := ctxlog.Context(context.Background(), logger)
	client, err := Connect(ctx, stdin, stderr)
	if err != nil {
		return 1
	}
	defer client.Logout(ctx)

	buf, err := client.GetRenderedJPEG(ctx, imageID, *scale)
	if err != nil {
		return 1
	}
	if *output == "" {
		_, err = stdout.Write(buf)
	} else {
		err = os.WriteFile(*output, buf, 0666)
	}
	if err != nil {
		return 1
	}
	return 0
}
