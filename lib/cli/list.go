// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmicroscopy/omero-go/lib/cmd"
	"github.com/openmicroscopy/omero-go/sdk/go/ctxlog"
	"github.com/openmicroscopy/omero-go/sdk/go/omero"
)

// Projects lists the projects visible to the session as an aligned
// text table.
var Projects = projectsCommand{}

// Datasets lists datasets, all of them or those inside one project.
var Datasets = datasetsCommand{}

// Groups lists the groups visible to the session.
var Groups = groupsCommand{}

// Images lists images, all of them or those inside one dataset.
var Images = imagesCommand{}

// forEachPage runs fetch with an increasing offset until the paging
// meta reports the whole list is covered. fetch returns the number of
// items on the page it saw.
func forEachPage(opts omero.ListOptions, fetch func(omero.ListOptions) (int, omero.ListMeta, error)) error {
	for {
		n, meta, err := fetch(opts)
		if err != nil {
			return err
		}
		opts.Offset += n
		if n == 0 || int64(opts.Offset) >= meta.TotalCount {
			return nil
		}
		if meta.MaxLimit > 0 {
			opts.Limit = meta.MaxLimit
		}
	}
}

// ownerName renders an object's owner for listings: full name when
// the server sent one, else login name, else a placeholder.
func ownerName(details *omero.Details) string {
	if details == nil || details.Owner == nil {
		return "-"
	}
	owner := details.Owner
	if name := strings.TrimSpace(owner.FirstName + " " + owner.LastName); name != "" {
		return name
	}
	if owner.OmeName != "" {
		return owner.OmeName
	}
	return fmt.Sprintf("user %d", owner.ID)
}

// newTable returns the tabwriter all listings share: two-space
// padding, left aligned.
func newTable(stdout io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
}

type projectsCommand struct{}

func (projectsCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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

	ctx := ctxlog.Context(context.Background(), logger)
	client, err := Connect(ctx, stdin, stderr)
	if err != nil {
		return 1
	}
	defer client.Logout(ctx)

	table := newTable(stdout)
	fmt.Fprintln(table, "ID\tNAME\tOWNER\tDATASETS")
	err = forEachPage(omero.ListOptions{ChildCount: true}, func(opts omero.ListOptions) (int, omero.ListMeta, error) {
		page, err := client.ListProjects(ctx, opts)
		for _, project := range page.Items {
			fmt.Fprintf(table, "%d\t%s\t%s\t%s\n",
				project.ID, project.Name, ownerName(project.Details), humanize.Comma(project.DatasetCount))
		}
		return len(page.Items), page.Meta, err
	})
	if err != nil {
		return 1
	}
	if err = table.Flush(); err != nil {
		return 1
	}
	return 0
}

type datasetsCommand struct{}

func (datasetsCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := newLogger(stderr)
	var err error
	defer func() {
		if err != nil {
			logger.Error(err.Error())
		}
	}()

	flags := flag.NewFlagSet(prog, flag.ContinueOnError)
	projectID := flags.Int64("project", 0, "only datasets inside this project `id`")
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}

	ctx := ctxlog.Context(context.Background(), logger)
	client, err := Connect(ctx, stdin, stderr)
	if err != nil {
		return 1
	}
	defer client.Logout(ctx)

	table := newTable(stdout)
	fmt.Fprintln(table, "ID\tNAME\tOWNER\tIMAGES")
	err = forEachPage(omero.ListOptions{Project: *projectID, ChildCount: true}, func(opts omero.ListOptions) (int, omero.ListMeta, error) {
		page, err := client.ListDatasets(ctx, opts)
		for _, dataset := range page.Items {
			fmt.Fprintf(table, "%d\t%s\t%s\t%s\n",
				dataset.ID, dataset.Name, ownerName(dataset.Details), humanize.Comma(dataset.ImageCount))
		}
		return len(page.Items), page.Meta, err
	})
	if err != nil {
		return 1
	}
	if err = table.Flush(); err != nil {
		return 1
	}
	return 0
}

type groupsCommand struct{}

func (groupsCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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

	ctx := ctxlog.Context(context.Background(), logger)
	client, err := Connect(ctx, stdin, stderr)
	if err != nil {
		return 1
	}
	defer client.Logout(ctx)

	table := newTable(stdout)
	fmt.Fprintln(table, "ID\tNAME\tDESCRIPTION")
	err = forEachPage(omero.ListOptions{}, func(opts omero.ListOptions) (int, omero.ListMeta, error) {
		page, err := client.ListGroups(ctx, opts)
		for _, group := range page.Items {
			fmt.Fprintf(table, "%d\t%s\t%s\n", group.ID, group.Name, group.Description)
		}
		return len(page.Items), page.Meta, err
	})
	if err != nil {
		return 1
	}
	if err = table.Flush(); err != nil {
		return 1
	}
	return 0
}

type imagesCommand struct{}

func (imagesCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := newLogger(stderr)
	var err error
	defer func() {
		if err != nil {
			logger.Error(err.Error())
		}
	}()

	flags := flag.NewFlagSet(prog, flag.ContinueOnError)
	datasetID := flags.Int64("dataset", 0, "only images inside this dataset `id`")
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}

	ctx := ctxlog.Context(context.Background(), logger)
	client, err := Connect(ctx, stdin, stderr)
	if err != nil {
		return 1
	}
	defer client.Logout(ctx)

	table := newTable(stdout)
	fmt.Fprintln(table, "ID\tNAME\tOWNER\tDIMENSIONS\tSIZE\tACQUIRED")
	err = forEachPage(omero.ListOptions{Dataset: *datasetID}, func(opts omero.ListOptions) (int, omero.ListMeta, error) {
		page, err := client.ListImages(ctx, opts)
		for _, img := range page.Items {
			fmt.Fprintf(table, "%d\t%s\t%s\t%s\t%s\t%s\n",
				img.ID, img.Name, ownerName(img.Details),
				imageDimensions(img.Pixels), imageDataSize(img.Pixels), imageAcquired(img.AcquisitionDate))
		}
		return len(page.Items), page.Meta, err
	})
	if err != nil {
		return 1
	}
	if err = table.Flush(); err != nil {
		return 1
	}
	return 0
}

// imageDimensions renders XYZCT pixel dimensions, like 1024x1024x5x3x1.
func imageDimensions(info *omero.PixelsInfo) string {
	if info == nil {
		return "-"
	}
	return fmt.Sprintf("%dx%dx%dx%dx%d", info.SizeX, info.SizeY, info.SizeZ, info.SizeC, info.SizeT)
}

// imageDataSize renders the uncompressed pixel data size, like
// 30 MiB.
func imageDataSize(info *omero.PixelsInfo) string {
	if info == nil || info.PixelsType == nil {
		return "-"
	}
	width := info.PixelsType.Value.Bytes()
	if width == 0 {
		return "-"
	}
	n := uint64(info.SizeX) * uint64(info.SizeY) * uint64(info.SizeZ) * uint64(info.SizeC) * uint64(info.SizeT) * uint64(width)
	return humanize.IBytes(n)
}

// imageAcquired renders an acquisition timestamp (milliseconds since
// the epoch) as a relative time, like "3 years ago".
func imageAcquired(msec int64) string {
	if msec == 0 {
		return "-"
	}
	return humanize.Time(time.UnixMilli(msec))
}
