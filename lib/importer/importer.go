// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package importer drives the external "omero import" tool, the
// supported path for bulk imports, and reconciles the result through
// the web API: containers are found or created by name, imported
// images are resolved by client path and filed into their dataset,
// new plates are filed into their screen, and key-value annotations
// are posted on the result.
package importer

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/google/shlex"
	"github.com/openmicroscopy/omero-go/sdk/go/ctxlog"
	"github.com/openmicroscopy/omero-go/sdk/go/omero"
	"golang.org/x/sys/unix"
)

// Runner invokes the external import tool. Tests substitute a fake.
type Runner interface {
	// Run invokes the tool with the given arguments, writing its
	// combined output to output.
	Run(ctx context.Context, output io.Writer, args ...string) error
}

// ExecRunner runs Prog ("omero" if empty) as a subprocess.
type ExecRunner struct {
	Prog string
}

func (r ExecRunner) Run(ctx context.Context, output io.Writer, args ...string) error {
	prog := r.Prog
	if prog == "" {
		prog = "omero"
	}
	cmd := exec.CommandContext(ctx, prog, args...)
	cmd.Stdout = output
	cmd.Stderr = output
	return cmd.Run()
}

// Report accounts for one import run.
type Report struct {
	Imported  int // files the import tool accepted
	Linked    int // images filed into datasets, plates filed into screens
	Annotated int // images and plates that received key-value annotations

	// Images maps each imported file to the image IDs it produced.
	// Screen imports fill Plates instead.
	Images map[string][]int64
	Plates map[string][]int64

	// Failures describe everything that went wrong, one line per
	// failed file or entry. A run continues past failures.
	Failures []string
}

// Failed reports whether anything in the run went wrong.
func (r *Report) Failed() bool { return len(r.Failures) > 0 }

// Importer imports the files of a manifest. Client must be logged in;
// the external tool joins its session, so no credentials pass through
// the tool invocation.
type Importer struct {
	Client *omero.Client

	// Runner invokes the external tool. Nil means ExecRunner{}.
	Runner Runner

	// LnS imports in place (--transfer=ln_s): the server links to
	// the original files instead of copying them into its managed
	// repository.
	LnS bool

	// ExtraArgs are appended to every tool invocation, split like a
	// shell would. Connection options such as "-s host -p port" go
	// here when the tool's own configuration is not enough.
	ExtraArgs string

	// DryRun plans the run without creating anything or invoking
	// the tool; the report counts what would be imported.
	DryRun bool

	// Output receives the tool's combined output. Nil discards it.
	Output io.Writer
}

// Run imports every entry of the manifest. Per-file and per-entry
// problems land in the report, which keeps the run going; the
// returned error is reserved for conditions that invalidate the whole
// run, like a missing session or a canceled context.
func (imp *Importer) Run(ctx context.Context, m *Manifest) (*Report, error) {
	report := &Report{
		Images: map[string][]int64{},
		Plates: map[string][]int64{},
	}
	session := imp.Client.Session()
	if session == nil {
		return report, omero.ErrNoSession
	}
	extraArgs, err := shlex.Split(imp.ExtraArgs)
	if err != nil {
		return report, fmt.Errorf("parsing extra args %q: %v", imp.ExtraArgs, err)
	}
	// Writes land in the pinned group if any, otherwise the
	// session's default group. Lookups scope to the same group so
	// an entry never reuses a container its imports cannot go to.
	group := imp.Client.GroupID
	if group <= 0 {
		group = session.GroupID
	}
	for i := range m.Entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		err := imp.runEntry(ctx, report, &m.Entries[i], runArgs{
			sessionKey: session.UUID,
			group:      group,
			extra:      extraArgs,
		})
		if err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("entry %d (%s): %v", i, m.Entries[i].Path, err))
		}
	}
	return report, nil
}

// runArgs carries the per-run constants down the entry/file helpers.
type runArgs struct {
	sessionKey string
	group      int64
	extra      []string
}

func (imp *Importer) runEntry(ctx context.Context, report *Report, entry *Entry, run runArgs) error {
	if entry.Screen != "" {
		screenID, err := imp.screenTarget(ctx, entry.Screen, run.group)
		if err != nil {
			return err
		}
		for _, file := range entry.Files {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := imp.importToScreen(ctx, report, entry, screenID, file, run)
			if err != nil {
				report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", file, err))
			}
		}
		return nil
	}
	datasetID, err := imp.datasetTarget(ctx, entry, run.group)
	if err != nil {
		return err
	}
	for _, file := range entry.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := imp.importToDataset(ctx, report, entry, datasetID, file, run)
		if err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", file, err))
		}
	}
	return nil
}

// importFile checks the file is readable and hands it to the tool.
// The tool imports it orphaned; filing into containers happens
// through the API afterwards.
func (imp *Importer) importFile(ctx context.Context, file string, run runArgs) error {
	if err := unix.Access(file, unix.R_OK); err != nil {
		return fmt.Errorf("not readable: %v", err)
	}
	args := []string{"import", "-k", run.sessionKey}
	if imp.LnS {
		args = append(args, "--transfer=ln_s")
	}
	args = append(args, run.extra...)
	args = append(args, file)
	runner := imp.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	output := imp.Output
	if output == nil {
		output = io.Discard
	}
	if err := runner.Run(ctx, output, args...); err != nil {
		return fmt.Errorf("import tool: %v", err)
	}
	return nil
}

func (imp *Importer) importToDataset(ctx context.Context, report *Report, entry *Entry, datasetID int64, file string, run runArgs) error {
	logger := ctxlog.FromContext(ctx).WithField("path", file)
	if imp.DryRun {
		logger.Info("would import")
		report.Imported++
		return nil
	}
	if err := imp.importFile(ctx, file, run); err != nil {
		return err
	}
	report.Imported++
	imageIDs, err := imp.imagesForClientPath(ctx, file, run.group)
	if err != nil {
		return fmt.Errorf("resolving imported images: %v", err)
	}
	if len(imageIDs) == 0 {
		return fmt.Errorf("no image registered for client path %q", file)
	}
	report.Images[file] = imageIDs
	if err := imp.Client.LinkImagesToDataset(ctx, imageIDs, datasetID); err != nil {
		return err
	}
	report.Linked += len(imageIDs)
	logger.WithField("images", imageIDs).WithField("dataset", datasetID).Info("imported")
	if len(entry.KV) == 0 {
		return nil
	}
	for _, imageID := range imageIDs {
		_, err := imp.Client.PostMapAnnotation(ctx, omero.ObjectImage, imageID, entry.KV, entry.Namespace)
		if err != nil {
			return fmt.Errorf("annotating image %d: %v", imageID, err)
		}
		report.Annotated++
	}
	return nil
}

// importToScreen imports one plate file. Plates have no client path
// to query by, so the new ones are found by diffing the orphan plate
// list around the tool invocation.
func (imp *Importer) importToScreen(ctx context.Context, report *Report, entry *Entry, screenID int64, file string, run runArgs) error {
	logger := ctxlog.FromContext(ctx).WithField("path", file)
	if imp.DryRun {
		logger.Info("would import")
		report.Imported++
		return nil
	}
	before, err := imp.Client.GetPlateIDs(ctx, 0)
	if err != nil {
		return fmt.Errorf("listing orphan plates: %v", err)
	}
	known := make(map[int64]bool, len(before))
	for _, id := range before {
		known[id] = true
	}
	if err := imp.importFile(ctx, file, run); err != nil {
		return err
	}
	report.Imported++
	after, err := imp.Client.GetPlateIDs(ctx, 0)
	if err != nil {
		return fmt.Errorf("listing orphan plates: %v", err)
	}
	var plateIDs []int64
	for _, id := range after {
		if !known[id] {
			plateIDs = append(plateIDs, id)
		}
	}
	if len(plateIDs) == 0 {
		return fmt.Errorf("no new plate appeared for %q", file)
	}
	report.Plates[file] = plateIDs
	if err := imp.Client.LinkPlatesToScreen(ctx, plateIDs, screenID); err != nil {
		return err
	}
	report.Linked += len(plateIDs)
	logger.WithField("plates", plateIDs).WithField("screen", screenID).Info("imported")
	if len(entry.KV) == 0 {
		return nil
	}
	for _, plateID := range plateIDs {
		_, err := imp.Client.PostMapAnnotation(ctx, omero.ObjectPlate, plateID, entry.KV, entry.Namespace)
		if err != nil {
			return fmt.Errorf("annotating plate %d: %v", plateID, err)
		}
		report.Annotated++
	}
	return nil
}

// datasetTarget finds the entry's dataset by exact name, creating it
// (and its project) when missing. In a dry run nothing is created and
// the returned ID may be zero.
func (imp *Importer) datasetTarget(ctx context.Context, entry *Entry, group int64) (int64, error) {
	logger := ctxlog.FromContext(ctx)
	var projectID int64
	if entry.Project != "" {
		list, err := imp.Client.ListProjects(ctx, omero.ListOptions{Name: entry.Project, Group: group})
		if err != nil {
			return 0, fmt.Errorf("looking up project %q: %v", entry.Project, err)
		}
		switch {
		case len(list.Items) > 0:
			projectID = list.Items[0].ID
		case imp.DryRun:
			logger.Infof("would create project %q", entry.Project)
		default:
			projectID, err = imp.Client.CreateProject(ctx, entry.Project, "")
			if err != nil {
				return 0, err
			}
			logger.WithField("project", projectID).Infof("created project %q", entry.Project)
		}
	}
	opts := omero.ListOptions{Name: entry.Dataset, Group: group, Project: projectID}
	list, err := imp.Client.ListDatasets(ctx, opts)
	if err != nil {
		return 0, fmt.Errorf("looking up dataset %q: %v", entry.Dataset, err)
	}
	switch {
	case len(list.Items) > 0:
		return list.Items[0].ID, nil
	case imp.DryRun:
		logger.Infof("would create dataset %q", entry.Dataset)
		return 0, nil
	default:
		datasetID, err := imp.Client.CreateDataset(ctx, entry.Dataset, "", projectID)
		if err != nil {
			return 0, err
		}
		logger.WithField("dataset", datasetID).Infof("created dataset %q", entry.Dataset)
		return datasetID, nil
	}
}

// screenTarget finds a screen by exact name, creating it when
// missing. In a dry run nothing is created and the returned ID may be
// zero.
func (imp *Importer) screenTarget(ctx context.Context, name string, group int64) (int64, error) {
	logger := ctxlog.FromContext(ctx)
	list, err := imp.Client.ListScreens(ctx, omero.ListOptions{Name: name, Group: group})
	if err != nil {
		return 0, fmt.Errorf("looking up screen %q: %v", name, err)
	}
	switch {
	case len(list.Items) > 0:
		return list.Items[0].ID, nil
	case imp.DryRun:
		logger.Infof("would create screen %q", name)
		return 0, nil
	default:
		screenID, err := imp.Client.CreateScreen(ctx, name, "")
		if err != nil {
			return 0, err
		}
		logger.WithField("screen", screenID).Infof("created screen %q", name)
		return screenID, nil
	}
}

// imagesForClientPath pages through the images whose import fileset
// registered the given client path.
func (imp *Importer) imagesForClientPath(ctx context.Context, file string, group int64) ([]int64, error) {
	var ids []int64
	opts := omero.ListOptions{ClientPath: file, Group: group}
	for {
		list, err := imp.Client.ListImages(ctx, opts)
		if err != nil {
			return nil, err
		}
		for _, image := range list.Items {
			ids = append(ids, image.ID)
		}
		opts.Offset += len(list.Items)
		if len(list.Items) == 0 || int64(opts.Offset) >= list.Meta.TotalCount {
			return ids, nil
		}
		if list.Meta.MaxLimit > 0 {
			opts.Limit = list.Meta.MaxLimit
		}
	}
}
