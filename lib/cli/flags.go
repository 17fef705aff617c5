// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package cli implements the subcommands of the omero-client command
// line tool.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/openmicroscopy/omero-go/lib/cmd"
	"github.com/openmicroscopy/omero-go/sdk/go/config"
	"github.com/openmicroscopy/omero-go/sdk/go/ctxlog"
	"github.com/openmicroscopy/omero-go/sdk/go/omero"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh/terminal"
)

// CommonFlagValues are the flags that may appear before the
// subcommand, as in "omero-client -f yaml get image/42".
type CommonFlagValues struct {
	Format string
	DryRun bool
}

// CommonFlagSet returns the flag set the multiplexer uses to
// recognize pre-subcommand flags and move the subcommand to the
// front. Subcommands that honor these flags declare them again on
// their own flag sets.
func CommonFlagSet() (cmd.FlagSet, *CommonFlagValues) {
	values := &CommonFlagValues{Format: "json"}
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.StringVar(&values.Format, "format", values.Format, "output format")
	flags.StringVar(&values.Format, "f", values.Format, "shorthand for -format")
	flags.BoolVar(&values.DryRun, "dry-run", false, "don't actually do anything")
	flags.BoolVar(&values.DryRun, "n", false, "shorthand for -dry-run")
	return flags, values
}

// newLogger returns the stderr logger subcommands report failures
// through: plain text, no timestamp or level prefix.
func newLogger(stderr io.Writer) *logrus.Logger {
	logger := ctxlog.New(stderr, "text", "info")
	logger.SetFormatter(cmd.NoPrefixFormatter{})
	return logger
}

// loginWithSettings builds a client from settings, resolves
// credentials, logs in, and pins the configured group. It returns the
// client and the login name that worked, so "login -save" can record
// a name that was typed at the prompt. The caller ends the session
// with client.Logout.
func loginWithSettings(ctx context.Context, settings config.Settings, stdin io.Reader, stderr io.Writer) (*omero.Client, string, error) {
	client, err := omero.NewClientFromConfig(settings)
	if err != nil {
		return nil, "", err
	}
	username, password, err := credentials(settings, stdin, stderr)
	if err != nil {
		return nil, "", err
	}
	if _, err := client.Login(ctx, username, password); err != nil {
		return nil, "", err
	}
	if err := selectConfiguredGroup(ctx, client, settings.Group); err != nil {
		client.Logout(ctx)
		return nil, "", err
	}
	return client, username, nil
}

// Connect logs in using the ambient settings (settings file overlaid
// with OMERO_* environment variables). Every data subcommand starts
// with Connect and defers client.Logout.
func Connect(ctx context.Context, stdin io.Reader, stderr io.Writer) (*omero.Client, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	client, _, err := loginWithSettings(ctx, settings, stdin, stderr)
	return client, err
}

// credentials resolves the login name and password: the settings (or
// OMERO_USER) and OMERO_PASS environment variable first, interactive
// prompts when stdin is a terminal. The password prompt reads with
// echo off; passwords are never written to settings or logs.
func credentials(settings config.Settings, stdin io.Reader, stderr io.Writer) (username, password string, err error) {
	username = settings.User
	if username == "" {
		username, err = promptLine(stdin, stderr, "Username: ")
		if err != nil {
			return "", "", err
		}
	}
	if username == "" {
		return "", "", errors.New("no user name: set OMERO_USER, or save one with \"omero-client login -save\"")
	}
	password = os.Getenv("OMERO_PASS")
	if password == "" {
		password, err = promptPassword(stdin, stderr)
		if err != nil {
			return "", "", err
		}
	}
	return username, password, nil
}

// terminalFd returns stdin's file descriptor if stdin is an
// interactive terminal.
func terminalFd(stdin io.Reader) (int, bool) {
	f, ok := stdin.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, terminal.IsTerminal(fd)
}

// promptLine prints a prompt and reads one line, when stdin is a
// terminal. Otherwise it returns "" without consuming any input.
func promptLine(stdin io.Reader, stderr io.Writer, label string) (string, error) {
	if _, ok := terminalFd(stdin); !ok {
		return "", nil
	}
	fmt.Fprint(stderr, label)
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads a password with terminal echo turned off.
// Without a terminal there is nothing safe to read from, so callers
// get told to use OMERO_PASS instead.
func promptPassword(stdin io.Reader, stderr io.Writer) (string, error) {
	fd, ok := terminalFd(stdin)
	if !ok {
		return "", errors.New("no password: set OMERO_PASS, or run interactively")
	}
	fmt.Fprint(stderr, "Password: ")
	defer fmt.Fprintln(stderr)
	buf, err := terminal.ReadPassword(fd)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// selectConfiguredGroup pins the session to the settings' group: a
// numeric value is treated as a group ID, anything else is resolved
// by exact name. An empty group leaves the session's default group
// selected.
func selectConfiguredGroup(ctx context.Context, client *omero.Client, group string) error {
	if group == "" {
		return nil
	}
	gid, err := strconv.ParseInt(group, 10, 64)
	if err != nil {
		gid, err = client.GetGroupID(ctx, group)
		if err != nil {
			return fmt.Errorf("resolving group %q: %w", group, err)
		}
	}
	return client.SelectGroup(ctx, gid)
}

// parseTypeID splits an object argument like "image/42".
func parseTypeID(arg string) (omero.ObjectType, int64, error) {
	kind, idStr, ok := strings.Cut(arg, "/")
	if !ok {
		return "", 0, fmt.Errorf("bad object %q: want type/id, like image/42", arg)
	}
	objType, err := omero.ParseObjectType(kind)
	if err != nil {
		return "", 0, err
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("bad object id %q in %q", idStr, arg)
	}
	return objType, id, nil
}
