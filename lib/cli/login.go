// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/openmicroscopy/omero-go/lib/cmd"
	"github.com/openmicroscopy/omero-go/sdk/go/config"
	"github.com/openmicroscopy/omero-go/sdk/go/ctxlog"
)

// Login verifies the configured credentials against the gateway and,
// with -save, writes the working settings (never the password) to the
// settings file.
var Login = loginCommand{}

type loginCommand struct{}

func (loginCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := newLogger(stderr)
	var err error
	defer func() {
		if err != nil {
			logger.Error(err.Error())
		}
	}()

	flags := flag.NewFlagSet(prog, flag.ContinueOnError)
	save := flags.Bool("save", false, "after a successful login, save the settings (never the password)")
	settingsPath := flags.String("c", config.Path(), "settings `file` to read, and to write with -save")
	if ok, code := cmd.ParseFlags(flags, prog, args, "", stderr); !ok {
		return code
	}

	settings, err := config.LoadFile(*settingsPath)
	if err != nil {
		return 1
	}
	settings, err = settings.ApplyEnv()
	if err != nil {
		return 1
	}

	ctx := ctxlog.Context(context.Background(), logger)
	client, username, err := loginWithSettings(ctx, settings, stdin, stderr)
	if err != nil {
		return 1
	}
	defer client.Logout(ctx)

	session := client.Session()
	fmt.Fprintf(stdout, "logged in to %s as %s (group %q)\n", client.WebHost, session.UserName, session.GroupName)
	if *save {
		settings.User = username
		if err = settings.Save(*settingsPath); err != nil {
			return 1
		}
		fmt.Fprintf(stdout, "settings saved to %s\n", *settingsPath)
	}
	return 0
}

// Logout establishes a session with the configured credentials and
// ends it server side, verifying both directions of the handshake.
var Logout = logoutCommand{}

type logoutCommand struct{}

func (logoutCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	if err = client.Logout(ctx); err != nil {
		return 1
	}
	fmt.Fprintf(stdout, "logged out from %s\n", client.WebHost)
	return 0
}
