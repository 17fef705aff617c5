// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Session describes the server-side login session established by
// Login, as reported by the server's event context.
type Session struct {
	UUID           string  `json:"sessionUuid"`
	UserID         int64   `json:"userId"`
	UserName       string  `json:"userName"`
	GroupID        int64   `json:"groupId"`
	GroupName      string  `json:"groupName"`
	IsAdmin        bool    `json:"isAdmin"`
	MemberOfGroups []int64 `json:"memberOfGroups"`
}

// apiVersion is one entry in the server's version listing at /api/.
type apiVersion struct {
	Version string `json:"version"`
	BaseURL string `json:"url:base"`
}

// apiServer is one OMERO server offered by the web gateway.
type apiServer struct {
	ID     int64  `json:"id"`
	Server string `json:"server"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
}

// apiDirectory returns the server's URL directory: the url:* map
// served at the newest versioned API base. The directory is fetched
// once per session and cached.
func (c *Client) apiDirectory(ctx context.Context) (map[string]string, error) {
	state := c.state()
	state.mtx.Lock()
	dir := state.dir
	state.mtx.Unlock()
	if dir != nil {
		return dir, nil
	}
	var versions struct {
		Data []apiVersion `json:"data"`
	}
	err := c.RequestAndDecodeContext(ctx, &versions, "GET", "api/", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("listing API versions: %w", err)
	}
	if len(versions.Data) == 0 {
		return nil, fmt.Errorf("server at %s offers no JSON API versions", c.WebHost)
	}
	// Entries are ordered oldest first; use the newest.
	base := versions.Data[len(versions.Data)-1].BaseURL
	dir = map[string]string{}
	err = c.RequestAndDecodeContext(ctx, &dir, "GET", base, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching API URL directory: %w", err)
	}
	state.mtx.Lock()
	state.baseURL, state.dir = base, dir
	state.mtx.Unlock()
	return dir, nil
}

// dirURL returns one entry of the API URL directory, e.g.
// dirURL(ctx, "url:projects").
func (c *Client) dirURL(ctx context.Context, key string) (string, error) {
	dir, err := c.apiDirectory(ctx)
	if err != nil {
		return "", err
	}
	u, ok := dir[key]
	if !ok {
		return "", fmt.Errorf("server API directory has no %q entry", key)
	}
	return u, nil
}

// Login establishes a new session, replacing any existing one. The
// session is shared with every copy of c made with WithGroup,
// AllGroups, and WithRequestID.
//
// When the web gateway fronts several OMERO servers, c.ServerID
// chooses one; with ServerID zero the sole offered server is used,
// and an ambiguous listing is an error.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	state := c.state()

	tokenURL, err := c.dirURL(ctx, "url:token")
	if err != nil {
		return nil, err
	}
	var token struct {
		Data string `json:"data"`
	}
	err = c.RequestAndDecodeContext(ctx, &token, "GET", tokenURL, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching CSRF token: %w", err)
	}
	if token.Data == "" {
		return nil, fmt.Errorf("server at %s returned an empty CSRF token", c.WebHost)
	}
	state.setCSRF(token.Data)

	serverID := c.ServerID
	if serverID == 0 {
		serversURL, err := c.dirURL(ctx, "url:servers")
		if err != nil {
			return nil, err
		}
		var servers struct {
			Data []apiServer `json:"data"`
		}
		err = c.RequestAndDecodeContext(ctx, &servers, "GET", serversURL, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("listing servers: %w", err)
		}
		switch len(servers.Data) {
		case 0:
			return nil, fmt.Errorf("web gateway at %s offers no OMERO servers to log in to", c.WebHost)
		case 1:
			serverID = servers.Data[0].ID
		default:
			return nil, fmt.Errorf("web gateway at %s offers %d OMERO servers; set ServerID to choose one", c.WebHost, len(servers.Data))
		}
	}

	loginURL, err := c.dirURL(ctx, "url:login")
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"username": {username},
		"password": {password},
		"server":   {fmt.Sprintf("%d", serverID)},
	}
	req, err := http.NewRequestWithContext(ctx, "POST", loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var reply struct {
		Success      bool     `json:"success"`
		EventContext *Session `json:"eventContext"`
	}
	err = c.DoAndDecode(&reply, req)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if !reply.Success || reply.EventContext == nil {
		return nil, errors.New("login failed: server did not establish a session")
	}
	session := *reply.EventContext
	state.mtx.Lock()
	state.session = &session
	state.mtx.Unlock()
	return &session, nil
}

// Logout ends the current session. The server-side delete is
// best-effort: local session state is cleared even when it fails.
// Logging out while not logged in is a no-op.
func (c *Client) Logout(ctx context.Context) error {
	state := c.state()
	state.mtx.Lock()
	loggedIn := state.session != nil
	state.mtx.Unlock()
	if !loggedIn {
		return nil
	}
	loginURL, err := c.dirURL(ctx, "url:login")
	if err != nil {
		return err
	}
	err = c.RequestAndDecodeContext(ctx, nil, "DELETE", loginURL, nil, nil)
	state.mtx.Lock()
	state.session = nil
	state.cookies = nil
	state.csrf = ""
	state.mtx.Unlock()
	return err
}

// Session returns a copy of the current login session, or nil before
// a successful Login (and after Logout).
func (c *Client) Session() *Session {
	state := c.state()
	state.mtx.Lock()
	defer state.mtx.Unlock()
	if state.session == nil {
		return nil
	}
	session := *state.session
	return &session
}

// SelectGroup verifies that the logged-in user is a member of the
// given group, then makes it the default group for subsequent
// requests through c. On failure the previously selected group stays
// selected.
//
// SelectGroup mutates c: unlike WithGroup it must not be called
// concurrently with requests through the same copy of the client.
func (c *Client) SelectGroup(ctx context.Context, groupID int64) error {
	session := c.Session()
	if session == nil {
		return ErrNoSession
	}
	groups, err := c.ListUserGroups(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("checking membership of group %d: %w", groupID, err)
	}
	for _, g := range groups {
		if g.ID == groupID {
			c.GroupID = groupID
			return nil
		}
	}
	return fmt.Errorf("cannot select group %d: user %q is not a member: %w", groupID, session.UserName, ErrInvalidArgument)
}

// WithGroup returns a new shallow copy of c whose requests are scoped
// to the given group (-1 means all groups the session can see). The
// copy shares c's login session.
func (c *Client) WithGroup(groupID int64) *Client {
	c.state()
	cc := *c
	cc.GroupID = groupID
	return &cc
}

// AllGroups returns a copy of c that reads across all groups the
// session can see. Writes through the copy still go to the session's
// default group.
func (c *Client) AllGroups() *Client {
	return c.WithGroup(-1)
}

// queryGroup returns the group ID reads are scoped to: the pinned
// group when there is one, otherwise -1 (all groups).
func (c *Client) queryGroup() int64 {
	if c.GroupID != 0 {
		return c.GroupID
	}
	return -1
}

// saveGroup returns the group new objects are written into: the
// pinned group when there is one, otherwise the session's default
// group.
func (c *Client) saveGroup() (int64, error) {
	if c.GroupID > 0 {
		return c.GroupID, nil
	}
	session := c.Session()
	if session == nil {
		return 0, ErrNoSession
	}
	return session.GroupID, nil
}
