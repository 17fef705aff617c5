// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package omerotest provides an in-process fake OMERO.web server,
// canned fixtures, and stubs for tests.
package omerotest

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/gorilla/mux"
	"github.com/openmicroscopy/omero-go/sdk/go/httpserver"
	"github.com/openmicroscopy/omero-go/sdk/go/omero"
)

const (
	schemaOME = "http://www.openmicroscopy.org/Schemas/OME/2016-06#"
	schemaTBD = "TBD#"
)

// pixelWidths maps wire pixel type names to bytes per pixel.
var pixelWidths = map[string]int{
	"int8": 1, "uint8": 1,
	"int16": 2, "uint16": 2,
	"int32": 4, "uint32": 4,
	"float": 4, "double": 8,
}

// linkKinds maps a link @type suffix to the object kinds it joins.
var linkKinds = map[string]struct{ parent, child string }{
	"ProjectDatasetLink":    {"projects", "datasets"},
	"DatasetImageLink":      {"datasets", "images"},
	"ScreenPlateLink":       {"screens", "plates"},
	"PlateWellLink":         {"plates", "wells"},
	"ProjectAnnotationLink": {"projects", "annotations"},
	"DatasetAnnotationLink": {"datasets", "annotations"},
	"ImageAnnotationLink":   {"images", "annotations"},
	"ScreenAnnotationLink":  {"screens", "annotations"},
	"PlateAnnotationLink":   {"plates", "annotations"},
	"WellAnnotationLink":    {"wells", "annotations"},
}

// objectKinds maps an object @type suffix to its endpoint name.
var objectKinds = map[string]string{
	"Project":        "projects",
	"Dataset":        "datasets",
	"Image":          "images",
	"Screen":         "screens",
	"Plate":          "plates",
	"Well":           "wells",
	"MapAnnotation":  "annotations",
	"TagAnnotation":  "annotations",
	"FileAnnotation": "annotations",
	"ROI":            "rois",
}

// containerKinds maps a container query parameter to the kind it
// refers to.
var containerKinds = map[string]string{
	"project": "projects",
	"dataset": "datasets",
	"image":   "images",
	"screen":  "screens",
	"plate":   "plates",
	"well":    "wells",
}

type fakeObject struct {
	id    int64
	kind  string
	owner int64
	group int64
	doc   map[string]interface{} // wire form minus @id and omero:details
}

type linkRec struct {
	id       int64
	typ      string // @type suffix, e.g. "ProjectDatasetLink"
	parentID int64
	childID  int64
}

type planeKey struct {
	image   int64
	z, c, t int
}

type storedFile struct {
	name     string
	mimetype string
	data     []byte
}

type fileset struct {
	filename   string
	clientPath string
	repoPath   string
}

type storedTable struct {
	Columns []map[string]string `json:"columns"`
	Rows    [][]interface{}     `json:"rows"`
}

// Server is a fake OMERO.web gateway backed by in-memory state. It
// speaks enough of the JSON API and the webgateway side channels for
// client tests: login with CSRF handshake, object CRUD through
// m/save/, containment and annotation links, filtered lists, pixel
// plane transfer, original file storage, and tables.
//
// NewServer loads the fixture objects declared in fixtures.go; Reset
// reloads them.
type Server struct {
	*httptest.Server

	mtx      sync.Mutex
	csrf     string
	sessions map[string]int64 // session cookie value -> user ID
	objects  map[string]map[int64]*fakeObject
	lastID   map[string]int64
	links    []linkRec
	planes   map[planeKey][]byte
	files    map[int64]*storedFile
	tables   map[int64]*storedTable
	filesets map[int64]*fileset // image ID -> import info
	roiImage map[int64]int64    // ROI ID -> image ID
	requests []string
}

// NewServer starts a fake server loaded with fixtures. Callers must
// Close() it when done.
func NewServer() *Server {
	s := &Server{}
	r := mux.NewRouter()
	r.Use(s.middleware)
	r.HandleFunc("/api/", s.apiVersions).Methods("GET")
	r.HandleFunc("/api/v0/", s.apiDirectory).Methods("GET")
	r.HandleFunc("/api/v0/token/", s.getToken).Methods("GET")
	r.HandleFunc("/api/v0/servers/", s.getServers).Methods("GET")
	r.HandleFunc("/api/v0/login/", s.postLogin).Methods("POST")
	r.HandleFunc("/api/v0/login/", s.deleteLogin).Methods("DELETE")
	r.HandleFunc("/api/v0/m/save/", s.save).Methods("POST", "PUT")
	r.HandleFunc("/api/v0/m/tables/", s.postTable).Methods("POST")
	r.HandleFunc("/api/v0/m/tables/{id:[0-9]+}/", s.getTable).Methods("GET")
	r.HandleFunc("/api/v0/m/{kind}/", s.list).Methods("GET")
	r.HandleFunc("/api/v0/m/{kind}/{id:[0-9]+}/", s.getOne).Methods("GET")
	r.HandleFunc("/api/v0/m/{kind}/{id:[0-9]+}/", s.deleteOne).Methods("DELETE")
	r.HandleFunc("/api/v0/m/{parent}/{id:[0-9]+}/{child}/", s.listChildren).Methods("GET")
	r.HandleFunc("/webgateway/plane/{image:[0-9]+}/{z:[0-9]+}/{c:[0-9]+}/{t:[0-9]+}/", s.getPlane).Methods("GET")
	r.HandleFunc("/webgateway/plane/{image:[0-9]+}/{z:[0-9]+}/{c:[0-9]+}/{t:[0-9]+}/", s.putPlane).Methods("PUT")
	r.HandleFunc("/webgateway/render_birds_eye_view/{image:[0-9]+}/{size:[0-9]+}/", s.renderBirdsEye).Methods("GET")
	r.HandleFunc("/webgateway/original_file_paths/{image:[0-9]+}/", s.originalFilePaths).Methods("GET")
	r.HandleFunc("/webgateway/original_file/", s.postOriginalFile).Methods("POST")
	r.HandleFunc("/webgateway/original_file/{id:[0-9]+}/", s.getOriginalFile).Methods("GET")
	// Echo X-Request-Id and log requests the way a real gateway
	// would, so tests can assert the client's request-ID plumbing
	// end to end (and see the wire traffic when debugging).
	s.Server = httptest.NewServer(httpserver.AddRequestIDs(httpserver.LogRequests(nil, r)))
	s.Reset()
	return s
}

// Client returns a new client aimed at this server. The client is not
// logged in.
func (s *Server) Client() *omero.Client {
	u, _ := url.Parse(s.URL)
	return &omero.Client{
		Scheme:  "http",
		WebHost: u.Host,
		Timeout: time.Minute,
	}
}

// Requests returns "METHOD /path?query" for every request handled
// since the last Reset, in arrival order.
func (s *Server) Requests() []string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]string(nil), s.requests...)
}

// Reset drops all state (including sessions) and reloads fixtures.
func (s *Server) Reset() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.csrf = randHex(16)
	s.sessions = map[string]int64{}
	s.objects = map[string]map[int64]*fakeObject{}
	for _, kind := range []string{"projects", "datasets", "images", "screens", "plates", "wells", "annotations", "rois", "experimenters", "experimentergroups"} {
		s.objects[kind] = map[int64]*fakeObject{}
	}
	s.lastID = map[string]int64{}
	s.links = nil
	s.planes = map[planeKey][]byte{}
	s.files = map[int64]*storedFile{}
	s.tables = map[int64]*storedTable{}
	s.filesets = map[int64]*fileset{}
	s.roiImage = map[int64]int64{}
	s.requests = nil
	s.loadFixtures()
}

// AddImportedPlate creates a plate, linked under a screen when
// screenID is nonzero and orphaned otherwise. Returns the new plate's
// ID.
func (s *Server) AddImportedPlate(name string, screenID int64) int64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	id := s.allocIDLocked("plates")
	s.addObjectLocked("plates", id, UserID, GroupImaging, map[string]interface{}{
		"@type":   schemaOME + "Plate",
		"Name":    name,
		"Rows":    2,
		"Columns": 3,
	})
	if screenID != 0 {
		s.addLinkLocked("ScreenPlateLink", screenID, id)
	}
	return id
}

// AddImportedImage creates an image carrying import fileset metadata,
// so filename and client-path filters have something to match. A
// nonzero datasetID links it there. Returns the new image's ID.
func (s *Server) AddImportedImage(name, filename, clientPath string, datasetID int64) int64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	id := s.allocIDLocked("images")
	s.addObjectLocked("images", id, UserID, GroupImaging, s.imageDocLocked(name))
	s.filesets[id] = &fileset{
		filename:   filename,
		clientPath: clientPath,
		repoPath:   "/OMERO/ManagedRepository/" + Username + "_" + strconv.FormatInt(UserID, 10) + "/" + filename,
	}
	s.storeFixturePlanesLocked(id)
	if datasetID != 0 {
		s.addLinkLocked("DatasetImageLink", datasetID, id)
	}
	return id
}

//
// Fixtures
//

func (s *Server) loadFixtures() {
	addUser := func(id int64, login, first, last string) {
		s.addObjectLocked("experimenters", id, 0, 0, map[string]interface{}{
			"@type":     schemaOME + "Experimenter",
			"UserName":  login,
			"FirstName": first,
			"LastName":  last,
			"Email":     login + "@example.org",
		})
	}
	addGroup := func(id int64, name string) {
		s.addObjectLocked("experimentergroups", id, 0, 0, map[string]interface{}{
			"@type": schemaOME + "ExperimenterGroup",
			"Name":  name,
		})
	}
	addUser(UserID, Username, "Test", "User")
	addUser(OtherUserID, "alice", "Alice", "Able")
	addGroup(GroupImaging, "imaging")
	addGroup(GroupScreening, "screening")
	s.addLinkLocked("GroupExperimenterMap", GroupImaging, UserID)
	s.addLinkLocked("GroupExperimenterMap", GroupImaging, OtherUserID)
	s.addLinkLocked("GroupExperimenterMap", GroupScreening, UserID)

	container := func(kind, typ string, id int64, group int64, name string) {
		s.addObjectLocked(kind, id, UserID, group, map[string]interface{}{
			"@type":       schemaOME + typ,
			"Name":        name,
			"Description": "fixture " + name,
		})
	}
	container("projects", "Project", ProjectA, GroupImaging, "quality control")
	container("projects", "Project", ProjectB, GroupScreening, "drug screen")
	container("datasets", "Dataset", Dataset1, GroupImaging, "run 1")
	container("datasets", "Dataset", Dataset2, GroupImaging, "run 2")
	container("datasets", "Dataset", DatasetOrphan, GroupImaging, "scratch")
	container("screens", "Screen", Screen1, GroupImaging, "pilot screen")

	plate := func(id int64, name string) {
		s.addObjectLocked("plates", id, UserID, GroupImaging, map[string]interface{}{
			"@type":   schemaOME + "Plate",
			"Name":    name,
			"Rows":    2,
			"Columns": 3,
		})
	}
	plate(Plate1, "plate-0001")
	plate(PlateOrphan, "plate-spare")

	s.addObjectLocked("wells", Well11, UserID, GroupImaging, map[string]interface{}{
		"@type":  schemaOME + "Well",
		"Row":    0,
		"Column": 0,
		"WellSamples": []interface{}{
			map[string]interface{}{
				"@id":   6001,
				"@type": schemaOME + "WellSample",
				"Image": map[string]interface{}{
					"@id":   ImageWell,
					"@type": schemaOME + "Image",
					"Name":  "field 1",
				},
			},
		},
	})
	s.addObjectLocked("wells", Well12, UserID, GroupImaging, map[string]interface{}{
		"@type":       schemaOME + "Well",
		"Row":         1,
		"Column":      2,
		"WellSamples": []interface{}{},
	})

	addImage := func(id int64, name string) {
		s.addObjectLocked("images", id, UserID, GroupImaging, s.imageDocLocked(name))
		s.storeFixturePlanesLocked(id)
	}
	addImage(Image1, "image 1")
	addImage(Image2, "image 2")
	addImage(Image3, "image 3")
	addImage(ImageOrphan, "scratch image")
	addImage(ImageWell, "field 1")

	s.filesets[Image1] = &fileset{Image1Filename, Image1ClientPath, "/OMERO/ManagedRepository/" + Image1Filename}
	s.filesets[Image2] = &fileset{Image2Filename, Image2ClientPath, "/OMERO/ManagedRepository/" + Image2Filename}
	s.filesets[Image3] = &fileset{Image3Filename, Image3ClientPath, "/OMERO/ManagedRepository/" + Image3Filename}

	s.addObjectLocked("annotations", MapAnn1, UserID, GroupImaging, map[string]interface{}{
		"@type":     schemaOME + "MapAnnotation",
		"Namespace": NSTest,
		"Value": []interface{}{
			[]interface{}{"genotype", "wt"},
			[]interface{}{"stage", "e12"},
		},
	})
	s.addObjectLocked("annotations", TagAnn1, UserID, GroupImaging, map[string]interface{}{
		"@type": schemaOME + "TagAnnotation",
		"Value": "golden",
	})

	s.addLinkLocked("ProjectDatasetLink", ProjectA, Dataset1)
	s.addLinkLocked("ProjectDatasetLink", ProjectA, Dataset2)
	s.addLinkLocked("DatasetImageLink", Dataset1, Image1)
	s.addLinkLocked("DatasetImageLink", Dataset1, Image2)
	s.addLinkLocked("DatasetImageLink", Dataset2, Image3)
	s.addLinkLocked("ScreenPlateLink", Screen1, Plate1)
	s.addLinkLocked("PlateWellLink", Plate1, Well11)
	s.addLinkLocked("PlateWellLink", Plate1, Well12)
	s.addLinkLocked("ImageAnnotationLink", Image1, MapAnn1)
	s.addLinkLocked("ImageAnnotationLink", Image1, TagAnn1)
}

// imageDocLocked builds an image document with the fixture pixel
// geometry (uint16, sizes from the ImageSize* constants).
func (s *Server) imageDocLocked(name string) map[string]interface{} {
	length := func(v float64) map[string]interface{} {
		return map[string]interface{}{
			"@type":  schemaTBD + "LengthI",
			"Unit":   "MICROMETER",
			"Symbol": "µm",
			"Value":  v,
		}
	}
	channels := []interface{}{}
	// Opaque blue, green, red, packed RGBA (int32 on the wire).
	colors := []int32{65535, 16711935, -16776961}
	for i, chName := range []string{"DAPI", "GFP", "RFP"} {
		channels = append(channels, map[string]interface{}{
			"@id":   s.allocIDLocked("channels"),
			"@type": schemaOME + "Channel",
			"Name":  chName,
			"Color": colors[i],
		})
	}
	return map[string]interface{}{
		"@type":           schemaOME + "Image",
		"Name":            name,
		"AcquisitionDate": 1461000000000,
		"Pixels": map[string]interface{}{
			"@id":   s.allocIDLocked("pixels"),
			"@type": schemaOME + "Pixels",
			"SizeX": ImageSizeX,
			"SizeY": ImageSizeY,
			"SizeZ": ImageSizeZ,
			"SizeC": ImageSizeC,
			"SizeT": ImageSizeT,
			"Type": map[string]interface{}{
				"@type": schemaOME + "PixelsType",
				"value": "uint16",
			},
			"PhysicalSizeX":   length(0.65),
			"PhysicalSizeY":   length(0.65),
			"SignificantBits": 16,
			"Channels":        channels,
		},
	}
}

func (s *Server) storeFixturePlanesLocked(imageID int64) {
	for z := 0; z < ImageSizeZ; z++ {
		for c := 0; c < ImageSizeC; c++ {
			for t := 0; t < ImageSizeT; t++ {
				buf := make([]byte, ImageSizeX*ImageSizeY*2)
				for y := 0; y < ImageSizeY; y++ {
					for x := 0; x < ImageSizeX; x++ {
						v := FixturePixelValue(x, y, z, c, t)
						buf[2*(y*ImageSizeX+x)] = byte(v)
						buf[2*(y*ImageSizeX+x)+1] = byte(v >> 8)
					}
				}
				s.planes[planeKey{imageID, z, c, t}] = buf
			}
		}
	}
}

//
// State helpers
//

func (s *Server) allocIDLocked(kind string) int64 {
	s.lastID[kind]++
	return s.lastID[kind]
}

func (s *Server) addObjectLocked(kind string, id, owner, group int64, doc map[string]interface{}) {
	s.objects[kind][id] = &fakeObject{id: id, kind: kind, owner: owner, group: group, doc: jsonize(doc)}
	if id > s.lastID[kind] {
		s.lastID[kind] = id
	}
}

func (s *Server) addLinkLocked(typ string, parentID, childID int64) int64 {
	id := s.allocIDLocked("links")
	s.links = append(s.links, linkRec{id: id, typ: typ, parentID: parentID, childID: childID})
	return id
}

func (s *Server) findLinkLocked(typ string, parentID, childID int64) bool {
	for _, l := range s.links {
		if l.typ == typ && l.parentID == parentID && l.childID == childID {
			return true
		}
	}
	return false
}

func (s *Server) childIDsLocked(typ string, parentID int64) []int64 {
	var ids []int64
	for _, l := range s.links {
		if l.typ == typ && l.parentID == parentID {
			ids = append(ids, l.childID)
		}
	}
	return ids
}

func (s *Server) parentIDsLocked(typ string, childID int64) []int64 {
	var ids []int64
	for _, l := range s.links {
		if l.typ == typ && l.childID == childID {
			ids = append(ids, l.parentID)
		}
	}
	return ids
}

func (s *Server) isWellSampleLocked(imageID int64) bool {
	for _, well := range s.objects["wells"] {
		samples, _ := well.doc["WellSamples"].([]interface{})
		for _, sample := range samples {
			m, _ := sample.(map[string]interface{})
			img, _ := m["Image"].(map[string]interface{})
			if img != nil && asID(img["@id"]) == imageID {
				return true
			}
		}
	}
	return false
}

func (s *Server) isOrphanLocked(o *fakeObject) bool {
	switch o.kind {
	case "datasets":
		return len(s.parentIDsLocked("ProjectDatasetLink", o.id)) == 0
	case "images":
		return len(s.parentIDsLocked("DatasetImageLink", o.id)) == 0 && !s.isWellSampleLocked(o.id)
	case "plates":
		return len(s.parentIDsLocked("ScreenPlateLink", o.id)) == 0
	default:
		return false
	}
}

func (s *Server) childCountLocked(o *fakeObject) int {
	switch o.kind {
	case "projects":
		return len(s.childIDsLocked("ProjectDatasetLink", o.id))
	case "datasets":
		return len(s.childIDsLocked("DatasetImageLink", o.id))
	case "screens":
		return len(s.childIDsLocked("ScreenPlateLink", o.id))
	case "plates":
		return len(s.childIDsLocked("PlateWellLink", o.id))
	default:
		return 0
	}
}

// renderLocked composes the wire form of an object: the stored
// document plus @id and omero:details (and omero:childCount on
// request).
func (s *Server) renderLocked(o *fakeObject, childCount bool) map[string]interface{} {
	doc := map[string]interface{}{}
	for k, v := range o.doc {
		doc[k] = v
	}
	doc["@id"] = o.id
	details := map[string]interface{}{
		"permissions": map[string]interface{}{"perm": "rwra--"},
	}
	if owner := s.objects["experimenters"][o.owner]; owner != nil {
		details["owner"] = map[string]interface{}{
			"@id":       owner.id,
			"@type":     owner.doc["@type"],
			"UserName":  owner.doc["UserName"],
			"FirstName": owner.doc["FirstName"],
			"LastName":  owner.doc["LastName"],
		}
	}
	if group := s.objects["experimentergroups"][o.group]; group != nil {
		details["group"] = map[string]interface{}{
			"@id":   group.id,
			"@type": group.doc["@type"],
			"Name":  group.doc["Name"],
		}
	}
	doc["omero:details"] = details
	if childCount {
		doc["omero:childCount"] = s.childCountLocked(o)
	}
	return doc
}

//
// HTTP plumbing
//

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mtx.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.RequestURI())
		csrf := s.csrf
		s.mtx.Unlock()
		switch r.Method {
		case "POST", "PUT", "DELETE":
			if r.Header.Get("X-CSRFToken") != csrf {
				jsonError(w, http.StatusForbidden, "CSRF token missing or incorrect")
				return
			}
			if r.Header.Get("Referer") == "" {
				jsonError(w, http.StatusForbidden, "Referer checking failed - no Referer")
				return
			}
		}
		if !openPath(r) && s.sessionUser(r) == 0 {
			jsonError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// openPath reports whether the request needs no session: the
// discovery and login handshake endpoints.
func openPath(r *http.Request) bool {
	switch r.URL.Path {
	case "/api/", "/api/v0/", "/api/v0/token/", "/api/v0/servers/", "/api/v0/login/":
		return true
	}
	return false
}

func (s *Server) sessionUser(r *http.Request) int64 {
	cookie, err := r.Cookie("sessionid")
	if err != nil {
		return 0
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.sessions[cookie.Value]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	httpserver.Error(w, msg, status)
}

func randHex(n int) string {
	buf := make([]byte, n)
	rand.Read(buf)
	return fmt.Sprintf("%x", buf)
}

// jsonize round-trips v through JSON so stored documents hold only
// JSON value types (float64 numbers, []interface{}, ...), whichever
// way they were built.
func jsonize(doc map[string]interface{}) map[string]interface{} {
	buf, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(buf, &out); err != nil {
		panic(err)
	}
	return out
}

// asID extracts an object ID from a decoded JSON value.
func asID(v interface{}) int64 {
	switch v := v.(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

func typeSuffix(uri string) string {
	if i := strings.LastIndex(uri, "#"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

//
// Discovery and login
//

func (s *Server) apiVersions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": []map[string]string{
			{"version": "0", "url:base": s.URL + "/api/v0/"},
		},
	})
}

func (s *Server) apiDirectory(w http.ResponseWriter, r *http.Request) {
	base := s.URL + "/api/v0/"
	dir := map[string]string{
		"url:token":   base + "token/",
		"url:servers": base + "servers/",
		"url:login":   base + "login/",
		"url:save":    base + "m/save/",
		"url:schema":  schemaOME,
	}
	for _, kind := range []string{"projects", "datasets", "images", "screens", "plates", "wells", "annotations", "rois", "experimenters", "experimentergroups", "tables"} {
		dir["url:"+kind] = base + "m/" + kind + "/"
	}
	writeJSON(w, http.StatusOK, dir)
}

func (s *Server) getToken(w http.ResponseWriter, r *http.Request) {
	s.mtx.Lock()
	csrf := s.csrf
	s.mtx.Unlock()
	http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: csrf, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]string{"data": csrf})
}

func (s *Server) getServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": []map[string]interface{}{
			{"id": ServerID, "server": "omero", "host": "localhost", "port": 4064},
		},
	})
}

func (s *Server) postLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if server := r.PostForm.Get("server"); server != strconv.Itoa(ServerID) {
		jsonError(w, http.StatusBadRequest, fmt.Sprintf("unknown server %q", server))
		return
	}
	if r.PostForm.Get("username") != Username || r.PostForm.Get("password") != Password {
		jsonError(w, http.StatusForbidden, "Login failed: incorrect username or password")
		return
	}
	sessionID := randHex(16)
	s.mtx.Lock()
	s.sessions[sessionID] = UserID
	// Rotate the CSRF token, like OMERO.web does at login.
	s.csrf = randHex(16)
	csrf := s.csrf
	s.mtx.Unlock()
	http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: sessionID, Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: csrf, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"eventContext": map[string]interface{}{
			"sessionUuid":    randHex(16),
			"userId":         UserID,
			"userName":       Username,
			"groupId":        GroupImaging,
			"groupName":      "imaging",
			"isAdmin":        false,
			"memberOfGroups": []int64{GroupImaging, GroupScreening},
		},
	})
}

func (s *Server) deleteLogin(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie("sessionid"); err == nil {
		s.mtx.Lock()
		delete(s.sessions, cookie.Value)
		s.mtx.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

//
// Object CRUD
//

func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(buf, &doc); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	typ, _ := doc["@type"].(string)
	suffix := typeSuffix(typ)
	if _, isLink := linkKinds[suffix]; isLink {
		s.saveLink(w, r, suffix, doc)
		return
	}
	kind, ok := objectKinds[suffix]
	if !ok {
		jsonError(w, http.StatusBadRequest, fmt.Sprintf("cannot save objects of type %q", typ))
		return
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if r.Method == "PUT" {
		s.updateObjectLocked(w, r, kind, doc)
		return
	}
	group := GroupImaging
	if g, err := strconv.Atoi(r.URL.Query().Get("group")); err == nil && g > 0 {
		if s.objects["experimentergroups"][int64(g)] == nil {
			jsonError(w, http.StatusBadRequest, fmt.Sprintf("unknown group %d", g))
			return
		}
		group = g
	}
	var imageID int64
	if kind == "rois" {
		imageID = asID(refID(doc["Image"]))
		if s.objects["images"][imageID] == nil {
			jsonError(w, http.StatusNotFound, fmt.Sprintf("image %d not found", imageID))
			return
		}
		if shapes, ok := doc["Shapes"].([]interface{}); ok {
			for _, shape := range shapes {
				if m, ok := shape.(map[string]interface{}); ok {
					m["@id"] = s.allocIDLocked("shapes")
				}
			}
		}
	}
	if kind == "images" {
		if pixels, ok := doc["Pixels"].(map[string]interface{}); ok {
			pixels["@id"] = s.allocIDLocked("pixels")
		}
	}
	if kind == "annotations" {
		// OMERO serves file annotations with omero:file filled
		// in, so hydrate a bare File reference from the stored
		// original file.
		if ref, ok := doc["File"].(map[string]interface{}); ok {
			if file := s.files[asID(ref["@id"])]; file != nil {
				ref["Name"] = file.name
				ref["Mimetype"] = file.mimetype
				ref["Size"] = len(file.data)
			}
		}
	}
	delete(doc, "@id")
	delete(doc, "omero:details")
	id := s.allocIDLocked(kind)
	s.addObjectLocked(kind, id, s.sessions[sessionCookie(r)], int64(group), doc)
	if kind == "rois" {
		s.roiImage[id] = imageID
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"data": s.renderLocked(s.objects[kind][id], false)})
}

func (s *Server) updateObjectLocked(w http.ResponseWriter, r *http.Request, kind string, doc map[string]interface{}) {
	id := asID(doc["@id"])
	if id == 0 {
		jsonError(w, http.StatusBadRequest, "update requires an @id")
		return
	}
	o := s.objects[kind][id]
	if o == nil {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("%s %d not found", strings.TrimSuffix(kind, "s"), id))
		return
	}
	delete(doc, "@id")
	delete(doc, "omero:details")
	delete(doc, "omero:childCount")
	o.doc = jsonize(doc)
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": s.renderLocked(o, false)})
}

// refID digs the @id out of an object reference sub-document.
func refID(v interface{}) interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m["@id"]
	}
	return nil
}

func (s *Server) saveLink(w http.ResponseWriter, r *http.Request, suffix string, doc map[string]interface{}) {
	kinds := linkKinds[suffix]
	parentID := asID(refID(doc["Parent"]))
	childID := asID(refID(doc["Child"]))
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.objects[kinds.parent][parentID] == nil {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("%s %d not found", strings.TrimSuffix(kinds.parent, "s"), parentID))
		return
	}
	if s.objects[kinds.child][childID] == nil {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("%s %d not found", strings.TrimSuffix(kinds.child, "s"), childID))
		return
	}
	if s.findLinkLocked(suffix, parentID, childID) {
		jsonError(w, http.StatusConflict, fmt.Sprintf("%s %d->%d already exists", suffix, parentID, childID))
		return
	}
	id := s.addLinkLocked(suffix, parentID, childID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": map[string]interface{}{
			"@id":    id,
			"@type":  schemaTBD + suffix,
			"Parent": map[string]interface{}{"@id": parentID},
			"Child":  map[string]interface{}{"@id": childID},
		},
	})
}

func sessionCookie(r *http.Request) string {
	if cookie, err := r.Cookie("sessionid"); err == nil {
		return cookie.Value
	}
	return ""
}

func (s *Server) getOne(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind := vars["kind"]
	id, _ := strconv.ParseInt(vars["id"], 10, 64)
	s.mtx.Lock()
	defer s.mtx.Unlock()
	objs, ok := s.objects[kind]
	if !ok {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("unknown resource %q", kind))
		return
	}
	o := objs[id]
	if o == nil {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("%s %d not found", strings.TrimSuffix(kind, "s"), id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": s.renderLocked(o, r.URL.Query().Get("childCount") == "true"),
	})
}

func (s *Server) deleteOne(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind := vars["kind"]
	id, _ := strconv.ParseInt(vars["id"], 10, 64)
	s.mtx.Lock()
	defer s.mtx.Unlock()
	objs, ok := s.objects[kind]
	if !ok || objs[id] == nil {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("%s %d not found", strings.TrimSuffix(kind, "s"), id))
		return
	}
	delete(objs, id)
	var kept []linkRec
	for _, l := range s.links {
		pk, ck := linkKinds[l.typ].parent, linkKinds[l.typ].child
		if l.typ == "GroupExperimenterMap" {
			pk, ck = "experimentergroups", "experimenters"
		}
		if (pk == kind && l.parentID == id) || (ck == kind && l.childID == id) {
			continue
		}
		kept = append(kept, l)
	}
	s.links = kept
	if kind == "images" {
		for key := range s.planes {
			if key.image == id {
				delete(s.planes, key)
			}
		}
		delete(s.filesets, id)
		for roiID, imageID := range s.roiImage {
			if imageID == id {
				delete(s.roiImage, roiID)
				delete(s.objects["rois"], roiID)
			}
		}
	}
	if kind == "rois" {
		delete(s.roiImage, id)
	}
	if kind == "annotations" {
		delete(s.tables, id)
	}
	w.WriteHeader(http.StatusNoContent)
}

//
// Lists
//

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	s.mtx.Lock()
	defer s.mtx.Unlock()
	objs, ok := s.objects[kind]
	if !ok {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("unknown resource %q", kind))
		return
	}
	q := r.URL.Query()
	containerKind, containerID, n := containerParam(q)
	if n > 1 {
		jsonError(w, http.StatusBadRequest, "only one container filter is allowed")
		return
	}
	if n == 1 && s.objects[containerKind][containerID] == nil {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("%s %d not found", strings.TrimSuffix(containerKind, "s"), containerID))
		return
	}
	var filtered []*fakeObject
	for _, o := range objs {
		if s.matchLocked(o, q, containerKind, containerID) {
			filtered = append(filtered, o)
		}
	}
	s.writePageLocked(w, q, filtered)
}

func (s *Server) listChildren(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	parent, child := vars["parent"], vars["child"]
	id, _ := strconv.ParseInt(vars["id"], 10, 64)
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.objects[parent] == nil || s.objects[parent][id] == nil {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("%s %d not found", strings.TrimSuffix(parent, "s"), id))
		return
	}
	var ids []int64
	switch parent + "/" + child {
	case "projects/datasets":
		ids = s.childIDsLocked("ProjectDatasetLink", id)
	case "datasets/images":
		ids = s.childIDsLocked("DatasetImageLink", id)
	case "screens/plates":
		ids = s.childIDsLocked("ScreenPlateLink", id)
	case "plates/wells":
		ids = s.childIDsLocked("PlateWellLink", id)
	case "images/rois":
		for roiID, imageID := range s.roiImage {
			if imageID == id {
				ids = append(ids, roiID)
			}
		}
	case "experimentergroups/experimenters":
		ids = s.childIDsLocked("GroupExperimenterMap", id)
	case "experimenters/experimentergroups":
		ids = s.parentIDsLocked("GroupExperimenterMap", id)
	default:
		jsonError(w, http.StatusNotFound, fmt.Sprintf("no %s listing under %s", child, parent))
		return
	}
	var filtered []*fakeObject
	for _, childID := range ids {
		if o := s.objects[child][childID]; o != nil && s.matchLocked(o, r.URL.Query(), "", 0) {
			filtered = append(filtered, o)
		}
	}
	s.writePageLocked(w, r.URL.Query(), filtered)
}

// writePageLocked sorts, pages, and renders one list response.
func (s *Server) writePageLocked(w http.ResponseWriter, q url.Values, objs []*fakeObject) {
	sort.Slice(objs, func(i, j int) bool { return objs[i].id < objs[j].id })
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit := 200
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = n
	}
	if limit > 500 {
		limit = 500
	}
	total := len(objs)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	childCount := q.Get("childCount") == "true"
	data := make([]map[string]interface{}, 0, end-offset)
	for _, o := range objs[offset:end] {
		data = append(data, s.renderLocked(o, childCount))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"meta": map[string]interface{}{
			"offset":     offset,
			"limit":      limit,
			"maxLimit":   500,
			"totalCount": total,
		},
	})
}

// containerParam finds the container filters present in a query and
// returns the last one seen plus how many there were.
func containerParam(q url.Values) (kind string, id int64, n int) {
	for param, k := range containerKinds {
		if v := q.Get(param); v != "" {
			id, _ = strconv.ParseInt(v, 10, 64)
			kind = k
			n++
		}
	}
	return
}

// matchLocked applies the generic and kind-specific list filters.
func (s *Server) matchLocked(o *fakeObject, q url.Values, containerKind string, containerID int64) bool {
	if g := q.Get("group"); g != "" && g != "-1" && g != "0" {
		gid, _ := strconv.ParseInt(g, 10, 64)
		if o.group != gid {
			return false
		}
	}
	if q.Has("owner") {
		oid, _ := strconv.ParseInt(q.Get("owner"), 10, 64)
		if o.owner != oid {
			return false
		}
	}
	if q.Get("orphaned") == "true" && !s.isOrphanLocked(o) {
		return false
	}
	if containerKind != "" && !s.containsLocked(containerKind, containerID, o) {
		return false
	}
	if name := q.Get("name"); name != "" {
		if docName, _ := o.doc["Name"].(string); docName != name {
			return false
		}
	}
	if o.kind == "annotations" {
		if t := q.Get("type"); t != "" {
			typ, _ := o.doc["@type"].(string)
			want := map[string]string{"map": "MapAnnotation", "tag": "TagAnnotation", "file": "FileAnnotation"}[t]
			if typeSuffix(typ) != want {
				return false
			}
		}
		if ns := q.Get("ns"); ns != "" {
			if docNS, _ := o.doc["Namespace"].(string); docNS != ns {
				return false
			}
		}
	}
	if o.kind == "images" {
		fs := s.filesets[o.id]
		if f := q.Get("filename"); f != "" {
			if fs == nil {
				return false
			}
			if q.Get("strict") == "true" {
				if fs.filename != f {
					return false
				}
			} else if !strings.Contains(fs.filename, f) {
				return false
			}
		}
		if cp := q.Get("clientpath"); cp != "" {
			if fs == nil || fs.clientPath != cp {
				return false
			}
		}
		if key := q.Get("key"); key != "" {
			if !s.imageHasPairLocked(o.id, key, q.Get("value")) {
				return false
			}
		}
		if tv := q.Get("tagvalue"); tv != "" {
			if !s.imageHasTagLocked(o.id, tv) {
				return false
			}
		}
	}
	return true
}

// containsLocked reports whether o is inside the given container
// (directly; projects do not reach through datasets here).
func (s *Server) containsLocked(containerKind string, containerID int64, o *fakeObject) bool {
	if o.kind == "annotations" {
		typ := map[string]string{
			"projects": "ProjectAnnotationLink",
			"datasets": "DatasetAnnotationLink",
			"images":   "ImageAnnotationLink",
			"screens":  "ScreenAnnotationLink",
			"plates":   "PlateAnnotationLink",
			"wells":    "WellAnnotationLink",
		}[containerKind]
		return s.findLinkLocked(typ, containerID, o.id)
	}
	switch containerKind + "/" + o.kind {
	case "projects/datasets":
		return s.findLinkLocked("ProjectDatasetLink", containerID, o.id)
	case "datasets/images":
		return s.findLinkLocked("DatasetImageLink", containerID, o.id)
	case "screens/plates":
		return s.findLinkLocked("ScreenPlateLink", containerID, o.id)
	case "plates/wells":
		return s.findLinkLocked("PlateWellLink", containerID, o.id)
	default:
		return false
	}
}

func (s *Server) imageHasPairLocked(imageID int64, key, value string) bool {
	for _, annID := range s.childIDsLocked("ImageAnnotationLink", imageID) {
		ann := s.objects["annotations"][annID]
		if ann == nil || typeSuffix(fmt.Sprint(ann.doc["@type"])) != "MapAnnotation" {
			continue
		}
		pairs, _ := ann.doc["Value"].([]interface{})
		for _, p := range pairs {
			pair, _ := p.([]interface{})
			if len(pair) == 2 && pair[0] == key && (value == "" || pair[1] == value) {
				return true
			}
		}
	}
	return false
}

func (s *Server) imageHasTagLocked(imageID int64, text string) bool {
	for _, annID := range s.childIDsLocked("ImageAnnotationLink", imageID) {
		ann := s.objects["annotations"][annID]
		if ann == nil || typeSuffix(fmt.Sprint(ann.doc["@type"])) != "TagAnnotation" {
			continue
		}
		if v, _ := ann.doc["Value"].(string); v == text {
			return true
		}
	}
	return false
}

//
// Pixel planes and webgateway side channels
//

// imageGeometry digs the plane geometry out of an image document.
func imageGeometry(doc map[string]interface{}) (sx, sy, sz, sc, st, width int, ok bool) {
	pixels, _ := doc["Pixels"].(map[string]interface{})
	if pixels == nil {
		return
	}
	dim := func(name string) int { return int(asID(pixels[name])) }
	sx, sy, sz, sc, st = dim("SizeX"), dim("SizeY"), dim("SizeZ"), dim("SizeC"), dim("SizeT")
	typ, _ := pixels["Type"].(map[string]interface{})
	if typ == nil {
		return
	}
	name, _ := typ["value"].(string)
	width = pixelWidths[name]
	ok = sx > 0 && sy > 0 && sz > 0 && sc > 0 && st > 0 && width > 0
	return
}

func (s *Server) planeVars(w http.ResponseWriter, r *http.Request) (key planeKey, sx, sy, width int, ok bool) {
	vars := mux.Vars(r)
	imageID, _ := strconv.ParseInt(vars["image"], 10, 64)
	z, _ := strconv.Atoi(vars["z"])
	c, _ := strconv.Atoi(vars["c"])
	t, _ := strconv.Atoi(vars["t"])
	s.mtx.Lock()
	img := s.objects["images"][imageID]
	s.mtx.Unlock()
	if img == nil {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("image %d not found", imageID))
		return
	}
	sx, sy, sz, sc, st, width, geomOK := imageGeometry(img.doc)
	if !geomOK {
		jsonError(w, http.StatusBadRequest, fmt.Sprintf("image %d has no pixel geometry", imageID))
		return
	}
	if z >= sz || c >= sc || t >= st {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("image %d has no plane z=%d c=%d t=%d", imageID, z, c, t))
		return
	}
	return planeKey{imageID, z, c, t}, sx, sy, width, true
}

func (s *Server) getPlane(w http.ResponseWriter, r *http.Request) {
	key, sx, sy, width, ok := s.planeVars(w, r)
	if !ok {
		return
	}
	x, y, spanX, spanY := 0, 0, sx, sy
	if region := r.URL.Query().Get("region"); region != "" {
		parts := strings.Split(region, ",")
		if len(parts) != 4 {
			jsonError(w, http.StatusBadRequest, fmt.Sprintf("bad region %q", region))
			return
		}
		var vals [4]int
		for i, part := range parts {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 {
				jsonError(w, http.StatusBadRequest, fmt.Sprintf("bad region %q", region))
				return
			}
			vals[i] = n
		}
		x, y, spanX, spanY = vals[0], vals[1], vals[2], vals[3]
		if spanX == 0 || spanY == 0 || x+spanX > sx || y+spanY > sy {
			jsonError(w, http.StatusBadRequest, fmt.Sprintf("region %q exceeds %dx%d plane", region, sx, sy))
			return
		}
	}
	s.mtx.Lock()
	plane := s.planes[key]
	s.mtx.Unlock()
	if plane == nil {
		// Planes that were never uploaded read as zeros.
		plane = make([]byte, sx*sy*width)
	}
	out := make([]byte, 0, spanX*spanY*width)
	for row := y; row < y+spanY; row++ {
		start := (row*sx + x) * width
		out = append(out, plane[start:start+spanX*width]...)
	}
	if r.URL.Query().Get("compression") == "snappy" {
		out = snappy.Encode(nil, out)
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(out)
}

func (s *Server) putPlane(w http.ResponseWriter, r *http.Request) {
	key, sx, sy, width, ok := s.planeVars(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("region") != "" {
		jsonError(w, http.StatusBadRequest, "partial plane upload is not supported")
		return
	}
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if r.URL.Query().Get("compression") == "snappy" {
		buf, err = snappy.Decode(nil, buf)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "snappy: "+err.Error())
			return
		}
	}
	if len(buf) != sx*sy*width {
		jsonError(w, http.StatusBadRequest, fmt.Sprintf("plane has %d bytes, want %d", len(buf), sx*sy*width))
		return
	}
	s.mtx.Lock()
	s.planes[key] = buf
	s.mtx.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) renderBirdsEye(w http.ResponseWriter, r *http.Request) {
	imageID, _ := strconv.ParseInt(mux.Vars(r)["image"], 10, 64)
	s.mtx.Lock()
	img := s.objects["images"][imageID]
	s.mtx.Unlock()
	if img == nil {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("image %d not found", imageID))
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(FakeJPEG)
}

func (s *Server) originalFilePaths(w http.ResponseWriter, r *http.Request) {
	imageID, _ := strconv.ParseInt(mux.Vars(r)["image"], 10, 64)
	s.mtx.Lock()
	img := s.objects["images"][imageID]
	fs := s.filesets[imageID]
	s.mtx.Unlock()
	if img == nil {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("image %d not found", imageID))
		return
	}
	repo, client := []string{}, []string{}
	if fs != nil {
		repo = append(repo, fs.repoPath)
		client = append(client, fs.clientPath)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"repo": repo, "client": client})
}

func (s *Server) postOriginalFile(w http.ResponseWriter, r *http.Request) {
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		jsonError(w, http.StatusBadRequest, "name is required")
		return
	}
	mimetype := r.URL.Query().Get("mimetype")
	s.mtx.Lock()
	id := s.allocIDLocked("files")
	s.files[id] = &storedFile{name: name, mimetype: mimetype, data: buf}
	s.mtx.Unlock()
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": map[string]interface{}{
			"@id":      id,
			"@type":    schemaTBD + "OriginalFile",
			"Name":     name,
			"Mimetype": mimetype,
			"Size":     len(buf),
		},
	})
}

func (s *Server) getOriginalFile(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	s.mtx.Lock()
	file := s.files[id]
	s.mtx.Unlock()
	if file == nil {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("original file %d not found", id))
		return
	}
	if file.mimetype != "" {
		w.Header().Set("Content-Type", file.mimetype)
	}
	w.Write(file.data)
}

//
// Tables
//

func (s *Server) postTable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	containerKind, containerID, n := containerParam(q)
	if n != 1 {
		jsonError(w, http.StatusBadRequest, "exactly one container filter is required")
		return
	}
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	var table storedTable
	if err := json.Unmarshal(buf, &table); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid table: "+err.Error())
		return
	}
	if len(table.Columns) == 0 {
		jsonError(w, http.StatusBadRequest, "table has no columns")
		return
	}
	for i, row := range table.Rows {
		if len(row) != len(table.Columns) {
			jsonError(w, http.StatusBadRequest, fmt.Sprintf("row %d has %d cells, want %d", i, len(row), len(table.Columns)))
			return
		}
	}
	title := q.Get("title")
	if title == "" {
		title = "table"
	}
	linkType := map[string]string{
		"projects": "ProjectAnnotationLink",
		"datasets": "DatasetAnnotationLink",
		"images":   "ImageAnnotationLink",
		"screens":  "ScreenAnnotationLink",
		"plates":   "PlateAnnotationLink",
		"wells":    "WellAnnotationLink",
	}[containerKind]
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.objects[containerKind][containerID] == nil {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("%s %d not found", strings.TrimSuffix(containerKind, "s"), containerID))
		return
	}
	fileID := s.allocIDLocked("files")
	s.files[fileID] = &storedFile{name: title, mimetype: "application/x-omero-table", data: buf}
	annID := s.allocIDLocked("annotations")
	s.addObjectLocked("annotations", annID, s.sessions[sessionCookie(r)], GroupImaging, map[string]interface{}{
		"@type":     schemaOME + "FileAnnotation",
		"Namespace": omero.NSBulkAnnotations,
		"File": map[string]interface{}{
			"@id":      fileID,
			"@type":    schemaTBD + "OriginalFile",
			"Name":     title,
			"Mimetype": "application/x-omero-table",
			"Size":     len(buf),
		},
	})
	s.tables[annID] = &table
	s.addLinkLocked(linkType, containerID, annID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": map[string]interface{}{"@id": annID},
	})
}

func (s *Server) getTable(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	s.mtx.Lock()
	table := s.tables[id]
	s.mtx.Unlock()
	if table == nil {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("table %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": table,
		"meta": map[string]interface{}{"totalCount": len(table.Rows)},
	})
}
