// Package omero is a client library for the OMERO.web JSON API.
//
// It offers model types for the container hierarchy (projects,
// datasets, images, screens, plates, wells), annotations, regions of
// interest and tabular data, plus login/session support and
// convenience functions that reshape list responses into the plain ID
// slices scripting workflows expect.
package omero
