// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omerotest

// Credentials and object IDs baked into Server's initial state.
const (
	Username = "tester"
	Password = "sesame-open"

	ServerID = 1

	UserID      = 5
	OtherUserID = 6

	GroupImaging   = 3 // tester's default group
	GroupScreening = 4 // tester's second group

	ProjectA = 101 // imaging group; contains Dataset1, Dataset2
	ProjectB = 102 // screening group; empty

	Dataset1      = 201 // in ProjectA; contains Image1, Image2
	Dataset2      = 202 // in ProjectA; contains Image3
	DatasetOrphan = 203

	Image1      = 301 // in Dataset1; carries MapAnn1 and TagAnn1
	Image2      = 302 // in Dataset1
	Image3      = 303 // in Dataset2
	ImageOrphan = 304 // tester's, in no dataset
	ImageWell   = 305 // field of Well11, not in any dataset

	Screen1     = 401 // contains Plate1
	Plate1      = 501 // 2x3 grid, wells at (0,0) and (1,2)
	PlateOrphan = 502

	Well11 = 601 // Plate1 row 0, column 0; one sample (ImageWell)
	Well12 = 602 // Plate1 row 1, column 2; no samples

	MapAnn1 = 701 // on Image1: genotype=wt, stage=e12
	TagAnn1 = 702 // on Image1: "golden"

	// Import filenames and client paths of the fixture images.
	Image1Filename   = "plateA_1.tiff"
	Image1ClientPath = "/data/run1/plateA_1.tiff"
	Image2Filename   = "plateA_2.tiff"
	Image2ClientPath = "/data/run1/plateA_2.tiff"
	Image3Filename   = "other.ome.tiff"
	Image3ClientPath = "/data/run2/other.ome.tiff"

	// Namespace of the fixture map annotation.
	NSTest = "test.namespace"

	// Pixel shape shared by all fixture images (uint16).
	ImageSizeX = 8
	ImageSizeY = 6
	ImageSizeZ = 2
	ImageSizeC = 3
	ImageSizeT = 1
)

// FixturePixelValue is the uint16 stored at (x, y, z, c, t) in every
// fixture image's planes, so tests can predict fetched pixels.
func FixturePixelValue(x, y, z, c, t int) uint16 {
	return uint16(10000*t + 1000*z + 100*c + 10*y + x)
}

// FakeJPEG is the canned body served for rendered-image requests. It
// starts with a real JPEG signature but is not a decodable image.
var FakeJPEG = []byte{0xff, 0xd8, 0xff, 0xe0, 'o', 'm', 'e', 'r', 'o', 't', 'e', 's', 't', 0xff, 0xd9}
