// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// Image is the metadata of one 5-D acquisition.
type Image struct {
	ID          int64    `json:"@id,omitempty"`
	Type        string   `json:"@type,omitempty"`
	Name        string   `json:"Name,omitempty"`
	Description string   `json:"Description,omitempty"`
	Details     *Details `json:"omero:details,omitempty"`
	// AcquisitionDate is milliseconds since the Unix epoch.
	AcquisitionDate int64       `json:"AcquisitionDate,omitempty"`
	Pixels          *PixelsInfo `json:"Pixels,omitempty"`
}

func (Image) resourceName() string { return "images" }

// PixelsInfo is the pixel-dimension metadata attached to an image.
// Its wire "Type" field names the element type; the struct's own
// @type tags it as a Pixels object.
type PixelsInfo struct {
	ID              int64         `json:"@id,omitempty"`
	Type            string        `json:"@type,omitempty"`
	PixelsType      *PixelTypeRef `json:"Type,omitempty"`
	SizeX           int           `json:"SizeX,omitempty"`
	SizeY           int           `json:"SizeY,omitempty"`
	SizeZ           int           `json:"SizeZ,omitempty"`
	SizeC           int           `json:"SizeC,omitempty"`
	SizeT           int           `json:"SizeT,omitempty"`
	PhysicalSizeX   *Length       `json:"PhysicalSizeX,omitempty"`
	PhysicalSizeY   *Length       `json:"PhysicalSizeY,omitempty"`
	PhysicalSizeZ   *Length       `json:"PhysicalSizeZ,omitempty"`
	SignificantBits int           `json:"SignificantBits,omitempty"`
	Channels        []Channel     `json:"Channels,omitempty"`
}

// PixelTypeRef is the enum-valued wire form of a pixel type.
type PixelTypeRef struct {
	Type  string    `json:"@type,omitempty"`
	Value PixelType `json:"value,omitempty"`
}

// Length is a physical extent with its unit, as the server encodes
// physical pixel sizes.
type Length struct {
	Type   string  `json:"@type,omitempty"`
	Unit   string  `json:"Unit,omitempty"`
	Symbol string  `json:"Symbol,omitempty"`
	Value  float64 `json:"Value,omitempty"`
}

// Channel describes one acquisition channel of an image.
type Channel struct {
	ID    int64  `json:"@id,omitempty"`
	Type  string `json:"@type,omitempty"`
	Name  string `json:"Name,omitempty"`
	Color int64  `json:"Color,omitempty"`
}

// ImageList is one page of images.
type ImageList struct {
	Items []Image  `json:"data"`
	Meta  ListMeta `json:"meta"`
}

// GetImageOptions control what GetImage fetches besides the image
// metadata itself.
type GetImageOptions struct {
	// NoPixels skips pixel download; GetImage returns a nil buffer.
	NoPixels bool

	// Start and Span select a sub-region, both XYZCT ordered. A
	// zero Span entry means "from Start to the edge" on that axis.
	Start [5]int
	Span  [5]int

	// Pad zero-fills the part of the requested region that lies
	// outside the image instead of failing with a BoundsError.
	Pad bool

	// Compression of plane downloads: "", "none", or "snappy".
	Compression string
}

// GetImage fetches an image's metadata and, unless opts.NoPixels is
// set, its pixel data (optionally restricted to a sub-region). Planes
// are fetched concurrently, a few at a time.
func (c *Client) GetImage(ctx context.Context, id int64, opts GetImageOptions) (*Image, *Pixels, error) {
	var img Image
	err := c.getObject(ctx, &img, img, id, nil)
	if err != nil {
		return nil, nil, wrapNotFound(err, fmt.Sprintf("image %d", id))
	}
	if opts.NoPixels {
		return &img, nil, nil
	}
	if img.Pixels == nil || img.Pixels.PixelsType == nil {
		return &img, nil, fmt.Errorf("image %d has no pixel metadata", id)
	}
	info := img.Pixels
	sizes := [5]struct {
		name string
		size int
	}{
		{"X", info.SizeX},
		{"Y", info.SizeY},
		{"Z", info.SizeZ},
		{"C", info.SizeC},
		{"T", info.SizeT},
	}
	var regions [5]axisRegion
	for i, axis := range sizes {
		regions[i], err = clipAxis(axis.name, opts.Start[i], opts.Span[i], axis.size, opts.Pad)
		if err != nil {
			return &img, nil, err
		}
	}
	rx, ry, rz, rc, rt := regions[0], regions[1], regions[2], regions[3], regions[4]
	pix, err := NewPixels(rx.bufSize, ry.bufSize, rz.bufSize, rc.bufSize, rt.bufSize, info.PixelsType.Value)
	if err != nil {
		return &img, nil, fmt.Errorf("image %d: %w", id, err)
	}
	for _, r := range regions {
		if r.fetchSpan == 0 {
			// The request lies entirely outside the image;
			// everything is padding.
			return &img, pix, nil
		}
	}
	region := fmt.Sprintf("%d,%d,%d,%d", rx.fetchStart, ry.fetchStart, rx.fetchSpan, ry.fetchSpan)
	wantBytes := rx.fetchSpan * ry.fetchSpan * pix.Type.Bytes()
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(4)
	for z := 0; z < rz.fetchSpan; z++ {
		for ch := 0; ch < rc.fetchSpan; ch++ {
			for t := 0; t < rt.fetchSpan; t++ {
				z, ch, t := z, ch, t
				grp.Go(func() error {
					query := url.Values{"region": {region}}
					if opts.Compression != "" && opts.Compression != "none" {
						query.Set("compression", opts.Compression)
					}
					path := fmt.Sprintf("webgateway/plane/%d/%d/%d/%d/", id, rz.fetchStart+z, rc.fetchStart+ch, rt.fetchStart+t)
					buf, err := c.getBytes(gctx, path, query)
					if err != nil {
						return fmt.Errorf("fetching plane z=%d c=%d t=%d of image %d: %w", rz.fetchStart+z, rc.fetchStart+ch, rt.fetchStart+t, id, err)
					}
					buf, err = decodePlane(buf, opts.Compression, wantBytes)
					if err != nil {
						return err
					}
					// Planes at distinct (z,c,t) occupy disjoint
					// bytes, so no locking here.
					return pix.setSubPlane(z, ch, t, rx.fetchSpan, ry.fetchSpan, buf)
				})
			}
		}
	}
	if err := grp.Wait(); err != nil {
		return &img, nil, err
	}
	return &img, pix, nil
}

// ListImages returns one page of images: the images inside
// opts.Dataset when it is set, otherwise all images matching the
// other filters in the client's group scope.
func (c *Client) ListImages(ctx context.Context, opts ListOptions) (ImageList, error) {
	var list ImageList
	query, err := opts.values(c)
	if err != nil {
		return list, err
	}
	var base string
	if opts.Dataset != 0 {
		base, err = c.childURL(ctx, Dataset{}, opts.Dataset, Image{})
		query.Del("dataset")
	} else {
		base, err = c.dirURL(ctx, "url:images")
	}
	if err != nil {
		return list, err
	}
	return list, c.RequestAndDecodeContext(ctx, &list, "GET", base, nil, query)
}

// GetImageIDs returns the IDs of the images in one container: the
// dataset, well, project (all of its datasets), or plate (all of its
// wells) set in opts. With no container it returns the logged-in
// user's orphaned images. Setting more than one container fails with
// ErrListArguments; screens do not contain images directly, so
// opts.Screen is rejected the same way.
func (c *Client) GetImageIDs(ctx context.Context, opts ListOptions) ([]int64, error) {
	containers := 0
	for _, id := range []int64{opts.Project, opts.Dataset, opts.Plate, opts.Well} {
		if id != 0 {
			containers++
		}
	}
	if containers > 1 || opts.Screen != 0 {
		return nil, ErrListArguments
	}
	switch {
	case opts.Dataset != 0:
		return c.imageIDsInDataset(ctx, opts.Dataset)
	case opts.Project != 0:
		datasetIDs, err := c.GetDatasetIDs(ctx, opts.Project)
		if err != nil {
			return nil, err
		}
		var ids []int64
		for _, datasetID := range datasetIDs {
			sub, err := c.imageIDsInDataset(ctx, datasetID)
			if err != nil {
				return nil, err
			}
			ids = append(ids, sub...)
		}
		return ids, nil
	case opts.Plate != 0:
		wellIDs, err := c.GetWellIDs(ctx, opts.Plate)
		if err != nil {
			return nil, err
		}
		var ids []int64
		for _, wellID := range wellIDs {
			sub, err := c.imageIDsInWell(ctx, wellID)
			if err != nil {
				return nil, err
			}
			ids = append(ids, sub...)
		}
		return ids, nil
	case opts.Well != 0:
		return c.imageIDsInWell(ctx, opts.Well)
	default:
		session := c.Session()
		if session == nil {
			return nil, ErrNoSession
		}
		query, err := ListOptions{Orphaned: true}.values(c)
		if err != nil {
			return nil, err
		}
		// Set explicitly: the root user's ID is 0.
		query.Set("owner", strconv.FormatInt(session.UserID, 10))
		base, err := c.dirURL(ctx, "url:images")
		if err != nil {
			return nil, err
		}
		return c.listIDs(ctx, base, query)
	}
}

func (c *Client) imageIDsInDataset(ctx context.Context, datasetID int64) ([]int64, error) {
	query, err := ListOptions{}.values(c)
	if err != nil {
		return nil, err
	}
	base, err := c.childURL(ctx, Dataset{}, datasetID, Image{})
	if err != nil {
		return nil, err
	}
	ids, err := c.listIDs(ctx, base, query)
	return ids, wrapNotFound(err, fmt.Sprintf("dataset %d", datasetID))
}

func (c *Client) imageIDsInWell(ctx context.Context, wellID int64) ([]int64, error) {
	well, err := c.GetWell(ctx, wellID)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, sample := range well.Samples {
		if sample.Image != nil {
			ids = append(ids, sample.Image.ID)
		}
	}
	return ids, nil
}

// GetRenderedJPEG returns a JPEG rendering of an image using the
// server's current rendering settings, scaled so its longest side is
// scale times the original. Scale must be in (0, 1].
func (c *Client) GetRenderedJPEG(ctx context.Context, id int64, scale float64) ([]byte, error) {
	if !(scale > 0 && scale <= 1) {
		return nil, fmt.Errorf("scale %v is not in (0, 1]: %w", scale, ErrInvalidArgument)
	}
	var img Image
	err := c.getObject(ctx, &img, img, id, nil)
	if err != nil {
		return nil, wrapNotFound(err, fmt.Sprintf("image %d", id))
	}
	if img.Pixels == nil {
		return nil, fmt.Errorf("image %d has no pixel metadata", id)
	}
	longest := img.Pixels.SizeX
	if img.Pixels.SizeY > longest {
		longest = img.Pixels.SizeY
	}
	size := int(math.Round(float64(longest) * scale))
	if size < 1 {
		size = 1
	}
	return c.getBytes(ctx, fmt.Sprintf("webgateway/render_birds_eye_view/%d/%d/", id, size), nil)
}

// FSPath selects which filesystem view of an image's original files
// GetOriginalFilepaths returns.
type FSPath string

const (
	// FSPathRepo: paths inside the server's managed repository.
	FSPathRepo FSPath = "repo"
	// FSPathClient: paths as they were on the importing client.
	FSPathClient FSPath = "client"
)

// GetOriginalFilepaths returns the filesystem paths of the original
// files the image was imported from.
func (c *Client) GetOriginalFilepaths(ctx context.Context, imageID int64, which FSPath) ([]string, error) {
	switch which {
	case FSPathRepo, FSPathClient:
	default:
		return nil, fmt.Errorf("unknown path kind %q: %w", which, ErrInvalidArgument)
	}
	var paths struct {
		Repo   []string `json:"repo"`
		Client []string `json:"client"`
	}
	err := c.RequestAndDecodeContext(ctx, &paths, "GET", fmt.Sprintf("webgateway/original_file_paths/%d/", imageID), nil, nil)
	if err != nil {
		return nil, wrapNotFound(err, fmt.Sprintf("image %d", imageID))
	}
	if which == FSPathClient {
		return paths.Client, nil
	}
	return paths.Repo, nil
}

// PostImageOptions control image creation.
type PostImageOptions struct {
	// DatasetID, when nonzero, links the new image into that
	// dataset after creation.
	DatasetID int64

	Description string

	// ChannelNames name the image's channels. Empty leaves the
	// channels unnamed; otherwise the length must equal the pixel
	// buffer's SizeC.
	ChannelNames []string

	// SourceImageID, when nonzero, copies physical pixel sizes and
	// related acquisition metadata from an existing image.
	SourceImageID int64

	// Compression of plane uploads: "", "none", or "snappy".
	Compression string
}

// PostImage creates a new image from a pixel buffer and returns its
// ID. The Image+Pixels shell is saved first, then every plane is
// uploaded; a failure after the shell exists returns the new ID along
// with the error.
func (c *Client) PostImage(ctx context.Context, pix *Pixels, name string, opts PostImageOptions) (int64, error) {
	if pix == nil {
		return 0, fmt.Errorf("nil pixel buffer: %w", ErrInvalidArgument)
	}
	width := pix.Type.Bytes()
	if width == 0 {
		return 0, fmt.Errorf("unsupported pixel type %q: %w", pix.Type, ErrInvalidArgument)
	}
	if pix.SizeX <= 0 || pix.SizeY <= 0 || pix.SizeZ <= 0 || pix.SizeC <= 0 || pix.SizeT <= 0 {
		return 0, fmt.Errorf("pixel buffer sizes must be positive: %w", ErrInvalidArgument)
	}
	if want := pix.SizeX * pix.SizeY * pix.SizeZ * pix.SizeC * pix.SizeT * width; len(pix.Data) != want {
		return 0, fmt.Errorf("pixel buffer has %d bytes, want %d for %d×%d×%d×%d×%d %s: %w",
			len(pix.Data), want, pix.SizeX, pix.SizeY, pix.SizeZ, pix.SizeC, pix.SizeT, pix.Type, ErrInvalidArgument)
	}
	if len(opts.ChannelNames) > 0 && len(opts.ChannelNames) != pix.SizeC {
		return 0, fmt.Errorf("%d channel names for %d channels: %w", len(opts.ChannelNames), pix.SizeC, ErrInvalidArgument)
	}

	info := &PixelsInfo{
		Type:       typePixels,
		PixelsType: &PixelTypeRef{Type: typePixelsType, Value: pix.Type},
		SizeX:      pix.SizeX,
		SizeY:      pix.SizeY,
		SizeZ:      pix.SizeZ,
		SizeC:      pix.SizeC,
		SizeT:      pix.SizeT,
	}
	for _, channelName := range opts.ChannelNames {
		info.Channels = append(info.Channels, Channel{Type: typeChannel, Name: channelName})
	}
	if opts.SourceImageID != 0 {
		var src Image
		err := c.getObject(ctx, &src, src, opts.SourceImageID, nil)
		if err != nil {
			return 0, wrapNotFound(err, fmt.Sprintf("source image %d", opts.SourceImageID))
		}
		if src.Pixels != nil {
			info.PhysicalSizeX = src.Pixels.PhysicalSizeX
			info.PhysicalSizeY = src.Pixels.PhysicalSizeY
			info.PhysicalSizeZ = src.Pixels.PhysicalSizeZ
			info.SignificantBits = src.Pixels.SignificantBits
		}
	}

	var saved Image
	err := c.createObject(ctx, &saved, Image{
		Type:        typeImage,
		Name:        name,
		Description: opts.Description,
		Pixels:      info,
	})
	if err != nil {
		return 0, fmt.Errorf("creating image: %w", err)
	}

	query := url.Values{}
	if opts.Compression != "" && opts.Compression != "none" {
		query.Set("compression", opts.Compression)
	}
	for t := 0; t < pix.SizeT; t++ {
		for z := 0; z < pix.SizeZ; z++ {
			for ch := 0; ch < pix.SizeC; ch++ {
				buf, err := encodePlane(pix.PlaneBytes(z, ch, t), opts.Compression)
				if err != nil {
					return saved.ID, err
				}
				path := fmt.Sprintf("webgateway/plane/%d/%d/%d/%d/", saved.ID, z, ch, t)
				err = c.sendBytes(ctx, "PUT", path, query, "application/octet-stream", buf, nil)
				if err != nil {
					return saved.ID, fmt.Errorf("image %d created, but uploading plane z=%d c=%d t=%d failed: %w", saved.ID, z, ch, t, err)
				}
			}
		}
	}

	if opts.DatasetID != 0 {
		if err := c.LinkImagesToDataset(ctx, []int64{saved.ID}, opts.DatasetID); err != nil {
			return saved.ID, fmt.Errorf("image %d created, but linking to dataset %d failed: %w", saved.ID, opts.DatasetID, err)
		}
	}
	return saved.ID, nil
}
