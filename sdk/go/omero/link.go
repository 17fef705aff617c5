// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"fmt"
)

// ObjRef identifies an existing object inside a link document.
type ObjRef struct {
	Type string `json:"@type,omitempty"`
	ID   int64  `json:"@id"`
}

// ProjectDatasetLink files a dataset under a project.
type ProjectDatasetLink struct {
	ID     int64  `json:"@id,omitempty"`
	Type   string `json:"@type,omitempty"`
	Parent ObjRef `json:"Parent"`
	Child  ObjRef `json:"Child"`
}

// DatasetImageLink files an image under a dataset.
type DatasetImageLink struct {
	ID     int64  `json:"@id,omitempty"`
	Type   string `json:"@type,omitempty"`
	Parent ObjRef `json:"Parent"`
	Child  ObjRef `json:"Child"`
}

// ScreenPlateLink files a plate under a screen.
type ScreenPlateLink struct {
	ID     int64  `json:"@id,omitempty"`
	Type   string `json:"@type,omitempty"`
	Parent ObjRef `json:"Parent"`
	Child  ObjRef `json:"Child"`
}

// AnnotationLink attaches an annotation to a container object. Its
// @type depends on the container kind.
type AnnotationLink struct {
	ID     int64  `json:"@id,omitempty"`
	Type   string `json:"@type,omitempty"`
	Parent ObjRef `json:"Parent"`
	Child  ObjRef `json:"Child"`
}

// LinkDatasetsToProject files datasets under a project. Datasets
// already in the project are left alone: the server's duplicate-link
// rejection counts as success.
func (c *Client) LinkDatasetsToProject(ctx context.Context, datasetIDs []int64, projectID int64) error {
	for _, datasetID := range datasetIDs {
		err := c.createObject(ctx, nil, ProjectDatasetLink{
			Type:   typeProjectDatasetLink,
			Parent: ObjRef{Type: typeProject, ID: projectID},
			Child:  ObjRef{Type: typeDataset, ID: datasetID},
		})
		if err != nil && !isConflict(err) {
			return fmt.Errorf("linking dataset %d to project %d: %w", datasetID, projectID, err)
		}
	}
	return nil
}

// LinkImagesToDataset files images under a dataset, ignoring
// duplicate links like LinkDatasetsToProject.
func (c *Client) LinkImagesToDataset(ctx context.Context, imageIDs []int64, datasetID int64) error {
	for _, imageID := range imageIDs {
		err := c.createObject(ctx, nil, DatasetImageLink{
			Type:   typeDatasetImageLink,
			Parent: ObjRef{Type: typeDataset, ID: datasetID},
			Child:  ObjRef{Type: typeImage, ID: imageID},
		})
		if err != nil && !isConflict(err) {
			return fmt.Errorf("linking image %d to dataset %d: %w", imageID, datasetID, err)
		}
	}
	return nil
}

// LinkPlatesToScreen files plates under a screen, ignoring duplicate
// links like LinkDatasetsToProject.
func (c *Client) LinkPlatesToScreen(ctx context.Context, plateIDs []int64, screenID int64) error {
	for _, plateID := range plateIDs {
		err := c.createObject(ctx, nil, ScreenPlateLink{
			Type:   typeScreenPlateLink,
			Parent: ObjRef{Type: typeScreen, ID: screenID},
			Child:  ObjRef{Type: typePlate, ID: plateID},
		})
		if err != nil && !isConflict(err) {
			return fmt.Errorf("linking plate %d to screen %d: %w", plateID, screenID, err)
		}
	}
	return nil
}

// LinkAnnotation attaches annotation annID to the given object.
// Annotations share one ID space, so the child ref carries the
// abstract Annotation type. Re-linking an attached annotation is not
// an error.
func (c *Client) LinkAnnotation(ctx context.Context, objType ObjectType, objID, annID int64) error {
	linkType, err := annotationLinkType(objType)
	if err != nil {
		return err
	}
	parentType, err := objType.typeURI()
	if err != nil {
		return err
	}
	err = c.createObject(ctx, nil, AnnotationLink{
		Type:   linkType,
		Parent: ObjRef{Type: parentType, ID: objID},
		Child:  ObjRef{Type: typeAnnotation, ID: annID},
	})
	if err != nil && !isConflict(err) {
		return fmt.Errorf("linking annotation %d to %s %d: %w", annID, objType, objID, err)
	}
	return nil
}

// annotationLinkType returns the link @type URI joining an annotation
// to the given container kind.
func annotationLinkType(objType ObjectType) (string, error) {
	switch objType {
	case ObjectProject:
		return typeProjectAnnotationLink, nil
	case ObjectDataset:
		return typeDatasetAnnotationLink, nil
	case ObjectImage:
		return typeImageAnnotationLink, nil
	case ObjectScreen:
		return typeScreenAnnotationLink, nil
	case ObjectPlate:
		return typePlateAnnotationLink, nil
	case ObjectWell:
		return typeWellAnnotationLink, nil
	default:
		return "", fmt.Errorf("cannot annotate object type %q: %w", objType, ErrInvalidArgument)
	}
}
