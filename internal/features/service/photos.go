package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"field_inventory_backend/internal/features/repository"
	"field_inventory_backend/internal/features/transport"
	"field_inventory_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
)

// PhotoUpload is an image received for a feature.
type PhotoUpload struct {
	FeatureID   uuid.UUID
	FileName    string
	ContentType string
	Data        []byte
}

// photoMetadata is what the camera recorded in the image, if anything.
type photoMetadata struct {
	TakenAt   *time.Time
	Latitude  *float64
	Longitude *float64
}

// UploadPhoto stores the image and records its EXIF capture time and position.
func (s *Service) UploadPhoto(ctx context.Context, in PhotoUpload) (transport.PhotoResponse, error) {
	if s.photos == nil {
		return transport.PhotoResponse{}, apperr.Internal("photo storage is not configured")
	}
	if err := s.photos.ValidateContentType(in.ContentType); err != nil {
		return transport.PhotoResponse{}, apperr.BadRequest(err.Error())
	}
	size := int64(len(in.Data))
	if err := s.photos.ValidateFileSize(size); err != nil {
		return transport.PhotoResponse{}, apperr.BadRequest(err.Error())
	}

	f, err := s.repo.GetByID(ctx, in.FeatureID)
	if err != nil {
		return transport.PhotoResponse{}, err
	}

	folder := fmt.Sprintf("%s/%s", f.ProjectID, f.ID)
	key, err := s.photos.UploadFile(ctx, s.bucket, folder, in.FileName, in.ContentType, bytes.NewReader(in.Data), size)
	if err != nil {
		return transport.PhotoResponse{}, fmt.Errorf("upload photo: %w", err)
	}

	meta := readPhotoMetadata(in.Data)
	photo, err := s.repo.CreatePhoto(ctx, repository.CreatePhotoParams{
		FeatureID:   f.ID,
		ObjectKey:   key,
		FileName:    in.FileName,
		ContentType: in.ContentType,
		SizeBytes:   size,
		TakenAt:     meta.TakenAt,
		Latitude:    meta.Latitude,
		Longitude:   meta.Longitude,
	})
	if err != nil {
		if delErr := s.photos.DeleteObject(ctx, s.bucket, key); delErr != nil {
			s.log.Warn("failed to remove orphaned photo object", "objectKey", key, "error", delErr)
		}
		return transport.PhotoResponse{}, err
	}

	s.log.Info("photo uploaded",
		"featureId", f.ID,
		"photoId", photo.ID,
		"sizeBytes", size,
		"hasExifTime", meta.TakenAt != nil,
		"hasExifGPS", meta.Latitude != nil,
	)
	return toPhotoResponse(photo), nil
}

// readPhotoMetadata extracts capture time and GPS position. Images without
// EXIF data (PNG, stripped JPEGs) yield empty metadata.
func readPhotoMetadata(data []byte) photoMetadata {
	var meta photoMetadata
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return meta
	}
	if t, err := x.DateTime(); err == nil {
		meta.TakenAt = &t
	}
	if lat, lon, err := x.LatLong(); err == nil && validPosition(lat, lon) {
		meta.Latitude = &lat
		meta.Longitude = &lon
	}
	return meta
}

func validPosition(lat, lon float64) bool {
	return checkCoordinates(lat, lon) == nil && !(lat == 0 && lon == 0)
}
