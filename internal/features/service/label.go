package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// LabelSize is the edge length in pixels of generated QR labels.
const LabelSize = 256

// Label renders a PNG QR code encoding the feature's technical id, for
// printing on tags fixed to the asset.
func (s *Service) Label(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	png, err := qrcode.Encode(f.TechnicalID, qrcode.Medium, LabelSize)
	if err != nil {
		return nil, "", fmt.Errorf("encode label for %s: %w", f.TechnicalID, err)
	}
	return png, f.TechnicalID, nil
}
