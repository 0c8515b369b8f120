package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"adstudio-server/internal/models"
	"adstudio-server/internal/provider"
)

// ImageService handles the source image side task: upload, background
// removal and reverting to the original. The original bytes are always
// retained so removal is non-destructive.
type ImageService struct {
	remover  provider.BackgroundRemover
	sessions *SessionManager
	logger   *zap.Logger
}

// NewImageService creates an ImageService.
func NewImageService(remover provider.BackgroundRemover, sessions *SessionManager, logger *zap.Logger) *ImageService {
	return &ImageService{
		remover:  remover,
		sessions: sessions,
		logger:   logger.Named("ImageService"),
	}
}

// SetImage stores an uploaded source image on the session.
func (s *ImageService) SetImage(session *Session, data []byte, mimeType string) *models.SourceImage {
	img := &models.SourceImage{Data: data, MimeType: mimeType}
	session.SetImage(img)
	return img
}

// RemoveBackground runs background removal on the session's source image.
// On failure the current image is left untouched.
func (s *ImageService) RemoveBackground(ctx context.Context, session *Session) (*models.SourceImage, error) {
	img := session.Image()
	if img == nil {
		return nil, models.ErrInvalidInput
	}

	sourceData, sourceMime := img.Data, img.MimeType
	originalData, originalMime := sourceData, sourceMime
	if img.BgRemoved {
		// Re-running removal starts from the retained original.
		sourceData, sourceMime = img.OriginalData, img.OriginalMime
		originalData, originalMime = img.OriginalData, img.OriginalMime
	}

	cutout, mime, err := s.remover.RemoveBackground(ctx, sourceData, sourceMime)
	if err != nil {
		s.logger.Error("Background removal failed",
			zap.String("session_id", session.SessionID), zap.Error(err))
		return nil, err
	}

	result := &models.SourceImage{
		Data:         cutout,
		MimeType:     mime,
		BgRemoved:    true,
		OriginalData: originalData,
		OriginalMime: originalMime,
	}
	session.SetImage(result)
	s.logger.Info("Background removed",
		zap.String("session_id", session.SessionID),
		zap.Int("bytes_in", len(sourceData)),
		zap.Int("bytes_out", len(cutout)),
	)
	return result, nil
}

// UseOriginal reverts the session image to the pre-removal original.
func (s *ImageService) UseOriginal(session *Session) (*models.SourceImage, error) {
	img := session.Image()
	if img == nil {
		return nil, models.ErrInvalidInput
	}
	if !img.BgRemoved {
		return img, nil
	}
	restored := &models.SourceImage{
		Data:     img.OriginalData,
		MimeType: img.OriginalMime,
	}
	session.SetImage(restored)
	return restored, nil
}
