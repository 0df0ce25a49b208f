package service

import (
	"encoding/base64"
	"strings"

	"go.uber.org/zap"

	"github.com/rmadden/backroom/internal/errs"
)

const (
	// maxImageBytes caps the raw uploaded image.
	maxImageBytes = 10 * 1024 * 1024
	// warnEncodedBytes is the soft ceiling on the encoded data URL; uploads
	// above it are logged but still accepted.
	warnEncodedBytes = 8 * 1024 * 1024
	// maxEncodedBytes is the hard ceiling on the encoded data URL.
	maxEncodedBytes = 12 * 1024 * 1024
)

// PostInput is a normalized thread or reply payload, resolved at the HTTP
// boundary from either a JSON or a multipart body. Subject is ignored for
// replies.
type PostInput struct {
	Subject string
	Content string
	Image   *ImageUpload
}

// ImageUpload is a raw uploaded image before data-URL encoding.
type ImageUpload struct {
	Data []byte
	MIME string
}

func emptyContent(content string) bool {
	return strings.TrimSpace(content) == ""
}

// encodeImage validates an upload and inlines it as a data URL. A nil or
// empty upload yields "". Validation order: raw size, MIME prefix, encoded
// size (warn past the soft ceiling, reject past the hard one).
func encodeImage(img *ImageUpload, log *zap.Logger) (string, error) {
	if img == nil || len(img.Data) == 0 {
		return "", nil
	}

	if len(img.Data) > maxImageBytes {
		return "", errs.Wrap(errs.ErrBadRequest, "Image file too large. Maximum size is 10MB.")
	}
	if !strings.HasPrefix(img.MIME, "image/") {
		return "", errs.Wrap(errs.ErrBadRequest, "Invalid file type. Only images are allowed.")
	}

	mime := img.MIME
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)

	if len(dataURL) > maxEncodedBytes {
		return "", errs.Wrap(errs.ErrBadRequest, "Processed image too large for storage.")
	}
	if len(dataURL) > warnEncodedBytes {
		log.Warn("encoded image exceeds soft ceiling, accepting anyway",
			zap.Int("encoded_bytes", len(dataURL)))
	}

	if !strings.HasPrefix(dataURL, "data:image/") {
		return "", errs.Wrap(errs.ErrBadRequest, "Invalid image data URL format")
	}
	return dataURL, nil
}
