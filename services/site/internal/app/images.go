package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"clinicsite/internal/util"
)

// UploadPrefix is where gallery images live, relative to the static root.
const UploadPrefix = "images/gallery"

var dataURIPattern = regexp.MustCompile(`(?s)^data:image/(png|jpeg);base64,(.+)$`)

type decodedImage struct {
	data        []byte
	ext         string
	contentType string
}

// decodeImage parses a PNG or JPEG base64 data URI. Whitespace inside the
// payload is ignored and padding is optional.
func decodeImage(dataURI string) (decodedImage, error) {
	m := dataURIPattern.FindStringSubmatch(strings.TrimSpace(dataURI))
	if m == nil {
		return decodedImage{}, ErrInvalidImage
	}
	payload := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, m[2])
	payload = strings.TrimRight(payload, "=")
	data, err := base64.RawStdEncoding.DecodeString(payload)
	if err != nil {
		return decodedImage{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return decodedImage{}, ErrInvalidImage
	}
	img := decodedImage{data: data, ext: "png", contentType: "image/png"}
	if m[1] == "jpeg" {
		img.ext = "jpg"
		img.contentType = "image/jpeg"
	}
	return img, nil
}

// storeImage writes img under UploadPrefix as {prefix}-{millis}-{8 hex}.{ext}
// and returns the path relative to the static root.
func (a *App) storeImage(ctx context.Context, img decodedImage, prefix string) (string, error) {
	suffix, err := util.RandomHex(4)
	if err != nil {
		return "", fmt.Errorf("image name: %w", err)
	}
	name := fmt.Sprintf("%s-%d-%s.%s", prefix, a.now().UnixMilli(), suffix, img.ext)
	key := path.Join(UploadPrefix, name)
	if err := a.images.Put(ctx, key, bytes.NewReader(img.data), int64(len(img.data)), img.contentType); err != nil {
		return "", fmt.Errorf("store image %s: %w", name, err)
	}
	return key, nil
}

func (a *App) now() time.Time {
	if a.clock != nil {
		return a.clock()
	}
	return time.Now()
}
