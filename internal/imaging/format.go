package imaging

import (
	"errors"
	"strings"

	"github.com/example/slothbucket/internal/httperr"
)

// Format identifies the encoding of a submitted image payload.
type Format int

const (
	FormatJPEG Format = iota
	FormatPNG
)

// String returns the lowercase format name.
func (f Format) String() string {
	if f == FormatPNG {
		return "png"
	}
	return "jpeg"
}

// Base64 magic-byte signatures. JPEG bytes (FF D8 FF) encode to "/9j/"; the
// PNG signature encodes to "iVBORw0KGgo".
const (
	jpegMagicPrefix = "/9j/"
	pngMagicPrefix  = "iVBORw0KGgo"
)

// DetectFormat determines the image format of a base64 payload from its
// leading characters only. The magic-byte prefix of the encoded content
// decides, so a mislabeled data URI is still classified correctly; the
// declared subtype is consulted only when no signature matches. A well-formed
// non-image string that happens to carry a matching prefix is accepted here
// and caught later when decoding fails.
func DetectFormat(payload string) (Format, error) {
	if payload == "" {
		return 0, httperr.InvalidArgument(errors.New("empty base64 payload"))
	}

	stripped := StripDataLabel(payload)
	switch {
	case strings.HasPrefix(stripped, jpegMagicPrefix):
		return FormatJPEG, nil
	case strings.HasPrefix(stripped, pngMagicPrefix):
		return FormatPNG, nil
	}

	if stripped != payload {
		head := payload
		if len(head) > 15 {
			head = head[:15]
		}
		switch {
		case strings.Contains(head, "jpeg"):
			return FormatJPEG, nil
		case strings.Contains(head, "png"):
			return FormatPNG, nil
		}
	}
	return 0, httperr.InvalidFileFormat()
}

// StripDataLabel removes a leading data-URI label from a base64 payload,
// returning the payload unchanged when no label is present.
func StripDataLabel(payload string) string {
	if !strings.HasPrefix(payload, "data:") {
		return payload
	}
	if idx := strings.Index(payload, "base64,"); idx >= 0 {
		return payload[idx+len("base64,"):]
	}
	return payload
}
