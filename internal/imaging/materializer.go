package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/slothbucket/internal/httperr"
)

// PNG inputs are re-encoded to JPEG at this quality before hitting disk.
const transcodeQuality = 90

// Materializer turns accepted base64 payloads into uniquely named JPEG files
// inside a working directory shared by all requests. Filename uniqueness is
// the only cross-request isolation; there is no locking.
type Materializer struct {
	dir    string
	logger *zap.Logger
}

// NewMaterializer creates the working directory if needed and returns a
// materializer writing into it.
func NewMaterializer(dir string, logger *zap.Logger) (*Materializer, error) {
	if dir == "" {
		return nil, httperr.InvalidArgument(fmt.Errorf("working directory is required"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, httperr.InternalError(fmt.Errorf("create working directory: %w", err))
	}
	return &Materializer{dir: dir, logger: logger.Named("materializer")}, nil
}

// Materialize decodes the payload and writes it to disk as JPEG, transcoding
// PNG input. It returns the generated filename; the caller composes paths via
// Path. Two calls with identical input produce two distinct filenames.
func (m *Materializer) Materialize(ctx context.Context, payload string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", httperr.InternalError(err)
	}

	format, err := DetectFormat(payload)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(StripDataLabel(payload))
	if err != nil {
		return "", httperr.InvalidBase64(err)
	}

	content := raw
	if format == FormatPNG {
		content, err = transcodeToJPEG(raw)
		if err != nil {
			return "", err
		}
	}

	filename := uuid.NewString() + ".jpeg"
	path := filepath.Join(m.dir, filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		m.logger.Error("failed to write image", zap.String("format", format.String()), zap.Error(err))
		return "", httperr.InternalError(fmt.Errorf("write image: %w", err))
	}

	m.logger.Debug("image materialized",
		zap.String("filename", filename),
		zap.String("format", format.String()),
		zap.Int("bytes", len(content)))
	return filename, nil
}

// Path returns the on-disk path for a filename produced by Materialize.
func (m *Materializer) Path(filename string) string {
	return filepath.Join(m.dir, filename)
}

// Remove deletes a materialized file if it exists. Removal is best effort;
// failures are logged, never returned, so cleanup cannot mask a pipeline
// error already in flight.
func (m *Materializer) Remove(filename string) {
	if filename == "" {
		return
	}
	if err := os.Remove(m.Path(filename)); err != nil && !os.IsNotExist(err) {
		m.logger.Error("failed to remove image", zap.String("filename", filename), zap.Error(err))
	}
}

// ReadBase64 reads a previously persisted image and returns its bytes
// base64-encoded for the image library response.
func (m *Materializer) ReadBase64(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		m.logger.Error("failed to read stored image", zap.Error(err))
		return "", httperr.InternalError(fmt.Errorf("read stored image: %w", err))
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func transcodeToJPEG(raw []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, httperr.CorruptImage(err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: transcodeQuality}); err != nil {
		return nil, httperr.InternalError(fmt.Errorf("encode jpeg: %w", err))
	}
	return buf.Bytes(), nil
}
