package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
)

// Result is a compressed capture ready for the HTTP response. Transient;
// nothing here is persisted.
type Result struct {
	Mime   string
	Buffer []byte
}

// Processor downscales captured frames to half width and re-encodes
// them as JPEG. Three tiers: in-process resize+encode, ffmpeg transcode,
// and raw passthrough when both fail. A tier failing is logged and the
// next one tried; the processor never aborts a capture request.
type Processor struct {
	ffmpegPath string
	tmpDir     string
	logger     *slog.Logger
}

// NewProcessor creates an image post-processor. An empty ffmpegPath
// disables the transcoder tier.
func NewProcessor(ffmpegPath string) *Processor {
	return &Processor{
		ffmpegPath: ffmpegPath,
		tmpDir:     os.TempDir(),
		logger:     slog.With("component", "imaging"),
	}
}

// Compress scales the image down to half width (aspect preserved) and
// re-encodes it as JPEG at the requested quality. srcMime describes the
// input and is the mime reported on raw passthrough.
func (p *Processor) Compress(data []byte, srcMime string, quality int) (*Result, error) {
	quality = ClampQuality(quality)

	if res, err := p.resizeTier(data, quality); err == nil {
		return res, nil
	} else {
		p.logger.Warn("library resize tier failed, trying transcoder", "error", err)
	}

	if res, err := p.ffmpegTier(data, srcMime, quality); err == nil {
		return res, nil
	} else {
		p.logger.Warn("transcoder tier failed, passing through original", "error", err)
	}

	if srcMime == "" {
		srcMime = "image/png"
	}
	return &Result{Mime: srcMime, Buffer: data}, nil
}

// CompressFile is Compress for on-disk captures (the desktop-grab path
// writes a temp file). The input file is left in place; the caller owns
// its cleanup.
func (p *Processor) CompressFile(path string, quality int) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture file: %w", err)
	}
	return p.Compress(data, mimeFromExt(filepath.Ext(path)), quality)
}

// resizeTier decodes, halves the width and re-encodes in process.
func (p *Processor) resizeTier(data []byte, quality int) (*Result, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	halfWidth := uint(img.Bounds().Dx() / 2)
	if halfWidth == 0 {
		halfWidth = 1
	}
	scaled := resize.Resize(halfWidth, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}
	return &Result{Mime: "image/jpeg", Buffer: buf.Bytes()}, nil
}

// ffmpegTier shells out to the transcoder with half-width scale and the
// mapped quality. Both temp files are removed on every exit path.
func (p *Processor) ffmpegTier(data []byte, srcMime string, quality int) (*Result, error) {
	if p.ffmpegPath == "" {
		return nil, fmt.Errorf("transcoder not configured")
	}

	token := uuid.New().String()
	inPath := filepath.Join(p.tmpDir, "kioskbox-in-"+token+extFromMime(srcMime))
	outPath := filepath.Join(p.tmpDir, "kioskbox-out-"+token+".jpg")
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	if err := os.WriteFile(inPath, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write transcoder input: %w", err)
	}

	cmd := exec.Command(p.ffmpegPath,
		"-y",
		"-i", inPath,
		"-vf", "scale=iw/2:-1",
		"-q:v", fmt.Sprint(FFmpegQuality(quality)),
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("transcoder failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcoder output: %w", err)
	}
	return &Result{Mime: "image/jpeg", Buffer: out}, nil
}

// ClampQuality bounds a JPEG quality to [1,100].
func ClampQuality(quality int) int {
	if quality < 1 {
		return 1
	}
	if quality > 100 {
		return 100
	}
	return quality
}

// FFmpegQuality maps library quality 1-100 onto ffmpeg's inverse 2-31
// scale (lower is better): round(31 - q*29/100), clamped to [2,31].
func FFmpegQuality(quality int) int {
	quality = ClampQuality(quality)
	q := int(31.0 - float64(quality)*29.0/100.0 + 0.5)
	if q < 2 {
		q = 2
	}
	if q > 31 {
		q = 31
	}
	return q
}

func mimeFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

func extFromMime(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	default:
		return ".png"
	}
}
