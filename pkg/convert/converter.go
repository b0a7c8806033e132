package convert

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Format is a supported raster output format.
type Format string

const (
	// FormatPNG produces a PNG composite.
	FormatPNG Format = "png"

	// FormatJPEG produces a JPEG composite.
	FormatJPEG Format = "jpeg"
)

// Dimension bounds for requested output width and height, in pixels.
const (
	MinDimension = 1
	MaxDimension = 10000
)

// Job describes one conversion attempt.
type Job struct {
	// PDF is the source document.
	PDF []byte

	// ContentType is the source's declared content type; it must indicate
	// a PDF.
	ContentType string

	// Format is the requested output format.
	Format Format

	// Width and Height are optional target dimensions in pixels
	// (1–10000). Zero means the rasterizer's default.
	Width  int
	Height int
}

// Result is a finished conversion.
type Result struct {
	// Image is the composite image bytes.
	Image []byte

	// ContentType is "image/png" or "image/jpeg".
	ContentType string
}

// Converter invokes the external rasterizer and compositor. It is safe for
// concurrent use; each job gets its own uniquely named paths.
type Converter struct {
	workDir    string
	rasterizer string
	compositor string
	timeout    time.Duration
	logger     *slog.Logger
}

// Options configures a Converter.
type Options struct {
	// WorkDir is the directory for per-job temporary files. Created if
	// missing.
	WorkDir string

	// Rasterizer is the pdftoppm-compatible executable.
	Rasterizer string

	// Compositor is the ImageMagick-convert-compatible executable.
	Compositor string

	// Timeout bounds each external invocation. Zero means no bound.
	Timeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New creates a Converter and ensures the working directory exists.
func New(opts Options) (*Converter, error) {
	if opts.WorkDir == "" {
		return nil, fmt.Errorf("converter work directory must not be empty")
	}
	if opts.Rasterizer == "" || opts.Compositor == "" {
		return nil, fmt.Errorf("converter requires rasterizer and compositor executables")
	}

	if err := os.MkdirAll(opts.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create converter work directory %q: %w", opts.WorkDir, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Converter{
		workDir:    opts.WorkDir,
		rasterizer: opts.Rasterizer,
		compositor: opts.Compositor,
		timeout:    opts.Timeout,
		logger:     logger.With("component", "convert"),
	}, nil
}

// Convert runs one conversion job. All failures, including validation, are
// wrapped into a single "conversion failed" error at this boundary.
func (c *Converter) Convert(ctx context.Context, job Job) (*Result, error) {
	result, err := c.convert(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("conversion failed: %w", err)
	}
	return result, nil
}

func (c *Converter) convert(ctx context.Context, job Job) (*Result, error) {
	if err := validate(job); err != nil {
		return nil, err
	}

	// Unique per-job names; no shared or predictable paths.
	base := fmt.Sprintf("job-%d-%s", time.Now().UnixNano(), uuid.NewString())
	pdfPath := filepath.Join(c.workDir, base+".pdf")
	pagesDir := filepath.Join(c.workDir, base+"-pages")
	compositePath := filepath.Join(c.workDir, base+"-composite."+string(job.Format))

	defer c.cleanup(pdfPath, pagesDir, compositePath)

	if err := os.WriteFile(pdfPath, job.PDF, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp PDF: %w", err)
	}
	if err := os.Mkdir(pagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create page directory: %w", err)
	}

	start := time.Now()
	if err := c.rasterize(ctx, job, pdfPath, pagesDir); err != nil {
		return nil, err
	}

	pages, err := listPages(pagesDir)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages converted")
	}

	if err := c.composite(ctx, pages, compositePath); err != nil {
		return nil, err
	}

	image, err := os.ReadFile(compositePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read composite image: %w", err)
	}

	c.logger.Info("document converted",
		"pages", len(pages),
		"format", string(job.Format),
		"bytes", len(image),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Result{
		Image:       image,
		ContentType: "image/" + string(job.Format),
	}, nil
}

// validate rejects unsupported inputs before any external tool runs. These
// errors are never retryable.
func validate(job Job) error {
	if !isPDF(job.ContentType) {
		return fmt.Errorf("unsupported content type %q: only PDF documents can be converted", job.ContentType)
	}

	switch job.Format {
	case FormatPNG, FormatJPEG:
	default:
		return fmt.Errorf("unsupported output format %q: must be %q or %q", job.Format, FormatPNG, FormatJPEG)
	}

	for _, dim := range []struct {
		name  string
		value int
	}{{"width", job.Width}, {"height", job.Height}} {
		if dim.value != 0 && (dim.value < MinDimension || dim.value > MaxDimension) {
			return fmt.Errorf("%s %d out of range: must be between %d and %d",
				dim.name, dim.value, MinDimension, MaxDimension)
		}
	}

	return nil
}

// isPDF reports whether a content type indicates a PDF document.
func isPDF(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct == "application/pdf" || ct == "application/x-pdf"
}

// rasterize renders one image per page into pagesDir. Output filenames are
// zero-padded by the tool, so lexicographic order equals page order.
func (c *Converter) rasterize(ctx context.Context, job Job, pdfPath, pagesDir string) error {
	args := []string{"-" + string(job.Format)}
	if job.Width > 0 {
		args = append(args, "-scale-to-x", strconv.Itoa(job.Width))
		if job.Height == 0 {
			args = append(args, "-scale-to-y", "-1")
		}
	}
	if job.Height > 0 {
		args = append(args, "-scale-to-y", strconv.Itoa(job.Height))
		if job.Width == 0 {
			args = append(args, "-scale-to-x", "-1")
		}
	}
	args = append(args, pdfPath, filepath.Join(pagesDir, "page"))

	return c.run(ctx, c.rasterizer, args)
}

// composite stacks the page images vertically with zero gap into one file.
func (c *Converter) composite(ctx context.Context, pages []string, compositePath string) error {
	args := append(append([]string{}, pages...), "-append", compositePath)
	return c.run(ctx, c.compositor, args)
}

// run executes one external tool, capturing stderr for diagnostics.
func (c *Converter) run(ctx context.Context, tool string, args []string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, tool, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.logger.Debug("running external tool", "tool", tool, "args", strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("%s exited with error: %w: %s", filepath.Base(tool), err,
				strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("failed to execute %s: %w", filepath.Base(tool), err)
	}

	return nil
}

// listPages enumerates the rasterizer's actual output, sorted
// lexicographically. Filenames are never guessed.
func listPages(pagesDir string) ([]string, error) {
	entries, err := os.ReadDir(pagesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list page directory: %w", err)
	}

	var pages []string
	for _, ent := range entries {
		if !ent.IsDir() {
			pages = append(pages, filepath.Join(pagesDir, ent.Name()))
		}
	}
	sort.Strings(pages)
	return pages, nil
}

// cleanup removes every per-job path, best-effort.
func (c *Converter) cleanup(pdfPath, pagesDir, compositePath string) {
	if err := os.Remove(pdfPath); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("failed to remove temp PDF", "path", pdfPath, "error", err)
	}
	if err := os.RemoveAll(pagesDir); err != nil {
		c.logger.Warn("failed to remove page directory", "path", pagesDir, "error", err)
	}
	if err := os.Remove(compositePath); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("failed to remove composite image", "path", compositePath, "error", err)
	}
}
