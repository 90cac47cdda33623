// Package export implements the Exporter (spec.md §4.9): writes finalized
// pages as PNG/JPG, optionally copies raw source frames, and assembles a
// multi-page PDF via jung-kurt/gofpdf, a pure-Go PDF writer picked from
// outside the example pack.
package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"github.com/scorecap/pipeline/internal/imaging"
	"github.com/scorecap/pipeline/internal/pipeline/finalize"
	"github.com/scorecap/pipeline/pkg/models"
)

const (
	pdfDPI          = 150.0
	pdfLongEdgeMax  = 2400
	pdfJPEGQuality  = 86
	exportJPEGQuality = 95
)

// Result is the exporter's output: the paths it wrote, keyed by kind.
type Result struct {
	Dir     string
	Files   []string
	PDFPath string
}

// Exporter writes finalized pages to the job's export directory.
type Exporter struct{}

// New constructs an Exporter.
func New() *Exporter { return &Exporter{} }

// Run clears <job.ArtifactDir>/export and writes the requested formats,
// per spec.md §4.9's contract.
func (e *Exporter) Run(ctx context.Context, job *models.Job, in finalize.Result) (Result, error) {
	outDir := filepath.Join(job.ArtifactDir, "export")
	if err := os.RemoveAll(outDir); err != nil {
		return Result{}, fmt.Errorf("clear export dir: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create export dir: %w", err)
	}

	formats := job.Options.Export.Formats
	if len(formats) == 0 {
		formats = []models.ExportFormat{models.FormatPNG}
	}

	var files []string
	var pdfPath string

	wantPNG := hasFormat(formats, models.FormatPNG)
	wantJPG := hasFormat(formats, models.FormatJPG)
	wantPDF := hasFormat(formats, models.FormatPDF)

	if wantPNG || wantJPG {
		imagesDir := filepath.Join(outDir, "images")
		if err := os.MkdirAll(imagesDir, 0o755); err != nil {
			return Result{}, fmt.Errorf("create images dir: %w", err)
		}
		for i, fp := range in.Pages {
			img, err := loadImage(fp)
			if err != nil {
				return Result{}, fmt.Errorf("load page %d: %w", i, err)
			}
			if wantPNG {
				path := filepath.Join(imagesDir, fmt.Sprintf("page_%04d.png", i))
				if err := savePNG(path, img); err != nil {
					return Result{}, fmt.Errorf("write png page %d: %w", i, err)
				}
				files = append(files, path)
			}
			if wantJPG {
				path := filepath.Join(imagesDir, fmt.Sprintf("page_%04d.jpg", i))
				if err := saveJPEG(path, img, exportJPEGQuality); err != nil {
					return Result{}, fmt.Errorf("write jpg page %d: %w", i, err)
				}
				files = append(files, path)
			}
		}
	}

	if job.Options.Export.IncludeRaw && len(job.Result) > 0 {
		if raw, ok := rawFramePaths(job); ok {
			rawDir := filepath.Join(outDir, "raw_frames")
			if err := os.MkdirAll(rawDir, 0o755); err != nil {
				return Result{}, fmt.Errorf("create raw_frames dir: %w", err)
			}
			for i, fp := range raw {
				dst := filepath.Join(rawDir, fmt.Sprintf("raw_%05d.png", i))
				if err := copyFile(fp, dst); err != nil {
					return Result{}, fmt.Errorf("copy raw frame %d: %w", i, err)
				}
				files = append(files, dst)
			}
		}
	}

	if wantPDF {
		path := filepath.Join(outDir, "sheet_export.pdf")
		if err := assemblePDF(path, in.Pages); err != nil {
			return Result{}, fmt.Errorf("assemble pdf: %w", err)
		}
		pdfPath = path
		files = append(files, path)
	}

	if len(files) == 0 {
		return Result{}, fmt.Errorf("export produced no outputs: no images, no pdf, no raw frames")
	}

	return Result{Dir: outDir, Files: files, PDFPath: pdfPath}, nil
}

func hasFormat(formats []models.ExportFormat, f models.ExportFormat) bool {
	for _, x := range formats {
		if x == f {
			return true
		}
	}
	return false
}

// rawFramePaths looks for a "raw_frames" key the orchestrator may have
// stashed in the job result (the extractor's source frames survive until
// cache-clear; this just re-exposes them under the export tree).
func rawFramePaths(job *models.Job) ([]string, bool) {
	v, ok := job.Result["raw_frames"]
	if !ok {
		return nil, false
	}
	paths, ok := v.([]string)
	return paths, ok
}

// assemblePDF converts each page to RGB, downscales long edges over
// pdfLongEdgeMax, re-encodes as JPEG quality 86 in memory, and assembles a
// multi-page PDF at 150dpi (spec.md §4.9).
func assemblePDF(path string, pages []string) error {
	if len(pages) == 0 {
		return fmt.Errorf("no pages to assemble")
	}
	pdf := gofpdf.New("P", "pt", "", "")
	for i, fp := range pages {
		img, err := loadImage(fp)
		if err != nil {
			return fmt.Errorf("load page %d: %w", i, err)
		}
		img = downscaleLongEdge(img, pdfLongEdgeMax)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: pdfJPEGQuality}); err != nil {
			return fmt.Errorf("encode page %d: %w", i, err)
		}

		b := img.Bounds()
		wPt := float64(b.Dx()) / pdfDPI * 72
		hPt := float64(b.Dy()) / pdfDPI * 72

		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: wPt, Ht: hPt})
		imgName := fmt.Sprintf("page-%d", i)
		pdf.RegisterImageOptionsReader(imgName, gofpdf.ImageOptions{ImageType: "JPG"}, &buf)
		pdf.ImageOptions(imgName, 0, 0, wPt, hPt, false, gofpdf.ImageOptions{ImageType: "JPG"}, 0, "")
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("pdf assembly failed: %w", err)
	}
	return pdf.OutputFileAndClose(path)
}

func downscaleLongEdge(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	longEdge := b.Dx()
	if b.Dy() > longEdge {
		longEdge = b.Dy()
	}
	if longEdge <= maxEdge {
		return img
	}
	scale := float64(maxEdge) / float64(longEdge)
	targetW := int(float64(b.Dx()) * scale)
	targetH := int(float64(b.Dy()) * scale)
	return imaging.ResizeExact(img, targetW, targetH)
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func saveJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: quality})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = out.ReadFrom(in)
	return err
}
