package models

import (
	"fmt"
	"math"
)

// Sensitivity is a coarse extraction-rate preset, mapped to fps.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// SensitivityFPS maps a Sensitivity preset to a sample rate in frames per
// second (spec.md §3 JobOptions.extract).
var SensitivityFPS = map[Sensitivity]float64{
	SensitivityLow:    0.6,
	SensitivityMedium: 1.0,
	SensitivityHigh:   1.8,
}

// TimeWindow is an optional [start, end) extraction window in seconds.
type TimeWindow struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// ExtractOptions configures the Frame Extractor.
type ExtractOptions struct {
	FPS         float64      `json:"fps,omitempty"`
	Sensitivity Sensitivity  `json:"sensitivity,omitempty"`
	Window      *TimeWindow  `json:"window,omitempty"`
}

// ResolveFPS returns the explicit fps if set, else the sensitivity mapping,
// defaulting to SensitivityMedium when neither is given.
func (o ExtractOptions) ResolveFPS() float64 {
	if o.FPS > 0 {
		return o.FPS
	}
	s := o.Sensitivity
	if s == "" {
		s = SensitivityMedium
	}
	if fps, ok := SensitivityFPS[s]; ok {
		return fps
	}
	return SensitivityFPS[SensitivityMedium]
}

// DetectMode selects manual vs automatic region detection.
type DetectMode string

const (
	DetectModeAuto   DetectMode = "auto"
	DetectModeManual DetectMode = "manual"
)

// LayoutHint selects (or requests auto-resolution of) a layout profile.
type LayoutHint string

const (
	LayoutHintAuto      LayoutHint = "auto"
	LayoutBottomBar     LayoutHint = "bottom_bar"
	LayoutFullScroll    LayoutHint = "full_scroll"
	LayoutPageTurn      LayoutHint = "page_turn"
)

// TriState models an optional boolean with an "unset" state, used for
// prefer_bottom (spec.md §3).
type TriState int

const (
	TriUnset TriState = iota
	TriTrue
	TriFalse
)

// DetectOptions configures the Region Detector.
type DetectOptions struct {
	Mode         DetectMode `json:"mode"`
	ROI          []Point    `json:"roi,omitempty"`
	LayoutHint   LayoutHint `json:"layout_hint"`
	PreferBottom TriState   `json:"prefer_bottom,omitempty"`
}

// ResolveLayout implements spec.md §9's documented precedence: an explicit
// layout_hint wins over prefer_bottom, and both win over source-kind
// inference.
func ResolveLayout(hint LayoutHint, prefer TriState, source SourceKind) LayoutHint {
	if hint != "" && hint != LayoutHintAuto {
		return hint
	}
	switch prefer {
	case TriTrue:
		return LayoutBottomBar
	case TriFalse:
		return LayoutFullScroll
	}
	if source == SourceStreamURL {
		return LayoutBottomBar
	}
	return LayoutFullScroll
}

// RectifyOptions configures the Rectifier.
type RectifyOptions struct {
	AutoEnhance bool    `json:"auto_enhance"`
	Override    []Point `json:"override,omitempty"`
}

// DedupLevel is a temporal-dedup threshold preset.
type DedupLevel string

const (
	DedupAggressive DedupLevel = "aggressive"
	DedupNormal     DedupLevel = "normal"
	DedupSensitive  DedupLevel = "sensitive"
)

// StitchOptions configures the Temporal Dedup & Vertical Stitcher.
type StitchOptions struct {
	Enable           bool       `json:"enable"`
	OverlapThreshold float64    `json:"overlap_threshold"`
	LayoutHint       LayoutHint `json:"layout_hint"`
	DedupLevel       DedupLevel `json:"dedup_level"`
}

// FillMode selects the Sheet Finalizer's pagination packing strategy.
type FillMode string

const (
	FillPerformance FillMode = "performance"
	FillBalanced    FillMode = "balanced"
)

// FinalizeOptions configures the Sheet Finalizer.
type FinalizeOptions struct {
	ContentCrop  bool     `json:"content_crop"`
	FillMode     FillMode `json:"fill_mode,omitempty"`
	PageRatio    float64  `json:"page_ratio,omitempty"`
	EmitComplete bool     `json:"emit_complete"`
}

// UpscaleOptions configures the Upscaler.
type UpscaleOptions struct {
	Enable  bool    `json:"enable"`
	Scale   float64 `json:"scale"`
	GPUOnly bool    `json:"gpu_only"`
}

// ExportFormat is one of the output formats the Exporter can write.
type ExportFormat string

const (
	FormatPNG ExportFormat = "png"
	FormatJPG ExportFormat = "jpg"
	FormatPDF ExportFormat = "pdf"
)

// ExportOptions configures the Exporter.
type ExportOptions struct {
	Formats    []ExportFormat `json:"formats"`
	IncludeRaw bool           `json:"include_raw"`
}

// AudioOptions configures the optional stem-separation / beat-tracking
// collaborators consulted between extract and detect (SPEC_FULL.md §9).
type AudioOptions struct {
	Enable      bool   `json:"enable"`
	StemBackend string `json:"stem_backend,omitempty"`
	Beats       bool   `json:"beats"`
}

// JobOptions is the validated option bundle attached to a Job.
type JobOptions struct {
	Extract ExtractOptions `json:"extract"`
	Detect  DetectOptions  `json:"detect"`
	Rectify  RectifyOptions  `json:"rectify"`
	Stitch   StitchOptions   `json:"stitch"`
	Finalize FinalizeOptions `json:"finalize"`
	Upscale  UpscaleOptions  `json:"upscale"`
	Export  ExportOptions  `json:"export"`
	Audio   AudioOptions   `json:"audio"`
}

// Validate checks the invariants spec.md §3 places on JobOptions at
// creation time.
func (o JobOptions) Validate() error {
	if o.Extract.Window != nil && o.Extract.Window.End <= o.Extract.Window.Start {
		return fmt.Errorf("extract.window: end must be greater than start")
	}
	if o.Detect.Mode == DetectModeManual && len(o.Detect.ROI) != 4 {
		return fmt.Errorf("detect.roi: manual mode requires exactly 4 points")
	}
	if o.Stitch.OverlapThreshold < 0 || o.Stitch.OverlapThreshold > 1 {
		return fmt.Errorf("stitch.overlap_threshold: must be in [0,1]")
	}
	if o.Upscale.Enable && (o.Upscale.Scale < 1.0 || o.Upscale.Scale > 4.0) {
		return fmt.Errorf("upscale.scale: must be in [1.0,4.0]")
	}
	for _, f := range o.Export.Formats {
		switch f {
		case FormatPNG, FormatJPG, FormatPDF:
		default:
			return fmt.Errorf("export.formats: unknown format %q", f)
		}
	}
	return nil
}

// WithDefaults fills in the documented defaults for zero-valued fields.
func (o JobOptions) WithDefaults() JobOptions {
	if o.Detect.Mode == "" {
		o.Detect.Mode = DetectModeAuto
	}
	if o.Detect.LayoutHint == "" {
		o.Detect.LayoutHint = LayoutHintAuto
	}
	if o.Stitch.LayoutHint == "" {
		o.Stitch.LayoutHint = o.Detect.LayoutHint
	}
	if o.Stitch.DedupLevel == "" {
		o.Stitch.DedupLevel = DedupNormal
	}
	if o.Finalize.FillMode == "" {
		o.Finalize.FillMode = FillBalanced
	}
	if o.Finalize.PageRatio == 0 {
		o.Finalize.PageRatio = 1 / math.Sqrt2
	}
	if o.Upscale.Scale == 0 {
		o.Upscale.Scale = 1.0
	}
	if len(o.Export.Formats) == 0 {
		o.Export.Formats = []ExportFormat{FormatPNG}
	}
	return o
}
