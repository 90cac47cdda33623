// Package accel implements the process-scoped Runtime Acceleration Probe
// (spec.md §4.2): a lazily-initialized, mutex-guarded singleton generalized
// from the teacher's internal/transcoder/gpu.go GPUManager — instead of
// NVENC encode capability it reports decode hwaccel candidates and a
// resize-backend choice, but keeps the same "probe once, snapshot after"
// shape.
package accel

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/scorecap/pipeline/internal/config"
	"github.com/scorecap/pipeline/pkg/models"
)

// Probe is the process-wide lazy singleton. Call Get to obtain (and, on
// first call, compute) the immutable snapshot.
type Probe struct {
	once     sync.Once
	snapshot models.RuntimeAcceleration
	cfg      config.AccelConfig
	ffmpeg   string
}

// New constructs a Probe. Initialization is deferred until the first Get.
func New(cfg config.AccelConfig, ffmpegPath string) *Probe {
	return &Probe{cfg: cfg, ffmpeg: ffmpegPath}
}

// Get returns the immutable acceleration snapshot, computing it under a
// mutex on first call and returning a lock-free copy on every later call.
func (p *Probe) Get(ctx context.Context) models.RuntimeAcceleration {
	p.once.Do(func() {
		p.snapshot = p.detect(ctx)
	})
	return p.snapshot
}

func (p *Probe) detect(ctx context.Context) models.RuntimeAcceleration {
	advertised := p.advertisedHWAccels(ctx)

	snap := models.RuntimeAcceleration{
		DecodeCandidates: decodeCandidateOrder(advertised),
		CPUName:          probeCPUName(ctx),
		GPUName:          probeGPUName(ctx),
	}

	snap.ResizeBackend = p.selectResizeBackend(ctx, &snap)
	return snap
}

// decodeCandidateOrder filters the platform preference list against what
// the local transcoder advertises via `-hwaccels`, always appending a CPU
// fallback last, per spec.md §4.2.
func decodeCandidateOrder(advertised map[string]bool) []models.HWAccelFlagSet {
	var preference []string
	switch runtime.GOOS {
	case "darwin":
		preference = []string{"videotoolbox", "cuda"}
	case "windows":
		preference = []string{"cuda", "d3d11va", "dxva2", "qsv"}
	default:
		preference = []string{"cuda", "vaapi", "qsv", "vdpau"}
	}

	var out []models.HWAccelFlagSet
	for _, name := range preference {
		if advertised[name] {
			out = append(out, models.HWAccelFlagSet{Name: name, Flags: []string{"-hwaccel", name}})
		}
	}
	out = append(out, models.HWAccelFlagSet{Name: "cpu", Flags: nil})
	return out
}

func (p *Probe) advertisedHWAccels(ctx context.Context) map[string]bool {
	advertised := make(map[string]bool)
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, p.ffmpeg, "-hide_banner", "-hwaccels")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return advertised
	}
	for _, line := range strings.Split(stdout.String(), "\n") {
		name := strings.TrimSpace(line)
		if name != "" && !strings.Contains(name, "Hardware") {
			advertised[name] = true
		}
	}
	return advertised
}

// selectResizeBackend honors an environment override (config.GPUResizePreference)
// when set to something other than "auto"; otherwise it probes each
// candidate with a minimal end-to-end operation, per spec.md §4.2's
// requirement that advertised capability alone is insufficient.
func (p *Probe) selectResizeBackend(ctx context.Context, snap *models.RuntimeAcceleration) models.ResizeBackend {
	if pref := p.cfg.GPUResizePreference; pref != "" && pref != "auto" {
		switch pref {
		case "cuda":
			if p.probeGPUDirect(ctx, "cuda") {
				return models.ResizeGPUDirectA
			}
		case "opencl":
			if p.probeGPUDirect(ctx, "opencl") {
				return models.ResizeGPUDirectB
			}
		case "cpu":
			return models.ResizeCPU
		}
		return models.ResizeCPU
	}

	if p.cfg.NeuralEnabled && p.probeNeural(ctx) {
		snap.NeuralSRAvailable = true
		return models.ResizeGPUNeural
	}
	if p.probeGPUDirect(ctx, "cuda") {
		return models.ResizeGPUDirectA
	}
	if p.probeGPUDirect(ctx, "opencl") {
		return models.ResizeGPUDirectB
	}
	if p.probeHWScaler(ctx) {
		snap.HWScalerAvailable = true
		return models.ResizeHWScaler
	}
	return models.ResizeCPU
}

// probeGPUDirect runs a minimal end-to-end pipeline (upload, color-convert,
// blur, scale) through ffmpeg's hwaccel filter graph, matching spec.md
// §4.2's "must actually run a minimal operation" requirement. A timeout or
// nonzero exit demotes the candidate.
func (p *Probe) probeGPUDirect(ctx context.Context, backend string) bool {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var filter string
	switch backend {
	case "cuda":
		filter = "hwupload_cuda,scale_cuda=64:64,hwdownload"
	case "opencl":
		filter = "hwupload,scale_opencl=64:64,hwdownload"
	default:
		return false
	}

	cmd := exec.CommandContext(timeoutCtx, p.ffmpeg,
		"-hide_banner", "-f", "lavfi", "-i", "color=c=black:s=128x128:d=0.1",
		"-vf", filter, "-frames:v", "1", "-f", "null", "-")
	return cmd.Run() == nil
}

func (p *Probe) probeHWScaler(ctx context.Context) bool {
	switch runtime.GOOS {
	case "darwin":
		return p.probeFilterAvailable(ctx, "scale_vt")
	default:
		return p.probeFilterAvailable(ctx, "scale_vaapi")
	}
}

func (p *Probe) probeFilterAvailable(ctx context.Context, filterName string) bool {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(timeoutCtx, p.ffmpeg, "-hide_banner", "-filters")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return false
	}
	return strings.Contains(stdout.String(), filterName)
}

func (p *Probe) probeNeural(ctx context.Context) bool {
	if p.cfg.NeuralRepoPath == "" || p.cfg.NeuralWeightsPath == "" {
		return false
	}
	return true
}

func probeCPUName(ctx context.Context) string {
	switch runtime.GOOS {
	case "darwin":
		return probeCommandOutput(ctx, "sysctl", "-n", "machdep.cpu.brand_string")
	case "linux":
		return probeLinuxCPUModel(ctx)
	default:
		return "Unknown"
	}
}

func probeLinuxCPUModel(ctx context.Context) string {
	timeoutCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	cmd := exec.CommandContext(timeoutCtx, "sh", "-c", "grep -m1 'model name' /proc/cpuinfo")
	out, err := cmd.Output()
	if err != nil {
		return "Unknown"
	}
	parts := strings.SplitN(string(out), ":", 2)
	if len(parts) != 2 {
		return "Unknown"
	}
	return strings.TrimSpace(parts[1])
}

func probeGPUName(ctx context.Context) string {
	timeoutCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	cmd := exec.CommandContext(timeoutCtx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader")
	out, err := cmd.Output()
	if err != nil {
		return "Unknown"
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return "Unknown"
	}
	return strings.TrimSpace(lines[0])
}

func probeCommandOutput(ctx context.Context, name string, args ...string) string {
	timeoutCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	out, err := exec.CommandContext(timeoutCtx, name, args...).Output()
	if err != nil {
		return "Unknown"
	}
	return strings.TrimSpace(string(out))
}
