package models

// ResizeBackend is the chosen resize execution path for upscale/finalize.
type ResizeBackend string

const (
	ResizeGPUNeural ResizeBackend = "gpu-neural"
	ResizeGPUDirectA ResizeBackend = "gpu-direct-a" // CUDA
	ResizeGPUDirectB ResizeBackend = "gpu-direct-b" // OpenCL
	ResizeHWScaler   ResizeBackend = "hw-scaler"
	ResizeCPU        ResizeBackend = "cpu"
)

// HWAccelFlagSet is one ordered set of ffmpeg decode-acceleration flags
// tried by the Frame Extractor, e.g. {"-hwaccel", "cuda"}.
type HWAccelFlagSet struct {
	Name  string
	Flags []string
}

// RuntimeAcceleration is the process-scoped, lazily-initialized,
// immutable-after-init acceleration snapshot (spec.md §3).
type RuntimeAcceleration struct {
	ResizeBackend      ResizeBackend
	DecodeCandidates   []HWAccelFlagSet
	CPUName            string
	GPUName            string
	NeuralSRAvailable  bool
	HWScalerAvailable  bool
}

// View is the public, JSON-safe projection returned by GET /runtime.
type RuntimeAccelerationView struct {
	ResizeBackend     ResizeBackend `json:"resize_backend"`
	DecodeCandidates  []string      `json:"decode_candidates"`
	CPUName           string        `json:"cpu_name"`
	GPUName           string        `json:"gpu_name"`
	NeuralSRAvailable bool          `json:"neural_sr_available"`
	HWScalerAvailable bool          `json:"hw_scaler_available"`
}

// View projects the acceleration snapshot to its public form.
func (r RuntimeAcceleration) View() RuntimeAccelerationView {
	names := make([]string, 0, len(r.DecodeCandidates))
	for _, c := range r.DecodeCandidates {
		names = append(names, c.Name)
	}
	return RuntimeAccelerationView{
		ResizeBackend:     r.ResizeBackend,
		DecodeCandidates:  names,
		CPUName:           r.CPUName,
		GPUName:           r.GPUName,
		NeuralSRAvailable: r.NeuralSRAvailable,
		HWScalerAvailable: r.HWScalerAvailable,
	}
}
