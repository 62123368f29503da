package transcode

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"

	"mmoto/internal/logging"
)

// SoftwareEncoder is the universally available H.264 encoder.
const SoftwareEncoder = "libx264"

// hardwarePreference lists H.264 hardware encoders from most to least preferred.
var hardwarePreference = []string{"h264_videotoolbox", "h264_nvenc", "h264_qsv"}

// Capability describes the encoder selected for re-encodes.
type Capability struct {
	Available bool
	Encoder   string
}

// Software returns the libx264 capability.
func Software() Capability {
	return Capability{Encoder: SoftwareEncoder}
}

// DetectHardware probes `ffmpeg -encoders` once and caches the preferred
// hardware encoder. Disabled acceleration or a failed probe yields libx264.
func (g *Gateway) DetectHardware(ctx context.Context) Capability {
	g.hwOnce.Do(func() {
		g.hw = Software()
		if !g.opts.HardwareAccel {
			g.logger.Info("hardware encoding disabled",
				logging.String(logging.FieldEventType, "hw_detect"),
				logging.String("encoder", SoftwareEncoder),
			)
			return
		}
		output, err := g.run(ctx, g.opts.FFmpegBinary, "-hide_banner", "-encoders")
		if err != nil {
			logging.WarnWithContext(g.logger, "encoder probe failed; using software encoder", "hw_detect_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "re-encodes run on the CPU"),
				logging.String(logging.FieldErrorHint, "run `ffmpeg -encoders` to inspect the build"),
			)
			return
		}
		if encoder, ok := selectEncoder(string(output)); ok {
			g.hw = Capability{Available: true, Encoder: encoder}
		}
		g.logger.Info("encoder selected",
			logging.String(logging.FieldEventType, "hw_detect"),
			logging.String("encoder", g.hw.Encoder),
			logging.Bool("hardware", g.hw.Available),
		)
	})
	return g.hw
}

func selectEncoder(listing string) (string, bool) {
	available := make(map[string]struct{})
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		// " V....D h264_nvenc  NVIDIA NVENC H.264 encoder"
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "V") {
			continue
		}
		available[fields[1]] = struct{}{}
	}
	for _, name := range hardwarePreference {
		if _, ok := available[name]; ok {
			return name, true
		}
	}
	return "", false
}

// EncoderArgs returns the video codec arguments for capability at the given
// quality level, expressed as an x264 CRF.
func EncoderArgs(capability Capability, crf int) []string {
	quality := strconv.Itoa(crf)
	switch capability.Encoder {
	case "h264_videotoolbox":
		// VideoToolbox has no CRF; map onto its 1-100 quality scale.
		q := 100 - crf*2
		if q < 1 {
			q = 1
		}
		return []string{"-c:v", "h264_videotoolbox", "-q:v", strconv.Itoa(q), "-pix_fmt", "yuv420p"}
	case "h264_nvenc":
		return []string{"-c:v", "h264_nvenc", "-preset", "p5", "-rc", "vbr", "-cq", quality, "-pix_fmt", "yuv420p"}
	case "h264_qsv":
		return []string{"-c:v", "h264_qsv", "-global_quality", quality, "-pix_fmt", "nv12"}
	default:
		return []string{"-c:v", SoftwareEncoder, "-preset", "medium", "-crf", quality, "-pix_fmt", "yuv420p"}
	}
}

// RunWithFallback runs job with the encoder args of capability prepended to
// its output options. When a hardware encode fails for any reason other than
// cancellation, the job is retried once with libx264. It returns the encoder
// that produced the output.
func (g *Gateway) RunWithFallback(ctx context.Context, job Job, capability Capability, crf int) (string, error) {
	if capability.Encoder == "" {
		capability = Software()
	}
	err := g.Run(ctx, withEncoder(job, capability, crf))
	if err == nil {
		return capability.Encoder, nil
	}
	if !capability.Available || errors.Is(err, context.Canceled) {
		return capability.Encoder, err
	}
	logging.WarnWithContext(g.logger, "hardware encode failed; retrying with software encoder", "hw_encode_fallback",
		logging.String("encoder", capability.Encoder),
		logging.String("output", job.Output),
		logging.Error(err),
		logging.String(logging.FieldImpact, "slower encode"),
	)
	if err := g.Run(ctx, withEncoder(job, Software(), crf)); err != nil {
		return SoftwareEncoder, err
	}
	return SoftwareEncoder, nil
}

func withEncoder(job Job, capability Capability, crf int) Job {
	opts := append(EncoderArgs(capability, crf), job.OutputOptions...)
	job.OutputOptions = opts
	return job
}

// DefaultConcurrency returns configured when positive. Otherwise it sizes the
// transcode pool from physical cores: 3 above four cores, else 2.
func DefaultConcurrency(configured int) int {
	if configured > 0 {
		return configured
	}
	cores, err := cpu.Counts(false)
	if err != nil || cores <= 0 {
		return 2
	}
	if cores > 4 {
		return 3
	}
	return 2
}
