// Package device resolves the compute backend and numeric precision for a job.
package device

import (
	"os/exec"
	"runtime"

	"local-transcriber/internal/domain"
)

// Candidate is one probeable backend in the fallback chain.
type Candidate struct {
	Device domain.Device
	Usable func() bool
}

// Resolver picks a concrete device and precision with ordered fallback.
// Candidates are probed strictly in slice order; the CPU candidate always
// reports usable, so "auto" never fails for device reasons.
type Resolver struct {
	candidates []Candidate
}

// NewResolver builds the production resolver for the current platform.
// Ordering: accelerated backends first (Metal on darwin, CUDA elsewhere),
// then the CPU fallback.
func NewResolver() *Resolver {
	if runtime.GOOS == "darwin" {
		return NewResolverWithCandidates([]Candidate{
			{Device: domain.DeviceMetal, Usable: metalUsable},
			{Device: domain.DeviceCPU, Usable: cpuUsable},
		})
	}

	return NewResolverWithCandidates([]Candidate{
		{Device: domain.DeviceCUDA, Usable: cudaUsable},
		{Device: domain.DeviceCPU, Usable: cpuUsable},
	})
}

// NewResolverWithCandidates builds a resolver over an explicit probe chain.
func NewResolverWithCandidates(candidates []Candidate) *Resolver {
	return &Resolver{candidates: candidates}
}

// Resolve maps a requested device and optional precision to a concrete pair.
// Explicit devices never fall back: an unusable one fails with
// DeviceUnavailableError. Only "auto" walks the candidate chain.
func (r *Resolver) Resolve(requested domain.Device, precision domain.Precision) (domain.ResolvedConfig, error) {
	if err := validatePrecision(precision); err != nil {
		return domain.ResolvedConfig{}, err
	}

	if requested == "" {
		requested = domain.DeviceAuto
	}

	if requested != domain.DeviceAuto {
		candidate, found := r.candidate(requested)
		if !found {
			return domain.ResolvedConfig{}, &domain.DeviceUnavailableError{
				Device: requested,
				Reason: "unknown device",
			}
		}
		if !candidate.Usable() {
			return domain.ResolvedConfig{}, &domain.DeviceUnavailableError{
				Device: requested,
				Reason: "backend reported unusable",
			}
		}
		return resolvedConfig(requested, precision), nil
	}

	for _, candidate := range r.candidates {
		if candidate.Usable() {
			return resolvedConfig(candidate.Device, precision), nil
		}
	}

	// Unreachable with a CPU candidate in the chain, but be explicit.
	return domain.ResolvedConfig{}, &domain.DeviceUnavailableError{
		Device: domain.DeviceAuto,
		Reason: "no usable backend",
	}
}

// candidate returns the chain entry for an explicitly requested device.
func (r *Resolver) candidate(device domain.Device) (Candidate, bool) {
	for _, c := range r.candidates {
		if c.Device == device {
			return c, true
		}
	}
	return Candidate{}, false
}

// resolvedConfig applies the backend-dependent precision default.
// Accelerated backends default to float16, the CPU to int8; an explicitly
// requested precision is never overridden.
func resolvedConfig(device domain.Device, precision domain.Precision) domain.ResolvedConfig {
	if precision == domain.PrecisionAuto {
		if device == domain.DeviceCPU {
			precision = domain.PrecisionInt8
		} else {
			precision = domain.PrecisionFloat16
		}
	}
	return domain.ResolvedConfig{Device: device, Precision: precision}
}

// validatePrecision rejects precision identifiers outside the supported set.
func validatePrecision(precision domain.Precision) error {
	switch precision {
	case domain.PrecisionAuto, domain.PrecisionInt8, domain.PrecisionFloat16:
		return nil
	default:
		return &domain.DeviceUnavailableError{
			Device: domain.DeviceAuto,
			Reason: "unsupported precision: " + string(precision),
		}
	}
}

// cpuUsable always reports true; the CPU is the terminal fallback.
func cpuUsable() bool { return true }

// cudaUsable probes for the NVIDIA driver CLI on PATH.
func cudaUsable() bool {
	_, err := exec.LookPath("nvidia-smi")
	return err == nil
}

// metalUsable reports true on darwin, where Metal ships with the OS.
func metalUsable() bool { return runtime.GOOS == "darwin" }
