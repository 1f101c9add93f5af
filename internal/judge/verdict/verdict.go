// Package verdict decides whether an accepted run's output answers a
// checkpoint. Each checkpoint declares one of three comparison modes;
// strategies only run after the sandbox itself reported Accepted.
package verdict

import (
	"context"
	"io"

	"cryptoj/internal/judge/checkpoint"
	"cryptoj/internal/judge/sandbox"
	appErr "cryptoj/pkg/errors"
)

// Outcome is a strategy's decision for one checkpoint. OutputBytes counts the
// stdout bytes the strategy actually consumed; the engine subtracts them from
// the sandbox's memory figure, since collected stdout is charged against the
// process memory limit.
type Outcome struct {
	Status      sandbox.Status
	OutputBytes int64
}

// Comparison carries everything a strategy may need for one checkpoint. The
// binary and text strategies read Expected and OpenActual; the special-judge
// strategy instead hands the cached input and output handles to a verifier
// program inside the sandbox.
type Comparison struct {
	// Expected streams the archive's expected-output entry. For
	// special-judge checkpoints it holds the verifier program itself.
	Expected io.Reader

	// OpenActual streams the contestant's collected stdout.
	OpenActual func(ctx context.Context) (io.ReadCloser, error)

	// InputFileID and OutputFileID are cached sandbox handles for the
	// checkpoint input and the contestant stdout.
	InputFileID  string
	OutputFileID string

	// Verifier bounds the special-judge program's run.
	Verifier VerifierLimits
}

// VerifierLimits are the resource limits applied to a special-judge verifier.
// They mirror the experiment's compile limits.
type VerifierLimits struct {
	TimeLimitMillis  uint64
	MemoryLimitBytes uint64
	CPURate          uint64
	OutputLimitBytes int64
}

// Strategy compares one checkpoint's expected and actual output.
type Strategy interface {
	Compare(ctx context.Context, cmp Comparison) (Outcome, error)
}

// ForMode returns the strategy implementing the given checkpoint mode.
func ForMode(mode string, api sandbox.API) (Strategy, error) {
	switch mode {
	case checkpoint.ModeBinary:
		return binaryStrategy{}, nil
	case checkpoint.ModeText:
		return textStrategy{}, nil
	case checkpoint.ModeSpecialJudge:
		return &specialJudgeStrategy{api: api}, nil
	default:
		return nil, appErr.Newf(appErr.CheckpointModeUnknown, "unknown checkpoint mode %q", mode)
	}
}
