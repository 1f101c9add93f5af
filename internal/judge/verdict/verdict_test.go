package verdict

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"cryptoj/internal/judge/checkpoint"
	"cryptoj/internal/judge/sandbox"
	appErr "cryptoj/pkg/errors"
)

func actualReader(content string) func(ctx context.Context) (io.ReadCloser, error) {
	return func(ctx context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(content)), nil
	}
}

func TestBinaryStrategy(t *testing.T) {
	ctx := context.Background()
	strategy, err := ForMode(checkpoint.ModeBinary, nil)
	if err != nil {
		t.Fatalf("resolve strategy: %v", err)
	}

	tests := []struct {
		name     string
		expected string
		actual   string
		want     sandbox.Status
	}{
		{"identical", "ciphertext\x00\x01", "ciphertext\x00\x01", sandbox.StatusAccepted},
		{"differs", "ciphertext", "plaintext", sandbox.StatusWrongAnswer},
		{"trailing byte", "abc", "abc\n", sandbox.StatusWrongAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := strategy.Compare(ctx, Comparison{
				Expected:   strings.NewReader(tt.expected),
				OpenActual: actualReader(tt.actual),
			})
			if err != nil {
				t.Fatalf("compare: %v", err)
			}
			if outcome.Status != tt.want {
				t.Errorf("status = %v, want %v", outcome.Status, tt.want)
			}
			if outcome.OutputBytes != int64(len(tt.actual)) {
				t.Errorf("output bytes = %d, want %d", outcome.OutputBytes, len(tt.actual))
			}
		})
	}
}

func TestTextStrategy(t *testing.T) {
	ctx := context.Background()
	strategy, err := ForMode(checkpoint.ModeText, nil)
	if err != nil {
		t.Fatalf("resolve strategy: %v", err)
	}

	tests := []struct {
		name     string
		expected string
		actual   string
		want     sandbox.Status
	}{
		{"identical", "1 2 3", "1 2 3", sandbox.StatusAccepted},
		{"extra whitespace", "1 2 3\n", "1\t2\n\n3", sandbox.StatusAccepted},
		{"trailing newline", "42\n", "42", sandbox.StatusAccepted},
		{"token differs", "1 2 3", "1 2 4", sandbox.StatusWrongAnswer},
		{"token count differs", "1 2 3", "1 2", sandbox.StatusWrongAnswer},
		{"both empty", "", "\n", sandbox.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := strategy.Compare(ctx, Comparison{
				Expected:   strings.NewReader(tt.expected),
				OpenActual: actualReader(tt.actual),
			})
			if err != nil {
				t.Fatalf("compare: %v", err)
			}
			if outcome.Status != tt.want {
				t.Errorf("status = %v, want %v", outcome.Status, tt.want)
			}
			if outcome.OutputBytes != int64(len(tt.actual)) {
				t.Errorf("output bytes = %d, want %d", outcome.OutputBytes, len(tt.actual))
			}
		})
	}
}

type fakeSandbox struct {
	exitStatus int
	uploaded   []byte
	lastRun    sandbox.Request
	deleted    []string
}

func (f *fakeSandbox) Run(ctx context.Context, req sandbox.Request) ([]sandbox.Result, error) {
	f.lastRun = req
	status := sandbox.StatusAccepted
	if f.exitStatus != 0 {
		status = sandbox.StatusNonzeroExitStatus
	}
	return []sandbox.Result{{Status: status, ExitStatus: f.exitStatus}}, nil
}

func (f *fakeSandbox) UploadFile(ctx context.Context, content io.Reader) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	f.uploaded = data
	return "verifier-id", nil
}

func (f *fakeSandbox) OpenFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *fakeSandbox) ReadFile(ctx context.Context, fileID string) ([]byte, error) {
	return nil, nil
}

func (f *fakeSandbox) DeleteFile(ctx context.Context, fileID string) error {
	f.deleted = append(f.deleted, fileID)
	return nil
}

func TestSpecialJudgeStrategy(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		exitStatus int
		want       sandbox.Status
	}{
		{"exit zero accepts", 0, sandbox.StatusAccepted},
		{"exit one rejects", 1, sandbox.StatusWrongAnswer},
		{"other exit faults", 2, sandbox.StatusInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeSandbox{exitStatus: tt.exitStatus}
			strategy, err := ForMode(checkpoint.ModeSpecialJudge, api)
			if err != nil {
				t.Fatalf("resolve strategy: %v", err)
			}
			outcome, err := strategy.Compare(ctx, Comparison{
				Expected:     strings.NewReader("#!/bin/sh\nexit 0\n"),
				InputFileID:  "input-id",
				OutputFileID: "output-id",
				Verifier: VerifierLimits{
					TimeLimitMillis:  5000,
					MemoryLimitBytes: 256 << 20,
					CPURate:          1000,
					OutputLimitBytes: 65536,
				},
			})
			if err != nil {
				t.Fatalf("compare: %v", err)
			}
			if outcome.Status != tt.want {
				t.Errorf("status = %v, want %v", outcome.Status, tt.want)
			}
			if outcome.OutputBytes != 0 {
				t.Errorf("output bytes = %d, want 0", outcome.OutputBytes)
			}

			if string(api.uploaded) != "#!/bin/sh\nexit 0\n" {
				t.Errorf("verifier upload mismatch: %q", api.uploaded)
			}
			if len(api.deleted) != 1 || api.deleted[0] != "verifier-id" {
				t.Errorf("verifier handle not released: %v", api.deleted)
			}

			cmd := api.lastRun.Cmd[0]
			if len(cmd.Args) != 3 {
				t.Fatalf("expected 3 args, got %v", cmd.Args)
			}
			if cmd.CPULimit != 5000*1e6 {
				t.Errorf("cpu limit = %d", cmd.CPULimit)
			}
			if cmd.ClockLimit <= cmd.CPULimit {
				t.Errorf("clock limit %d not padded over cpu limit %d", cmd.ClockLimit, cmd.CPULimit)
			}
			if len(cmd.CopyIn) != 3 {
				t.Errorf("expected 3 copy-in entries, got %d", len(cmd.CopyIn))
			}
		})
	}
}

func TestForModeUnknown(t *testing.T) {
	if _, err := ForMode("fuzzy", nil); !appErr.Is(err, appErr.CheckpointModeUnknown) {
		t.Fatalf("expected unknown mode error, got %v", err)
	}
}
