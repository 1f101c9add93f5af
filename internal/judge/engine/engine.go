// Package engine drives one full judging pass: compile the submission,
// execute it against every checkpoint in the experiment's archive, settle a
// verdict per checkpoint and aggregate the pass.
package engine

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cryptoj/internal/judge/checkpoint"
	"cryptoj/internal/judge/model"
	"cryptoj/internal/judge/sandbox"
	"cryptoj/internal/judge/verdict"
	appErr "cryptoj/pkg/errors"
	"cryptoj/pkg/utils/logger"
)

// stderrLimit caps the stderr collector of a checkpoint run. Compile and
// special-judge runs use the configured output limits instead.
const stderrLimit = 4096

// Engine judges submissions against an external sandbox.
type Engine struct {
	api    sandbox.API
	opener checkpoint.Opener

	compileOutputLimit int64
	runOutputLimit     int64
}

// New creates an Engine. The output limits cap the collected compile
// diagnostics and the contestant's stdout respectively, in bytes.
func New(api sandbox.API, opener checkpoint.Opener, compileOutputLimit, runOutputLimit int64) *Engine {
	return &Engine{
		api:                api,
		opener:             opener,
		compileOutputLimit: compileOutputLimit,
		runOutputLimit:     runOutputLimit,
	}
}

// Judge runs one judging pass. It never returns an error: any failure,
// including a panic, collapses into a terminal failure result so the caller
// can always persist an outcome and clear the pending flag.
func (e *Engine) Judge(ctx context.Context, sub *model.Submission, exp *model.Experiment) (result *model.JudgeResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "judging pass panicked",
				zap.Int64("subid", sub.SubID), zap.Any("panic", r))
			result = model.FailureResult(fmt.Errorf("%v", r))
		}
	}()

	res, err := e.judge(ctx, sub, exp)
	if err != nil {
		logger.Error(ctx, "judging pass failed",
			zap.Int64("subid", sub.SubID), zap.Error(err))
		return model.FailureResult(err)
	}
	return res
}

func (e *Engine) judge(ctx context.Context, sub *model.Submission, exp *model.Experiment) (*model.JudgeResult, error) {
	template, ok := exp.CompileCommands[sub.Language]
	if !ok {
		return nil, appErr.Newf(appErr.LanguageNotSupported, "invalid language %s", sub.Language)
	}

	codeFile := "code-" + uuid.NewString() + "." + sub.Language
	execFile := "exec-" + uuid.NewString()
	result := &model.JudgeResult{}

	var execFileID string
	if isScripted(template) {
		// Interpreted language: prepend the shebang template and cache the
		// script as the executable, no compile step.
		id, err := e.api.UploadFile(ctx, strings.NewReader(template+"\n"+sub.Code))
		if err != nil {
			return nil, err
		}
		result.CompileSuccess = true
		result.CompileOutput = ""
		execFileID = id
	} else {
		args, err := compileArgs(template, codeFile, execFile)
		if err != nil {
			return nil, err
		}
		cpuLimit := uint64(exp.CompileTimeLimit) * 1e6
		results, err := e.api.Run(ctx, sandbox.Request{Cmd: []sandbox.Cmd{{
			Args: args,
			Env:  sandbox.DefaultEnv,
			Files: []*sandbox.CmdFile{
				sandbox.FileContent(""),
				sandbox.Collector("stdout", e.compileOutputLimit),
				sandbox.Collector("stderr", e.compileOutputLimit),
			},
			ProcLimit:     sandbox.DefaultProcLimit,
			CPURateLimit:  uint64(exp.CPULimit),
			CPULimit:      cpuLimit,
			ClockLimit:    sandbox.ClockLimit(cpuLimit),
			MemoryLimit:   uint64(exp.CompileMemoryLimit),
			CopyIn:        map[string]*sandbox.CmdFile{codeFile: sandbox.FileContent(sub.Code)},
			CopyOut:       []string{"stderr"},
			CopyOutCached: []string{execFile},
		}}})
		if err != nil {
			return nil, err
		}
		compile := results[0]
		result.CompileSuccess = compile.Status == sandbox.StatusAccepted
		result.CompileOutput = compile.Files["stderr"]
		if !result.CompileSuccess {
			result.CompileOutput = fmt.Sprintf("Compiler error: %s\n%s", compile.Status, result.CompileOutput)
			return result, nil
		}
		execFileID = compile.FileIDs[execFile]
		if execFileID == "" {
			return nil, appErr.New(appErr.SandboxFileError).WithMessage("compiled executable was not cached")
		}
	}
	defer e.api.DeleteFile(context.WithoutCancel(ctx), execFileID)

	archive, err := e.opener.OpenArchive(ctx, exp.CheckpointPath)
	if err != nil {
		return nil, err
	}
	defer archive.Close()
	checkpoints, err := archive.Manifest()
	if err != nil {
		return nil, err
	}

	result.Checkpoints = make([]model.CheckpointResult, 0, len(checkpoints))
	for i, cp := range checkpoints {
		cpResult, err := e.runCheckpoint(ctx, exp, execFile, execFileID, archive, cp)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.GetCode(err), "checkpoint %d: %v", i, err)
		}
		result.Checkpoints = append(result.Checkpoints, cpResult)
	}

	result.Completed = true
	for _, cp := range result.Checkpoints {
		if cp.Time > result.Time {
			result.Time = cp.Time
		}
		if cp.Memory > result.Memory {
			result.Memory = cp.Memory
		}
		if cp.Status == sandbox.StatusAccepted {
			result.AcceptedCount++
		}
	}
	result.Accepted = result.AcceptedCount == int64(len(checkpoints))
	return result, nil
}

func (e *Engine) runCheckpoint(ctx context.Context, exp *model.Experiment, execFile, execFileID string, archive *checkpoint.Archive, cp checkpoint.Checkpoint) (model.CheckpointResult, error) {
	input, err := archive.Entry(cp.Input)
	if err != nil {
		return model.CheckpointResult{}, err
	}
	inputID, err := e.api.UploadFile(ctx, input)
	input.Close()
	if err != nil {
		return model.CheckpointResult{}, err
	}
	defer e.api.DeleteFile(context.WithoutCancel(ctx), inputID)

	expectedSize, err := archive.EntrySize(cp.Output)
	if err != nil {
		return model.CheckpointResult{}, err
	}

	cpuLimit := uint64(exp.RunTimeLimit) * 1e6
	results, err := e.api.Run(ctx, sandbox.Request{Cmd: []sandbox.Cmd{{
		Args: []string{execFile},
		Env:  sandbox.DefaultEnv,
		Files: []*sandbox.CmdFile{
			sandbox.FileID(inputID),
			sandbox.Collector("stdout", e.runOutputLimit),
			sandbox.Collector("stderr", stderrLimit),
		},
		ProcLimit:    sandbox.DefaultProcLimit,
		CPURateLimit: uint64(exp.CPULimit),
		CPULimit:     cpuLimit,
		ClockLimit:   sandbox.ClockLimit(cpuLimit),
		// Collected stdout is charged against the memory limit, so the
		// expected output size is granted on top of the run limit.
		MemoryLimit:   uint64(exp.RunMemoryLimit + expectedSize),
		CopyIn:        map[string]*sandbox.CmdFile{execFile: sandbox.FileID(execFileID)},
		CopyOutCached: []string{"stdout", "stderr"},
	}}})
	if err != nil {
		return model.CheckpointResult{}, err
	}
	run := results[0]

	stdoutID := run.FileIDs["stdout"]
	stderrID := run.FileIDs["stderr"]
	if stdoutID == "" || stderrID == "" {
		return model.CheckpointResult{}, appErr.Newf(appErr.SandboxFileError, "run output was not cached: %+v", run.FileError)
	}
	defer e.api.DeleteFile(context.WithoutCancel(ctx), stdoutID)
	defer e.api.DeleteFile(context.WithoutCancel(ctx), stderrID)

	stderrData, err := e.api.ReadFile(ctx, stderrID)
	if err != nil {
		return model.CheckpointResult{}, err
	}
	logger.Debug(ctx, "checkpoint finished",
		zap.String("status", string(run.Status)), zap.ByteString("stderr", stderrData))

	status := run.Status
	memory := int64(run.Memory)
	if status == sandbox.StatusAccepted {
		expected, err := archive.Entry(cp.Output)
		if err != nil {
			return model.CheckpointResult{}, err
		}
		defer expected.Close()

		strategy, err := verdict.ForMode(cp.Mode, e.api)
		if err != nil {
			return model.CheckpointResult{}, err
		}
		outcome, err := strategy.Compare(ctx, verdict.Comparison{
			Expected: expected,
			OpenActual: func(ctx context.Context) (io.ReadCloser, error) {
				return e.api.OpenFile(ctx, stdoutID)
			},
			InputFileID:  inputID,
			OutputFileID: stdoutID,
			Verifier: verdict.VerifierLimits{
				TimeLimitMillis:  uint64(exp.CompileTimeLimit),
				MemoryLimitBytes: uint64(exp.CompileMemoryLimit),
				CPURate:          uint64(exp.CPULimit),
				OutputLimitBytes: e.runOutputLimit,
			},
		})
		if err != nil {
			return model.CheckpointResult{}, err
		}
		status = outcome.Status
		memory -= outcome.OutputBytes
	}

	return model.CheckpointResult{
		Time:   int64(run.Time / 1e6),
		Memory: memory,
		Status: status,
		Stderr: string(stderrData),
	}, nil
}
