package verdict

import (
	"context"

	"github.com/google/uuid"

	"cryptoj/internal/judge/sandbox"
	appErr "cryptoj/pkg/errors"
)

// specialJudgeStrategy runs the checkpoint's verifier program inside the
// sandbox with the input and the contestant output as arguments. Exit 0
// accepts, exit 1 rejects, anything else is a verifier fault. The verifier
// never counts toward the contestant's memory, so OutputBytes stays 0.
type specialJudgeStrategy struct {
	api sandbox.API
}

func (s *specialJudgeStrategy) Compare(ctx context.Context, cmp Comparison) (Outcome, error) {
	verifierID, err := s.api.UploadFile(ctx, cmp.Expected)
	if err != nil {
		return Outcome{}, appErr.Wrapf(err, appErr.SandboxFileError, "upload verifier failed")
	}
	defer s.api.DeleteFile(context.WithoutCancel(ctx), verifierID)

	verifierFile := "special-judge-" + uuid.NewString()
	inputFile := "input-" + uuid.NewString()
	outputFile := "output-" + uuid.NewString()

	cpuLimit := cmp.Verifier.TimeLimitMillis * 1e6
	results, err := s.api.Run(ctx, sandbox.Request{Cmd: []sandbox.Cmd{{
		Args: []string{verifierFile, inputFile, outputFile},
		Env:  sandbox.DefaultEnv,
		Files: []*sandbox.CmdFile{
			sandbox.FileContent(""),
			sandbox.Collector("stdout", cmp.Verifier.OutputLimitBytes),
			sandbox.Collector("stderr", cmp.Verifier.OutputLimitBytes),
		},
		ProcLimit:    sandbox.DefaultProcLimit,
		CPURateLimit: cmp.Verifier.CPURate,
		CPULimit:     cpuLimit,
		ClockLimit:   sandbox.ClockLimit(cpuLimit),
		MemoryLimit:  cmp.Verifier.MemoryLimitBytes,
		CopyIn: map[string]*sandbox.CmdFile{
			verifierFile: sandbox.FileID(verifierID),
			inputFile:    sandbox.FileID(cmp.InputFileID),
			outputFile:   sandbox.FileID(cmp.OutputFileID),
		},
	}}})
	if err != nil {
		return Outcome{}, err
	}

	var status sandbox.Status
	switch results[0].ExitStatus {
	case 0:
		status = sandbox.StatusAccepted
	case 1:
		status = sandbox.StatusWrongAnswer
	default:
		status = sandbox.StatusInternalError
	}
	return Outcome{Status: status, OutputBytes: 0}, nil
}
