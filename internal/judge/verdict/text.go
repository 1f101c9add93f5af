package verdict

import (
	"context"
	"io"
	"strings"

	"cryptoj/internal/judge/sandbox"
	appErr "cryptoj/pkg/errors"
)

// textStrategy compares token sequences, tolerating differences in
// whitespace and line endings.
type textStrategy struct{}

func (textStrategy) Compare(ctx context.Context, cmp Comparison) (Outcome, error) {
	expectedData, err := io.ReadAll(cmp.Expected)
	if err != nil {
		return Outcome{}, appErr.Wrapf(err, appErr.JudgeSystemError, "read expected output failed")
	}

	actual, err := cmp.OpenActual(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer actual.Close()
	actualData, err := io.ReadAll(actual)
	if err != nil {
		return Outcome{}, appErr.Wrapf(err, appErr.JudgeSystemError, "read submitted output failed")
	}

	status := sandbox.StatusAccepted
	if !tokensEqual(strings.Fields(string(expectedData)), strings.Fields(string(actualData))) {
		status = sandbox.StatusWrongAnswer
	}
	return Outcome{Status: status, OutputBytes: int64(len(actualData))}, nil
}

func tokensEqual(expected, actual []string) bool {
	if len(expected) != len(actual) {
		return false
	}
	for i, token := range expected {
		if token != actual[i] {
			return false
		}
	}
	return true
}
