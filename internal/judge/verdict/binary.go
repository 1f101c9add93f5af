package verdict

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"io"

	"golang.org/x/crypto/blake2b"

	"cryptoj/internal/judge/sandbox"
	appErr "cryptoj/pkg/errors"
)

// binaryStrategy compares both streams byte for byte via a keyed blake2b
// digest, so arbitrarily large outputs never sit in memory at once. The key
// is fresh per comparison.
type binaryStrategy struct{}

type digestResult struct {
	sum []byte
	err error
}

func (binaryStrategy) Compare(ctx context.Context, cmp Comparison) (Outcome, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return Outcome{}, appErr.Wrapf(err, appErr.JudgeSystemError, "generate digest key failed")
	}

	expectedCh := make(chan digestResult, 1)
	go func() {
		hasher, err := blake2b.New256(key)
		if err != nil {
			expectedCh <- digestResult{err: err}
			return
		}
		if _, err := io.Copy(hasher, cmp.Expected); err != nil {
			expectedCh <- digestResult{err: err}
			return
		}
		expectedCh <- digestResult{sum: hasher.Sum(nil)}
	}()

	actual, err := cmp.OpenActual(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer actual.Close()

	actualHasher, err := blake2b.New256(key)
	if err != nil {
		return Outcome{}, appErr.Wrapf(err, appErr.JudgeSystemError, "initialize digest failed")
	}
	consumed, err := io.Copy(actualHasher, actual)
	if err != nil {
		return Outcome{}, appErr.Wrapf(err, appErr.JudgeSystemError, "read submitted output failed")
	}

	expected := <-expectedCh
	if expected.err != nil {
		return Outcome{}, appErr.Wrapf(expected.err, appErr.JudgeSystemError, "read expected output failed")
	}

	status := sandbox.StatusAccepted
	if !hmac.Equal(expected.sum, actualHasher.Sum(nil)) {
		status = sandbox.StatusWrongAnswer
	}
	return Outcome{Status: status, OutputBytes: consumed}, nil
}
