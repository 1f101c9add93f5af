package model

import (
	"time"

	"cryptoj/internal/judge/sandbox"
)

// Submission is one student's attempt for one experiment. Result fields are
// nil until the judge loop resolves the submission.
type Submission struct {
	SubID      int64     `json:"subid"`
	UID        int64     `json:"uid"`
	ExpID      int64     `json:"expid"`
	SubmitTime time.Time `json:"submitTime"`
	Pending    bool      `json:"pending"`
	Obsolete   bool      `json:"obsolete"`
	Code       string    `json:"code"`
	Language   string    `json:"language"`

	CompileSuccess *bool              `json:"compileSuccess"`
	CompileOutput  *string            `json:"compileOutput"`
	Time           *int64             `json:"time"`   // max checkpoint time, ms
	Memory         *int64             `json:"memory"` // max checkpoint memory, bytes
	Accepted       *bool              `json:"accepted"`
	AcceptedCount  *int64             `json:"acceptedCount"`
	Result         []CheckpointResult `json:"result"`
}

// CheckpointResult is the recorded outcome of one checkpoint run.
type CheckpointResult struct {
	Time   int64          `json:"time"`   // ms
	Memory int64          `json:"memory"` // bytes
	Status sandbox.Status `json:"status"`
	Stderr string         `json:"stderr"`
}

// JudgeResult is the engine's verdict for one judging pass, mapped onto the
// submission row by the store. Aggregates are meaningful only when Completed
// is set; a compile failure or infrastructure error leaves them absent.
type JudgeResult struct {
	CompileSuccess bool
	CompileOutput  string
	Checkpoints    []CheckpointResult

	Completed     bool
	Time          int64 // max across checkpoints, ms
	Memory        int64 // max across checkpoints, bytes
	AcceptedCount int64
	Accepted      bool
}

// FailureResult converts an infrastructure error into the terminal result
// shape the loop persists, so a bad submission never stays pending.
func FailureResult(err error) *JudgeResult {
	return &JudgeResult{
		CompileSuccess: false,
		CompileOutput:  "Sandbox error:\n" + err.Error(),
	}
}
