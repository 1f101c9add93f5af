package model

// Experiment is a grading configuration. Read-only to the judge core and
// immutable for the duration of a judging pass.
type Experiment struct {
	ExpID int64
	Title string

	// CPULimit follows the sandbox convention: 1000 -> 1 vCPU.
	CPULimit int64
	// Compile limits also apply to special-judge verifier runs.
	CompileTimeLimit   int64 // ms
	CompileMemoryLimit int64 // bytes
	RunTimeLimit       int64 // ms
	RunMemoryLimit     int64 // bytes

	// CompileCommands maps a language tag to a command template with
	// ${input}/${output} placeholders. A template starting with "#!" marks a
	// scripted language that needs no separate compile step.
	CompileCommands map[string]string

	// CheckpointPath locates the checkpoint archive.
	CheckpointPath string
}
