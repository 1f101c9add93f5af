package sandbox

// Status is the execution status reported by the sandbox for one process,
// plus the verdict-only values the judge layer downgrades to.
type Status string

const (
	StatusAccepted            Status = "Accepted"
	StatusMemoryLimitExceeded Status = "Memory Limit Exceeded"
	StatusTimeLimitExceeded   Status = "Time Limit Exceeded"
	StatusOutputLimitExceeded Status = "Output Limit Exceeded"
	StatusFileError           Status = "File Error"
	StatusNonzeroExitStatus   Status = "Nonzero Exit Status"
	StatusSignalled           Status = "Signalled"
	StatusInternalError       Status = "Internal Error"

	// StatusWrongAnswer is never returned by the sandbox itself; verdict
	// strategies downgrade a completed run to it.
	StatusWrongAnswer Status = "Wrong Answer"
)

// CmdFile describes one stream binding of a process: inline content, a
// previously cached file handle, or a named collector with a size cap.
type CmdFile struct {
	Content *string `json:"content,omitempty"`
	FileID  *string `json:"fileId,omitempty"`
	Name    *string `json:"name,omitempty"`
	Max     *int64  `json:"max,omitempty"`
}

// FileContent binds inline content.
func FileContent(content string) *CmdFile {
	return &CmdFile{Content: &content}
}

// FileID binds a cached file handle.
func FileID(id string) *CmdFile {
	return &CmdFile{FileID: &id}
}

// Collector binds a named output collector capped at max bytes.
func Collector(name string, max int64) *CmdFile {
	return &CmdFile{Name: &name, Max: &max}
}

// Cmd is one process specification inside a run request.
type Cmd struct {
	Args []string   `json:"args"`
	Env  []string   `json:"env,omitempty"`
	Files []*CmdFile `json:"files,omitempty"`

	CPULimit     uint64 `json:"cpuLimit,omitempty"`     // ns
	ClockLimit   uint64 `json:"clockLimit,omitempty"`   // ns
	MemoryLimit  uint64 `json:"memoryLimit,omitempty"`  // bytes
	ProcLimit    uint64 `json:"procLimit,omitempty"`
	CPURateLimit uint64 `json:"cpuRateLimit,omitempty"` // 1000 -> 1 vCPU

	CopyIn        map[string]*CmdFile `json:"copyIn,omitempty"`
	CopyOut       []string            `json:"copyOut,omitempty"`
	CopyOutCached []string            `json:"copyOutCached,omitempty"`
}

// Request is the body of POST /run.
type Request struct {
	Cmd []Cmd `json:"cmd"`
}

// FileError details a failed copy-in/copy-out operation.
type FileError struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// Result is the sandbox's report for one executed process.
type Result struct {
	Status     Status `json:"status"`
	ExitStatus int    `json:"exitStatus"`
	Error      string `json:"error,omitempty"`
	Time       uint64 `json:"time"`    // ns
	Memory     uint64 `json:"memory"`  // bytes
	RunTime    uint64 `json:"runTime"` // ns

	// Files holds inline copy-out contents by name.
	Files map[string]string `json:"files,omitempty"`
	// FileIDs holds cached copy-out handles by name.
	FileIDs map[string]string `json:"fileIds,omitempty"`

	FileError []FileError `json:"fileError,omitempty"`
}
