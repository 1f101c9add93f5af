package sandbox

import "math"

// DefaultEnv is the environment handed to every sandboxed process.
var DefaultEnv = []string{
	"PATH=/sbin:/bin:/usr/bin:/usr/local/bin:/usr/local/sbin",
	"LANG=zh_CN.UTF-8",
}

// DefaultProcLimit bounds the process count of a sandboxed command.
const DefaultProcLimit = 16

// clockLimitFactor pads the wall-clock limit over the CPU limit so a mostly
// idle process is not killed exactly at the CPU budget.
const clockLimitFactor = 1.145141919810

// ClockLimit derives the wall-clock limit in ns from a CPU limit in ns.
func ClockLimit(cpuLimit uint64) uint64 {
	return uint64(math.Round(float64(cpuLimit) * clockLimitFactor))
}
