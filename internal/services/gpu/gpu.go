// Package gpu reads NVIDIA clock limits from nvidia-smi output.
package gpu

import (
	"regexp"
	"strconv"
)

var (
	maxGraphicsRe = regexp.MustCompile(`(?is)Max Clocks.*?Graphics\s*:\s*(\d+)\s*MHz`)
	maxMemoryRe   = regexp.MustCompile(`(?is)Max Clocks.*?Memory\s*:\s*(\d+)\s*MHz`)
)

// MaxClocks are the ceilings reported under "Max Clocks"; zero means absent.
type MaxClocks struct {
	GraphicsMHz int
	MemoryMHz   int
}

// QueryArgs is the nvidia-smi invocation whose output ParseMaxClocks reads.
var QueryArgs = []string{"-q", "-d", "CLOCK"}

func ParseMaxClocks(out string) MaxClocks {
	return MaxClocks{
		GraphicsMHz: firstInt(maxGraphicsRe, out),
		MemoryMHz:   firstInt(maxMemoryRe, out),
	}
}

// LockArgs returns the nvidia-smi argument lists that pin clocks to c.
func LockArgs(c MaxClocks) [][]string {
	var out [][]string
	if c.GraphicsMHz > 0 {
		out = append(out, []string{"-lgc", strconv.Itoa(c.GraphicsMHz)})
	}
	if c.MemoryMHz > 0 {
		out = append(out, []string{"-lmc", strconv.Itoa(c.MemoryMHz)})
	}
	return out
}

func firstInt(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
