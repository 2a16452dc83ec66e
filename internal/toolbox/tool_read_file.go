package toolbox

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/solguard/solguard/internal/domain"
)

// maxReadLines bounds a single read_file call; larger ranges are
// truncated with a trailing marker.
const maxReadLines = 500

// ReadFileTool reads a 1-based inclusive line range from a file in the
// sandbox, prefixing each line with its number so the agent can cite
// exact locations back in its findings.
type ReadFileTool struct {
	sandbox *Sandbox
}

func NewReadFileTool(sandbox *Sandbox) *ReadFileTool {
	return &ReadFileTool{sandbox: sandbox}
}

func (t *ReadFileTool) Spec() Spec {
	return Spec{
		Name:        "read_file",
		Description: "Read a file slice with 1-based inclusive line numbers. Omit start/end to read from the top, up to 500 lines.",
		Args: []ArgSpec{
			{Name: "path", Type: "string", Description: "Repo-relative path to the file.", Required: true},
			{Name: "start", Type: "integer", Description: "First line to read, 1-based (default 1)."},
			{Name: "end", Type: "integer", Description: "Last line to read, inclusive (default start+500-1)."},
		},
	}
}

func (t *ReadFileTool) Run(ctx context.Context, args Args) Outcome {
	path, err := args.Text("path")
	if err != nil {
		return failErr(err)
	}
	start, err := args.Number("start", 1)
	if err != nil {
		return failErr(err)
	}
	end, err := args.Number("end", 0)
	if err != nil {
		return failErr(err)
	}
	if start < 1 {
		start = 1
	}
	truncated := false
	if end < start {
		end = start + maxReadLines - 1
	} else if end-start+1 > maxReadLines {
		end = start + maxReadLines - 1
		truncated = true
	}

	resolved, err := t.sandbox.ValidatePath(path)
	if err != nil {
		return failErr(err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return failf(domain.KindIoFailure, "%s", err.Error())
	}
	if info.IsDir() {
		return failf(domain.KindIoFailure, "%q is a directory", path)
	}

	f, err := os.Open(resolved)
	if err != nil {
		return failf(domain.KindIoFailure, "%s", err.Error())
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var out strings.Builder
	lineNum := 0
	linesRead := 0
	for scanner.Scan() {
		lineNum++
		if lineNum < start {
			continue
		}
		if lineNum > end {
			break
		}
		fmt.Fprintf(&out, "%6d\t%s\n", lineNum, scanner.Text())
		linesRead++
	}
	if err := scanner.Err(); err != nil {
		return failf(domain.KindIoFailure, "%s", err.Error())
	}

	if linesRead == 0 {
		return Outcome{Content: fmt.Sprintf("no lines in range %d-%d", start, end)}
	}
	if truncated {
		fmt.Fprintf(&out, "... (truncated at %d lines; request a later range to continue)\n", maxReadLines)
	}

	return Outcome{Content: out.String()}
}
