package toolbox

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/solguard/solguard/internal/domain"
)

// maxSearchResults caps total matching lines returned, each formatted
// as path:line:match.
const maxSearchResults = 100

// searchSkipDirs are pruned entirely while walking for search_code:
// VCS metadata plus the dependency and build-output directories the
// repo walker also excludes. The walker's test, SDK and client
// directories are still searched.
var searchSkipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"target":       true,
}

// SearchCodeTool greps the repo for a regex pattern, entirely in-process
// (no shelling out to ripgrep) so an invalid pattern surfaces as a
// BadPattern tool error rather than a subprocess exit code.
type SearchCodeTool struct {
	sandbox *Sandbox
}

func NewSearchCodeTool(sandbox *Sandbox) *SearchCodeTool {
	return &SearchCodeTool{sandbox: sandbox}
}

func (t *SearchCodeTool) Spec() Spec {
	return Spec{
		Name:        "search_code",
		Description: "Search repo files for a regex pattern. Returns up to 100 matching lines as path:line:match. Optional file_glob filters by filename pattern (e.g. \"*.rs\").",
		Args: []ArgSpec{
			{Name: "pattern", Type: "string", Description: "Regex pattern (RE2 syntax) to search for.", Required: true},
			{Name: "file_glob", Type: "string", Description: "Optional filename glob to restrict the search, e.g. \"*.rs\"."},
		},
	}
}

func (t *SearchCodeTool) Run(ctx context.Context, args Args) Outcome {
	pattern, err := args.Text("pattern")
	if err != nil {
		return failErr(err)
	}
	fileGlob, err := args.OptionalText("file_glob")
	if err != nil {
		return failErr(err)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return failf(domain.KindBadPattern, "%s", err.Error())
	}

	root := t.sandbox.Root()
	var matches []string

	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if len(matches) >= maxSearchResults {
			return filepath.SkipDir
		}
		if info.IsDir() {
			if path != root && searchSkipDirs[strings.ToLower(info.Name())] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if fileGlob != "" {
			ok, _ := filepath.Match(fileGlob, filepath.Base(rel))
			if !ok {
				return nil
			}
		}

		matches = append(matches, matchesInFile(path, rel, re, maxSearchResults-len(matches))...)
		return nil
	})
	if walkErr != nil {
		return failf(domain.KindIoFailure, "%s", walkErr.Error())
	}

	sort.Strings(matches)
	if len(matches) == 0 {
		return Outcome{Content: "no matches found"}
	}
	if len(matches) > maxSearchResults {
		matches = matches[:maxSearchResults]
	}

	return Outcome{Content: strings.Join(matches, "\n")}
}

// matchesInFile scans a single file line by line for re, returning at
// most limit "path:line:match" strings. Binary-looking files (those
// containing a NUL in the first 512 bytes) are skipped.
func matchesInFile(absPath, relPath string, re *regexp.Regexp, limit int) []string {
	if limit <= 0 {
		return nil
	}
	f, err := os.Open(absPath)
	if err != nil {
		return nil
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	for i := 0; i < n; i++ {
		if head[i] == 0 {
			return nil
		}
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil
	}

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var out []string
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if re.MatchString(line) {
			out = append(out, fmt.Sprintf("%s:%d:%s", relPath, lineNum, strings.TrimSpace(line)))
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}
