package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/clipinspect/videometa/internal/videometa"
)

const (
	exitOK    = 0
	exitError = 1
)

type Options struct {
	Output string
	Report string
}

// fileResult pairs one input path with its parse outcome, the unit
// both the text and JSON/YAML renderers iterate over.
type fileResult struct {
	Path   string               `json:"path" yaml:"path"`
	Result *videometa.VideoInfoResult `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string               `json:"error,omitempty" yaml:"error,omitempty"`
}

func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		return exitError
	}

	program := programName(args[0])
	opts := Options{Output: "text"}
	files := make([]string, 0)

	for i := 1; i < len(args); i++ {
		original := args[i]
		normalized := normalizeArg(original)

		switch {
		case normalized == "--help" || normalized == "-h":
			HelpCommand(program, stdout)
			return exitOK
		case normalized == "--version":
			Version(stdout)
			return exitOK
		case strings.HasPrefix(normalized, "--output="):
			if value, ok := valueAfterEqual(original); ok {
				opts.Output = strings.ToLower(value)
			} else {
				HelpOutput(program, stdout)
				return exitError
			}
		case strings.HasPrefix(normalized, "--report="):
			if value, ok := valueAfterEqual(original); ok {
				opts.Report = value
			}
		default:
			files = append(files, original)
		}
	}

	if len(files) == 0 {
		return Usage(program, stdout)
	}

	if opts.Output != "text" && opts.Output != "json" {
		fmt.Fprintf(stderr, "output format not implemented: %s\n", opts.Output)
		return exitError
	}

	results := analyzeFiles(files)

	if opts.Report != "" {
		if err := writeYAMLReport(opts.Report, results); err != nil {
			fmt.Fprintln(stderr, err.Error())
			return exitError
		}
	}

	switch opts.Output {
	case "json":
		fmt.Fprintln(stdout, renderJSON(results))
	default:
		fmt.Fprint(stdout, renderText(results))
	}

	for _, r := range results {
		if r.Error != "" {
			return exitError
		}
	}
	return exitOK
}

func analyzeFiles(paths []string) []fileResult {
	results := make([]fileResult, 0, len(paths))
	for _, path := range paths {
		buf, err := os.ReadFile(path)
		if err != nil {
			results = append(results, fileResult{Path: path, Error: err.Error()})
			continue
		}
		info, err := videometa.ParseVideoMetadata(buf, int64(len(buf)), videometa.ParseOptions{})
		if err != nil {
			results = append(results, fileResult{Path: path, Error: err.Error()})
			continue
		}
		results = append(results, fileResult{Path: path, Result: &info})
	}
	return results
}

func programName(arg0 string) string {
	name := filepath.Base(arg0)
	if runtime.GOOS == "windows" {
		ext := filepath.Ext(name)
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

func normalizeArg(arg string) string {
	eq := strings.IndexByte(arg, '=')
	if eq == -1 {
		eq = len(arg)
	}
	lower := strings.ToLower(arg[:eq])
	return lower + arg[eq:]
}

func valueAfterEqual(arg string) (string, bool) {
	eq := strings.IndexByte(arg, '=')
	if eq == -1 {
		return "", false
	}
	return arg[eq+1:], true
}

func Usage(program string, stdout io.Writer) int {
	HelpNothing(program, stdout)
	return exitError
}
