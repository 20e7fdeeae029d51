package agent

import (
	"regexp"
	"strings"
)

var (
	fenceOpen  = regexp.MustCompile("(?m)^```[a-zA-Z0-9_-]*[ \t]*\r?\n")
	fenceClose = regexp.MustCompile("(?m)^```[ \t]*$")
	importLine = regexp.MustCompile(`(?m)^(?:from|import)\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

// stripFences removes markdown code fences from model output. Models wrap
// code in ```python blocks no matter how firmly the prompt forbids it.
func stripFences(text string) string {
	text = fenceOpen.ReplaceAllString(text, "")
	text = fenceClose.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// pythonStdlib covers the standard-library modules that show up in
// generated code. Imports outside this set are assumed to be third-party
// and land in requirements.txt.
var pythonStdlib = map[string]bool{
	"abc": true, "argparse": true, "asyncio": true, "base64": true,
	"collections": true, "contextlib": true, "copy": true, "csv": true,
	"dataclasses": true, "datetime": true, "decimal": true, "enum": true,
	"functools": true, "glob": true, "hashlib": true, "heapq": true,
	"io": true, "itertools": true, "json": true, "logging": true,
	"math": true, "os": true, "pathlib": true, "pickle": true,
	"queue": true, "random": true, "re": true, "secrets": true,
	"shutil": true, "socket": true, "sqlite3": true, "string": true,
	"subprocess": true, "sys": true, "tempfile": true, "threading": true,
	"time": true, "traceback": true, "types": true, "typing": true,
	"unittest": true, "urllib": true, "uuid": true, "warnings": true,
}

// thirdPartyImports returns the sorted distinct top-level modules the code
// imports that are neither standard library nor the project itself.
func thirdPartyImports(code, projectName string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range importLine.FindAllStringSubmatch(code, -1) {
		name := m[1]
		if pythonStdlib[name] || name == projectName || name == "src" || name == "tests" {
			continue
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
