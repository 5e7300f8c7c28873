// Package symbols supplies the working set of instrument codes for a run,
// either from a user-provided file or from the embedded default BIST list.
package symbols

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed default_symbols.txt
var defaultList string

// Load reads the symbol list from path, one code per line, blank lines and
// surrounding whitespace ignored. An empty path falls back to the embedded
// default list.
func Load(path string) ([]string, error) {
	if path == "" {
		return parse(defaultList), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol list %s: %w", path, err)
	}

	codes := parse(string(content))
	if len(codes) == 0 {
		return nil, fmt.Errorf("symbol list %s contains no symbols", path)
	}

	return codes, nil
}

func parse(content string) []string {
	var codes []string
	for _, line := range strings.Split(content, "\n") {
		code := strings.TrimSpace(line)
		if code == "" {
			continue
		}
		codes = append(codes, strings.ToUpper(code))
	}
	return codes
}
