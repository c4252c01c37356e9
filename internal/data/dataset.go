package data

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DefaultMinChars is the trimmed length a line must exceed to be kept.
const DefaultMinChars = 50

// LoadLines reads a newline-delimited dataset, keeping lines whose
// trimmed length exceeds minChars.
func LoadLines(path string, minChars int) ([]string, error) {
	//nolint:gosec // G304: dataset path is user configuration.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		line := sc.Text()
		if len(strings.TrimSpace(line)) > minChars {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return lines, nil
}
