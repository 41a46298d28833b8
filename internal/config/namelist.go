package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadNameList reads a newline-delimited name list (view names, procedure
// names). Blank lines and '#' comments are skipped; names are lowercased.
// A missing path yields an empty list, not an error.
func LoadNameList(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open name list %s: %w", path, err)
	}
	defer f.Close()

	var names []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name := strings.ToLower(line)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read name list %s: %w", path, err)
	}
	return names, nil
}
