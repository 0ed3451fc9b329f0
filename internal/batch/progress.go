package batch

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// FileProgress stores the next input index as a single integer in Path.
type FileProgress struct {
	Path string
}

// Save overwrites the progress file with index.
func (p FileProgress) Save(index int) error {
	if dir := filepath.Dir(p.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "progress: create dir")
		}
	}
	if err := os.WriteFile(p.Path, []byte(strconv.Itoa(index)), 0o644); err != nil {
		return eris.Wrap(err, "progress: write")
	}
	return nil
}

// Load returns the saved index, or 0 when the file is missing or unreadable.
func (p FileProgress) Load() int {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
