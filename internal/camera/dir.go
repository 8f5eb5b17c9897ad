package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DirSource consumes frames dropped into a spool directory by an external
// capture pipeline. Each file is consumed once; Grab returns nil when no
// file newer than the last consumed one exists.
type DirSource struct {
	dir string

	mu       sync.Mutex
	lastName string
	lastMod  time.Time
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

var _ Source = (*DirSource)(nil)

var frameExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Grab returns the newest unconsumed image file in the directory.
func (s *DirSource) Grab(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}

	var newestName string
	var newestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() || !frameExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMod) {
			newestMod = info.ModTime()
			newestName = entry.Name()
		}
	}

	if newestName == "" {
		return nil, nil
	}

	s.mu.Lock()
	alreadySeen := newestName == s.lastName && !newestMod.After(s.lastMod)
	if !alreadySeen {
		s.lastName = newestName
		s.lastMod = newestMod
	}
	s.mu.Unlock()

	if alreadySeen {
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(s.dir, newestName))
	if err != nil {
		return nil, fmt.Errorf("read frame file: %w", err)
	}

	return &Frame{
		Data:       data,
		CapturedAt: newestMod.UTC(),
		Source:     newestName,
	}, nil
}
