package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch implements ports.Watchable. It emits the name of each model whose
// file is written, created, renamed or removed under BasePath.
func (s *Store) Watch(ctx context.Context) (<-chan string, error) {
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}
	if err := w.Add(s.BasePath); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.BasePath, err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.Errors:
				// Overflow and similar errors only lose events; keep watching.
			case evt, ok := <-w.Events:
				if !ok {
					return
				}
				name, ok := modelName(evt.Name)
				if !ok {
					continue
				}
				select {
				case ch <- name:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// modelName reports the model a path belongs to, ignoring temporary files
// written by Save.
func modelName(path string) (string, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "tmp-") {
		return "", false
	}
	ext := filepath.Ext(base)
	if !slices.Contains(Formats, Format(ext)) {
		return "", false
	}
	return strings.TrimSuffix(base, ext), true
}
