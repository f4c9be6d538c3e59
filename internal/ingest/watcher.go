package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/flowerwork/iceberg/constants"
)

// Event is one artifact discovered under the watched root: the bucket is the
// first-level directory, the key is the file name under it.
type Event struct {
	Bucket string
	Key    string
}

type WatchConfig struct {
	Root        string              // artifact root; each bucket is a subdirectory
	Buckets     []string            // bucket names to watch under the root
	AllowedExts map[string]struct{} // lowercase, without '.'
	InitialScan bool                // if true, walk buckets and emit existing files
	Debounce    time.Duration       // coalesce rapid update/rename bursts
}

// StartWatcher watches the bucket directories and emits artifact events until
// the context is cancelled. Missing bucket directories are skipped; they are
// created on first write and picked up then.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan Event, <-chan error, error) {
	if cfg.Root == "" || len(cfg.Buckets) == 0 {
		slog.Error("watcher start failed: root and buckets are required")
		return nil, nil, errors.New("root and buckets are required")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = constants.AllowedExtensions
	}
	evCh := make(chan Event, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	if err := w.Add(cfg.Root); err != nil {
		slog.Error("failed to watch root directory", "root", cfg.Root, "error", err)
		_ = w.Close()
		return nil, nil, err
	}
	addBucket := func(dir string) error {
		return filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && allowed(path, cfg.AllowedExts) {
				if ev, ok := splitEvent(cfg.Root, path); ok {
					select {
					case evCh <- ev:
					default:
					}
				}
			}
			return nil
		})
	}
	for _, b := range cfg.Buckets {
		dir := filepath.Join(cfg.Root, b)
		if err := addBucket(dir); err != nil {
			slog.Warn("bucket directory not watchable yet", "bucket", b, "error", err)
		}
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				slog.Warn("closing watcher", "error", err)
			}
		}()

		var timer *time.Timer
		pending := map[Event]struct{}{}

		sendPending := func() {
			for ev := range pending {
				select {
				case evCh <- ev:
				default:
				}
				delete(pending, ev)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e := <-w.Events:
				// A bucket directory appearing later starts being watched here.
				if e.Op&fsnotify.Create == fsnotify.Create {
					tryAddDir(w, e.Name)
				}

				if allowed(e.Name, cfg.AllowedExts) && (e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename)) != 0 {
					ev, ok := splitEvent(cfg.Root, e.Name)
					if !ok {
						continue
					}
					pending[ev] = struct{}{}
					if cfg.Debounce > 0 {
						if timer != nil {
							timer.Stop()
						}
						timer = time.AfterFunc(cfg.Debounce, sendPending)
					} else {
						sendPending()
					}
				}
			case err := <-w.Errors:
				slog.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// splitEvent derives the bucket and key from a path under the root.
func splitEvent(root, path string) (Event, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return Event{}, false
	}
	bucket, key := filepath.Split(filepath.ToSlash(rel))
	bucket = filepath.Clean(bucket)
	if bucket == "." || bucket == ".." || key == "" {
		return Event{}, false
	}
	return Event{Bucket: bucket, Key: key}, true
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

func tryAddDir(w *fsnotify.Watcher, path string) {
	// Best-effort: non-directories fail to add and that is fine.
	_ = w.Add(path)
}
