package pipeline

import (
	"os"
	"path/filepath"
	"time"
)

// RunJanitor removes clone directories under deps.cloneBaseDir() that have
// not been modified in cloneRetention, so a long-running deployment does
// not accumulate disk usage from finished or abandoned pipeline runs.
func RunJanitor(deps Deps, now time.Time) error {
	base := deps.cloneBaseDir()
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			deps.logger().Warn("janitor: stat failed", "entry", entry.Name(), "err", err)
			continue
		}
		if now.Sub(info.ModTime()) < cloneRetention {
			continue
		}
		path := filepath.Join(base, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			deps.logger().Error("janitor: remove failed", "path", path, "err", err)
			continue
		}
		deps.logger().Info("janitor: removed stale clone", "path", path)
	}
	return nil
}
