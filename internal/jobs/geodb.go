package jobs

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"topicmingle/internal/pkg/geoip"
)

// GeoDBJob reopens the GeoLite2 database when the file on disk changes,
// so an external geoipupdate run takes effect without a restart.
type GeoDBJob struct {
	path    string
	logger  *slog.Logger
	reload  func()
	lastMod time.Time
}

func NewGeoDBJob(path string, logger *slog.Logger) *GeoDBJob {
	return &GeoDBJob{path: path, logger: logger, reload: geoip.ReloadGeoDB}
}

// Run reloads the database if its modification time moved. The first run
// only records the current time.
func (j *GeoDBJob) Run() error {
	if j.path == "" {
		return nil
	}

	info, err := os.Stat(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	mod := info.ModTime()
	if j.lastMod.IsZero() {
		j.lastMod = mod
		return nil
	}
	if !mod.After(j.lastMod) {
		return nil
	}

	j.logger.Info("GeoLite2 database changed on disk, reloading",
		slog.String("path", j.path),
		slog.Time("modified_at", mod))
	j.reload()
	j.lastMod = mod
	return nil
}
