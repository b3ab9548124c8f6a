package geoip

import (
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"topicmingle/internal/config"
)

var (
	geoDB  *geoip2.Reader
	once   sync.Once
	mu     sync.RWMutex
	logger *slog.Logger = slog.Default()
)

// InitLogger sets the logger for the geoip package.
func InitLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// open loads the GeoLite2 database at path. Returns nil when the path is
// empty or the file is missing; geolocation is optional.
func open(path string) *geoip2.Reader {
	if path == "" {
		logger.Debug("GeoIP database path not configured - country lookup disabled")
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			logger.Info("GeoLite2 database not found - country lookup disabled",
				slog.String("path", path),
				slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		} else {
			logger.Warn("Error checking GeoLite2 database file",
				slog.String("path", path),
				slog.Any("error", err))
		}
		return nil
	}

	db, err := geoip2.Open(path)
	if err != nil {
		logger.Error("Failed to open GeoLite2 database",
			slog.String("path", path),
			slog.Any("error", err))
		return nil
	}

	logger.Info("GeoLite2 database initialized", slog.String("path", path))
	return db
}

// GetGeoDB returns the GeoLite2 reader, opening it on first use.
func GetGeoDB() *geoip2.Reader {
	once.Do(func() {
		mu.Lock()
		geoDB = open(config.GetConfig().GeoDBPath)
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return geoDB
}

// ReloadGeoDB reopens the database from disk.
func ReloadGeoDB() {
	once.Do(func() {})

	mu.Lock()
	defer mu.Unlock()

	if geoDB != nil {
		geoDB.Close()
	}
	geoDB = open(config.GetConfig().GeoDBPath)
}

// CountryCode returns the ISO country code for ip, or an empty string when
// the database is unavailable or has no record.
func CountryCode(ipAddress string) string {
	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return ""
	}

	db := GetGeoDB()
	if db == nil {
		return ""
	}

	record, err := db.Country(ip)
	if err != nil {
		logger.Debug("Country lookup failed",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err))
		return ""
	}
	return record.Country.IsoCode
}
