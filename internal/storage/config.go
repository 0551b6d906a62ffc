package storage

import "time"

// Config holds evidence storage configuration
type Config struct {
	Type         string        // "local"
	UploadDir    string        // Directory for local storage
	BaseURL      string        // Server base URL for generating upload and download URLs
	MaxFileSize  int64         // Bytes
	AllowedTypes []string      // Accepted Content-Type values
	URLExpiry    time.Duration // How long an upload URL stays valid
}

// Allows reports whether contentType is accepted for upload
func (c Config) Allows(contentType string) bool {
	for _, t := range c.AllowedTypes {
		if t == contentType {
			return true
		}
	}
	return false
}
