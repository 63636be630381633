package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backend abstracts where original images and derived thumbnails are
// stored. Both the filesystem and S3 implementations satisfy it.
type Backend interface {
	// SaveImage stores an original image under a dated path derived
	// from its name and returns the storage path.
	SaveImage(imageData []byte, name, contentType string) (string, error)
	// SaveThumb stores a derived thumbnail at an exact path,
	// overwriting any previous rendition.
	SaveThumb(data []byte, path, contentType string) error
	// ReadImage reads a stored object by path.
	ReadImage(path string) ([]byte, error)
	// DeleteImage removes a stored object by path.
	DeleteImage(path string) error
}

// Config contains storage configuration
type Config struct {
	BasePath string // Base directory for all stored files
}

// DefaultConfig returns default storage configuration
func DefaultConfig() Config {
	return Config{
		BasePath: "./storage",
	}
}

// Storage handles filesystem storage operations
type Storage struct {
	config Config
}

// New creates a new Storage instance
func New(config Config) (*Storage, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory: %w", err)
	}

	return &Storage{
		config: config,
	}, nil
}

// SaveImage saves an image to the filesystem
// Returns the relative file path from the base storage directory
func (s *Storage) SaveImage(imageData []byte, name, contentType string) (string, error) {
	// Determine file extension from content type
	ext := extensionFromContentType(contentType)
	if ext == "" {
		ext = ".jpg" // Default extension
	}

	// Generate directory structure: images/YYYY/MM/
	now := time.Now()
	year := fmt.Sprintf("%04d", now.Year())
	month := fmt.Sprintf("%02d", int(now.Month()))

	dirPath := filepath.Join(s.config.BasePath, "images", year, month)

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	// Generate filename: name.ext. Re-uploads of the same name in the
	// same month overwrite, matching the metadata upsert.
	filename := name + ext
	filePath := filepath.Join(dirPath, filename)

	// Write file
	if err := os.WriteFile(filePath, imageData, 0644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	// Return relative path from base storage directory
	relPath, err := filepath.Rel(s.config.BasePath, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path: %w", err)
	}

	return relPath, nil
}

// SaveThumb saves a derived thumbnail at an exact relative path
func (s *Storage) SaveThumb(data []byte, relPath, contentType string) error {
	fullPath := filepath.Join(s.config.BasePath, relPath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write thumbnail file: %w", err)
	}

	return nil
}

// ReadImage reads an image from the filesystem
func (s *Storage) ReadImage(relPath string) ([]byte, error) {
	fullPath := filepath.Join(s.config.BasePath, relPath)

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}

	return data, nil
}

// DeleteImage deletes an image from the filesystem
func (s *Storage) DeleteImage(relPath string) error {
	fullPath := filepath.Join(s.config.BasePath, relPath)

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image file: %w", err)
	}

	return nil
}

// extensionFromContentType returns the file extension for a content type
func extensionFromContentType(contentType string) string {
	// Normalize content type (remove charset, etc.)
	contentType = strings.ToLower(strings.Split(contentType, ";")[0])
	contentType = strings.TrimSpace(contentType)

	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	default:
		return ""
	}
}
