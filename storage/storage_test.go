package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	storage, err := New(Config{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	return storage
}

func TestSaveAndReadImage(t *testing.T) {
	storage := setupTestStorage(t)

	data := []byte("fake image bytes")
	path, err := storage.SaveImage(data, "sunset", "image/jpeg")
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	now := time.Now()
	wantPath := filepath.Join("images", fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", int(now.Month())), "sunset.jpg")
	if path != wantPath {
		t.Errorf("SaveImage path = %q, want %q", path, wantPath)
	}

	read, err := storage.ReadImage(path)
	if err != nil {
		t.Fatalf("ReadImage failed: %v", err)
	}
	if !bytes.Equal(read, data) {
		t.Errorf("ReadImage returned %d bytes, want %d", len(read), len(data))
	}
}

func TestSaveImageOverwrites(t *testing.T) {
	storage := setupTestStorage(t)

	path1, err := storage.SaveImage([]byte("first version"), "photo", "image/png")
	if err != nil {
		t.Fatalf("First SaveImage failed: %v", err)
	}

	path2, err := storage.SaveImage([]byte("second version"), "photo", "image/png")
	if err != nil {
		t.Fatalf("Second SaveImage failed: %v", err)
	}

	if path1 != path2 {
		t.Errorf("Re-upload moved the file: %q then %q", path1, path2)
	}

	read, err := storage.ReadImage(path2)
	if err != nil {
		t.Fatalf("ReadImage failed: %v", err)
	}
	if string(read) != "second version" {
		t.Errorf("ReadImage = %q, want the overwritten content", string(read))
	}
}

func TestSaveThumb(t *testing.T) {
	storage := setupTestStorage(t)

	thumbPath := ThumbPath("photo", 250, "image/jpeg")
	if err := storage.SaveThumb([]byte("thumb bytes"), thumbPath, "image/jpeg"); err != nil {
		t.Fatalf("SaveThumb failed: %v", err)
	}

	read, err := storage.ReadImage(thumbPath)
	if err != nil {
		t.Fatalf("ReadImage of thumb failed: %v", err)
	}
	if string(read) != "thumb bytes" {
		t.Errorf("Thumb content = %q, want original bytes", string(read))
	}
}

func TestReadImageMissing(t *testing.T) {
	storage := setupTestStorage(t)

	if _, err := storage.ReadImage("images/2024/01/missing.jpg"); err == nil {
		t.Error("Expected error for missing image, got nil")
	}
}

func TestDeleteImage(t *testing.T) {
	storage := setupTestStorage(t)

	path, err := storage.SaveImage([]byte("doomed"), "temp", "image/gif")
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	if err := storage.DeleteImage(path); err != nil {
		t.Fatalf("DeleteImage failed: %v", err)
	}
	if _, err := storage.ReadImage(path); err == nil {
		t.Error("Image still readable after delete")
	}

	// Deleting an already-deleted image is not an error
	if err := storage.DeleteImage(path); err != nil {
		t.Errorf("Second DeleteImage failed: %v", err)
	}
}

// TestNewS3Storage tests creating S3 storage with valid config
func TestNewS3Storage(t *testing.T) {
	config := S3Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		Bucket:          "test-bucket",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
	}

	ctx := context.Background()
	storage, err := NewS3Storage(ctx, config)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	if storage == nil {
		t.Fatal("Expected storage to be non-nil")
	}
}

// TestNewS3StorageMissingBucket tests error handling for missing bucket
func TestNewS3StorageMissingBucket(t *testing.T) {
	config := S3Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		Bucket:          "", // Missing bucket
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
	}

	ctx := context.Background()
	_, err := NewS3Storage(ctx, config)
	if err == nil {
		t.Fatal("Expected error for missing bucket, got nil")
	}
}

// TestNewS3StorageMissingRegion tests error handling for missing region
func TestNewS3StorageMissingRegion(t *testing.T) {
	config := S3Config{
		Endpoint:        "http://localhost:9000",
		Region:          "", // Missing region
		Bucket:          "test-bucket",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
	}

	ctx := context.Background()
	_, err := NewS3Storage(ctx, config)
	if err == nil {
		t.Fatal("Expected error for missing region, got nil")
	}
}

// TestNewS3StorageMissingCredentials tests error handling for missing credentials
func TestNewS3StorageMissingCredentials(t *testing.T) {
	config := S3Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		Bucket:          "test-bucket",
		AccessKeyID:     "", // Missing credentials
		SecretAccessKey: "",
		UsePathStyle:    true,
	}

	ctx := context.Background()
	_, err := NewS3Storage(ctx, config)
	if err == nil {
		t.Fatal("Expected error for missing credentials, got nil")
	}
}

// TestExtensionFromContentType tests content type to extension mapping
func TestExtensionFromContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        string
	}{
		{"jpeg", "image/jpeg", ".jpg"},
		{"jpg", "image/jpg", ".jpg"},
		{"png", "image/png", ".png"},
		{"gif", "image/gif", ".gif"},
		{"webp", "image/webp", ".webp"},
		{"svg", "image/svg+xml", ".svg"},
		{"bmp", "image/bmp", ".bmp"},
		{"tiff", "image/tiff", ".tiff"},
		{"with charset", "image/jpeg; charset=utf-8", ".jpg"},
		{"unknown", "image/unknown", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extensionFromContentType(tt.contentType)
			if got != tt.want {
				t.Errorf("extensionFromContentType(%q) = %q, want %q", tt.contentType, got, tt.want)
			}
		})
	}
}
