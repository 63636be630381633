package models

import "time"

// Layout hints attached to an image placement. They describe how the
// author asked for the image to be presented, which matters for
// estimating its displayed width when no explicit size was given.
const (
	HintThumbnail = "thumbnail"
	HintFramed    = "framed"
	HintFrameless = "frameless"
)

// ImageUsage is one observed placement of an image on a document.
type ImageUsage struct {
	FileKey        string   `json:"file_key"`
	DeclaredWidth  *int     `json:"declared_width,omitempty"`  // explicit width hint, if the author gave one
	DeclaredHeight *int     `json:"declared_height,omitempty"` // explicit height hint
	Hints          []string `json:"hints,omitempty"`           // layout hints (thumbnail, framed, frameless)
	FullWidth      int      `json:"full_width"`                // intrinsic image width in pixels
	FullHeight     int      `json:"full_height"`               // intrinsic image height in pixels
	Ordinal        int      `json:"ordinal"`                   // 0-based position among all usages on the document
}

// HasHint reports whether the usage carries the given layout hint.
func (u *ImageUsage) HasHint(hint string) bool {
	for _, h := range u.Hints {
		if h == hint {
			return true
		}
	}
	return false
}

// HasAnyHint reports whether the usage carries at least one layout hint.
func (u *ImageUsage) HasAnyHint() bool {
	return len(u.Hints) > 0
}

// Document is one rendered unit (a page) that may reference images.
type Document struct {
	ID        int64     `json:"id"`
	Namespace int       `json:"namespace"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Image holds the intrinsic metadata registry entry for one stored image.
type Image struct {
	ID            string    `json:"id,omitempty"` // UUID assigned at registration
	FileKey       string    `json:"file_key"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	ContentType   string    `json:"content_type,omitempty"`
	FileSizeBytes int64     `json:"file_size_bytes,omitempty"`
	StoragePath   string    `json:"storage_path,omitempty"`
	EXIF          *EXIFData `json:"exif,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// EXIFData contains EXIF metadata extracted from an image file.
type EXIFData struct {
	DateTime         string   `json:"date_time,omitempty"`          // When photo was taken (EXIF DateTime)
	DateTimeOriginal string   `json:"date_time_original,omitempty"` // Original date/time (EXIF DateTimeOriginal)
	Make             string   `json:"make,omitempty"`               // Camera manufacturer
	Model            string   `json:"model,omitempty"`              // Camera model
	Copyright        string   `json:"copyright,omitempty"`          // Copyright notice
	Artist           string   `json:"artist,omitempty"`             // Photographer/creator name
	Software         string   `json:"software,omitempty"`           // Software used to process image
	ImageDescription string   `json:"image_description,omitempty"`  // Embedded image description
	Orientation      int      `json:"orientation,omitempty"`        // Image orientation (1-8)
	GPS              *GPSData `json:"gps,omitempty"`                // GPS location data
}

// GPSData contains GPS coordinates from EXIF.
type GPSData struct {
	Latitude  float64 `json:"latitude"`           // GPS latitude in decimal degrees
	Longitude float64 `json:"longitude"`          // GPS longitude in decimal degrees
	Altitude  float64 `json:"altitude,omitempty"` // GPS altitude in meters
}

// DocumentImage is the persisted document → chosen-image mapping,
// keyed by a named document property.
type DocumentImage struct {
	DocumentID int64     `json:"document_id"`
	Property   string    `json:"property"`
	FileKey    string    `json:"file_key"`
	Score      int       `json:"score"`
	SelectedAt time.Time `json:"selected_at,omitempty"`
}

// Blacklist source kinds. An internal source reads this system's own
// link graph; a remote source fetches and pattern-scans external text.
const (
	BlacklistSourceInternal = "internal"
	BlacklistSourceRemote   = "remote"
)

// BlacklistSource describes one configured origin of disallowed image keys.
type BlacklistSource struct {
	Kind        string `json:"kind"`
	DatabaseRef string `json:"database_ref,omitempty"` // accepted for internal sources, unused in single-database deployments
	PageTitle   string `json:"page_title,omitempty"`   // internal: page whose file links form the list
	URL         string `json:"url,omitempty"`          // remote: text resource to fetch and scan
}

// BlacklistSnapshot is the merged blacklist as reported by the
// inspection endpoint.
type BlacklistSnapshot struct {
	Entries   []string  `json:"entries"`
	Count     int       `json:"count"`
	FetchedAt time.Time `json:"fetched_at"`
}
