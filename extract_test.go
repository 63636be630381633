package leadimage

import (
	"strings"
	"testing"

	"github.com/docutag/leadimage/models"
)

func TestExtractPlacements(t *testing.T) {
	htmlDoc := `
<!DOCTYPE html>
<html>
<body>
	<p>Intro text.</p>
	<img data-file-key="Lead photo.jpg" width="400" height="300"
	     data-file-width="1600" data-file-height="1200" class="thumb">
	<div>
		<img src="/media/images/2024/01/240px-Old_map.png"
		     data-file-width="960" data-file-height="720">
	</div>
	<img src="/static/spacer.gif">
	<img alt="no source at all">
</body>
</html>
`

	placements, err := ExtractPlacements(strings.NewReader(htmlDoc))
	if err != nil {
		t.Fatalf("ExtractPlacements failed: %v", err)
	}

	if len(placements) != 3 {
		t.Fatalf("Extracted %d placements, want 3", len(placements))
	}

	first := placements[0]
	if first.FileKey != "Lead photo.jpg" {
		t.Errorf("First file key = %q, want Lead photo.jpg", first.FileKey)
	}
	if first.DeclaredWidth == nil || *first.DeclaredWidth != 400 {
		t.Errorf("First declared width = %v, want 400", first.DeclaredWidth)
	}
	if first.DeclaredHeight == nil || *first.DeclaredHeight != 300 {
		t.Errorf("First declared height = %v, want 300", first.DeclaredHeight)
	}
	if first.FullWidth != 1600 || first.FullHeight != 1200 {
		t.Errorf("First intrinsic size = %dx%d, want 1600x1200", first.FullWidth, first.FullHeight)
	}
	if len(first.Hints) != 1 || first.Hints[0] != models.HintThumbnail {
		t.Errorf("First hints = %v, want [thumbnail]", first.Hints)
	}

	// The second placement recovers its key from the src URL, with the
	// derived-thumbnail size prefix stripped.
	second := placements[1]
	if second.FileKey != "Old_map.png" {
		t.Errorf("Second file key = %q, want Old_map.png", second.FileKey)
	}
	if second.DeclaredWidth != nil {
		t.Errorf("Second declared width = %v, want nil", second.DeclaredWidth)
	}
	if second.FullWidth != 960 || second.FullHeight != 720 {
		t.Errorf("Second intrinsic size = %dx%d, want 960x720", second.FullWidth, second.FullHeight)
	}

	third := placements[2]
	if third.FileKey != "Spacer.gif" {
		t.Errorf("Third file key = %q, want Spacer.gif", third.FileKey)
	}
}

func TestExtractPlacementsEmptyDocument(t *testing.T) {
	placements, err := ExtractPlacements(strings.NewReader("<html><body><p>No images.</p></body></html>"))
	if err != nil {
		t.Fatalf("ExtractPlacements failed: %v", err)
	}
	if len(placements) != 0 {
		t.Errorf("Extracted %d placements, want 0", len(placements))
	}
}

func TestExtractPlacementsIgnoresInvalidDimensions(t *testing.T) {
	htmlDoc := `<img data-file-key="A.jpg" width="not-a-number" height="-5" data-file-width="0">`

	placements, err := ExtractPlacements(strings.NewReader(htmlDoc))
	if err != nil {
		t.Fatalf("ExtractPlacements failed: %v", err)
	}
	if len(placements) != 1 {
		t.Fatalf("Extracted %d placements, want 1", len(placements))
	}

	p := placements[0]
	if p.DeclaredWidth != nil {
		t.Errorf("DeclaredWidth = %v, want nil for unparseable value", p.DeclaredWidth)
	}
	if p.DeclaredHeight != nil {
		t.Errorf("DeclaredHeight = %v, want nil for negative value", p.DeclaredHeight)
	}
	if p.FullWidth != 0 {
		t.Errorf("FullWidth = %d, want 0", p.FullWidth)
	}
}

func TestExtractPlacementsPercentEncodedSrc(t *testing.T) {
	htmlDoc := `<img src="https://cdn.example.com/media/Caf%C3%A9_du_nord.jpg?v=3">`

	placements, err := ExtractPlacements(strings.NewReader(htmlDoc))
	if err != nil {
		t.Fatalf("ExtractPlacements failed: %v", err)
	}
	if len(placements) != 1 {
		t.Fatalf("Extracted %d placements, want 1", len(placements))
	}
	if placements[0].FileKey != "Café_du_nord.jpg" {
		t.Errorf("File key = %q, want Café_du_nord.jpg", placements[0].FileKey)
	}
}

func TestHintsFromClass(t *testing.T) {
	tests := []struct {
		name  string
		class string
		want  []string
	}{
		{"thumb token", "thumb", []string{models.HintThumbnail}},
		{"thumbimage token", "thumbimage", []string{models.HintThumbnail}},
		{"frame token", "frame", []string{models.HintFramed}},
		{"framed token", "framed", []string{models.HintFramed}},
		{"frameless token", "frameless", []string{models.HintFrameless}},
		{"mixed with unknown tokens", "image thumb left", []string{models.HintThumbnail}},
		{"duplicates collapse", "thumb thumbimage", []string{models.HintThumbnail}},
		{"case-insensitive", "Thumb FRAMELESS", []string{models.HintThumbnail, models.HintFrameless}},
		{"no hint tokens", "left noborder", nil},
		{"empty class", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hintsFromClass(tt.class)
			if len(got) != len(tt.want) {
				t.Fatalf("hintsFromClass(%q) = %v, want %v", tt.class, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("hintsFromClass(%q)[%d] = %q, want %q", tt.class, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtractAndRecordRoundTrip(t *testing.T) {
	s := New(DefaultConfig(), nil)

	htmlDoc := `
<img data-file-key="Hero.jpg" width="400" data-file-width="1600" data-file-height="900">
<img data-file-key="Gallery one.jpg" class="thumb" data-file-width="800" data-file-height="600">
`
	placements, err := ExtractPlacements(strings.NewReader(htmlDoc))
	if err != nil {
		t.Fatalf("ExtractPlacements failed: %v", err)
	}

	st := s.NewRender(1, 0)
	for _, p := range placements {
		s.Record(st, p)
	}

	usages := st.Usages()
	if len(usages) != 2 {
		t.Fatalf("Recorded %d usages, want 2", len(usages))
	}
	if usages[0].FileKey != "Hero.jpg" || usages[1].FileKey != "Gallery_one.jpg" {
		t.Errorf("Recorded keys %q, %q", usages[0].FileKey, usages[1].FileKey)
	}
	if *usages[1].DeclaredWidth != 250 {
		t.Errorf("Hinted placement width = %d, want default 250", *usages[1].DeclaredWidth)
	}
}
