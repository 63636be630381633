package leadimage

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/docutag/leadimage/imagekey"
	"github.com/docutag/leadimage/models"
)

// blacklistedScore is the sentinel assigned to any candidate found on
// the blacklist. It overrides every other heuristic.
const blacklistedScore = -1000

// blacklistCacheKey is the fixed key of the durable blacklist cache row.
const blacklistCacheKey = "leadimage:blacklist"

// DefaultProperty is the document property name the chosen image is
// persisted under.
const DefaultProperty = "lead_image"

// ScoreBand is one (boundary, score) pair of a ScoreTable.
type ScoreBand struct {
	Boundary float64 `json:"boundary"`
	Score    int     `json:"score"`
}

// ScoreTable maps a continuous value to a discrete score through
// ascending boundary bands: the first band whose boundary is >= the
// value wins; values beyond every boundary take the last band's score.
type ScoreTable []ScoreBand

// Lookup classifies value into the table's bands. An empty table
// scores 0.
func (t ScoreTable) Lookup(value float64) int {
	for _, band := range t {
		if value <= band.Boundary {
			return band.Score
		}
	}
	if len(t) > 0 {
		return t[len(t)-1].Score
	}
	return 0
}

// Config contains selection engine configuration
type Config struct {
	EligibleNamespaces []int                    // namespaces whose documents get a lead image
	WidthTable         ScoreTable               // displayed-width score bands
	PositionBonuses    []int                    // additive bonus indexed by usage ordinal
	RatioTable         ScoreTable               // aspect-ratio score bands, boundaries are ratio*10
	DefaultThumbSize   int                      // assumed width for thumbnail/framed/frameless placements
	BlacklistSources   []models.BlacklistSource // ordered blacklist origins
	BlacklistTTL       time.Duration            // durable blacklist cache lifetime
	FetchTimeout       time.Duration            // remote blacklist fetch timeout
	FileExtensions     []string                 // extensions recognized by the remote blacklist pattern
	Property           string                   // document property the choice is stored under
}

// DefaultConfig returns default selection engine configuration
func DefaultConfig() Config {
	return Config{
		EligibleNamespaces: []int{0},
		WidthTable: ScoreTable{
			{Boundary: 119, Score: -100},
			{Boundary: 400, Score: 10},
			{Boundary: 600, Score: 5},
			{Boundary: 609, Score: 5},
		},
		PositionBonuses: []int{8, 6, 4, 3},
		RatioTable: ScoreTable{
			{Boundary: 3, Score: -100},
			{Boundary: 5, Score: 0},
			{Boundary: 20, Score: 5},
			{Boundary: 30, Score: 0},
			{Boundary: 31, Score: -100},
		},
		DefaultThumbSize: 250,
		BlacklistTTL:     15 * time.Minute,
		FetchTimeout:     3 * time.Second,
		FileExtensions:   []string{"jpg", "jpeg", "png", "gif", "svg"},
		Property:         DefaultProperty,
	}
}

// DB interface defines the database operations needed by the selector.
// A nil DB disables the durable blacklist cache and makes internal
// blacklist sources contribute nothing. GetBlacklistCache reports a
// missing or expired entry with a zero fetchedAt and no error.
type DB interface {
	FileLinksByTitle(title string) ([]string, error)
	GetBlacklistCache(key string) (entries []string, fetchedAt time.Time, err error)
	PutBlacklistCache(key string, entries []string, expiry time.Duration) error
}

// Selector scores image usages and picks each document's lead image.
type Selector struct {
	config     Config
	httpClient *http.Client
	db         DB
	entryRe    *regexp.Regexp // remote blacklist extraction pattern

	mu          sync.Mutex          // guards the fields below
	blacklist   map[string]struct{} // process-lifetime memo, nil until first build
	blacklistAt time.Time
}

// New creates a new Selector instance
// db parameter can be nil if no database is available
func New(config Config, db DB) *Selector {
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 3 * time.Second
	}
	if config.BlacklistTTL <= 0 {
		config.BlacklistTTL = 15 * time.Minute
	}
	if config.Property == "" {
		config.Property = DefaultProperty
	}

	return &Selector{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.FetchTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		db:      db,
		entryRe: compileEntryPattern(config.FileExtensions),
	}
}

// Config returns the selector's configuration.
func (s *Selector) Config() Config {
	return s.config
}

// compileEntryPattern builds the case-insensitive pattern that pulls
// [[:<name>.<ext>]]-style file references out of remote blacklist text.
func compileEntryPattern(extensions []string) *regexp.Regexp {
	quoted := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(ext))
	}
	if len(quoted) == 0 {
		quoted = []string{"jpg", "jpeg", "png", "gif", "svg"}
	}
	return regexp.MustCompile(`(?i)\[\[:([^\[\]|#]+\.(?:` + strings.Join(quoted, "|") + `))`)
}

// Placement is one image placement reported by the rendering
// collaborator, before an ordinal is assigned.
type Placement struct {
	FileKey        string   `json:"file_key"`
	DeclaredWidth  *int     `json:"declared_width,omitempty"`
	DeclaredHeight *int     `json:"declared_height,omitempty"`
	Hints          []string `json:"hints,omitempty"`
	FullWidth      int      `json:"full_width"`
	FullHeight     int      `json:"full_height"`
}

// RenderState accumulates the image usages of one in-progress document
// render. It belongs to a single render and must not be shared between
// concurrently rendering documents.
type RenderState struct {
	DocumentID int64
	Namespace  int

	eligible bool
	records  []models.ImageUsage
}

// NewRender starts accumulation for one document render. Namespace
// eligibility is decided here once and memoized for the render's
// lifetime; ineligible renders silently drop every placement.
func (s *Selector) NewRender(documentID int64, namespace int) *RenderState {
	eligible := false
	for _, ns := range s.config.EligibleNamespaces {
		if ns == namespace {
			eligible = true
			break
		}
	}

	return &RenderState{
		DocumentID: documentID,
		Namespace:  namespace,
		eligible:   eligible,
	}
}

// Eligible reports whether the render's document namespace qualifies
// for lead image selection.
func (st *RenderState) Eligible() bool {
	return st.eligible
}

// Usages returns the recorded usages in placement order.
func (st *RenderState) Usages() []models.ImageUsage {
	return st.records
}

// Record observes one image placement. The displayed width is estimated
// when the author gave none: explicit width wins, an explicit height is
// scaled through the intrinsic aspect ratio, any layout hint implies the
// default thumbnail size, and a bare placement displays at full width.
func (s *Selector) Record(st *RenderState, p Placement) {
	if !st.eligible {
		return
	}

	key := imagekey.Normalize(p.FileKey)
	if key == "" {
		return
	}

	width := s.estimateWidth(p)
	usage := models.ImageUsage{
		FileKey:        key,
		DeclaredWidth:  &width,
		DeclaredHeight: p.DeclaredHeight,
		Hints:          p.Hints,
		FullWidth:      p.FullWidth,
		FullHeight:     p.FullHeight,
		Ordinal:        len(st.records),
	}
	st.records = append(st.records, usage)
}

// estimateWidth resolves the width a placement displays at.
func (s *Selector) estimateWidth(p Placement) int {
	if p.DeclaredWidth != nil {
		return *p.DeclaredWidth
	}

	if p.DeclaredHeight != nil && p.FullHeight > 0 {
		return p.FullWidth * *p.DeclaredHeight / p.FullHeight
	}

	if len(p.Hints) > 0 {
		return s.config.DefaultThumbSize
	}

	return p.FullWidth
}

// scoreUsage computes one usage's score: width band, position bonus,
// aspect-ratio band, with blacklist membership vetoing everything.
func (s *Selector) scoreUsage(u *models.ImageUsage, blacklist map[string]struct{}) int {
	if _, banned := blacklist[u.FileKey]; banned {
		return blacklistedScore
	}

	width := 0
	if u.DeclaredWidth != nil {
		width = *u.DeclaredWidth
	}
	score := s.config.WidthTable.Lookup(float64(width))

	if u.Ordinal >= 0 && u.Ordinal < len(s.config.PositionBonuses) {
		score += s.config.PositionBonuses[u.Ordinal]
	}

	ratio := 0.0
	if u.FullWidth > 0 && u.FullHeight > 0 {
		ratio = float64(u.FullWidth) / float64(u.FullHeight)
	}
	score += s.config.RatioTable.Lookup(math.Trunc(ratio * 10))

	return score
}

// SelectBest picks the highest-scoring candidate from the usage
// sequence. An image used multiple times keeps its best-scoring usage.
// Candidates are compared in first-seen order and a later image must
// strictly beat the running best, so equal scores keep the image that
// appeared first on the document. No candidate scoring above zero means
// no lead image.
func (s *Selector) SelectBest(records []models.ImageUsage, blacklist map[string]struct{}) (string, int, bool) {
	if len(records) == 0 {
		return "", 0, false
	}

	order := make([]string, 0, len(records))
	best := make(map[string]int, len(records))

	for i := range records {
		u := &records[i]
		score := s.scoreUsage(u, blacklist)
		prev, seen := best[u.FileKey]
		if !seen {
			order = append(order, u.FileKey)
			prev = -1
		}
		if score > prev {
			best[u.FileKey] = score
		} else if !seen {
			best[u.FileKey] = prev
		}
	}

	bestKey := order[0]
	bestScore := best[bestKey]
	for _, key := range order[1:] {
		if best[key] > bestScore {
			bestKey = key
			bestScore = best[key]
		}
	}

	if bestScore <= 0 {
		return "", 0, false
	}
	return bestKey, bestScore, true
}

// Finalize runs selection for a completed render and returns the chosen
// file key, if any. The only error path is a structurally invalid
// blacklist source configuration; data-quality problems never fail a
// render. The caller persists the result under Config().Property.
func (s *Selector) Finalize(ctx context.Context, st *RenderState) (string, int, bool, error) {
	start := time.Now()

	ctx, span := otel.Tracer("leadimage").Start(ctx, "leadimage.select")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("document.id", st.DocumentID),
		attribute.Int("document.namespace", st.Namespace),
		attribute.Int("candidates", len(st.records)),
	)

	if !st.eligible || len(st.records) == 0 {
		selectionsTotal.WithLabelValues("none").Inc()
		selectionDuration.Observe(time.Since(start).Seconds())
		return "", 0, false, nil
	}

	blacklist, err := s.Blacklist(ctx)
	if err != nil {
		return "", 0, false, fmt.Errorf("blacklist unavailable: %w", err)
	}

	key, score, ok := s.SelectBest(st.records, blacklist)

	outcome := "none"
	if ok {
		outcome = "chosen"
		span.SetAttributes(attribute.String("image.key", key), attribute.Int("image.score", score))
	}
	selectionsTotal.WithLabelValues(outcome).Inc()
	selectionDuration.Observe(time.Since(start).Seconds())

	return key, score, ok, nil
}
