package leadimage

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/docutag/leadimage/imagekey"
	"github.com/docutag/leadimage/models"
)

// maxBlacklistBody bounds how much of a remote blacklist page is read.
const maxBlacklistBody = 1 << 20

// Blacklist returns the set of file keys that must never be chosen as
// a lead image. The set is built once per process and memoized; a
// durable cache row shared between processes is consulted before the
// sources are queried, so most processes never fetch at all. The only
// error is an unrecognized source kind, which is a configuration
// problem and is never swallowed.
func (s *Selector) Blacklist(ctx context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blacklist != nil {
		return s.blacklist, nil
	}

	if s.db != nil {
		entries, fetchedAt, err := s.db.GetBlacklistCache(blacklistCacheKey)
		if err != nil {
			log.Printf("Blacklist cache read failed, rebuilding: %v", err)
		} else if !fetchedAt.IsZero() {
			s.blacklist = toKeySet(entries)
			s.blacklistAt = fetchedAt
			blacklistSize.Set(float64(len(s.blacklist)))
			return s.blacklist, nil
		}
	}

	entries, err := s.buildBlacklist(ctx)
	if err != nil {
		return nil, err
	}

	if s.db != nil {
		if err := s.db.PutBlacklistCache(blacklistCacheKey, entries, s.config.BlacklistTTL); err != nil {
			log.Printf("Blacklist cache write failed: %v", err)
		}
	}

	s.blacklist = toKeySet(entries)
	s.blacklistAt = time.Now()
	blacklistRefreshes.Inc()
	blacklistSize.Set(float64(len(s.blacklist)))

	return s.blacklist, nil
}

// Snapshot returns the current blacklist as a sorted list for
// inspection endpoints. It triggers a build if none has happened yet.
func (s *Selector) Snapshot(ctx context.Context) (*models.BlacklistSnapshot, error) {
	set, err := s.Blacklist(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	fetchedAt := s.blacklistAt
	s.mu.Unlock()

	entries := make([]string, 0, len(set))
	for key := range set {
		entries = append(entries, key)
	}
	sort.Strings(entries)

	return &models.BlacklistSnapshot{
		Entries:   entries,
		Count:     len(entries),
		FetchedAt: fetchedAt,
	}, nil
}

// buildBlacklist queries every configured source in declared order and
// merges the results into one deduplicated, normalized entry list.
func (s *Selector) buildBlacklist(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	entries := []string{}

	for i, src := range s.config.BlacklistSources {
		var names []string

		switch src.Kind {
		case models.BlacklistSourceInternal:
			names = s.internalEntries(src)
		case models.BlacklistSourceRemote:
			names = s.remoteEntries(ctx, src.URL)
		default:
			return nil, fmt.Errorf("blacklist source %d: unrecognized kind %q", i, src.Kind)
		}

		for _, name := range names {
			key := imagekey.Normalize(name)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			entries = append(entries, key)
		}
	}

	return entries, nil
}

// internalEntries lists the file links of a local blacklist page. A
// missing page or a query failure contributes nothing.
func (s *Selector) internalEntries(src models.BlacklistSource) []string {
	if s.db == nil {
		log.Printf("Blacklist page %q skipped: no database configured", src.PageTitle)
		return nil
	}

	links, err := s.db.FileLinksByTitle(src.PageTitle)
	if err != nil {
		log.Printf("Blacklist page %q lookup failed: %v", src.PageTitle, err)
		return nil
	}
	return links
}

// remoteEntries fetches a remote blacklist page and extracts file
// references from its text. Any fetch problem contributes nothing.
func (s *Selector) remoteEntries(ctx context.Context, url string) []string {
	ctx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		log.Printf("Blacklist fetch %s failed: %v", url, err)
		return nil
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Printf("Blacklist fetch %s failed: %v", url, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Blacklist fetch %s: unexpected status code %d", url, resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBlacklistBody))
	if err != nil {
		log.Printf("Blacklist fetch %s: read failed: %v", url, err)
		return nil
	}

	matches := s.entryRe.FindAllStringSubmatch(string(body), -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

func toKeySet(entries []string) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[e] = struct{}{}
	}
	return set
}
