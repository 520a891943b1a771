package pipeline

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/nao1215/privacygap/internal/model"
)

// DefaultCacheSize is the number of gap reports an AnalysisCache keeps.
const DefaultCacheSize = 256

// AnalysisCache memoizes gap reports by AnalysisKey. Analysis is a pure
// function of the record and the analyzer settings, so equal keys always map
// to equal reports. One cache may be shared by differently configured
// analyzers. It is safe for concurrent use.
type AnalysisCache struct {
	entries *lru.Cache[string, *model.GapReport]
}

// NewAnalysisCache creates a cache holding up to size reports.
func NewAnalysisCache(size int) (*AnalysisCache, error) {
	entries, err := lru.New[string, *model.GapReport](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis cache: %w", err)
	}
	return &AnalysisCache{entries: entries}, nil
}

// Get returns a private copy of the cached report for key.
func (c *AnalysisCache) Get(key string) (*model.GapReport, bool) {
	report, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return report.Clone(), true
}

// Add stores a copy of report under key.
func (c *AnalysisCache) Add(key string, report *model.GapReport) {
	c.entries.Add(key, report.Clone())
}

// Len returns the number of cached reports.
func (c *AnalysisCache) Len() int {
	return c.entries.Len()
}

// EvidenceDigest returns the hex BLAKE2b-256 digest of the record's
// canonical JSON (RFC 8785), so field and map order never change the key.
// Steps and Errors are left out: they describe how the crawl went, and the
// analyzer never reads them.
func EvidenceDigest(ev *model.EvidenceRecord) (string, error) {
	canonical, err := canonicalEvidence(ev)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// AnalysisKey returns the cache key for analyzing ev under scope. The scope
// names everything besides the record that shapes the report, such as the
// catalogue version and the analyzer settings.
func AnalysisKey(ev *model.EvidenceRecord, scope string) (string, error) {
	canonical, err := canonicalEvidence(ev)
	if err != nil {
		return "", err
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create digest: %w", err)
	}
	h.Write(canonical)
	h.Write([]byte{0})
	h.Write([]byte(scope))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func canonicalEvidence(ev *model.EvidenceRecord) ([]byte, error) {
	stripped := *ev
	stripped.Steps = nil
	stripped.Errors = nil

	raw, err := json.Marshal(&stripped)
	if err != nil {
		return nil, fmt.Errorf("failed to encode evidence: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize evidence: %w", err)
	}
	return canonical, nil
}
