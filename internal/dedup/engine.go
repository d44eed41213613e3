package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"licitahub/internal/domain"
)

// titlePrefixLen bounds how much of the normalized title feeds the
// fingerprint; divergence past this point is almost always boilerplate.
const titlePrefixLen = 100

// defaultPriority is the fixed total order over source tags: the official
// government portal outranks third-party aggregators.
var defaultPriority = map[domain.Source]int{
	domain.SourcePNCP:       1,
	domain.SourceComprasNet: 2,
	domain.SourceBLL:        3,
	domain.SourceBNC:        4,
	domain.SourceLicitanet:  5,
}

// unknownPriority ranks sources absent from the table behind every known one.
const unknownPriority = 99

// Engine collapses listings that describe the same real-world opportunity
// published on more than one platform. It holds no state across calls and
// performs no I/O; absent fields are substituted with zero values, never
// errored on.
type Engine struct {
	priority map[domain.Source]int
}

// NewEngine builds an engine with the default source-priority table.
func NewEngine() *Engine {
	return &Engine{priority: defaultPriority}
}

// NewEngineWithPriority overrides the source ranking; lower rank wins.
func NewEngineWithPriority(priority map[domain.Source]int) *Engine {
	if len(priority) == 0 {
		return NewEngine()
	}
	return &Engine{priority: priority}
}

// Fingerprint derives the stable cross-source identity hash of a listing:
// normalized tax ID, normalized title prefix and estimated value. A
// pre-populated fingerprint is reused. The match is heuristic; both missed
// duplicates and coincidental collisions are tolerated by contract.
func (e *Engine) Fingerprint(l domain.UnifiedListing) string {
	if l.Fingerprint != "" {
		return l.Fingerprint
	}

	value := 0.0
	if l.EstimatedValue != nil {
		value = *l.EstimatedValue
	}

	key := domain.NormalizeTaxID(l.OrganizationTaxID) +
		"|" + normalizeTitle(l.Title) +
		"|" + strconv.FormatFloat(value, 'f', 2, 64)

	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

// Deduplicate groups listings by fingerprint in encounter order and keeps
// one winner per group: lower source priority first, then higher
// completeness, then the most recently encountered. Output preserves the
// first-encounter order of each group.
func (e *Engine) Deduplicate(listings []domain.UnifiedListing) ([]domain.UnifiedListing, domain.DedupStats) {
	winners := make([]domain.UnifiedListing, 0, len(listings))
	slot := make(map[string]int, len(listings))

	for _, l := range listings {
		l.Fingerprint = e.Fingerprint(l)

		idx, seen := slot[l.Fingerprint]
		if !seen {
			slot[l.Fingerprint] = len(winners)
			winners = append(winners, l)
			continue
		}

		if e.beats(l, winners[idx]) {
			winners[idx] = l
		}
	}

	stats := domain.DedupStats{
		TotalInput:      len(listings),
		TotalOutput:     len(winners),
		DuplicatesFound: len(listings) - len(winners),
	}
	return winners, stats
}

// beats decides whether a later-encountered duplicate replaces the current
// group winner.
func (e *Engine) beats(challenger, incumbent domain.UnifiedListing) bool {
	cRank, iRank := e.rank(challenger.Source), e.rank(incumbent.Source)
	if cRank != iRank {
		return cRank < iRank
	}

	cScore, iScore := completeness(challenger), completeness(incumbent)
	if cScore != iScore {
		return cScore > iScore
	}

	// Full tie: the most recently encountered wins. Arrival order across
	// sources is scheduler-dependent, so this tie-break is intentionally
	// non-deterministic across runs.
	return true
}

func (e *Engine) rank(s domain.Source) int {
	if r, ok := e.priority[s]; ok {
		return r
	}
	return unknownPriority
}

// completeness counts populated richness fields; it breaks priority ties in
// favor of the better-attributed record.
func completeness(l domain.UnifiedListing) int {
	score := 0
	if l.EstimatedValue != nil {
		score++
	}
	if l.Locality != "" {
		score++
	}
	if l.OrganizationTaxID != "" {
		score++
	}
	if l.OpeningDate != nil {
		score++
	}
	if l.ClosingDate != nil {
		score++
	}
	if l.SourceURL != "" {
		score++
	}
	return score
}

// normalizeTitle lowercases, folds punctuation to spaces, collapses runs of
// whitespace and truncates to the fingerprint prefix length.
func normalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	lastSpace := true
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}

	normalized := strings.TrimSpace(b.String())
	runes := []rune(normalized)
	if len(runes) > titlePrefixLen {
		normalized = string(runes[:titlePrefixLen])
	}
	return normalized
}
