// Package resolve implements fuzzy entity resolution for the capture engine:
// matching a free-text utterance fragment against known machines or people
// despite typos, partial names, and numeric shorthand.
//
// The algorithm proceeds per candidate, taking the first strategy that
// matches in priority order:
//
//  1. Exact: normalized query equals a normalized name, nickname, or alias.
//  2. Partial: one normalized string contains the other, scored by length
//     ratio.
//  3. Numeric: the query and the candidate share a digit run ("machine 5"
//     vs "CNC-05").
//  4. Fuzzy: Levenshtein-based similarity over all the candidate's names,
//     accepted above a configurable threshold.
//
// Person resolution additionally requires every significant query word to
// align with some candidate word within a small edit distance, so a shared
// surname alone never produces a match.
//
// A Resolver is read-only after construction and safe for concurrent use.
package resolve

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// TargetKind classifies what a resolved entity is.
type TargetKind string

const (
	// TargetMachine is a piece of equipment.
	TargetMachine TargetKind = "machine"

	// TargetUser is an ERP system user, eligible for task assignment and
	// notifications.
	TargetUser TargetKind = "user"

	// TargetContact is an external agenda contact.
	TargetContact TargetKind = "contact"
)

// MatchType tags which strategy produced a candidate's score.
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchPartial MatchType = "partial"
	MatchNumeric MatchType = "numeric"
	MatchFuzzy   MatchType = "fuzzy"
)

// Entity is one resolvable target: a machine or a person, flattened to the
// fields resolution needs.
type Entity struct {
	ID       int64
	Kind     TargetKind
	Name     string
	Nickname string
	Aliases  []string

	// Group is the sector or department the entity belongs to, used for the
	// contextual boost/penalty. May be empty.
	Group string
}

// Candidate is one scored potential match for a query.
type Candidate struct {
	ID    int64
	Kind  TargetKind
	Name  string
	Score float64
	Match MatchType
}

// Decision is the outcome of [Resolver.Best].
type Decision int

const (
	// DecisionNone means no candidate matched at all.
	DecisionNone Decision = iota

	// DecisionAccept means the top candidate can be used without asking.
	DecisionAccept

	// DecisionAmbiguous means the caller must present a disambiguation choice.
	DecisionAmbiguous
)

const (
	// wordMinLen is the minimum rune length for a query word to participate
	// in person word-level matching.
	wordMinLen = 3

	// wordMaxDistance is the maximum edit distance for a query word to count
	// as aligned with a candidate word.
	wordMaxDistance = 2
)

// Config tunes resolution scoring. Zero values fall back to the documented
// defaults.
type Config struct {
	// AcceptThreshold is the minimum score for unconditional acceptance of
	// the top candidate. Default 0.8.
	AcceptThreshold float64

	// AcceptMargin is how far the top candidate must beat the runner-up.
	// Default 0.15.
	AcceptMargin float64

	// FuzzyThreshold is the minimum edit-distance similarity for a fuzzy
	// match. Default 0.6.
	FuzzyThreshold float64

	// GroupBoost is added when the utterance names the candidate's group.
	// Default 0.15.
	GroupBoost float64

	// GroupPenalty is subtracted when the utterance names a different group.
	// Default 0.2.
	GroupPenalty float64

	// WordMatch enables the per-word AND requirement used for people.
	WordMatch bool
}

func (c Config) withDefaults() Config {
	if c.AcceptThreshold <= 0 {
		c.AcceptThreshold = 0.8
	}
	if c.AcceptMargin <= 0 {
		c.AcceptMargin = 0.15
	}
	if c.FuzzyThreshold <= 0 {
		c.FuzzyThreshold = 0.6
	}
	if c.GroupBoost <= 0 {
		c.GroupBoost = 0.15
	}
	if c.GroupPenalty <= 0 {
		c.GroupPenalty = 0.2
	}
	return c
}

// Resolver matches free-text identifiers against a candidate entity list.
type Resolver struct {
	cfg Config
}

// New returns a Resolver with the given configuration.
func New(cfg Config) *Resolver {
	return &Resolver{cfg: cfg.withDefaults()}
}

// NewMachineResolver returns a Resolver tuned for machine references.
func NewMachineResolver(cfg Config) *Resolver {
	cfg.WordMatch = false
	return New(cfg)
}

// NewPersonResolver returns a Resolver tuned for people: word-level matching
// requires every significant query word to align.
func NewPersonResolver(cfg Config) *Resolver {
	cfg.WordMatch = true
	return New(cfg)
}

// Resolve scores every entity against query and returns all matches sorted by
// descending score. context is the full utterance text, used only for the
// group boost/penalty; pass "" to disable it. Scores are comparable within
// one call only.
func (r *Resolver) Resolve(query string, entities []Entity, context string) []Candidate {
	normQuery := Normalize(query)
	if normQuery == "" {
		return nil
	}
	queryRuns := digitRuns(normQuery)
	queryWords := significantWords(normQuery, wordMinLen)

	contextGroups := namedGroups(context, entities)

	var out []Candidate
	for _, e := range entities {
		cand, ok := r.score(normQuery, queryRuns, queryWords, e)
		if !ok {
			continue
		}
		cand.Score = r.applyGroupContext(cand.Score, e.Group, contextGroups)
		out = append(out, cand)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Best applies the single-best-match rule to an already sorted candidate
// list. The top candidate is accepted only when its score clears the
// threshold and it is either the sole match, ahead of the runner-up by more
// than the margin, or an exact match while the runner-up is not.
func (r *Resolver) Best(cands []Candidate) (Candidate, Decision) {
	if len(cands) == 0 {
		return Candidate{}, DecisionNone
	}
	top := cands[0]
	if top.Score < r.cfg.AcceptThreshold {
		return top, DecisionAmbiguous
	}
	if len(cands) == 1 {
		return top, DecisionAccept
	}
	second := cands[1]
	if top.Score-second.Score > r.cfg.AcceptMargin {
		return top, DecisionAccept
	}
	if top.Match == MatchExact && second.Match != MatchExact {
		return top, DecisionAccept
	}
	return top, DecisionAmbiguous
}

// score computes the best strategy match of one entity. Strategies are tried
// in priority order; the first that matches wins.
func (r *Resolver) score(normQuery string, queryRuns, queryWords []string, e Entity) (Candidate, bool) {
	names := e.names()

	// Exact.
	for _, n := range names {
		if n == normQuery {
			return Candidate{ID: e.ID, Kind: e.Kind, Name: e.Name, Score: 1.0, Match: MatchExact}, true
		}
	}

	// Partial containment, scored by how much of the longer string the
	// shorter one covers.
	best := 0.0
	for _, n := range names {
		if s := partialScore(normQuery, n); s > best {
			best = s
		}
	}
	if best > 0 {
		return Candidate{ID: e.ID, Kind: e.Kind, Name: e.Name, Score: best, Match: MatchPartial}, true
	}

	// Numeric shorthand.
	if len(queryRuns) > 0 {
		for _, n := range names {
			candRuns := digitRuns(n)
			if sharesRun(queryRuns, candRuns) {
				score := 0.7
				if singleRun(queryRuns) && len(candRuns) > 0 && singleRun(candRuns) {
					score = 0.85
				}
				return Candidate{ID: e.ID, Kind: e.Kind, Name: e.Name, Score: score, Match: MatchNumeric}, true
			}
		}
	}

	// Fuzzy edit distance.
	if r.cfg.WordMatch && !wordsAlign(queryWords, names) {
		return Candidate{}, false
	}
	best = 0.0
	for _, n := range names {
		if s := editSimilarity(normQuery, n); s > best {
			best = s
		}
	}
	if best >= r.cfg.FuzzyThreshold {
		return Candidate{ID: e.ID, Kind: e.Kind, Name: e.Name, Score: best, Match: MatchFuzzy}, true
	}
	return Candidate{}, false
}

// applyGroupContext adjusts score when the utterance names a group: boost for
// the candidate's own group, penalty for a different one. The result stays
// within [0, 1].
func (r *Resolver) applyGroupContext(score float64, group string, contextGroups map[string]bool) float64 {
	if len(contextGroups) == 0 || group == "" {
		return score
	}
	if contextGroups[Normalize(group)] {
		score += r.cfg.GroupBoost
		if score > 1 {
			score = 1
		}
		return score
	}
	score -= r.cfg.GroupPenalty
	if score < 0 {
		score = 0
	}
	return score
}

// names returns the entity's normalized name, nickname, and aliases,
// excluding empties.
func (e Entity) names() []string {
	names := make([]string, 0, 2+len(e.Aliases))
	if n := Normalize(e.Name); n != "" {
		names = append(names, n)
	}
	if n := Normalize(e.Nickname); n != "" {
		names = append(names, n)
	}
	for _, a := range e.Aliases {
		if n := Normalize(a); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// partialScore returns a containment score in [0.7, 0.9] proportional to the
// length ratio of the two strings, or 0 when neither contains the other.
// Single-character fragments are ignored.
func partialScore(a, b string) float64 {
	if len(a) < 2 || len(b) < 2 {
		return 0
	}
	if !strings.Contains(a, b) && !strings.Contains(b, a) {
		return 0
	}
	shorter, longer := len(a), len(b)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	ratio := float64(shorter) / float64(longer)
	return 0.7 + 0.2*ratio
}

// editSimilarity is 1 minus the Levenshtein distance normalized by the longer
// string's length.
func editSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	longer := len([]rune(a))
	if l := len([]rune(b)); l > longer {
		longer = l
	}
	d := matchr.Levenshtein(a, b)
	if d >= longer {
		return 0
	}
	return 1 - float64(d)/float64(longer)
}

// sharesRun reports whether the two digit-run sets intersect.
func sharesRun(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// singleRun reports whether runs contains exactly one distinct digit value
// (a run and its zero-stripped variant count as one).
func singleRun(runs []string) bool {
	first := strings.TrimLeft(runs[0], "0")
	for _, r := range runs[1:] {
		if strings.TrimLeft(r, "0") != first {
			return false
		}
	}
	return true
}

// wordsAlign reports whether every significant query word finds some word in
// the candidate's names within the allowed edit distance. This is an AND over
// query words: one matching surname is not enough to match a person.
func wordsAlign(queryWords []string, names []string) bool {
	if len(queryWords) == 0 {
		return false
	}
	var candWords []string
	for _, n := range names {
		candWords = append(candWords, strings.Fields(n)...)
	}
	for _, qw := range queryWords {
		aligned := false
		for _, cw := range candWords {
			if matchr.Levenshtein(qw, cw) <= wordMaxDistance {
				aligned = true
				break
			}
		}
		if !aligned {
			return false
		}
	}
	return true
}

// namedGroups returns the normalized groups from entities that the utterance
// text mentions. Empty when context is empty or no group is named.
func namedGroups(context string, entities []Entity) map[string]bool {
	if context == "" {
		return nil
	}
	normContext := " " + Normalize(context) + " "
	var named map[string]bool
	for _, e := range entities {
		g := Normalize(e.Group)
		if g == "" {
			continue
		}
		if strings.Contains(normContext, " "+g+" ") {
			if named == nil {
				named = make(map[string]bool)
			}
			named[g] = true
		}
	}
	return named
}
