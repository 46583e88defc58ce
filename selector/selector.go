// Package selector ranks candidate agents against a free-text request using
// lexical TF-IDF scoring over each agent's declared metadata. It has no
// side effects beyond an internal precomputed-vector cache and is safe for
// concurrent use from multiple goroutines.
package selector

import (
	"errors"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
)

// ErrAmbiguous is returned by SelectionResult.Selection when the best score
// fell below the configured confidence threshold and no fallback agent was
// configured. It is advisory, not fatal: the caller decides what to do.
var ErrAmbiguous = errors.New("selection ambiguous: best score below confidence threshold")

// Field group names used in SelectionScore.Contributions.
const (
	FieldCapabilities = "capabilities"
	FieldTags         = "tags"
	FieldDescription  = "description"
	FieldName         = "name"
)

// Config tunes the selector. All knobs are passed in by the caller; the
// selector never loads configuration itself.
type Config struct {
	// Field weights for the composite score. The defaults deliberately
	// prioritize explicit capability declarations over free-text prose.
	CapabilityWeight  float64 `yaml:"capability_weight"`
	TagWeight         float64 `yaml:"tag_weight"`
	DescriptionWeight float64 `yaml:"description_weight"`
	NameWeight        float64 `yaml:"name_weight"`

	// ConfidenceThreshold is the minimum normalized score required for an
	// agent to be selected.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// FallbackAgent, when non-empty, is selected (with its true computed
	// score) whenever the best score is below ConfidenceThreshold.
	FallbackAgent string `yaml:"fallback_agent"`

	// StopWordExceptions lists domain-salient tokens that must survive
	// stop-word removal even if they appear in the base stop-word set
	// (e.g. "api", "test", "data").
	StopWordExceptions []string `yaml:"stop_word_exceptions"`

	// Synonyms maps lexical variants to a canonical term. When nil, a
	// small default table is used; supplying any map replaces it entirely.
	Synonyms map[string]string `yaml:"synonyms"`

	exceptions map[string]bool
	synonyms   map[string]string
}

// DefaultConfig returns the standard selector configuration.
func DefaultConfig() Config {
	return Config{
		CapabilityWeight:    0.4,
		TagWeight:           0.3,
		DescriptionWeight:   0.2,
		NameWeight:          0.1,
		ConfidenceThreshold: 0.3,
	}
}

func (c *Config) applyDefaults() {
	if c.CapabilityWeight == 0 && c.TagWeight == 0 && c.DescriptionWeight == 0 && c.NameWeight == 0 {
		c.CapabilityWeight = 0.4
		c.TagWeight = 0.3
		c.DescriptionWeight = 0.2
		c.NameWeight = 0.1
	}
	c.exceptions = make(map[string]bool, len(c.StopWordExceptions))
	for _, w := range c.StopWordExceptions {
		c.exceptions[strings.ToLower(w)] = true
	}
	if c.Synonyms != nil {
		c.synonyms = c.Synonyms
	} else {
		c.synonyms = defaultSynonyms
	}
}

// termVector is a sparse TF-IDF weighted term vector.
type termVector struct {
	weights map[string]float64
	norm    float64
}

func (v termVector) cosine(other termVector) float64 {
	if v.norm == 0 || other.norm == 0 {
		return 0
	}
	// Iterate the smaller vector.
	a, b := v, other
	if len(b.weights) < len(a.weights) {
		a, b = b, a
	}
	var dot float64
	for term, w := range a.weights {
		dot += w * b.weights[term]
	}
	return dot / (a.norm * b.norm)
}

// agentVectors holds the precomputed per-field-group vectors for one agent.
type agentVectors struct {
	name         string
	capabilities termVector
	tags         termVector
	description  termVector
	nameField    termVector
}

// snapshot is an immutable view of the scored agent set: per-agent vectors
// plus corpus-wide IDF weights. A new snapshot is built whenever the agent
// set changes and swapped in atomically, so concurrent readers never observe
// a half-updated cache.
type snapshot struct {
	fingerprint uint64
	idf         map[string]float64
	agents      []agentVectors
}

// Selector scores agents against queries. The zero value is not usable;
// construct with New.
type Selector struct {
	cfg  Config
	snap atomic.Pointer[snapshot]
}

// New creates a Selector with the given configuration.
func New(cfg Config) *Selector {
	cfg.applyDefaults()
	return &Selector{cfg: cfg}
}

// Score ranks every agent in agents against query and returns one
// SelectionScore per agent plus the chosen agent, if any. It never fails:
// empty or unmatched input yields all-zero scores and no selection.
func (s *Selector) Score(query string, agents []AgentDescriptor) SelectionResult {
	result := SelectionResult{Scores: make([]SelectionScore, 0, len(agents))}
	if len(agents) == 0 {
		return result
	}

	snap := s.snapshot(agents)
	queryVec := s.vectorFor(s.cfg.normalize(tokenize(query)), snap.idf)

	composites := make([]float64, len(snap.agents))
	var maxComposite float64
	for i, av := range snap.agents {
		contrib := map[string]float64{
			FieldCapabilities: queryVec.cosine(av.capabilities),
			FieldTags:         queryVec.cosine(av.tags),
			FieldDescription:  queryVec.cosine(av.description),
			FieldName:         queryVec.cosine(av.nameField),
		}
		composite := contrib[FieldCapabilities]*s.cfg.CapabilityWeight +
			contrib[FieldTags]*s.cfg.TagWeight +
			contrib[FieldDescription]*s.cfg.DescriptionWeight +
			contrib[FieldName]*s.cfg.NameWeight
		composites[i] = composite
		if composite > maxComposite {
			maxComposite = composite
		}
		result.Scores = append(result.Scores, SelectionScore{
			AgentName:     av.name,
			Contributions: contrib,
		})
	}

	// Normalize into [0,1] by the maximum observed composite; if nothing
	// matched at all, every score stays zero.
	bestIdx := -1
	var bestScore float64
	for i := range result.Scores {
		if maxComposite > 0 {
			result.Scores[i].Score = composites[i] / maxComposite
		}
		if bestIdx == -1 || result.Scores[i].Score > bestScore {
			bestIdx = i
			bestScore = result.Scores[i].Score
		}
	}

	if bestScore >= s.cfg.ConfidenceThreshold && bestScore > 0 {
		result.Selected = result.Scores[bestIdx].AgentName
		result.Confidence = bestScore
		return result
	}

	if s.cfg.FallbackAgent != "" {
		for _, sc := range result.Scores {
			if sc.AgentName == s.cfg.FallbackAgent {
				result.Selected = sc.AgentName
				result.Confidence = sc.Score
				result.UsedFallback = true
				break
			}
		}
	}
	return result
}

// snapshot returns the cached vector snapshot for the given agent set,
// rebuilding and atomically swapping it when the set has changed. The cache
// is invalidated wholesale on any change, never partially.
func (s *Selector) snapshot(agents []AgentDescriptor) *snapshot {
	fp := fingerprint(agents)
	if cur := s.snap.Load(); cur != nil && cur.fingerprint == fp {
		return cur
	}
	built := s.build(agents, fp)
	s.snap.Store(built)
	return built
}

func (s *Selector) build(agents []AgentDescriptor, fp uint64) *snapshot {
	type agentTokens struct {
		capabilities []string
		tags         []string
		description  []string
		name         []string
	}

	tokens := make([]agentTokens, len(agents))
	// Document frequency per term, one document per agent (all fields).
	df := make(map[string]int)
	for i, a := range agents {
		tokens[i] = agentTokens{
			capabilities: s.cfg.normalize(tokenize(strings.Join(a.Capabilities, " "))),
			tags:         s.cfg.normalize(tokenize(strings.Join(a.Tags, " "))),
			description:  s.cfg.normalize(tokenize(a.Description)),
			name:         s.cfg.normalize(tokenize(a.Name)),
		}
		seen := make(map[string]bool)
		for _, group := range [][]string{tokens[i].capabilities, tokens[i].tags, tokens[i].description, tokens[i].name} {
			for _, t := range group {
				if !seen[t] {
					seen[t] = true
					df[t]++
				}
			}
		}
	}

	idf := make(map[string]float64, len(df))
	n := float64(len(agents))
	for term, count := range df {
		// Smoothed IDF: rare terms score higher, and terms present in
		// every document still carry a small positive weight.
		idf[term] = math.Log((1+n)/(1+float64(count))) + 1
	}

	snap := &snapshot{fingerprint: fp, idf: idf, agents: make([]agentVectors, len(agents))}
	for i, a := range agents {
		snap.agents[i] = agentVectors{
			name:         a.Name,
			capabilities: s.vectorFor(tokens[i].capabilities, idf),
			tags:         s.vectorFor(tokens[i].tags, idf),
			description:  s.vectorFor(tokens[i].description, idf),
			nameField:    s.vectorFor(tokens[i].name, idf),
		}
	}
	return snap
}

// vectorFor computes a TF-IDF vector for the given normalized tokens.
// Terms absent from the corpus IDF table get a neutral weight of 1 so that
// query-only terms still participate in the query vector's norm.
func (s *Selector) vectorFor(tokens []string, idf map[string]float64) termVector {
	if len(tokens) == 0 {
		return termVector{}
	}
	tf := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	weights := make(map[string]float64, len(tf))
	var sumSq float64
	for term, count := range tf {
		w := idf[term]
		if w == 0 {
			w = 1
		}
		w *= count / float64(len(tokens))
		weights[term] = w
		sumSq += w * w
	}
	return termVector{weights: weights, norm: math.Sqrt(sumSq)}
}

// fingerprint hashes the full descriptor set so snapshot reuse is exact:
// any added, removed, or edited descriptor produces a different value.
func fingerprint(agents []AgentDescriptor) uint64 {
	h := fnv.New64a()
	for _, a := range agents {
		h.Write([]byte(a.Name))
		h.Write([]byte{0})
		h.Write([]byte(a.Description))
		h.Write([]byte{0})
		for _, c := range a.Capabilities {
			h.Write([]byte(c))
			h.Write([]byte{1})
		}
		for _, t := range a.Tags {
			h.Write([]byte(t))
			h.Write([]byte{1})
		}
		h.Write([]byte(strconv.Itoa(len(a.Capabilities))))
	}
	return h.Sum64()
}
