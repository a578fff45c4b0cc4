// Package router decides how a finished utterance is handled: as a hard
// command (stop, cancel, sleep, …) or as conversational input for the
// language model.
//
// Detection is phonetic so that transcription slips ("stob", "schtopp") are
// still caught. It proceeds in two stages:
//
//  1. Double Metaphone candidate filtering: phonetic codes are computed for
//     every token of the utterance and for every lexicon entry; code overlap
//     makes the entry a candidate.
//  2. Jaro-Winkler ranking: among candidates the highest-scoring entry wins,
//     provided the score clears the phonetic threshold. Without a phonetic
//     candidate, a stricter pure Jaro-Winkler fallback applies.
package router

import (
	"fmt"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
)

// Routing modes. Auto detects hard commands; the other two force one branch.
const (
	ModeAuto    = "auto"
	ModeCommand = "command"
	ModeChat    = "chat"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// defaultLexicon covers the hard commands the assistant honors mid-dialog,
// in both German and English.
var defaultLexicon = []string{
	"stopp", "stop", "abbrechen", "cancel",
	"leise", "mute", "schlafen", "sleep",
	"pause", "weiter",
}

// Decision is the outcome of routing one utterance.
type Decision struct {
	// Mode is "command" or "chat".
	Mode string

	// Why lists the reasons for the decision, most significant first.
	Why []string

	// Command is the matched lexicon entry when Mode is "command" in auto
	// routing; empty otherwise.
	Command string

	// Confidence is the Jaro-Winkler score of the match, 0 when no match.
	Confidence float64
}

// Option is a functional option for configuring a [Router].
type Option func(*Router)

// WithLexicon replaces the default hard-command lexicon.
func WithLexicon(words []string) Option {
	return func(r *Router) {
		r.lexicon = words
	}
}

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically-matched command to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(r *Router) {
		r.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for the fallback
// pass when no phonetic candidate exists. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(r *Router) {
		r.fuzzyThreshold = threshold
	}
}

// Router routes finished utterances. Safe for concurrent use.
type Router struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	lexicon           []string

	mu   sync.RWMutex
	mode string
}

// New returns a Router in auto mode with the default lexicon.
func New(opts ...Option) *Router {
	r := &Router{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		lexicon:           defaultLexicon,
		mode:              ModeAuto,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Mode returns the current routing mode.
func (r *Router) Mode() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

// SetMode switches between auto, command, and chat routing.
func (r *Router) SetMode(mode string) error {
	switch mode {
	case ModeAuto, ModeCommand, ModeChat:
	default:
		return fmt.Errorf("router: unknown routing mode %q", mode)
	}
	r.mu.Lock()
	r.mode = mode
	r.mu.Unlock()
	return nil
}

// Decide routes text. In a forced mode the lexicon is not consulted.
func (r *Router) Decide(text string) Decision {
	mode := r.Mode()
	switch mode {
	case ModeCommand, ModeChat:
		return Decision{Mode: mode, Why: []string{"routing mode forced to " + mode}}
	}

	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(tokens) == 0 {
		return Decision{Mode: ModeChat, Why: []string{"empty utterance"}}
	}

	inputCodes := codesForTokens(tokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, entry := range r.lexicon {
		entryLower := strings.ToLower(strings.TrimSpace(entry))
		if entryLower == "" {
			continue
		}
		phonetic := codesOverlap(inputCodes, codesForTokens(strings.Fields(entryLower)))
		score := bestTokenScore(tokens, entryLower)

		switch {
		case phonetic && score >= r.phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				best, bestScore, bestPhonetic = entry, score, true
			}
		case !phonetic && !bestPhonetic && score >= r.fuzzyThreshold && score > bestScore:
			best, bestScore = entry, score
		}
	}

	if best != "" {
		return Decision{
			Mode:       ModeCommand,
			Why:        []string{fmt.Sprintf("hard command %q (score %.2f)", best, bestScore)},
			Command:    best,
			Confidence: bestScore,
		}
	}
	return Decision{Mode: ModeChat, Why: []string{"no hard command"}}
}

// codesForTokens returns the union of Double Metaphone codes for the tokens.
// Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestTokenScore is the highest Jaro-Winkler similarity between any input
// token and the lexicon entry. Commands are single words, so per-token
// comparison beats full-string comparison for longer utterances.
func bestTokenScore(tokens []string, entry string) float64 {
	var best float64
	for _, t := range tokens {
		if s := matchr.JaroWinkler(t, entry, false); s > best {
			best = s
		}
	}
	return best
}
