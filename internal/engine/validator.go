// Package engine holds Quipflip's pure, side-effect-free game logic — the
// same convention the teacher applies to its game package (game.WheelGame,
// game.MinesPvEGame): a plain struct with methods, no database handle, safe
// to call concurrently and to unit test without a fixture database.
package engine

import (
	"strings"
)

// functionWords are permitted anywhere and count toward the 5-token limit
// without needing a dictionary lookup (spec.md §4.2).
var functionWords = map[string]struct{}{
	"A": {}, "AN": {}, "THE": {}, "I": {},
}

// ValidationErrorKind enumerates the PhraseValidator failure modes.
type ValidationErrorKind string

const (
	InvalidShape    ValidationErrorKind = "invalid_shape"
	NotInDictionary ValidationErrorKind = "not_in_dictionary"
	DuplicatePhrase ValidationErrorKind = "duplicate_phrase"
)

type ValidationError struct {
	Kind ValidationErrorKind
}

func (e *ValidationError) Error() string { return string(e.Kind) }

// Dictionary is a read-only word set loaded once at startup.
type Dictionary interface {
	Contains(word string) bool
}

type mapDictionary map[string]struct{}

func (d mapDictionary) Contains(word string) bool {
	_, ok := d[word]
	return ok
}

// NewDictionary builds a Dictionary from a list of already-uppercased words.
func NewDictionary(words []string) Dictionary {
	m := make(mapDictionary, len(words))
	for _, w := range words {
		m[strings.ToUpper(strings.TrimSpace(w))] = struct{}{}
	}
	return m
}

// PhraseValidator combines normalisation, shape rules, dictionary
// membership and (for copies) semantic-distance rejection (spec.md §4.2).
// It is pure and holds only read-only collaborators.
type PhraseValidator struct {
	dict       Dictionary
	similarity SimilarityScorer
	threshold  float64
}

func NewPhraseValidator(dict Dictionary, similarity SimilarityScorer, threshold float64) *PhraseValidator {
	return &PhraseValidator{dict: dict, similarity: similarity, threshold: threshold}
}

// Normalize trims, collapses internal whitespace and uppercases a phrase.
// Idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(phrase string) string {
	fields := strings.Fields(strings.TrimSpace(phrase))
	for i, f := range fields {
		fields[i] = strings.ToUpper(f)
	}
	return strings.Join(fields, " ")
}

// ValidatePrompt checks shape and dictionary membership only.
func (v *PhraseValidator) ValidatePrompt(phrase string) (string, error) {
	norm := Normalize(phrase)
	if err := v.checkShape(norm); err != nil {
		return "", err
	}
	if err := v.checkDictionary(norm); err != nil {
		return "", err
	}
	return norm, nil
}

// ValidateCopy additionally rejects an unchanged or too-similar copy.
func (v *PhraseValidator) ValidateCopy(phrase, original string) (string, error) {
	norm := Normalize(phrase)
	if err := v.checkShape(norm); err != nil {
		return "", err
	}
	if err := v.checkDictionary(norm); err != nil {
		return "", err
	}

	normOriginal := Normalize(original)
	if norm == normOriginal {
		return "", &ValidationError{Kind: DuplicatePhrase}
	}
	if v.similarity.Score(norm, normOriginal) >= v.threshold {
		return "", &ValidationError{Kind: DuplicatePhrase}
	}
	return norm, nil
}

func (v *PhraseValidator) checkShape(norm string) error {
	if norm == "" {
		return &ValidationError{Kind: InvalidShape}
	}
	if len(norm) < 2 || len(norm) > 100 {
		return &ValidationError{Kind: InvalidShape}
	}
	for _, r := range norm {
		if r == ' ' {
			continue
		}
		if r < 'A' || r > 'Z' {
			return &ValidationError{Kind: InvalidShape}
		}
	}
	tokens := strings.Fields(norm)
	if len(tokens) < 1 || len(tokens) > 5 {
		return &ValidationError{Kind: InvalidShape}
	}
	return nil
}

func (v *PhraseValidator) checkDictionary(norm string) error {
	for _, tok := range strings.Fields(norm) {
		if _, ok := functionWords[tok]; ok {
			continue
		}
		if !v.dict.Contains(tok) {
			return &ValidationError{Kind: NotInDictionary}
		}
	}
	return nil
}
