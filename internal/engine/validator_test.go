package engine

import "testing"

func testDict() Dictionary {
	return NewDictionary([]string{"FAMOUS", "POPULAR", "WEALTHY", "RICH", "MAN", "GUY", "CAT", "DOG"})
}

func TestNormalize_Idempotent(t *testing.T) {
	cases := []string{"  famous   man ", "Famous Man", "FAMOUS MAN"}
	for _, c := range cases {
		once := Normalize(c)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: %q != %q", c, once, twice)
		}
		if once != "FAMOUS MAN" {
			t.Fatalf("Normalize(%q) = %q, want FAMOUS MAN", c, once)
		}
	}
}

func TestValidatePrompt_ShapeAndDictionary(t *testing.T) {
	v := NewPhraseValidator(testDict(), NewBigramCosineScorer(), 0.85)

	tests := []struct {
		name    string
		phrase  string
		wantErr ValidationErrorKind
		wantOK  bool
	}{
		{"valid single word", "FAMOUS", "", true},
		{"valid with function word", "THE RICH MAN", "", true},
		{"empty", "", InvalidShape, false},
		{"too many tokens", "A MAN AND A CAT AND A DOG", InvalidShape, false},
		{"digits rejected", "FAMOUS1", InvalidShape, false},
		{"not in dictionary", "ZANY", NotInDictionary, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.ValidatePrompt(tc.phrase)
			if tc.wantOK && err != nil {
				t.Fatalf("expected ok, got error %v", err)
			}
			if !tc.wantOK {
				ve, ok := err.(*ValidationError)
				if !ok {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if ve.Kind != tc.wantErr {
					t.Fatalf("got kind %v, want %v", ve.Kind, tc.wantErr)
				}
			}
		})
	}
}

func TestValidateCopy_RejectsExactDuplicate(t *testing.T) {
	v := NewPhraseValidator(testDict(), NewBigramCosineScorer(), 0.85)
	_, err := v.ValidateCopy("famous man", "FAMOUS MAN")
	ve, ok := err.(*ValidationError)
	if !ok || ve.Kind != DuplicatePhrase {
		t.Fatalf("expected duplicate_phrase, got %v", err)
	}
}

func TestValidateCopy_RejectsNearIdentical(t *testing.T) {
	dict := NewDictionary([]string{"RICH", "MAN", "MEN"})
	v := NewPhraseValidator(dict, NewBigramCosineScorer(), 0.75)
	_, err := v.ValidateCopy("rich men", "RICH MAN")
	ve, ok := err.(*ValidationError)
	if !ok || ve.Kind != DuplicatePhrase {
		t.Fatalf("expected duplicate_phrase for near-identical copy, got %v", err)
	}
}

func TestValidateCopy_AcceptsDistinctPhrase(t *testing.T) {
	v := NewPhraseValidator(testDict(), NewBigramCosineScorer(), 0.85)
	norm, err := v.ValidateCopy("rich cat", "FAMOUS DOG")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if norm != "RICH CAT" {
		t.Fatalf("got %q", norm)
	}
}
