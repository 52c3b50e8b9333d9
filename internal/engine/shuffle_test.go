package engine

import "testing"

func TestShufflePhrases_OriginalIndexMatchesPosition(t *testing.T) {
	for i := 0; i < 50; i++ {
		phrases, idx := ShufflePhrases("RICH MAN", "WEALTHY GUY", "FAMOUS MAN")
		if phrases[idx] != "RICH MAN" {
			t.Fatalf("originalIndex %d points at %q, want RICH MAN", idx, phrases[idx])
		}
	}
}

func TestShufflePhrases_PreservesAllThreePhrases(t *testing.T) {
	phrases, _ := ShufflePhrases("A", "B", "C")
	seen := map[string]bool{}
	for _, p := range phrases {
		seen[p] = true
	}
	for _, want := range []string{"A", "B", "C"} {
		if !seen[want] {
			t.Fatalf("shuffled output %+v missing %q", phrases, want)
		}
	}
}

func TestPromptLibrary_RandomWithinBounds(t *testing.T) {
	lib := NewPromptLibrary([]string{"ONE", "TWO", "THREE"})
	for i := 0; i < 50; i++ {
		idx, text, err := lib.Random()
		if err != nil {
			t.Fatalf("random: %v", err)
		}
		if idx < 0 || idx >= lib.Len() {
			t.Fatalf("index %d out of bounds for len %d", idx, lib.Len())
		}
		if text != lib.prompts[idx] {
			t.Fatalf("text %q does not match prompts[%d] %q", text, idx, lib.prompts[idx])
		}
	}
}

func TestPromptLibrary_Len(t *testing.T) {
	lib := NewPromptLibrary([]string{"ONE", "TWO"})
	if lib.Len() != 2 {
		t.Fatalf("got len %d, want 2", lib.Len())
	}
}
