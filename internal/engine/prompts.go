package engine

import (
	"crypto/rand"
	"math/big"
)

// PromptLibrary hands out a random prompt word for RoundService to seed a
// new prompt round with. The human-readable prompt content itself is an
// external collaborator (spec's prompt-data repository); this is just the
// read-only in-memory pool loaded once at startup, the same convention as
// Dictionary.
type PromptLibrary struct {
	prompts []string
}

func NewPromptLibrary(prompts []string) *PromptLibrary {
	return &PromptLibrary{prompts: prompts}
}

// Random returns a prompt id (its index, stringified by the caller) and
// its text. Uses crypto/rand rather than math/rand so prompt selection
// can't be predicted from observed output, matching the similarity
// scorer's requirement of a deterministic *per-input* but otherwise
// opaque selection surface.
func (p *PromptLibrary) Random() (index int, text string, err error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.prompts))))
	if err != nil {
		return 0, "", err
	}
	i := int(n.Int64())
	return i, p.prompts[i], nil
}

func (p *PromptLibrary) Len() int {
	return len(p.prompts)
}
