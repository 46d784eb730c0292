// Package tokenizer counts tokens with the cl100k_base BPE used by the OpenAI
// embedding models, so chunk budgets and usage accounting share one unit.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Encoding is the BPE used end-to-end.
const Encoding = "cl100k_base"

var loaderOnce sync.Once

// Tokenizer is safe for concurrent use.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New loads the encoding from ranks embedded in the binary; it never touches the network.
func New() (*Tokenizer, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(Encoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", Encoding, err)
	}
	return &Tokenizer{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Offsets returns the byte offset where each token of text starts, followed by len(text).
// len(Offsets(text))-1 == Count(text). Offsets may fall inside a multi-byte rune.
func (t *Tokenizer) Offsets(text string) []int {
	if text == "" {
		return []int{0}
	}
	ids := t.enc.Encode(text, nil, nil)
	offsets := make([]int, len(ids)+1)
	pos := 0
	for i, id := range ids {
		offsets[i] = pos
		pos += len(t.enc.Decode([]int{id}))
	}
	offsets[len(ids)] = len(text)
	return offsets
}
