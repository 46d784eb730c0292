// Package textsplitter cuts text into overlapping chunks bounded by a token budget.
package textsplitter

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"
)

// MinChunkTokens is the smallest budget accepted: one UTF-8 rune may encode to four tokens.
const MinChunkTokens = 4

var (
	ErrOverlapTooLarge = errors.New("chunk overlap must be smaller than chunk size")
	ErrChunkTooSmall   = fmt.Errorf("chunk size must be at least %d tokens", MinChunkTokens)
)

// TokenCounter is the tokenizer the budget is expressed in.
type TokenCounter interface {
	Count(text string) int
	Offsets(text string) []int
}

// Chunk is one slice of the input.
//
// Text starts with OverlapBytes bytes repeated from the end of the previous chunk;
// those bytes hold OverlapTokens tokens.
type Chunk struct {
	Index         int
	Text          string
	Tokens        int
	OverlapTokens int
	OverlapBytes  int
}

type Splitter struct {
	counter       TokenCounter
	maxTokens     int
	overlapTokens int
}

func New(counter TokenCounter, maxTokens, overlapTokens int) (*Splitter, error) {
	if maxTokens < MinChunkTokens {
		return nil, fmt.Errorf("%w: got %d", ErrChunkTooSmall, maxTokens)
	}
	if overlapTokens < 0 || overlapTokens >= maxTokens {
		return nil, fmt.Errorf("%w: overlap %d, size %d", ErrOverlapTooLarge, overlapTokens, maxTokens)
	}
	return &Splitter{counter: counter, maxTokens: maxTokens, overlapTokens: overlapTokens}, nil
}

func (s *Splitter) MaxTokens() int     { return s.maxTokens }
func (s *Splitter) OverlapTokens() int { return s.overlapTokens }

// Count exposes the splitter's tokenizer.
func (s *Splitter) Count(text string) int { return s.counter.Count(text) }

// SplitText is Split without the bookkeeping.
func (s *Splitter) SplitText(text string) []string {
	chunks := s.Split(text)
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// Split returns the chunks of text in order. Empty text yields no chunks.
func (s *Splitter) Split(text string) []Chunk {
	if text == "" {
		return nil
	}
	offsets := s.counter.Offsets(text)
	total := len(offsets) - 1
	if total <= s.maxTokens {
		return []Chunk{{Text: text, Tokens: total}}
	}

	var (
		chunks    []Chunk
		startByte int
		overlap   string
	)
	for {
		startTok := tokenAt(offsets, startByte)
		endByte := len(text)
		if startTok+s.maxTokens < total {
			endByte = s.cut(text, offsets, startTok, startByte)
		}

		piece := text[startByte:endByte]
		tokens := s.counter.Count(piece)
		for tokens > s.maxTokens {
			// character-level fallback: the re-encoded piece can differ from the
			// full-text encoding at its edges
			prev := prevRuneStart(text, endByte)
			if prev <= startByte {
				break
			}
			endByte = prev
			piece = text[startByte:endByte]
			tokens = s.counter.Count(piece)
		}

		chunks = append(chunks, Chunk{
			Index:         len(chunks),
			Text:          piece,
			Tokens:        tokens,
			OverlapTokens: s.counter.Count(overlap),
			OverlapBytes:  len(overlap),
		})
		if endByte >= len(text) {
			return chunks
		}

		next := s.overlapStart(text, offsets, startByte, endByte)
		if next <= startByte {
			next = nextRuneStart(text, startByte)
		}
		overlap = text[next:endByte]
		startByte = next
	}
}

// overlapStart returns where the chunk after text[startByte:endByte] begins, so that
// text[start:endByte] holds exactly overlapTokens tokens when some rune boundary allows it,
// and otherwise the closest count below. It returns endByte when there is no overlap.
func (s *Splitter) overlapStart(text string, offsets []int, startByte, endByte int) int {
	k := s.overlapTokens
	if k == 0 {
		return endByte
	}
	if endTok := tokenAt(offsets, endByte); endTok-k > 0 {
		// the token start may sit inside a rune: try the rune starts on both sides
		guess := offsets[endTok-k]
		floor := runeFloor(text, guess)
		ceil := floor
		if floor < guess {
			ceil = nextRuneStart(text, floor)
		}
		for _, p := range []int{floor, ceil} {
			if p > startByte && p < endByte && s.counter.Count(text[p:endByte]) == k {
				return p
			}
		}
	}

	best, bestCount := endByte, 0
	for p := prevRuneStart(text, endByte); p > startByte; p = prevRuneStart(text, p) {
		n := s.counter.Count(text[p:endByte])
		if n == k {
			return p
		}
		if n < k && n > bestCount {
			best, bestCount = p, n
		}
		if n > k+MinChunkTokens {
			break
		}
	}
	return best
}

// boundary kinds in order of preference
var boundaries = []func(text string, p int) bool{
	isParagraphBreak,
	isLineBreak,
	isSentenceEnd,
	isWordBreak,
}

// cut picks the end of the chunk starting at startTok. It searches the tail of the
// token window for the most preferred boundary and falls back to a hard cut at the budget.
func (s *Splitter) cut(text string, offsets []int, startTok, startByte int) int {
	hi := startTok + s.maxTokens
	lo := startTok + max(s.overlapTokens+1, s.maxTokens*4/5)
	if lo > hi {
		lo = hi
	}
	for _, match := range boundaries {
		for j := hi; j >= lo; j-- {
			p := offsets[j]
			if p > startByte && utf8.RuneStart(text[p]) && match(text, p) {
				return p
			}
		}
	}
	p := runeFloor(text, offsets[hi])
	if p <= startByte {
		p = nextRuneStart(text, startByte)
	}
	return p
}

func isParagraphBreak(text string, p int) bool {
	return p >= 2 && text[p-1] == '\n' && text[p-2] == '\n'
}

func isLineBreak(text string, p int) bool {
	return p >= 1 && text[p-1] == '\n'
}

func isSentenceEnd(text string, p int) bool {
	if p < 2 {
		return false
	}
	switch text[p-1] {
	case '.', '!', '?':
		return isSpace(text[p])
	case ' ', '\t':
		c := text[p-2]
		return c == '.' || c == '!' || c == '?'
	}
	return false
}

func isWordBreak(text string, p int) bool {
	return isSpace(text[p]) || isSpace(text[p-1])
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// tokenAt returns the index of the token containing byte position pos.
func tokenAt(offsets []int, pos int) int {
	i := sort.SearchInts(offsets, pos)
	if i < len(offsets) && offsets[i] == pos {
		return i
	}
	return i - 1
}

func runeFloor(text string, p int) int {
	for p > 0 && p < len(text) && !utf8.RuneStart(text[p]) {
		p--
	}
	return p
}

func prevRuneStart(text string, p int) int {
	if p <= 0 {
		return 0
	}
	_, size := utf8.DecodeLastRuneInString(text[:p])
	return p - size
}

func nextRuneStart(text string, p int) int {
	if p >= len(text) {
		return len(text)
	}
	_, size := utf8.DecodeRuneInString(text[p:])
	return p + size
}
