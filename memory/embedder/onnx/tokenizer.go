package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Tokenizer is a lowercase BERT WordPiece tokenizer driven by the vocab in
// a HuggingFace tokenizer.json.
type Tokenizer struct {
	vocab map[string]int
	cls   int
	sep   int
	unk   int
}

// LoadTokenizer reads tokenizer.json from path.
func LoadTokenizer(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer: %w", err)
	}

	var file struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tokenizer: %w", err)
	}
	return NewTokenizer(file.Model.Vocab)
}

// NewTokenizer builds a tokenizer from a vocab that contains the [CLS],
// [SEP] and [UNK] special tokens.
func NewTokenizer(vocab map[string]int) (*Tokenizer, error) {
	t := &Tokenizer{vocab: vocab}
	for token, dst := range map[string]*int{"[CLS]": &t.cls, "[SEP]": &t.sep, "[UNK]": &t.unk} {
		id, ok := vocab[token]
		if !ok {
			return nil, fmt.Errorf("vocab is missing %s", token)
		}
		*dst = id
	}
	return t, nil
}

// Encode tokenizes text into [CLS] tokens... [SEP], truncated and padded to
// maxLen. It returns the input IDs and attention mask.
func (t *Tokenizer) Encode(text string, maxLen int) (ids, mask []int64) {
	ids = make([]int64, maxLen)
	mask = make([]int64, maxLen)

	tokens := t.Tokenize(text)
	if len(tokens) > maxLen-2 {
		tokens = tokens[:maxLen-2]
	}

	ids[0], mask[0] = int64(t.cls), 1
	for i, tok := range tokens {
		ids[i+1], mask[i+1] = tok, 1
	}
	end := len(tokens) + 1
	ids[end], mask[end] = int64(t.sep), 1
	return ids, mask
}

// Tokenize returns the WordPiece IDs of text without special tokens.
func (t *Tokenizer) Tokenize(text string) []int64 {
	var out []int64
	for _, word := range splitWords(strings.ToLower(text)) {
		if id, ok := t.vocab[word]; ok {
			out = append(out, int64(id))
			continue
		}
		out = append(out, t.wordPiece(word)...)
	}
	return out
}

// splitWords splits on whitespace and isolates each punctuation rune, the
// way BERT's basic tokenizer does.
func splitWords(text string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

// wordPiece greedily matches the longest known prefix, then the longest
// "##" continuation. A word with any unmatched piece becomes a single [UNK].
func (t *Tokenizer) wordPiece(word string) []int64 {
	var out []int64
	runes := []rune(word)
	for start := 0; start < len(runes); {
		end := len(runes)
		matched := -1
		for ; end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				matched = id
				break
			}
		}
		if matched < 0 {
			return []int64{int64(t.unk)}
		}
		out = append(out, int64(matched))
		start = end
	}
	return out
}
