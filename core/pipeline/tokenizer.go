package pipeline

import (
	"github.com/go-ego/gse"

	"github.com/graphmed/graphmed/helper"
)

// DefaultTokenizer creates a word tokenizer backed by the embedded
// simplified Chinese dictionary. Token counts include punctuation.
func DefaultTokenizer() (TokenizeFunc, error) {
	seg, err := gse.New("zh_s")
	if err != nil {
		return nil, helper.NewError("load tokenizer dictionary", err)
	}

	return func(text string) []string {
		return seg.Cut(text, true)
	}, nil
}
