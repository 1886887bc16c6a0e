package action

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/youruser/quill/internal/editor"
)

var (
	codec     tokenizer.Codec
	codecOnce sync.Once
	codecErr  error
)

const charsPerToken = 4

// getCodec returns the cl100k_base tokenizer, a reasonable
// approximation across current models.
func getCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// EstimateTokens returns an approximate token count for the given text.
func EstimateTokens(text string) (int, error) {
	c, err := getCodec()
	if err != nil {
		return 0, err
	}

	ids, _, err := c.Encode(text)
	if err != nil {
		return 0, err
	}

	return len(ids), nil
}

// EstimateTokensSimple returns a token count, falling back to a
// chars-per-token heuristic when the tokenizer is unavailable.
func EstimateTokensSimple(text string) int {
	count, err := EstimateTokens(text)
	if err != nil {
		return len(text) / charsPerToken
	}
	return count
}

// SurroundingContext returns a window of surface content around the
// current selection, sized to the token budget. The selection text
// stays in place inside the window so the surround reads contiguously;
// when the selection alone exceeds the budget the surround shrinks to
// nothing rather than truncating the selection.
func SurroundingContext(surface editor.Surface, budget int) string {
	if budget <= 0 {
		return ""
	}

	sel, _ := surface.Selection()

	window := budget * charsPerToken
	for {
		before, after := surface.Context(window/2, window/2)
		ctx := before + sel.Text + after
		if EstimateTokensSimple(ctx) <= budget || window < 64 {
			return ctx
		}
		window /= 2
	}
}
