package bundle

import (
	"bytes"
	"io"
	"os"
	"regexp"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

var word = regexp.MustCompile(`[A-Za-z0-9_-]+`)

// collectWords reads every file in paths and returns the set of identifier
// like words in them. Unreadable files are skipped.
func collectWords(paths []string) map[string]bool {
	words := map[string]bool{}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		for _, w := range word.FindAll(data, -1) {
			words[string(w)] = true
		}
	}
	return words
}

// purify drops every style rule none of whose selectors can match content
// using only the given words. Selectors without class names always match.
func purify(stylesheet []byte, words map[string]bool) ([]byte, error) {
	p := css.NewParser(parse.NewInput(bytes.NewReader(stylesheet)), false)

	var (
		out       bytes.Buffer
		selectors [][]css.Token
		skipping  bool
	)

	writeValues := func(values []css.Token) {
		for _, v := range values {
			out.Write(v.Data)
		}
	}

	for {
		gt, _, data := p.Next()
		if gt == css.ErrorGrammar {
			if p.Err() == io.EOF {
				break
			}
			return nil, p.Err()
		}

		if skipping {
			if gt == css.EndRulesetGrammar {
				skipping = false
			}
			continue
		}

		switch gt {
		case css.CommentGrammar:
		case css.AtRuleGrammar:
			out.Write(data)
			out.WriteByte(' ')
			writeValues(p.Values())
			out.WriteByte(';')
		case css.BeginAtRuleGrammar:
			out.Write(data)
			out.WriteByte(' ')
			writeValues(p.Values())
			out.WriteByte('{')
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			out.WriteByte('}')
		case css.QualifiedRuleGrammar:
			selectors = append(selectors, copyTokens(p.Values()))
		case css.BeginRulesetGrammar:
			selectors = append(selectors, copyTokens(p.Values()))
			if !anySelectorUsed(selectors, words) {
				skipping = true
				selectors = selectors[:0]
				continue
			}
			for i, sel := range selectors {
				if i > 0 {
					out.WriteByte(',')
				}
				writeValues(sel)
			}
			out.WriteByte('{')
			selectors = selectors[:0]
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			out.Write(data)
			out.WriteByte(':')
			writeValues(p.Values())
			out.WriteByte(';')
		default:
			out.Write(data)
		}
	}

	return out.Bytes(), nil
}

// copyTokens detaches tokens from the parser's reused buffer.
func copyTokens(values []css.Token) []css.Token {
	out := make([]css.Token, len(values))
	for i, v := range values {
		out[i] = css.Token{TokenType: v.TokenType, Data: append([]byte(nil), v.Data...)}
	}
	return out
}

func anySelectorUsed(selectors [][]css.Token, words map[string]bool) bool {
	for _, sel := range selectors {
		if selectorUsed(sel, words) {
			return true
		}
	}
	return false
}

func selectorUsed(sel []css.Token, words map[string]bool) bool {
	for i := 0; i+1 < len(sel); i++ {
		if sel[i].TokenType == css.DelimToken && string(sel[i].Data) == "." &&
			sel[i+1].TokenType == css.IdentToken && !words[string(sel[i+1].Data)] {
			return false
		}
	}
	return true
}
