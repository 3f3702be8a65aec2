package vectorspace

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// analyzer turns raw text into candidate terms: lowercased word tokens of at
// least two characters with stopwords removed, followed by the bigrams of the
// remaining tokens.
type analyzer struct {
	stopwords map[string]struct{}
}

func newAnalyzer(stopwords map[string]struct{}) analyzer {
	return analyzer{stopwords: stopwords}
}

func (a analyzer) terms(text string) []string {
	tokens := a.tokens(text)
	if len(tokens) == 0 {
		return nil
	}
	out := make([]string, 0, 2*len(tokens)-1)
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

func (a analyzer) tokens(text string) []string {
	var (
		tokens []string
		word   strings.Builder
		n      int
	)
	flush := func() {
		if n >= 2 {
			w := word.String()
			if _, stop := a.stopwords[w]; !stop {
				tokens = append(tokens, w)
			}
		}
		word.Reset()
		n = 0
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			word.WriteRune(unicode.ToLower(r))
			n++
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// parseStopwords reads one word per line.
func parseStopwords(src string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range strings.Split(src, "\n") {
		if w := strings.ToLower(strings.TrimSpace(line)); w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// LoadCorpus reads a line-per-document corpus. Blank lines and lines starting
// with '#' are skipped.
func LoadCorpus(r io.Reader) ([]string, error) {
	var docs []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		docs = append(docs, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	return docs, nil
}
