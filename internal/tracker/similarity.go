package tracker

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// sourceGlyph marks the bot's own source-citation line in published posts.
// It is stripped before content comparison so house style never counts as
// overlap.
const sourceGlyph = "📰↓"

// stopWords are dropped before any overlap computation.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true,
	"was": true, "are": true, "been": true, "be": true,
}

// contentStopWords extends stopWords for generated-post comparison with
// connectives plus the anchor's own voice. Two posts sharing only
// cat-speak are not about the same story.
var contentStopWords = map[string]bool{
	"this": true, "that": true, "it": true, "its": true, "has": true,
	"have": true, "had": true, "will": true,
	"cat": true, "cats": true, "kitty": true, "kitten": true, "feline": true,
	"mew": true, "mews": true, "meow": true, "meows": true,
	"purr": true, "purrs": true, "paw": true, "paws": true,
	"fur": true, "whisker": true, "whiskers": true, "tail": true,
	"perch": true, "pounce": true, "claw": true, "claws": true,
	"catnip": true, "hiss": true,
}

// sentenceStarters are capitalized words that are too common to count as
// named entities.
var sentenceStarters = map[string]bool{
	"the": true, "a": true, "an": true, "this": true, "that": true,
	"these": true, "those": true, "it": true, "its": true, "he": true,
	"she": true, "his": true, "her": true, "they": true, "their": true,
	"we": true, "our": true, "you": true, "your": true, "i": true,
	"what": true, "when": true, "where": true, "why": true, "how": true,
	"who": true, "and": true, "but": true, "or": true, "if": true,
	"as": true, "at": true, "by": true, "for": true, "from": true,
	"in": true, "into": true, "of": true, "on": true, "to": true,
	"with": true, "is": true, "are": true, "was": true, "were": true,
}

var (
	hashtagRe = regexp.MustCompile(`#\w+`)
	urlRe     = regexp.MustCompile(`https?://\S+`)
)

// cleanToken lowercases a raw token and strips punctuation, folding
// possessives ("Greene's" and "Greene" must meet).
func cleanToken(tok string) string {
	tok = strings.ToLower(tok)
	tok = strings.TrimSuffix(tok, "'s")
	tok = strings.TrimSuffix(tok, "’s")
	var b strings.Builder
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// significantWords tokenizes a title into its cleaned word set minus stop
// words.
func significantWords(title string) map[string]bool {
	words := make(map[string]bool)
	for _, tok := range strings.Fields(title) {
		w := cleanToken(tok)
		if w == "" || stopWords[w] {
			continue
		}
		words[w] = true
	}
	return words
}

// extractProperNouns approximates named-entity detection: capitalized
// tokens, minus common sentence starters and single characters. Any
// capitalized word qualifies ("Launches" counts), which is crude but cheap
// and works well on headlines. Returned lowercased.
func extractProperNouns(title string) map[string]bool {
	nouns := make(map[string]bool)
	for _, tok := range strings.Fields(title) {
		r := []rune(tok)
		if len(r) == 0 || !unicode.IsUpper(r[0]) {
			continue
		}
		w := cleanToken(tok)
		if len([]rune(w)) < 2 || sentenceStarters[w] {
			continue
		}
		nouns[w] = true
	}
	return nouns
}

// stemMatch reports whether two distinct words share a long common prefix
// (5 chars when both allow it, else 4). This is a crude stand-in for
// morphological stemming: it catches deploy/deployment but also pairs like
// report/reporting that may be unrelated.
func stemMatch(a, b string) bool {
	if len(a) < 4 || len(b) < 4 {
		return false
	}
	n := 4
	if len(a) >= 5 && len(b) >= 5 {
		n = 5
	}
	return a[:n] == b[:n]
}

// topicSimilarity scores how likely two headlines describe the same story.
// Returns the score, the shared proper nouns, and ok=false when either
// title is too short to compare meaningfully.
func topicSimilarity(candidateTitle, historyTitle string) (score float64, commonEntities []string, ok bool) {
	candWords := significantWords(candidateTitle)
	histWords := significantWords(historyTitle)
	if len(candWords) < 2 || len(histWords) < 2 {
		return 0, nil, false
	}

	candNouns := extractProperNouns(candidateTitle)
	histNouns := extractProperNouns(historyTitle)
	for n := range candNouns {
		if histNouns[n] {
			commonEntities = append(commonEntities, n)
		}
	}

	common := 0
	for w := range candWords {
		if histWords[w] {
			common++
		}
	}

	// Partial credit for word pairs that differ only in inflection. The
	// greedy pairing walks both sides in sorted order so a contested
	// partner always resolves the same way and the score stays stable
	// across calls.
	candOnly := make([]string, 0, len(candWords))
	for w := range candWords {
		if !histWords[w] {
			candOnly = append(candOnly, w)
		}
	}
	histOnly := make([]string, 0, len(histWords))
	for w := range histWords {
		if !candWords[w] {
			histOnly = append(histOnly, w)
		}
	}
	sort.Strings(candOnly)
	sort.Strings(histOnly)

	credit := 0.0
	used := make(map[string]bool)
	for _, a := range candOnly {
		for _, b := range histOnly {
			if used[b] {
				continue
			}
			if stemMatch(a, b) {
				credit += 0.5
				used[b] = true
				break
			}
		}
	}

	maxLen := len(candWords)
	if len(histWords) > maxLen {
		maxLen = len(histWords)
	}
	overlap := (float64(common) + credit) / float64(maxLen)

	// Shared named entities dominate weak lexical overlap: two headlines
	// sharing two or more proper nouns almost certainly cover the same
	// story no matter how differently they are worded.
	switch {
	case len(commonEntities) >= 2:
		score = overlap + 0.3
		if score < 0.8 {
			score = 0.8
		}
	case len(commonEntities) == 1 && len(candNouns) > 0:
		score = overlap + 0.2
	default:
		score = overlap
	}
	return score, commonEntities, true
}

// normalizeContentWords reduces a published post to its meaningful word
// set: hashtags, links and the source glyph go first, then stop words and
// the anchor's filler vocabulary.
func normalizeContentWords(text string) map[string]bool {
	text = hashtagRe.ReplaceAllString(text, " ")
	text = urlRe.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, sourceGlyph, " ")

	words := make(map[string]bool)
	for _, tok := range strings.Fields(text) {
		w := cleanToken(tok)
		if w == "" || stopWords[w] || contentStopWords[w] {
			continue
		}
		words[w] = true
	}
	return words
}

// contentSimilarity is the bag-of-words overlap ratio between two
// published post texts after normalization. Either side normalizing to
// nothing yields zero, never a match.
func contentSimilarity(a, b string) float64 {
	wordsA := normalizeContentWords(a)
	wordsB := normalizeContentWords(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	common := 0
	for w := range wordsA {
		if wordsB[w] {
			common++
		}
	}
	maxLen := len(wordsA)
	if len(wordsB) > maxLen {
		maxLen = len(wordsB)
	}
	return float64(common) / float64(maxLen)
}
