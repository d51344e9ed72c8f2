package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Biden,", "biden"},
		{"Macron:", "macron"},
		{"Paris!", "paris"},
		{"Greene's", "greene"},
		{"Greene’s", "greene"},
		{"[Classified]", "classified"},
		{`"No`, "no"},
		{"7.2", "72"},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanToken(tt.in), "cleanToken(%q)", tt.in)
	}
}

func TestSignificantWords(t *testing.T) {
	words := significantWords("The Cat in the Hat Returns to Theaters")
	assert.True(t, words["cat"])
	assert.True(t, words["hat"])
	assert.True(t, words["returns"])
	assert.True(t, words["theaters"])
	assert.False(t, words["the"])
	assert.False(t, words["in"])
	assert.False(t, words["to"])
}

func TestExtractProperNouns(t *testing.T) {
	t.Run("capitalized words only", func(t *testing.T) {
		nouns := extractProperNouns("Biden met Macron in Paris")
		assert.True(t, nouns["biden"])
		assert.True(t, nouns["macron"])
		assert.True(t, nouns["paris"])
		assert.False(t, nouns["met"])
		assert.False(t, nouns["in"])
	})

	t.Run("sentence starters excluded", func(t *testing.T) {
		nouns := extractProperNouns("The President It He She This That")
		assert.True(t, nouns["president"])
		for _, w := range []string{"the", "it", "he", "she", "this", "that"} {
			assert.False(t, nouns[w], "%q should not be a proper noun", w)
		}
	})

	t.Run("punctuation stripped", func(t *testing.T) {
		nouns := extractProperNouns("Biden, Macron: Paris!")
		assert.True(t, nouns["biden"])
		assert.True(t, nouns["macron"])
		assert.True(t, nouns["paris"])
	})

	t.Run("single characters skipped", func(t *testing.T) {
		assert.Empty(t, extractProperNouns("A B C"))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, extractProperNouns(""))
	})
}

func TestStemMatch(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"deploying", "deployment", true},
		{"launches", "launch", true},
		{"delays", "delayed", true},
		{"updated", "updating", true},
		{"cat", "cats", false}, // too short for prefix credit
		{"market", "martian", false},
		{"signs", "announces", false},
		// Known limitation: unrelated words sharing a long prefix get
		// credit anyway.
		{"protest", "protein", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stemMatch(tt.a, tt.b), "stemMatch(%q, %q)", tt.a, tt.b)
	}
}

func TestTopicSimilarity(t *testing.T) {
	t.Run("short titles are not comparable", func(t *testing.T) {
		_, _, ok := topicSimilarity("A Story", "The News")
		assert.False(t, ok)
	})

	t.Run("identical titles score high", func(t *testing.T) {
		title := "Trump New Tariffs on Chinese Imports Raise Concerns"
		score, _, ok := topicSimilarity(title, title)
		require.True(t, ok)
		assert.GreaterOrEqual(t, score, 0.8)
	})

	t.Run("reworded same story scores above block threshold", func(t *testing.T) {
		score, common, ok := topicSimilarity(
			"SpaceX Starship Successfully Launches From Texas Base",
			"SpaceX Starship Launches Successfully From Texas")
		require.True(t, ok)
		assert.GreaterOrEqual(t, score, 0.8)
		assert.Contains(t, common, "spacex")
		assert.Contains(t, common, "starship")
	})

	t.Run("two shared proper nouns dominate weak overlap", func(t *testing.T) {
		score, common, ok := topicSimilarity(
			"Tesla Board Under Fire Over Elon Musk Pay Deal",
			"Elon Musk Tesla Board Approves Compensation Package")
		require.True(t, ok)
		assert.GreaterOrEqual(t, score, 0.8)
		assert.GreaterOrEqual(t, len(common), 2)
	})

	t.Run("single shared proper noun is a weak signal", func(t *testing.T) {
		score, common, ok := topicSimilarity(
			"Biden Hosts State Dinner for French President",
			"Biden Signs Infrastructure Bill")
		require.True(t, ok)
		assert.Equal(t, []string{"biden"}, common)
		assert.Less(t, score, 0.40)
	})

	t.Run("stem credit bridges inflection differences", func(t *testing.T) {
		score, _, ok := topicSimilarity(
			"Military Deployment Troops Sent Overseas",
			"Military Deploying Troops Overseas")
		require.True(t, ok)
		assert.GreaterOrEqual(t, score, 0.40)
	})

	t.Run("stem credit pairing is deterministic", func(t *testing.T) {
		// One candidate word stem-matches both history words while the
		// other matches only one of them. The pairing must resolve the
		// contested partner the same way on every call.
		scores := make(map[float64]int)
		for i := 0; i < 500; i++ {
			score, _, ok := topicSimilarity("Zebras Zebrzz", "Zebr Zebray")
			require.True(t, ok)
			scores[score]++
		}
		require.Len(t, scores, 1)
		assert.Contains(t, scores, 0.25)
	})

	t.Run("unrelated titles score near zero", func(t *testing.T) {
		score, common, ok := topicSimilarity(
			"Federal Reserve Raises Interest Rates Again",
			"NASA Discovers New Exoplanet in Habitable Zone")
		require.True(t, ok)
		assert.Empty(t, common)
		assert.Less(t, score, clusterThreshold)
	})
}

func TestContentSimilarity(t *testing.T) {
	t.Run("identical text", func(t *testing.T) {
		text := "Breaking news from the capitol today regarding major policy changes."
		assert.Equal(t, 1.0, contentSimilarity(text, text))
	})

	t.Run("minor rewording stays above threshold", func(t *testing.T) {
		old := "The president signed a major executive order on trade tariffs today."
		new := "The president signed a major executive order on trade tariffs this morning."
		assert.GreaterOrEqual(t, contentSimilarity(new, old), 0.65)
	})

	t.Run("different stories score low", func(t *testing.T) {
		old := "Earthquake measuring 6.2 strikes southern California coast."
		new := "Stock market rallies on positive jobs data this quarter."
		assert.Less(t, contentSimilarity(new, old), 0.65)
	})

	t.Run("hashtags and urls do not inflate overlap", func(t *testing.T) {
		old := "Big news #BreakingMews https://t.co/abc. Important policy shift announced today."
		new := "Important policy shift announced today. #BreakingMews https://t.co/xyz"
		assert.GreaterOrEqual(t, contentSimilarity(new, old), 0.65)
	})

	t.Run("anchor filler vocabulary carries no signal", func(t *testing.T) {
		old := "Cat mews purr paws fur whisker perch meow. Something unique happened."
		new := "Cat mews purr paws fur whisker perch meow. Totally different event occurred."
		assert.Less(t, contentSimilarity(new, old), 0.65)
	})

	t.Run("source glyph stripped", func(t *testing.T) {
		old := "Major policy shift announced today. " + sourceGlyph
		new := "Major policy shift announced today."
		assert.Equal(t, 1.0, contentSimilarity(new, old))
	})

	t.Run("empty side never matches", func(t *testing.T) {
		assert.Equal(t, 0.0, contentSimilarity("", "Real content here about something."))
		assert.Equal(t, 0.0, contentSimilarity("#OnlyHashtags https://t.co/x", "Real content here."))
	})
}
