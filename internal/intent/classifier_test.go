package intent

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestClassifyEmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", "\t\n", "  \n  "} {
		result := Classify(text)
		assert.Equal(t, GeneralQuery, result.Name, "input %q", text)
		assert.Equal(t, 0.0, result.Confidence, "input %q", text)
	}
}

func TestClassifyPriceQuery(t *testing.T) {
	result := Classify("BTC price")
	assert.Equal(t, "price", result.Name)
	assert.GreaterOrEqual(t, result.Confidence, 0.7)
}

func TestClassifyGreeting(t *testing.T) {
	result := Classify("hi")
	assert.Equal(t, "greeting", result.Name)
	assert.GreaterOrEqual(t, result.Confidence, 0.85)
}

func TestClassifyNoMatch(t *testing.T) {
	result := Classify("zzz qqq xxyzzy")
	assert.Equal(t, GeneralQuery, result.Name)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestClassifyTableExamples(t *testing.T) {
	// Every documented example phrase must classify to its own intent.
	for _, entry := range Table {
		for _, example := range entry.Examples {
			result := Classify(example)
			assert.Equal(t, entry.Name, result.Name, "example %q", example)
			assert.Greater(t, result.Confidence, 0.0, "example %q", example)
		}
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	lower := Classify("price of ethereum")
	upper := Classify("PRICE OF ETHEREUM")
	assert.Equal(t, lower.Name, upper.Name)
	assert.InDelta(t, lower.Confidence, upper.Confidence, 0.001)
}

func TestProperty_ClassifyTotality(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("classify never panics and clamps confidence", prop.ForAll(
		func(text string) bool {
			result := Classify(text)
			if result.Name == "" {
				return false
			}
			return result.Confidence >= 0.0 && result.Confidence <= 1.0
		},
		gen.AnyString(),
	))

	properties.Property("whitespace-only input is the sentinel", prop.ForAll(
		func(n int) bool {
			result := Classify(strings.Repeat(" ", n%20))
			return result.Name == GeneralQuery && result.Confidence == 0.0
		},
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
