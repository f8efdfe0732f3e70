package round

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	answers := []string{"japan", "osaka", "osaka city"}

	tests := []struct {
		name       string
		rule       Rule
		guess      string
		wantPoints int
		wantRank   int
	}{
		{"best picks the finest match", BestMatch, "it's osaka city i think", 3, 2},
		{"first picks list order", FirstMatch, "it's osaka city i think", 2, 1},
		{"country only", BestMatch, "Japan!", 1, 0},
		{"case and whitespace", BestMatch, "   OSAKA  ", 2, 1},
		{"no match", BestMatch, "kyoto", 0, -1},
		{"empty guess", BestMatch, "   ", 0, -1},
		{"first rule no match", FirstMatch, "paris", 0, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, rank := Scorer{Rule: tt.rule}.Score(tt.guess, answers)
			assert.Equal(t, tt.wantPoints, points)
			assert.Equal(t, tt.wantRank, rank)
		})
	}
}

func TestScoreBestMatchIgnoresListOrder(t *testing.T) {
	// A catalog that lists the city before the country still rewards the
	// finest answer under BestMatch, and the first listed under FirstMatch.
	answers := []string{"osaka", "japan"}

	points, _ := Scorer{Rule: BestMatch}.Score("osaka, japan", answers)
	assert.Equal(t, 2, points)

	points, _ = Scorer{Rule: FirstMatch}.Score("osaka, japan", answers)
	assert.Equal(t, 1, points)
}

func TestWarn(t *testing.T) {
	assert.Equal(t, Warning(""), Scorer{}.Warn("two words"))
	assert.Equal(t, WarnMultiToken, Scorer{RejectMultiToken: true}.Warn("two words"))
	assert.Equal(t, Warning(""), Scorer{RejectMultiToken: true}.Warn("single"))
}

func TestParseRule(t *testing.T) {
	r, err := ParseRule("First")
	assert.NoError(t, err)
	assert.Equal(t, FirstMatch, r)

	r, err = ParseRule("")
	assert.NoError(t, err)
	assert.Equal(t, BestMatch, r)

	_, err = ParseRule("nearest")
	assert.Error(t, err)

	assert.Equal(t, "best", BestMatch.String())
}
