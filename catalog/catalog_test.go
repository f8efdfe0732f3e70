package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "japancoord.json", `[
		{"link": "https://maps.example/1", "location": "Osaka", "answer": ["Japan", " Osaka "]},
		{"link": "https://maps.example/2", "location": "Sapporo", "answer": ["japan", "hokkaido", "sapporo"]}
	]`)

	got, err := Load(path)
	require.NoError(t, err)

	want := []Candidate{
		{Reference: "https://maps.example/1", Label: "Osaka", Answers: []string{"japan", "osaka"}},
		{Reference: "https://maps.example/2", Label: "Sapporo", Answers: []string{"japan", "hokkaido", "sapporo"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "world.yaml", `
- link: https://maps.example/paris
  location: Paris, France
  answer: [France, Paris]
`)

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Paris, France", got[0].Label)
	assert.Equal(t, []string{"france", "paris"}, got[0].Answers)
}

func TestLoadFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unparsable", `{not json`},
		{"empty", `[]`},
		{"missing link", `[{"location": "Osaka", "answer": ["japan"]}]`},
		{"missing location", `[{"link": "https://maps.example/1", "answer": ["japan"]}]`},
		{"blank answers", `[{"link": "https://maps.example/1", "location": "Osaka", "answer": [" "]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "c.json", tt.body))
			require.ErrorIs(t, err, ErrCatalogUnavailable)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.ErrorIs(t, err, ErrCatalogUnavailable)
	})
}

func TestOpenDir(t *testing.T) {
	dir := t.TempDir()
	body := `[{"link": "https://maps.example/1", "location": "Somewhere", "answer": ["x"]}]`
	for _, m := range Modes() {
		require.NoError(t, os.WriteFile(filepath.Join(dir, m.DefaultFile()), []byte(body), 0o644))
	}

	c, err := OpenDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len(ModeJapan))
	assert.Equal(t, 1, c.Len(ModeWorld))
}

func TestCandidatesUnknownMode(t *testing.T) {
	c := New(map[Mode][]Candidate{
		ModeJapan: {{Reference: "r", Label: "l", Answers: []string{"a"}}},
	})

	_, err := c.Candidates(ModeWorld)
	require.ErrorIs(t, err, ErrCatalogUnavailable)

	list, err := c.Candidates(ModeJapan)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Japan ")
	require.NoError(t, err)
	assert.Equal(t, ModeJapan, m)

	_, err = ParseMode("mars")
	require.ErrorIs(t, err, ErrInvalidMode)
}
