package dict_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pif-course/collector/internal/dict"
)

func writeDict(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse(t *testing.T) {
	path := writeDict(t, `
[[questions]]
id = 2
aliases = ["q2"]

[[questions]]
id = 1
aliases = ["Q1", "questao1"]
weight = 2.5
`)
	d, err := dict.Parse(path)
	require.NoError(t, err)
	require.Equal(t, 2, d.Len())
	require.Equal(t, 2, d.MaxID())

	// entries are sorted ascending and aliases lowercased
	qs := d.Questions()
	require.Equal(t, 1, qs[0].ID)
	require.Equal(t, []string{"q1", "questao1"}, qs[0].Aliases)
	require.Equal(t, map[int]float64{1: 2.5}, d.Weights())
}

func TestParseRejectsBadDictionaries(t *testing.T) {
	_, err := dict.Parse(writeDict(t, `
[[questions]]
id = 0
aliases = ["q0"]
`))
	require.Error(t, err)

	_, err = dict.Parse(writeDict(t, `
[[questions]]
id = 1
aliases = ["q1"]

[[questions]]
id = 1
aliases = ["one"]
`))
	require.ErrorContains(t, err, "duplicate")

	_, err = dict.Parse(writeDict(t, `
[[questions]]
id = 3
aliases = []
`))
	require.ErrorContains(t, err, "no aliases")
}

func TestMatchFirstQuestionWins(t *testing.T) {
	d := dict.New([]dict.Question{
		{ID: 3, Aliases: []string{"q3"}},
		{ID: 1, Aliases: []string{"q1", "questao1"}},
	})

	id, ok := d.Match("lista1_Q1.c")
	require.True(t, ok)
	require.Equal(t, 1, id)

	id, ok = d.Match("LISTA1_q3.c")
	require.True(t, ok)
	require.Equal(t, 3, id)

	_, ok = d.Match("notes.c")
	require.False(t, ok)
}
