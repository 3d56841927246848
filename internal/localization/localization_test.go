package localization_test

import (
	"testing"
	"testing/fstest"

	"roomies/backend/internal/localization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Language(t *testing.T) {
	l, err := localization.Default()
	require.NoError(t, err)

	assert.Equal(t, "uk", l.Language("uk-UA,uk;q=0.9,en;q=0.8"))
	assert.Equal(t, "de", l.Language("de-AT"))
	assert.Equal(t, "en", l.Language("fr-FR"))
	assert.Equal(t, "en", l.Language(""))

	msg, ok := l.Lookup("de", "blocked")
	assert.True(t, ok)
	assert.NotEmpty(t, msg)

	_, ok = l.Lookup("en", "blocked")
	assert.False(t, ok)
}

func TestNewLocalizer(t *testing.T) {
	fsys := fstest.MapFS{
		"pl.json":   {Data: []byte(`{"timeout":"Przekroczono czas"}`)},
		"notes.txt": {Data: []byte("ignored")},
	}
	l, err := localization.NewLocalizer(fsys)
	require.NoError(t, err)

	msg, ok := l.Lookup(l.Language("pl"), "timeout")
	assert.True(t, ok)
	assert.Equal(t, "Przekroczono czas", msg)

	_, err = localization.NewLocalizer(fstest.MapFS{"xx-broken!.json": {Data: []byte(`{}`)}})
	assert.Error(t, err)

	_, err = localization.NewLocalizer(fstest.MapFS{"pl.json": {Data: []byte(`{`)}})
	assert.Error(t, err)
}
