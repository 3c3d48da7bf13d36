package greeting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposer_OpenerBoundaries(t *testing.T) {
	c := NewComposer(English, "Scotiabank", time.UTC)

	tests := []struct {
		hour int
		want string
	}{
		{0, "Good evening"},
		{4, "Good evening"},
		{5, "Good morning"},
		{11, "Good morning"},
		{12, "Good afternoon"},
		{18, "Good afternoon"},
		{19, "Good evening"},
		{23, "Good evening"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Opener(tt.hour), "hour %d", tt.hour)
	}
}

func TestComposer_Compose(t *testing.T) {
	en := NewComposer(English, "Scotiabank", time.UTC)
	assert.Equal(t, "Good morning, Mauricio! I am the assistant for Scotiabank. How can I help you?", en.Compose(9, "Mauricio"))
	assert.Equal(t, "Good evening! I am the assistant for Scotiabank. How can I help you?", en.Compose(21, ""))

	es := NewComposer(Spanish, "Scotiabank", time.UTC)
	assert.Equal(t, "¡Buenas tardes, María! Soy el asistente de Scotiabank, ¿en qué puedo ayudarte?", es.Compose(15, "María"))
	assert.Equal(t, "¡Buenos días! Soy el asistente de Scotiabank, ¿en qué puedo ayudarte?", es.Compose(6, "  "))
}

func TestComposer_ComposeNowUsesLocation(t *testing.T) {
	zone := time.FixedZone("CLT", -3*60*60)
	c := NewComposer(English, "Scotiabank", zone)
	c.now = func() time.Time { return time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC) } // 09:30 local

	assert.Contains(t, c.ComposeNow("Carlos"), "Good morning, Carlos!")
}

func TestForLocale(t *testing.T) {
	p, err := ForLocale("EN")
	require.NoError(t, err)
	assert.Equal(t, English.Morning, p.Morning)

	p, err = ForLocale("")
	require.NoError(t, err)
	assert.Equal(t, Spanish.Morning, p.Morning)

	_, err = ForLocale("fr")
	assert.Error(t, err)
}

func TestPhrases_WithMarkers(t *testing.T) {
	p := English.WithMarkers(" hello there ", "")
	assert.Contains(t, p.Markers, "hello there")
	assert.Len(t, p.Markers, len(English.Markers)+1)
	assert.Len(t, English.Markers, 5)
}
