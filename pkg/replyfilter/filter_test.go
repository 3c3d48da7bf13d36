package replyfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/birddigital/voice-session-gateway/pkg/greeting"
)

func newEnglishFilter() *Filter {
	return New(greeting.English.Markers)
}

func TestFilter_DropsGreetingOnceIssued(t *testing.T) {
	f := newEnglishFilter()

	res := f.Apply([]string{"Good morning! I am the assistant.", "Tell me the last 4 digits."}, true)

	assert.Equal(t, "Tell me the last 4 digits.", res.Text)
	assert.Equal(t, []string{"Good morning! I am the assistant."}, res.Dropped)
	assert.False(t, res.GreetingConsumed)
	assert.False(t, res.FellBack)
}

func TestFilter_KeepsFirstGreetingWhenNotIssued(t *testing.T) {
	f := newEnglishFilter()

	res := f.Apply([]string{"GOOD EVENING!", "Good evening, I am the assistant.", "What do you need?"}, false)

	assert.True(t, res.GreetingConsumed)
	assert.Equal(t, "GOOD EVENING! What do you need?", res.Text)
	assert.Len(t, res.Dropped, 1)
}

func TestFilter_FallsBackWhenEverythingDropped(t *testing.T) {
	f := newEnglishFilter()

	res := f.Apply([]string{"  Good afternoon! ", "Good afternoon again"}, true)

	assert.True(t, res.FellBack)
	assert.False(t, res.GreetingConsumed)
	assert.Equal(t, "Good afternoon!", res.Text)
}

func TestFilter_NoMarkersIsIdempotent(t *testing.T) {
	f := newEnglishFilter()
	in := []string{"Your card ending in 1234 was found.", "Shall I proceed?"}

	first := f.Apply(in, true)
	second := f.Apply(first.Kept, true)

	assert.Equal(t, in, first.Kept)
	assert.Equal(t, first.Kept, second.Kept)
	assert.Equal(t, first.Text, second.Text)

	// The flag is irrelevant when nothing looks like a greeting
	assert.Equal(t, first.Text, f.Apply(in, false).Text)
}

func TestFilter_SingleFragmentRoundTrip(t *testing.T) {
	f := newEnglishFilter()

	res := f.Apply([]string{"Tell me the last 4 digits."}, true)
	assert.Equal(t, "Tell me the last 4 digits.", res.Text)
}

func TestFilter_PreservesOrderAndCollapsesDuplicates(t *testing.T) {
	f := newEnglishFilter()

	res := f.Apply([]string{"Done.", " Done. ", "", "Anything else?", "Done."}, true)
	assert.Equal(t, "Done. Anything else? Done.", res.Text)
}

func TestFilter_SpanishMarkers(t *testing.T) {
	f := New(greeting.Spanish.Markers)

	assert.True(t, f.IsGreeting("¡BUENAS NOCHES! Soy el asistente de Scotiabank"))
	assert.False(t, f.IsGreeting("Perfecto, encontré tu tarjeta terminada en 1234."))

	res := f.Apply([]string{"¡Buenos días! Soy el asistente de Scotiabank, ¿en qué puedo ayudarte?", "Dime los últimos 4 dígitos."}, true)
	assert.Equal(t, "Dime los últimos 4 dígitos.", res.Text)
}

func TestFilter_EmptyInput(t *testing.T) {
	res := newEnglishFilter().Apply(nil, false)
	assert.Equal(t, "", res.Text)
	assert.False(t, res.FellBack)
}
