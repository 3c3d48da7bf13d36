package greeting

import (
	"fmt"
	"strings"
)

// Phrases is a locale pack for everything the gateway speaks on its own
type Phrases struct {
	Morning   string
	Afternoon string
	Evening   string

	// Exclaim wraps the opener line, e.g. "¡%s!" or "%s!"
	Exclaim string

	// Identification is appended after the opener; %s is the brand
	Identification string

	// Markers flag a reply fragment as greeting-like (matched case-insensitively)
	Markers []string

	Reprompt         string // duplicate incoming-call, keep listening
	NotUnderstood    string // no-input fallback
	Transfer         string // handoff to a human operator
	TechnicalFailure string // dialogue gateway failed
	InternalFault    string // unexpected error at the handler boundary
}

// Spanish is the default pack
var Spanish = Phrases{
	Morning:        "Buenos días",
	Afternoon:      "Buenas tardes",
	Evening:        "Buenas noches",
	Exclaim:        "¡%s!",
	Identification: "Soy el asistente de %s, ¿en qué puedo ayudarte?",
	Markers: []string{
		"buenos días",
		"buenos dias",
		"buenas tardes",
		"buenas noches",
		"soy el asistente",
	},
	Reprompt:         "¿En qué puedo ayudarte?",
	NotUnderstood:    "No recibí tu respuesta.",
	Transfer:         "Te voy a conectar con un ejecutivo.",
	TechnicalFailure: "Lo siento, estoy teniendo dificultades técnicas. ¿Podrías repetirlo?",
	InternalFault:    "Lo siento, ocurrió un problema inesperado.",
}

// English pack
var English = Phrases{
	Morning:        "Good morning",
	Afternoon:      "Good afternoon",
	Evening:        "Good evening",
	Exclaim:        "%s!",
	Identification: "I am the assistant for %s. How can I help you?",
	Markers: []string{
		"good morning",
		"good afternoon",
		"good evening",
		"i am the assistant",
		"i'm the assistant",
	},
	Reprompt:         "How can I help you?",
	NotUnderstood:    "I didn't understand you.",
	Transfer:         "I'll connect you with an agent.",
	TechnicalFailure: "Sorry, I'm having technical difficulties. Could you say that again?",
	InternalFault:    "Sorry, something unexpected happened.",
}

// ForLocale returns the pack for a locale tag, falling back to Spanish
func ForLocale(locale string) (Phrases, error) {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "", "es", "es-mx", "es-cl":
		return Spanish, nil
	case "en", "en-us", "en-gb":
		return English, nil
	default:
		return Spanish, fmt.Errorf("unsupported greeting locale %q", locale)
	}
}

// WithMarkers returns a copy of p with extra greeting markers appended
func (p Phrases) WithMarkers(extra ...string) Phrases {
	markers := make([]string, 0, len(p.Markers)+len(extra))
	markers = append(markers, p.Markers...)
	for _, m := range extra {
		if m = strings.TrimSpace(m); m != "" {
			markers = append(markers, m)
		}
	}
	p.Markers = markers
	return p
}
