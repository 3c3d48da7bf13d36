package replyfilter

import (
	"strings"
)

// Filter drops repeated greetings from dialogue engine replies.
// Marker matching is a case-insensitive substring test.
type Filter struct {
	markers []string
}

// Result is the outcome of filtering one turn
type Result struct {
	// Text is the speakable reply: kept fragments trimmed, consecutive
	// duplicates collapsed, joined by single spaces.
	Text string

	Kept    []string
	Dropped []string

	// GreetingConsumed is set when a greeting fragment was kept because the
	// session had not greeted yet. The caller must mark the session.
	GreetingConsumed bool

	// FellBack is set when everything was filtered out and the first
	// fragment received was restored.
	FellBack bool
}

// New creates a filter for the given greeting markers
func New(markers []string) *Filter {
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			lowered = append(lowered, m)
		}
	}
	return &Filter{markers: lowered}
}

// IsGreeting reports whether a fragment contains any greeting marker
func (f *Filter) IsGreeting(fragment string) bool {
	lower := strings.ToLower(fragment)
	for _, m := range f.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Apply filters one turn's fragments given the session's greeting flag
func (f *Filter) Apply(fragments []string, greetingIssued bool) Result {
	var res Result

	for _, raw := range fragments {
		frag := strings.TrimSpace(raw)
		if frag == "" {
			continue
		}

		if f.IsGreeting(frag) {
			if !greetingIssued && !res.GreetingConsumed {
				res.GreetingConsumed = true
				res.Kept = append(res.Kept, frag)
				continue
			}
			res.Dropped = append(res.Dropped, frag)
			continue
		}

		res.Kept = append(res.Kept, frag)
	}

	if len(res.Kept) == 0 && len(fragments) > 0 {
		res.FellBack = true
		res.Kept = []string{strings.TrimSpace(fragments[0])}
	}

	res.Text = Join(res.Kept)
	return res
}

// Join trims fragments, collapses consecutive exact duplicates and joins with spaces
func Join(fragments []string) string {
	out := make([]string, 0, len(fragments))
	for _, frag := range fragments {
		frag = strings.TrimSpace(frag)
		if frag == "" {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == frag {
			continue
		}
		out = append(out, frag)
	}
	return strings.Join(out, " ")
}
