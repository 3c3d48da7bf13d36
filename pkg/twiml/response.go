package twiml

import (
	"encoding/xml"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// ============================================
// TWIML GENERATION
// Response documents rendered by the telephony provider
// ============================================

// ContentType of rendered documents
const ContentType = "text/xml; charset=utf-8"

// Response represents the <Response> root. Verbs execute in order.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []interface{}
}

// Voice selects speech synthesis for <Say>
type Voice struct {
	Name     string
	Language string
	Rate     string // "1.0" means provider default
}

// Say represents the <Say> verb
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
	Prosody  *Prosody `xml:"prosody,omitempty"`
}

// Prosody is the SSML element used to change the speaking rate
type Prosody struct {
	Rate string `xml:"rate,attr"`
	Text string `xml:",chardata"`
}

// Gather represents the <Gather> verb listening for speech
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	Language      string   `xml:"language,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Say           []Say    `xml:"Say"`
}

// Redirect represents the <Redirect> verb
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr"`
	URL     string   `xml:",chardata"`
}

// Dial represents the <Dial> verb used for operator transfer
type Dial struct {
	XMLName xml.Name `xml:"Dial"`
	Number  string   `xml:",chardata"`
}

// Hangup represents the <Hangup> verb
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// NewResponse creates an empty document
func NewResponse() *Response {
	return &Response{}
}

// NewSay builds a <Say> with the configured voice
func NewSay(text string, voice Voice) Say {
	say := Say{
		Voice:    voice.Name,
		Language: voice.Language,
	}
	if rate := prosodyRate(voice.Rate); rate != "" {
		say.Prosody = &Prosody{Rate: rate, Text: text}
	} else {
		say.Text = text
	}
	return say
}

// Say appends spoken text
func (r *Response) Say(text string, voice Voice) *Response {
	r.Verbs = append(r.Verbs, NewSay(text, voice))
	return r
}

// Gather appends a speech listen instruction
func (r *Response) Gather(g Gather) *Response {
	if g.Input == "" {
		g.Input = "speech"
	}
	if g.Method == "" {
		g.Method = http.MethodPost
	}
	r.Verbs = append(r.Verbs, g)
	return r
}

// Redirect appends a redirect to another webhook
func (r *Response) Redirect(url string) *Response {
	r.Verbs = append(r.Verbs, Redirect{Method: http.MethodPost, URL: url})
	return r
}

// Dial appends a transfer to a phone number
func (r *Response) Dial(number string) *Response {
	r.Verbs = append(r.Verbs, Dial{Number: number})
	return r
}

// Hangup appends a hangup
func (r *Response) Hangup() *Response {
	r.Verbs = append(r.Verbs, Hangup{})
	return r
}

// Marshal renders the document with an XML header
func (r *Response) Marshal() ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TwiML: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// WriteHTTP writes the document as an HTTP 200 response
func (r *Response) WriteHTTP(w http.ResponseWriter) error {
	output, err := r.Marshal()
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(output)
	return err
}

// prosodyRate turns a speed multiplier like "0.9" into "90%".
// Empty, invalid and default (1.0) speeds produce no prosody element.
func prosodyRate(speed string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(speed), 64)
	if err != nil || f <= 0 || f == 1 {
		return ""
	}
	return fmt.Sprintf("%d%%", int(math.Round(f*100)))
}
