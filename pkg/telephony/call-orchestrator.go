package telephony

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/birddigital/voice-session-gateway/pkg/dialogue"
	"github.com/birddigital/voice-session-gateway/pkg/directory"
	"github.com/birddigital/voice-session-gateway/pkg/greeting"
	"github.com/birddigital/voice-session-gateway/pkg/metrics"
	"github.com/birddigital/voice-session-gateway/pkg/monitor"
	"github.com/birddigital/voice-session-gateway/pkg/phone"
	"github.com/birddigital/voice-session-gateway/pkg/replyfilter"
	"github.com/birddigital/voice-session-gateway/pkg/session"
	"github.com/birddigital/voice-session-gateway/pkg/twiml"
)

// ============================================
// CALL ORCHESTRATOR
// Per-call state machine: NEW -> AWAITING_SPEECH -> TERMINATED
// ============================================

// Webhook paths; callbacks embed call_sid so later events find the session
const (
	PathIncomingCall = "/webhook/twilio/voice"
	PathSpeech       = "/webhook/twilio/speech"
	PathFallback     = "/webhook/twilio/fallback"
	PathStatus       = "/webhook/twilio/status"
)

// No-input handling modes
const (
	NoInputTransfer = "transfer"
	NoInputReprompt = "reprompt"
)

// Settings tunes the orchestrator
type Settings struct {
	Voice         twiml.Voice
	SpeechTimeout string

	// WebhookBaseURL prefixes callback paths; relative paths when empty
	WebhookBaseURL string

	// FallbackNumber is the human operator; empty disables transfers
	FallbackNumber      string
	NoInputAction       string
	NoInputMaxReprompts int

	DirectoryTimeout time.Duration
	DialogueTimeout  time.Duration
}

// IncomingCall is the first event of a call
type IncomingCall struct {
	CallID string
	From   string
	To     string
}

// SpeechResult carries one recognized caller utterance
type SpeechResult struct {
	CallID     string
	From       string
	Text       string
	Confidence float64
}

// StatusChange is a call lifecycle notification
type StatusChange struct {
	CallID   string
	Status   string
	Duration string
}

// CallOrchestrator drives sessions, identity, greeting and dialogue turns
type CallOrchestrator struct {
	store     session.Store
	directory directory.Directory
	dialogue  dialogue.Gateway
	composer  *greeting.Composer
	phrases   greeting.Phrases
	filter    *replyfilter.Filter
	monitor   monitor.Publisher
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	settings  Settings
}

// NewCallOrchestrator wires the collaborators. A nil publisher disables monitoring.
func NewCallOrchestrator(
	store session.Store,
	dir directory.Directory,
	gateway dialogue.Gateway,
	composer *greeting.Composer,
	pub monitor.Publisher,
	m *metrics.Metrics,
	logger *logrus.Logger,
	settings Settings,
) *CallOrchestrator {
	if dir == nil {
		dir = directory.Disabled{}
	}
	if pub == nil {
		pub = monitor.Nop{}
	}
	if settings.NoInputAction == "" {
		settings.NoInputAction = NoInputTransfer
	}

	phrases := composer.Phrases()
	return &CallOrchestrator{
		store:     store,
		directory: dir,
		dialogue:  gateway,
		composer:  composer,
		phrases:   phrases,
		filter:    replyfilter.New(phrases.Markers),
		monitor:   pub,
		metrics:   m,
		logger:    logger,
		settings:  settings,
	}
}

func (o *CallOrchestrator) log(callID string) *logrus.Entry {
	return o.logger.WithFields(logrus.Fields{
		"component": "CallOrchestrator",
		"call_sid":  callID,
	})
}

// ============================================
// STATE TRANSITIONS
// ============================================

// HandleIncomingCall creates the session, resolves the caller and greets once
func (o *CallOrchestrator) HandleIncomingCall(ctx context.Context, ev IncomingCall) (*twiml.Response, error) {
	sess, created, err := o.store.GetOrCreate(ctx, ev.CallID)
	if err != nil {
		return nil, err
	}
	if err := o.store.SetCallerPhone(ctx, ev.CallID, ev.From); err != nil {
		return nil, err
	}

	// Provider retried the incoming-call webhook after we already greeted
	if sess.GreetingIssued {
		o.log(ev.CallID).Info("Duplicate incoming-call event, re-prompting without greeting")
		return o.listen(ev.CallID, o.phrases.Reprompt), nil
	}

	callerPhone := sess.CallerPhone
	if callerPhone == "" {
		callerPhone = ev.From
	}

	o.log(ev.CallID).WithFields(logrus.Fields{
		"from":    ev.From,
		"to":      ev.To,
		"created": created,
	}).Info("Incoming call")

	customer := sess.Customer
	if customer == nil {
		customer = o.resolveCustomer(ctx, ev.CallID, callerPhone)
	}

	var name string
	if customer != nil {
		name = customer.Name
	}
	text := o.composer.ComposeNow(name)

	transitioned, err := o.store.MarkGreetingIssued(ctx, ev.CallID)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		// A concurrent delivery of this event greeted first
		text = o.phrases.Reprompt
	}
	if err := o.store.SetState(ctx, ev.CallID, session.StateAwaitingSpeech); err != nil {
		return nil, err
	}

	event := monitor.CallEvent{Kind: monitor.EventGreeting, CallID: ev.CallID, Caller: callerPhone, Reply: text}
	if customer != nil {
		event.CustomerID = customer.ID
	}
	o.monitor.Publish(event)

	return o.listen(ev.CallID, text), nil
}

// HandleSpeech forwards an utterance to the dialogue engine and speaks the filtered reply
func (o *CallOrchestrator) HandleSpeech(ctx context.Context, ev SpeechResult) (*twiml.Response, error) {
	if strings.TrimSpace(ev.Text) == "" {
		return o.HandleNoInput(ctx, ev.CallID)
	}

	sess, created, err := o.store.GetOrCreate(ctx, ev.CallID)
	if err != nil {
		return nil, err
	}
	if err := o.store.SetCallerPhone(ctx, ev.CallID, ev.From); err != nil {
		return nil, err
	}
	if sess.State != session.StateAwaitingSpeech {
		if err := o.store.SetState(ctx, ev.CallID, session.StateAwaitingSpeech); err != nil {
			return nil, err
		}
	}

	o.log(ev.CallID).WithFields(logrus.Fields{
		"speech":      ev.Text,
		"confidence":  ev.Confidence,
		"new_session": created,
	}).Info("Speech input received")

	fragments, err := o.sendToDialogue(ctx, ev.CallID, ev.Text, sess.Customer.Metadata())
	if err != nil {
		o.monitor.Publish(monitor.CallEvent{
			Kind:       monitor.EventFallback,
			CallID:     ev.CallID,
			Utterance:  ev.Text,
			Confidence: ev.Confidence,
			Reply:      o.phrases.TechnicalFailure,
		})
		return o.listen(ev.CallID, o.phrases.TechnicalFailure), nil
	}

	result := o.filter.Apply(fragments, sess.GreetingIssued)
	if result.GreetingConsumed {
		transitioned, err := o.store.MarkGreetingIssued(ctx, ev.CallID)
		if err != nil {
			return nil, err
		}
		if !transitioned {
			// Someone else greeted between our read and our write
			result = o.filter.Apply(fragments, true)
		}
	}

	if n := len(result.Dropped); n > 0 {
		o.metrics.GreetingFragmentsDropped.Add(float64(n))
		o.log(ev.CallID).WithField("dropped", result.Dropped).Debug("Dropped repeated greeting fragments")
	}
	if result.FellBack {
		o.log(ev.CallID).Debug("All fragments filtered, speaking first fragment unfiltered")
	}

	o.monitor.Publish(monitor.CallEvent{
		Kind:       monitor.EventTurn,
		CallID:     ev.CallID,
		Utterance:  ev.Text,
		Confidence: ev.Confidence,
		Reply:      result.Text,
	})

	return o.listen(ev.CallID, result.Text), nil
}

// HandleNoInput apologizes and either re-listens or hands off to a human
func (o *CallOrchestrator) HandleNoInput(ctx context.Context, callID string) (*twiml.Response, error) {
	if _, _, err := o.store.GetOrCreate(ctx, callID); err != nil {
		return nil, err
	}
	count, err := o.store.IncrementNoInput(ctx, callID)
	if err != nil {
		return nil, err
	}

	transfer := o.settings.FallbackNumber != "" &&
		(o.settings.NoInputAction == NoInputTransfer || count > o.settings.NoInputMaxReprompts)

	o.log(callID).WithFields(logrus.Fields{
		"no_input_count": count,
		"transfer":       transfer,
	}).Info("No input from caller")

	if transfer {
		o.monitor.Publish(monitor.CallEvent{Kind: monitor.EventTransfer, CallID: callID, Reply: o.phrases.Transfer})
		return o.transfer(o.phrases.NotUnderstood + " " + o.phrases.Transfer), nil
	}

	text := o.phrases.NotUnderstood + " " + o.phrases.Reprompt
	o.monitor.Publish(monitor.CallEvent{Kind: monitor.EventFallback, CallID: callID, Reply: text})
	return o.listen(callID, text), nil
}

// HandleStatus evicts the session on terminal statuses; everything else is logged
func (o *CallOrchestrator) HandleStatus(ctx context.Context, ev StatusChange) error {
	entry := o.log(ev.CallID).WithFields(logrus.Fields{
		"status":   ev.Status,
		"duration": ev.Duration,
	})

	switch ev.Status {
	case "completed", "failed":
		if err := o.store.Evict(ctx, ev.CallID); err != nil {
			return err
		}
		if ev.Status == "failed" {
			entry.Error("Call failed, session evicted")
		} else {
			entry.Info("Call completed, session evicted")
		}
		o.monitor.Publish(monitor.CallEvent{Kind: monitor.EventStatus, CallID: ev.CallID, Status: ev.Status})
	case "busy":
		entry.Warn("Call busy")
	default:
		entry.Info("Call status update")
	}
	return nil
}

// FaultResponse is spoken when a handler fails unexpectedly
func (o *CallOrchestrator) FaultResponse(callID string) *twiml.Response {
	if o.settings.FallbackNumber != "" {
		return o.transfer(o.phrases.InternalFault + " " + o.phrases.Transfer)
	}
	return o.listen(callID, o.phrases.InternalFault+" "+o.phrases.Reprompt)
}

// ============================================
// COLLABORATORS
// ============================================

// resolveCustomer never fails the turn: errors degrade to an anonymous caller
func (o *CallOrchestrator) resolveCustomer(ctx context.Context, callID, rawPhone string) *directory.Customer {
	candidates := phone.Candidates(rawPhone)
	if len(candidates) == 0 {
		o.metrics.DirectoryLookups.WithLabelValues("not_found").Inc()
		o.log(callID).Warn("No caller number, treating caller as anonymous")
		return nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, o.settings.DirectoryTimeout)
	defer cancel()

	customer, err := o.directory.Lookup(lookupCtx, candidates)
	if err != nil {
		o.metrics.DirectoryLookups.WithLabelValues("error").Inc()
		o.log(callID).WithError(err).WithField("candidates", candidates).Warn("Customer directory unavailable, treating caller as anonymous")
		return nil
	}
	if customer == nil {
		o.metrics.DirectoryLookups.WithLabelValues("not_found").Inc()
		o.log(callID).WithField("candidates", candidates).Warn("Caller not found in customer directory")
		return nil
	}

	o.metrics.DirectoryLookups.WithLabelValues("found").Inc()
	o.log(callID).WithField("customer_id", customer.ID).Info("Caller identified")

	if err := o.store.SetCustomer(ctx, callID, customer); err != nil {
		o.log(callID).WithError(err).Warn("Failed to cache customer on session")
	}
	return customer
}

func (o *CallOrchestrator) sendToDialogue(ctx context.Context, callID, text string, metadata map[string]string) ([]string, error) {
	dialogueCtx, cancel := context.WithTimeout(ctx, o.settings.DialogueTimeout)
	defer cancel()

	start := time.Now()
	fragments, err := o.dialogue.Send(dialogueCtx, callID, text, metadata)
	o.metrics.DialogueRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		reason := dialogueFailureReason(err)
		o.metrics.DialogueFailures.WithLabelValues(reason).Inc()
		o.log(callID).WithError(err).WithField("reason", reason).Warn("Dialogue gateway failed, speaking apology")
		return nil, err
	}

	o.log(callID).WithField("fragments", len(fragments)).Debug("Dialogue engine replied")
	return fragments, nil
}

func dialogueFailureReason(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.Is(err, dialogue.ErrEmptyReply):
		return "empty"
	case errors.Is(err, dialogue.ErrUpstreamStatus):
		return "status"
	default:
		return "transport"
	}
}

// ============================================
// RESPONSE DOCUMENTS
// ============================================

func (o *CallOrchestrator) callbackURL(path, callID string) string {
	return o.settings.WebhookBaseURL + path + "?call_sid=" + url.QueryEscape(callID)
}

// listen speaks text inside a Gather and falls through to the no-input webhook
func (o *CallOrchestrator) listen(callID, text string) *twiml.Response {
	return twiml.NewResponse().
		Gather(twiml.Gather{
			Action:        o.callbackURL(PathSpeech, callID),
			Language:      o.settings.Voice.Language,
			SpeechTimeout: o.settings.SpeechTimeout,
			Say:           []twiml.Say{twiml.NewSay(text, o.settings.Voice)},
		}).
		Redirect(o.callbackURL(PathFallback, callID))
}

func (o *CallOrchestrator) transfer(text string) *twiml.Response {
	return twiml.NewResponse().
		Say(text, o.settings.Voice).
		Dial(o.settings.FallbackNumber)
}
