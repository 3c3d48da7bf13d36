package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/birddigital/voice-session-gateway/pkg/metrics"
	"github.com/birddigital/voice-session-gateway/pkg/session"
	"github.com/birddigital/voice-session-gateway/pkg/twiml"
)

// ============================================
// TELEPHONY WEBHOOK HANDLERS
// Provider-facing HTTP endpoints; every request gets a TwiML document back
// ============================================

// BadRequestError marks a webhook that is missing required fields
type BadRequestError struct {
	Field  string
	Reason string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("bad webhook field %s: %s", e.Field, e.Reason)
}

func missing(field string) error {
	return &BadRequestError{Field: field, Reason: "required"}
}

// CallHandlers adapts provider webhooks to the orchestrator
type CallHandlers struct {
	orchestrator *CallOrchestrator
	store        session.Store
	metrics      *metrics.Metrics
	logger       *logrus.Logger
}

// NewCallHandlers creates a new call handlers instance
func NewCallHandlers(orchestrator *CallOrchestrator, store session.Store, m *metrics.Metrics, logger *logrus.Logger) *CallHandlers {
	return &CallHandlers{
		orchestrator: orchestrator,
		store:        store,
		metrics:      m,
		logger:       logger,
	}
}

// ============================================
// HTTP HANDLERS
// ============================================

// HandleIncomingCall greets the caller and starts listening
func (h *CallHandlers) HandleIncomingCall(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "voice", func(ctx context.Context) (*twiml.Response, error) {
		ev := IncomingCall{
			CallID: r.PostFormValue("CallSid"),
			From:   r.PostFormValue("From"),
			To:     r.PostFormValue("To"),
		}
		switch {
		case ev.CallID == "":
			return nil, missing("CallSid")
		case ev.From == "":
			return nil, missing("From")
		case ev.To == "":
			return nil, missing("To")
		}

		doc, err := h.orchestrator.HandleIncomingCall(ctx, ev)
		h.refreshSessionGauge(ctx)
		return doc, err
	})
}

// HandleSpeech processes one speech-recognition result
func (h *CallHandlers) HandleSpeech(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "speech", func(ctx context.Context) (*twiml.Response, error) {
		callID := callIDFrom(r)
		if callID == "" {
			return nil, missing("call_sid")
		}
		confidence, err := parseConfidence(r.PostFormValue("Confidence"))
		if err != nil {
			return nil, err
		}

		return h.orchestrator.HandleSpeech(ctx, SpeechResult{
			CallID:     callID,
			From:       r.PostFormValue("From"),
			Text:       r.PostFormValue("SpeechResult"),
			Confidence: confidence,
		})
	})
}

// HandleFallback runs when a Gather ends without speech
func (h *CallHandlers) HandleFallback(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "fallback", func(ctx context.Context) (*twiml.Response, error) {
		callID := callIDFrom(r)
		if callID == "" {
			return nil, missing("call_sid")
		}
		return h.orchestrator.HandleNoInput(ctx, callID)
	})
}

// HandleCallStatus acknowledges lifecycle callbacks with an empty document
func (h *CallHandlers) HandleCallStatus(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "status", func(ctx context.Context) (*twiml.Response, error) {
		ev := StatusChange{
			CallID:   r.PostFormValue("CallSid"),
			Status:   strings.ToLower(r.PostFormValue("CallStatus")),
			Duration: r.PostFormValue("CallDuration"),
		}
		switch {
		case ev.CallID == "":
			return nil, missing("CallSid")
		case ev.Status == "":
			return nil, missing("CallStatus")
		}

		if err := h.orchestrator.HandleStatus(ctx, ev); err != nil {
			// Nothing useful can be spoken on a status callback
			h.logger.WithError(err).WithFields(logrus.Fields{
				"component": "CallHandlers",
				"call_sid":  ev.CallID,
			}).Error("Failed to process call status")
		}
		h.refreshSessionGauge(ctx)
		return twiml.NewResponse(), nil
	})
}

// ============================================
// REQUEST PLUMBING
// ============================================

type handlerFunc func(ctx context.Context) (*twiml.Response, error)

// serve parses the form, runs fn and always answers with a TwiML document
// unless the request itself is malformed.
func (h *CallHandlers) serve(w http.ResponseWriter, r *http.Request, endpoint string, fn handlerFunc) {
	if err := r.ParseForm(); err != nil {
		h.metrics.WebhookEvents.WithLabelValues(endpoint, "bad_request").Inc()
		http.Error(w, "Malformed form body", http.StatusBadRequest)
		return
	}

	log := h.logger.WithFields(logrus.Fields{
		"component": "CallHandlers",
		"endpoint":  endpoint,
		"call_sid":  callIDFrom(r),
	})

	doc, err := h.run(r.Context(), fn)

	var badRequest *BadRequestError
	switch {
	case errors.As(err, &badRequest):
		log.WithError(err).Warn("Rejected malformed webhook")
		h.metrics.WebhookEvents.WithLabelValues(endpoint, "bad_request").Inc()
		http.Error(w, badRequest.Error(), http.StatusBadRequest)
		return
	case err != nil:
		log.WithError(err).Error("Webhook handling failed, speaking apology")
		h.metrics.WebhookEvents.WithLabelValues(endpoint, "fault").Inc()
		doc = h.orchestrator.FaultResponse(callIDFrom(r))
	default:
		h.metrics.WebhookEvents.WithLabelValues(endpoint, "ok").Inc()
	}

	if err := doc.WriteHTTP(w); err != nil {
		log.WithError(err).Error("Failed to write TwiML")
	}
}

// run converts panics into errors so the caller still gets a document
func (h *CallHandlers) run(ctx context.Context, fn handlerFunc) (doc *twiml.Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			doc, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx)
}

func (h *CallHandlers) refreshSessionGauge(ctx context.Context) {
	n, err := h.store.Count(ctx)
	if err != nil {
		h.logger.WithError(err).WithField("component", "CallHandlers").Debug("Session count unavailable")
		return
	}
	h.metrics.ActiveSessions.Set(float64(n))
}

// callIDFrom prefers the call_sid embedded in our callback URL
func callIDFrom(r *http.Request) string {
	if id := r.URL.Query().Get("call_sid"); id != "" {
		return id
	}
	return r.PostFormValue("CallSid")
}

// parseConfidence treats an absent value as zero
func parseConfidence(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &BadRequestError{Field: "Confidence", Reason: "not a number"}
	}
	return value, nil
}

// ============================================
// ROUTE REGISTRATION
// ============================================

// RegisterRoutes registers all webhook routes
func (h *CallHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(PathIncomingCall, h.HandleIncomingCall).Methods(http.MethodPost)
	router.HandleFunc(PathSpeech, h.HandleSpeech).Methods(http.MethodPost)
	router.HandleFunc(PathFallback, h.HandleFallback).Methods(http.MethodPost)
	router.HandleFunc(PathStatus, h.HandleCallStatus).Methods(http.MethodPost)

	h.logger.WithField("component", "CallHandlers").Info("Registered telephony webhook routes")
}
