// Package session implements the turn-taking state machine over one
// two-party collection dialogue. A session owns its history exclusively
// and is driven by a single caller; it is not safe for concurrent use.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"collection-agent-go/internal/llm"
	"collection-agent-go/internal/logger"
	"collection-agent-go/internal/prompt"
	"collection-agent-go/internal/types"
)

// State of the conversation. Transitions are Greeting -> Active -> Closed;
// nothing is reachable from Closed.
type State string

const (
	StateGreeting State = "greeting"
	StateActive   State = "active"
	StateClosed   State = "closed"
)

var (
	// ErrClosed is returned by Respond once the session is closed.
	ErrClosed = errors.New("session closed")
	// ErrGreeted is returned by Greet after the conversation has advanced.
	ErrGreeted = errors.New("session already past greeting")
)

// robotProbeInstruction is appended to the system prompt for the request
// that carries a detected identity probe.
const robotProbeInstruction = "[CONSIGNE] Le client demande si vous êtes un robot. " +
	"Répondez honnêtement, puis ramenez calmement la conversation vers le règlement du dossier."

// turns kept when the single retry after a transient failure shortens the
// request context
const shortRetryTurns = 4

// Options tune one session. Zero values fall back to sane defaults.
type Options struct {
	MaxHistory     int
	ClosingWords   []string
	HandoffPhrases []string
}

// Session drives one conversation for one client profile.
type Session struct {
	id           string
	profile      types.ClientProfile
	systemPrompt string
	gen          llm.Generator
	opts         Options

	state    State
	history  []types.Turn
	greeting string
	handoff  bool

	log *logrus.Entry
}

// New creates a session in the Greeting state. The profile is shared and
// read-only; the history is owned by this session alone.
func New(profile types.ClientProfile, gen llm.Generator, opts Options) *Session {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 10
	}
	if len(opts.ClosingWords) == 0 {
		opts.ClosingWords = defaultClosingWords
	}
	id := uuid.New().String()
	return &Session{
		id:           id,
		profile:      profile,
		systemPrompt: prompt.Build(profile),
		gen:          gen,
		opts:         opts,
		state:        StateGreeting,
		log: logger.New().
			WithField("component", "session").
			WithField("session_id", id).
			WithField("client", profile.ClientName),
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) State() State   { return s.state }
func (s *Session) IsClosed() bool { return s.state == StateClosed }

// Handoff reports whether the agent signaled an explicit human handoff.
func (s *Session) Handoff() bool { return s.handoff }

// History returns a copy of the transcript so far.
func (s *Session) History() []types.Turn {
	out := make([]types.Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Close marks the session closed on behalf of the caller. Monotonic: a
// closed session never reopens.
func (s *Session) Close() {
	if s.state != StateClosed {
		s.log.Info("session closed by caller")
		s.state = StateClosed
	}
}

// Greet produces the opening agent turn from the backend, seeded with the
// system prompt only. Idempotent while the session is still greeting;
// calling it after the first user turn is a usage error.
func (s *Session) Greet(ctx context.Context) (string, error) {
	if s.state != StateGreeting {
		return "", ErrGreeted
	}
	if s.greeting != "" {
		return s.greeting, nil
	}

	text, err := s.gen.Generate(ctx, llm.Request{SystemPrompt: s.systemPrompt})
	if err != nil {
		return "", fmt.Errorf("greet: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("greet: %w", &llm.GenerationError{Message: "empty generation"})
	}

	s.greeting = text
	s.history = append(s.history, types.Turn{Speaker: types.SpeakerAgent, Text: text, Timestamp: time.Now()})
	s.log.Info("greeting generated")
	return text, nil
}

// Respond sends the full prompt context plus the new user turn to the
// backend, appends both turns to the history, and classifies the reply
// for closing and handoff signals. A transient backend failure gets
// exactly one retry with a shortened context before the error surfaces.
func (s *Session) Respond(ctx context.Context, userText string) (string, error) {
	if s.state == StateClosed {
		return "", ErrClosed
	}
	if s.state == StateGreeting {
		s.state = StateActive
	}

	sys := s.systemPrompt
	if IsRobotProbe(userText) {
		s.log.Debug("robot probe detected, tagging outbound request")
		sys += "\n\n" + robotProbeInstruction
	}

	hist := s.History()
	reply, err := s.gen.Generate(ctx, llm.Request{SystemPrompt: sys, History: hist, UserText: userText})
	if err != nil && llm.IsTransient(err) {
		s.log.WithField("error", err.Error()).Warn("transient generation failure, retrying with shortened context")
		short := hist
		if len(short) > shortRetryTurns {
			short = short[len(short)-shortRetryTurns:]
		}
		reply, err = s.gen.Generate(ctx, llm.Request{SystemPrompt: sys, History: short, UserText: userText})
	}
	if err != nil {
		return "", fmt.Errorf("respond: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("respond: %w", &llm.GenerationError{Message: "empty generation"})
	}

	now := time.Now()
	s.history = append(s.history,
		types.Turn{Speaker: types.SpeakerUser, Text: userText, Timestamp: now},
		types.Turn{Speaker: types.SpeakerAgent, Text: reply, Timestamp: now},
	)
	s.truncate()

	if s.detectHandoff(reply) {
		s.log.Info("handoff signal detected")
		s.handoff = true
	}
	if s.detectClosing(reply) {
		s.log.Info("closing detected, session closed")
		s.state = StateClosed
	}
	return reply, nil
}

// truncate bounds the request context: oldest turns are dropped first,
// keeping the most recent MaxHistory. The system prompt lives outside the
// history and is never dropped.
func (s *Session) truncate() {
	if len(s.history) <= s.opts.MaxHistory {
		return
	}
	s.history = s.history[len(s.history)-s.opts.MaxHistory:]
}
