package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collection-agent-go/internal/llm"
	"collection-agent-go/internal/types"
)

var testProfile = types.ClientProfile{
	ClientName:     "Crédit Lyonnais Recouvrement",
	Tone:           types.ToneProfessional,
	FormalityLevel: types.FormalityMedium,
	Phrasing:       types.PhrasingDirect,
	PaymentLabel:   "le règlement",
	ClosingLine:    "Merci pour votre temps et bonne journée.",
}

// stubGen records every request and answers via fn.
type stubGen struct {
	mu    sync.Mutex
	calls []llm.Request
	fn    func(llm.Request) (string, error)
}

func (s *stubGen) Generate(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	return s.fn(req)
}

func (s *stubGen) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubGen) lastCall() llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}

func neutralGen() *stubGen {
	return &stubGen{fn: func(req llm.Request) (string, error) {
		if req.UserText == "" {
			return "Bonjour, c'est votre conseiller. Comment puis-je vous aider?", nil
		}
		return "Je comprends votre situation. Pouvez-vous m'en dire plus?", nil
	}}
}

func TestGreetIdempotentInGreetingState(t *testing.T) {
	gen := neutralGen()
	s := New(testProfile, gen, Options{})

	first, err := s.Greet(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := s.Greet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, gen.callCount(), "cached greeting must not hit the backend again")
	assert.Equal(t, StateGreeting, s.State())
}

func TestGreetAfterFirstTurnIsUsageError(t *testing.T) {
	gen := neutralGen()
	s := New(testProfile, gen, Options{})

	_, err := s.Greet(context.Background())
	require.NoError(t, err)
	_, err = s.Respond(context.Background(), "Bonjour.")
	require.NoError(t, err)

	_, err = s.Greet(context.Background())
	assert.ErrorIs(t, err, ErrGreeted)
}

func TestRespondAdvancesGreetingToActive(t *testing.T) {
	s := New(testProfile, neutralGen(), Options{})
	_, err := s.Respond(context.Background(), "Bonjour.")
	require.NoError(t, err)
	assert.Equal(t, StateActive, s.State())
	assert.False(t, s.IsClosed())
}

func TestClosingLineClosesSession(t *testing.T) {
	gen := &stubGen{fn: func(req llm.Request) (string, error) {
		return testProfile.ClosingLine, nil
	}}
	s := New(testProfile, gen, Options{})

	_, err := s.Respond(context.Background(), "Je peux payer immédiatement.")
	require.NoError(t, err)
	assert.True(t, s.IsClosed())

	// no transition leaves Closed
	_, err = s.Respond(context.Background(), "Et maintenant?")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, StateClosed, s.State())
}

func TestParaphrasedClosingLineCloses(t *testing.T) {
	gen := &stubGen{fn: func(req llm.Request) (string, error) {
		return "Je vous remercie. Bonne journée et merci pour votre confiance, votre temps compte.", nil
	}}
	s := New(testProfile, gen, Options{})

	_, err := s.Respond(context.Background(), "C'est réglé.")
	require.NoError(t, err)
	assert.True(t, s.IsClosed(), "word overlap with the closing line should close")
}

func TestCallerCloseIsMonotonic(t *testing.T) {
	s := New(testProfile, neutralGen(), Options{})
	s.Close()
	assert.True(t, s.IsClosed())
	s.Close()
	assert.True(t, s.IsClosed())

	_, err := s.Respond(context.Background(), "Bonjour.")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTransientFailureRetriesOnceWithShortenedContext(t *testing.T) {
	failNext := false
	var failedOnce bool
	gen := &stubGen{}
	gen.fn = func(req llm.Request) (string, error) {
		if failNext && !failedOnce {
			failedOnce = true
			return "", &llm.GenerationError{Transient: true, Message: "rate limited"}
		}
		if req.UserText == "" {
			return "Bonjour, comment puis-je vous aider?", nil
		}
		return "Je comprends. Pouvons-nous convenir d'une date de paiement?", nil
	}

	s := New(testProfile, gen, Options{MaxHistory: 20})
	ctx := context.Background()
	_, err := s.Greet(ctx)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.Respond(ctx, fmt.Sprintf("Message numéro %d.", i))
		require.NoError(t, err)
	}
	// greeting + 3 exchanges = 7 turns of context
	require.Len(t, s.History(), 7)

	before := gen.callCount()
	failNext = true
	reply, err := s.Respond(ctx, "Je peux payer demain.")
	require.NoError(t, err, "one transient failure must be absorbed by the retry")
	require.NotEmpty(t, reply)

	assert.Equal(t, before+2, gen.callCount(), "exactly one retry")
	assert.Len(t, gen.lastCall().History, shortRetryTurns, "retry shortens the context")
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	gen := &stubGen{fn: func(req llm.Request) (string, error) {
		return "", &llm.GenerationError{Transient: false, Message: "bad request"}
	}}
	s := New(testProfile, gen, Options{})

	_, err := s.Respond(context.Background(), "Bonjour.")
	require.Error(t, err)
	assert.Equal(t, 1, gen.callCount())

	var ge *llm.GenerationError
	require.True(t, errors.As(err, &ge))
	assert.False(t, ge.Transient)
}

func TestSecondTransientFailureSurfaces(t *testing.T) {
	gen := &stubGen{fn: func(req llm.Request) (string, error) {
		return "", &llm.GenerationError{Transient: true, Message: "still down"}
	}}
	s := New(testProfile, gen, Options{})

	_, err := s.Respond(context.Background(), "Bonjour.")
	require.Error(t, err)
	assert.Equal(t, 2, gen.callCount(), "one retry, then surface")
	assert.True(t, llm.IsTransient(err))
}

func TestEmptyReplyIsGenerationError(t *testing.T) {
	gen := &stubGen{fn: func(req llm.Request) (string, error) { return "   ", nil }}
	s := New(testProfile, gen, Options{})

	_, err := s.Respond(context.Background(), "Bonjour.")
	var ge *llm.GenerationError
	require.True(t, errors.As(err, &ge))
	assert.False(t, ge.Transient)
}

func TestTruncationKeepsMostRecentTurnsInOrder(t *testing.T) {
	s := New(testProfile, neutralGen(), Options{MaxHistory: 4})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Respond(ctx, fmt.Sprintf("Tour numéro %d.", i))
		require.NoError(t, err)
	}

	hist := s.History()
	require.Len(t, hist, 4)
	// most recent user/agent pairs, oldest first
	assert.Equal(t, types.SpeakerUser, hist[0].Speaker)
	assert.Equal(t, "Tour numéro 3.", hist[0].Text)
	assert.Equal(t, types.SpeakerAgent, hist[1].Speaker)
	assert.Equal(t, types.SpeakerUser, hist[2].Speaker)
	assert.Equal(t, "Tour numéro 4.", hist[2].Text)
	assert.Equal(t, types.SpeakerAgent, hist[3].Speaker)
}

func TestHistoryReturnsACopy(t *testing.T) {
	s := New(testProfile, neutralGen(), Options{})
	_, err := s.Respond(context.Background(), "Bonjour.")
	require.NoError(t, err)

	hist := s.History()
	hist[0].Text = "mutated"
	assert.NotEqual(t, "mutated", s.History()[0].Text)
}

func TestHandoffSignalDetected(t *testing.T) {
	gen := &stubGen{fn: func(req llm.Request) (string, error) {
		return "Je vais transférer votre dossier à un responsable humain qui vous recontactera.", nil
	}}
	s := New(testProfile, gen, Options{
		HandoffPhrases: []string{"transférer votre dossier à un responsable"},
	})

	_, err := s.Respond(context.Background(), "Je veux parler à un responsable.")
	require.NoError(t, err)
	assert.True(t, s.Handoff())
}

func TestNoHandoffWithoutConfiguredPhrases(t *testing.T) {
	gen := &stubGen{fn: func(req llm.Request) (string, error) {
		return "Je vais transférer votre dossier à un responsable humain.", nil
	}}
	s := New(testProfile, gen, Options{})

	_, err := s.Respond(context.Background(), "Je veux parler à un responsable.")
	require.NoError(t, err)
	assert.False(t, s.Handoff())
}
