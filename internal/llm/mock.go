package llm

import (
	"context"
	"fmt"

	"collection-agent-go/internal/types"
)

// Mock is a deterministic offline generator, used with USE_MOCK_LLM=true
// and in demos. It greets per the profile's tone, acknowledges a few
// turns, then produces the closing line.
type Mock struct {
	Profile types.ClientProfile

	// CloseAfter is the number of agent replies before the closing line
	// is produced. Zero means the default of 3.
	CloseAfter int
}

func (m *Mock) Generate(_ context.Context, req Request) (string, error) {
	if req.UserText == "" && len(req.History) == 0 {
		return m.greeting(), nil
	}

	closeAfter := m.CloseAfter
	if closeAfter <= 0 {
		closeAfter = 3
	}

	replies := 0
	for _, turn := range req.History {
		if turn.Speaker == types.SpeakerAgent {
			replies++
		}
	}
	// the greeting does not count toward the reply budget
	if replies > 0 {
		replies--
	}
	if replies >= closeAfter {
		return m.Profile.ClosingLine, nil
	}
	return fmt.Sprintf("Je comprends. Nous pouvons organiser %s ou un plan de paiement, selon ce qui vous convient.", m.Profile.PaymentLabel), nil
}

func (m *Mock) greeting() string {
	switch m.Profile.Tone {
	case types.ToneFormal:
		return fmt.Sprintf("Bonjour. Je vous appelle de la part de %s. Comment puis-je vous aider aujourd'hui?", m.Profile.ClientName)
	case types.ToneCollaborative:
		return fmt.Sprintf("Bonjour. Je suis avec %s. Comment puis-je vous aider?", m.Profile.ClientName)
	default:
		return fmt.Sprintf("Bonjour, c'est %s. Comment puis-je vous aider?", m.Profile.ClientName)
	}
}
