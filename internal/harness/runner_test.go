package harness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collection-agent-go/internal/aggregator"
	"collection-agent-go/internal/config"
	"collection-agent-go/internal/llm"
	"collection-agent-go/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Agent: config.AgentSettings{
			MaxHistory:   10,
			ClosingWords: config.DefaultClosingWords,
		},
		Clients: map[string]types.ClientProfile{
			"dell": {
				ClientName:     "Dell",
				Tone:           types.ToneFormal,
				FormalityLevel: types.FormalityHigh,
				Phrasing:       types.PhrasingConcise,
				PaymentLabel:   "le paiement",
				ClosingLine:    "Merci pour votre temps et bonne journée.",
			},
			"amazon": {
				ClientName:     "Amazon",
				Tone:           types.ToneProfessional,
				FormalityLevel: types.FormalityMedium,
				Phrasing:       types.PhrasingDirect,
				PaymentLabel:   "le règlement",
				ClosingLine:    "Merci de votre confiance, au revoir.",
			},
		},
	}
}

// scriptedGen greets, then replies via fn on every user turn.
type scriptedGen struct {
	mu    sync.Mutex
	calls int
	fn    func(profile types.ClientProfile, req llm.Request) (string, error)

	profile types.ClientProfile
}

func (g *scriptedGen) Generate(ctx context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if req.UserText == "" && len(req.History) == 0 {
		return "Bonjour, comment puis-je vous aider?", nil
	}
	return g.fn(g.profile, req)
}

func factoryOf(fn func(profile types.ClientProfile, req llm.Request) (string, error)) GeneratorFactory {
	return func(p types.ClientProfile) llm.Generator {
		return &scriptedGen{fn: fn, profile: p}
	}
}

func closeImmediately(p types.ClientProfile, _ llm.Request) (string, error) {
	return p.ClosingLine, nil
}

func neverClose(types.ClientProfile, llm.Request) (string, error) {
	return "Je comprends votre situation, continuons.", nil
}

var agreeToPay = types.ScenarioDefinition{
	Name:     "Client Agrees to Pay",
	Category: types.CategoryPositive,
	UserTurns: []string{
		"Bonjour.",
		"Oui, c'est moi qui suis responsable.",
		"Je peux payer immédiatement.",
	},
}

func TestScenarioPassesOnImmediateClose(t *testing.T) {
	cfg := testConfig()
	h := New(cfg, factoryOf(closeImmediately))

	res := h.RunScenario(context.Background(), "dell", cfg.Clients["dell"], agreeToPay, 1)

	assert.True(t, res.Passed)
	assert.Empty(t, res.FailureReason)
	assert.Len(t, res.ResponseTimes, 1, "closed after the first respond call")
	// greeting + one user/agent exchange
	require.Len(t, res.Transcript, 3)
	assert.Equal(t, types.SpeakerAgent, res.Transcript[0].Speaker)
	assert.Equal(t, "Bonjour.", res.Transcript[1].Text)
	assert.NotEmpty(t, res.RunID)
}

func TestScenarioFailsOnGenerationError(t *testing.T) {
	cfg := testConfig()
	h := New(cfg, factoryOf(func(types.ClientProfile, llm.Request) (string, error) {
		return "", &llm.GenerationError{Message: "backend rejected the prompt"}
	}))

	res := h.RunScenario(context.Background(), "dell", cfg.Clients["dell"], agreeToPay, 1)

	assert.False(t, res.Passed)
	assert.Equal(t, types.FailureGeneration, res.FailureReason)
	assert.Empty(t, res.ResponseTimes)
}

func TestScenarioFailsWithoutClosure(t *testing.T) {
	cfg := testConfig()
	h := New(cfg, factoryOf(neverClose))

	res := h.RunScenario(context.Background(), "dell", cfg.Clients["dell"], agreeToPay, 1)

	assert.False(t, res.Passed)
	assert.Equal(t, types.FailureNoClosure, res.FailureReason)
	assert.Len(t, res.ResponseTimes, len(agreeToPay.UserTurns), "every scripted turn ran")
}

func TestScenarioTimeout(t *testing.T) {
	cfg := testConfig()
	h := New(cfg, factoryOf(func(types.ClientProfile, llm.Request) (string, error) {
		time.Sleep(300 * time.Millisecond)
		return "Trop tard.", nil
	}))

	results, err := h.Run(context.Background(), []types.ScenarioDefinition{agreeToPay}, []string{"dell"}, Options{
		CallTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Equal(t, types.FailureTimeout, results[0].FailureReason)
}

func TestScenarioHandoffReason(t *testing.T) {
	cfg := testConfig()
	cfg.Agent.HandoffPhrases = []string{"je transfère votre dossier"}
	h := New(cfg, factoryOf(func(types.ClientProfile, llm.Request) (string, error) {
		return "Un instant, je transfère votre dossier à un collègue.", nil
	}))

	res := h.RunScenario(context.Background(), "dell", cfg.Clients["dell"], agreeToPay, 1)

	assert.False(t, res.Passed)
	assert.Equal(t, types.FailureHandoff, res.FailureReason)
}

func TestRunConcurrentTotalsAddUp(t *testing.T) {
	cfg := testConfig()
	h := New(cfg, factoryOf(closeImmediately))

	catalog := []types.ScenarioDefinition{
		agreeToPay,
		{
			Name:      "Client Asks for Time to Pay",
			Category:  types.CategoryPositive,
			UserTurns: []string{"Bonjour.", "J'ai besoin de plus de temps."},
		},
	}

	results, err := h.Run(context.Background(), catalog, []string{"dell", "amazon"}, Options{
		Iterations:  2,
		Concurrency: 4,
	})
	require.NoError(t, err)
	require.Len(t, results, 8, "2 scenarios x 2 clients x 2 iterations, no lost updates")

	rep := aggregator.Aggregate(results)
	assert.Equal(t, 8, rep.Total)
	assert.Equal(t, 8, rep.Passed)
	assert.Equal(t, 1.0, rep.SuccessRate)
	assert.Equal(t, 4, rep.PerClient["dell"].Total)
	assert.Equal(t, 4, rep.PerClient["amazon"].Total)
}

func TestRunCancelledBeforeStartRecordsNothing(t *testing.T) {
	cfg := testConfig()
	h := New(cfg, factoryOf(closeImmediately))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := h.Run(ctx, []types.ScenarioDefinition{agreeToPay}, []string{"dell"}, Options{})
	require.NoError(t, err)
	assert.Empty(t, results, "a run cancelled before its first turn is not recorded")
}

func TestRunUnknownClientAbortsBeforeAnyScenario(t *testing.T) {
	cfg := testConfig()
	h := New(cfg, factoryOf(closeImmediately))

	_, err := h.Run(context.Background(), []types.ScenarioDefinition{agreeToPay}, []string{"nope"}, Options{})
	require.Error(t, err)

	var ce *config.ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestPreflight(t *testing.T) {
	cfg := testConfig()
	h := New(cfg, factoryOf(closeImmediately))

	assert.NoError(t, h.Preflight(DefaultCatalog()))
	assert.Error(t, h.Preflight(nil), "empty catalog must abort the run")
	assert.Error(t, h.Preflight([]types.ScenarioDefinition{{Name: "vide"}}))
}

func TestDefaultCatalogShape(t *testing.T) {
	catalog := DefaultCatalog()
	require.Len(t, catalog, 6)

	counts := map[types.ScenarioCategory]int{}
	for _, sc := range catalog {
		counts[sc.Category]++
		assert.NotEmpty(t, sc.Name)
		assert.NotEmpty(t, sc.UserTurns)
	}
	assert.Equal(t, 3, counts[types.CategoryPositive])
	assert.Equal(t, 2, counts[types.CategoryEdge])
	assert.Equal(t, 1, counts[types.CategoryBoundary])
}
