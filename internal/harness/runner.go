// Package harness drives scripted scenarios through fresh sessions and
// collects per-run results for aggregation.
package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"collection-agent-go/internal/config"
	"collection-agent-go/internal/llm"
	"collection-agent-go/internal/logger"
	"collection-agent-go/internal/prompt"
	"collection-agent-go/internal/session"
	"collection-agent-go/internal/types"
)

// GeneratorFactory returns the generator used for one client's sessions.
// The gateway is shared across clients; the mock is built per profile.
type GeneratorFactory func(types.ClientProfile) llm.Generator

// Options tune a batch run.
type Options struct {
	CallTimeout time.Duration // budget for one respond call, retry included
	Iterations  int           // runs per scenario per client
	Concurrency int           // parallel scenario runs
}

// Harness runs scenarios for the configured clients.
type Harness struct {
	cfg         *config.Config
	newGen      GeneratorFactory
	callTimeout time.Duration
	log         *logger.Logger
}

func New(cfg *config.Config, newGen GeneratorFactory) *Harness {
	return &Harness{
		cfg:         cfg,
		newGen:      newGen,
		callTimeout: cfg.Agent.CallTimeout(),
		log:         logger.New(),
	}
}

// Preflight validates the catalog and every profile before any scenario
// runs. A failure here aborts the whole run (ConfigError semantics).
func (h *Harness) Preflight(catalog []types.ScenarioDefinition) error {
	if len(catalog) == 0 {
		return &config.ConfigError{Reason: "scenario catalog is empty"}
	}
	for _, sc := range catalog {
		if sc.Name == "" || len(sc.UserTurns) == 0 {
			return &config.ConfigError{Reason: fmt.Sprintf("scenario %q has no scripted turns", sc.Name)}
		}
	}
	for _, id := range h.cfg.ClientIDs() {
		profile, err := h.cfg.Profile(id)
		if err != nil {
			return err
		}
		if len(prompt.Build(profile)) < 20 {
			return &config.ConfigError{Client: id, Reason: "system prompt came out empty"}
		}
	}
	return nil
}

// RunScenario drives one scenario through a fresh session for one client.
// Errors are contained in the returned result; nothing escapes.
func (h *Harness) RunScenario(ctx context.Context, clientID string, profile types.ClientProfile, sc types.ScenarioDefinition, iteration int) types.ScenarioResult {
	res := types.ScenarioResult{
		RunID:        uuid.New().String(),
		ScenarioName: sc.Name,
		ClientID:     clientID,
		Iteration:    iteration,
	}
	log := h.log.WithRun(res.RunID, sc.Name, clientID, iteration)

	if ctx.Err() != nil {
		res.FailureReason = types.FailureCancelled
		return res
	}

	callTimeout := h.callTimeout
	s := session.New(profile, h.newGen(profile), session.Options{
		MaxHistory:     h.cfg.Agent.MaxHistory,
		ClosingWords:   h.cfg.Agent.ClosingWords,
		HandoffPhrases: h.cfg.Agent.HandoffPhrases,
	})

	greeting, err := callWithTimeout(ctx, callTimeout, s.Greet)
	if err != nil {
		res.FailureReason = classify(ctx, err)
		log.WithField("error", err.Error()).Warn("greeting failed")
		return res
	}
	res.Transcript = append(res.Transcript, types.Turn{Speaker: types.SpeakerAgent, Text: greeting, Timestamp: time.Now()})

	for _, userText := range sc.UserTurns {
		if s.IsClosed() {
			break
		}
		if ctx.Err() != nil {
			res.FailureReason = types.FailureCancelled
			log.Info("run cancelled mid-scenario")
			return res
		}

		start := time.Now()
		reply, err := callWithTimeout(ctx, callTimeout, func(cctx context.Context) (string, error) {
			return s.Respond(cctx, userText)
		})
		elapsed := time.Since(start)

		if err != nil {
			res.FailureReason = classify(ctx, err)
			log.WithField("error", err.Error()).
				WithField("failure_reason", string(res.FailureReason)).
				Warn("respond failed")
			return res
		}

		res.ResponseTimes = append(res.ResponseTimes, elapsed)
		now := time.Now()
		res.Transcript = append(res.Transcript,
			types.Turn{Speaker: types.SpeakerUser, Text: userText, Timestamp: now},
			types.Turn{Speaker: types.SpeakerAgent, Text: reply, Timestamp: now},
		)
	}

	switch {
	case s.Handoff():
		res.FailureReason = types.FailureHandoff
	case s.IsClosed():
		res.Passed = true
	default:
		res.FailureReason = types.FailureNoClosure
	}

	log.WithField("passed", res.Passed).
		WithField("turns", len(res.ResponseTimes)).
		Info("scenario finished")
	return res
}

// Run executes catalog × clients × iterations on a bounded worker pool.
// Results append under a lock; a run cancelled before its first turn is
// not recorded at all.
func (h *Harness) Run(ctx context.Context, catalog []types.ScenarioDefinition, clientIDs []string, opts Options) ([]types.ScenarioResult, error) {
	if opts.Iterations <= 0 {
		opts.Iterations = 1
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.CallTimeout > 0 {
		h.callTimeout = opts.CallTimeout
	}

	profiles := make(map[string]types.ClientProfile, len(clientIDs))
	for _, id := range clientIDs {
		p, err := h.cfg.Profile(id)
		if err != nil {
			return nil, err
		}
		profiles[id] = p
	}

	pool, err := ants.NewPool(opts.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("worker pool: %w", err)
	}
	defer pool.Release()

	h.log.WithField("total", len(catalog)*len(clientIDs)*opts.Iterations).
		WithField("concurrency", opts.Concurrency).
		Info("starting test run")

	var (
		mu        sync.Mutex
		results   []types.ScenarioResult
		wg        sync.WaitGroup
		submitErr error
	)

submit:
	for _, sc := range catalog {
		for _, id := range clientIDs {
			profile := profiles[id]
			for it := 1; it <= opts.Iterations; it++ {
				sc, id, it := sc, id, it
				wg.Add(1)
				task := func() {
					defer wg.Done()
					res := h.RunScenario(ctx, id, profile, sc, it)
					if res.FailureReason == types.FailureCancelled && len(res.Transcript) == 0 {
						// nothing happened before cancellation
						return
					}
					mu.Lock()
					results = append(results, res)
					mu.Unlock()
				}
				if err := pool.Submit(task); err != nil {
					wg.Done()
					submitErr = fmt.Errorf("submit scenario: %w", err)
					break submit
				}
			}
		}
	}

	wg.Wait()
	if submitErr != nil {
		return nil, submitErr
	}
	return results, nil
}

// callWithTimeout bounds one backend-facing call. The goroutine+select
// shape keeps the bound even when a generator ignores its context.
func callWithTimeout(ctx context.Context, d time.Duration, fn func(context.Context) (string, error)) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		text, err := fn(callCtx)
		ch <- outcome{text, err}
	}()

	select {
	case <-callCtx.Done():
		return "", callCtx.Err()
	case out := <-ch:
		return out.text, out.err
	}
}

// classify maps a failed call to its failure reason: parent cancellation
// wins, then per-call deadline, then generation error.
func classify(parent context.Context, err error) types.FailureReason {
	if parent.Err() != nil {
		return types.FailureCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.FailureTimeout
	}
	return types.FailureGeneration
}
