// Interactive REPL driving one conversation session from stdin. Glue
// only; the conversation contract lives in internal/session.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"collection-agent-go/internal/config"
	"collection-agent-go/internal/llm"
	"collection-agent-go/internal/logger"
	"collection-agent-go/internal/session"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "path to the YAML configuration")
		clientID   = flag.String("client", "", "client to converse as (default: first configured)")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	id := *clientID
	if id == "" {
		id = envOr("DEFAULT_CLIENT", cfg.ClientIDs()[0])
	}
	profile, err := cfg.Profile(id)
	if err != nil {
		log.WithError(err).Fatalf("unknown client (available: %s)", strings.Join(cfg.ClientIDs(), ", "))
	}

	var gen llm.Generator
	if os.Getenv("USE_MOCK_LLM") == "true" {
		gen = &llm.Mock{Profile: profile}
	} else {
		gw, err := llm.NewGatewayFromEnv()
		if err != nil {
			log.WithError(err).Fatal("llm gateway not configured")
		}
		gen = gw
	}

	s := session.New(profile, gen, session.Options{
		MaxHistory:     cfg.Agent.MaxHistory,
		ClosingWords:   cfg.Agent.ClosingWords,
		HandoffPhrases: cfg.Agent.HandoffPhrases,
	})

	ctx := context.Background()

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Agent de Recouvrement - Client: %s\n", profile.ClientName)
	fmt.Printf("Ton: %s | Formalité: %s\n", profile.Tone, profile.FormalityLevel)
	fmt.Println(strings.Repeat("=", 70))

	greeting, err := s.Greet(ctx)
	if err != nil {
		log.WithError(err).Fatal("greeting failed")
	}
	fmt.Printf("\nAgent: %s\n\n", greeting)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Vous: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		reply, err := s.Respond(ctx, input)
		if err != nil {
			log.WithError(err).Error("generation failed")
			fmt.Println("\nAgent: Une erreur s'est produite. Pouvez-vous répéter, s'il vous plaît?")
			continue
		}
		fmt.Printf("\nAgent: %s\n\n", reply)

		if s.IsClosed() {
			fmt.Println(strings.Repeat("=", 70))
			fmt.Println("Conversation terminée.")
			fmt.Printf("Nombre de messages échangés: %d\n", len(s.History()))
			fmt.Println(strings.Repeat("=", 70))
			break
		}
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
