package session

import "strings"

// defaultClosingWords are terminal phrasings the backend commonly uses
// when wrapping up, recognised alongside the configured closing line.
var defaultClosingWords = []string{
	"au revoir", "à bientôt", "fin", "quitter", "arrêter", "terminer", "raccrocher",
}

// robotKeywords flag direct identity probes in user text. Kept narrow to
// avoid false positives on ordinary collection vocabulary.
var robotKeywords = []string{
	"êtes-vous un robot",
	"vous êtes un robot",
	"es-tu un robot",
	"c'est un robot",
	"automated",
	"automatisé",
	"intelligence artificielle",
	"ia?",
	"chatbot",
	"bot?",
	"real person",
	"vraie personne",
	"human",
	"humain",
}

// IsRobotProbe reports whether user text directly asks if the agent is a
// robot or an AI. A probe tags the next outbound request; it never closes
// the session by itself.
func IsRobotProbe(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range robotKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// detectClosing classifies agent text as a conversation close. The
// backend paraphrases, so this is containment plus word overlap against
// the configured closing line, never exact equality. Anything ambiguous
// counts as not closed so the conversation keeps going.
func (s *Session) detectClosing(agentText string) bool {
	lower := strings.ToLower(agentText)

	if line := strings.ToLower(s.profile.ClosingLine); line != "" {
		if strings.Contains(lower, line) {
			return true
		}
		if wordOverlap(lower, line) >= 0.6 {
			return true
		}
	}

	for _, w := range s.opts.ClosingWords {
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// detectHandoff matches the configured handoff phrases against agent
// text. With no phrases configured (the default) it never fires; the
// exact trigger still needs product clarification.
func (s *Session) detectHandoff(agentText string) bool {
	if len(s.opts.HandoffPhrases) == 0 {
		return false
	}
	lower := strings.ToLower(agentText)
	for _, p := range s.opts.HandoffPhrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// wordOverlap is the fraction of significant words from line found in
// text. Words under 4 runes are skipped so articles don't inflate the
// score.
func wordOverlap(text, line string) float64 {
	var total, matched int
	for _, w := range strings.Fields(line) {
		w = strings.Trim(w, ".,!?\"'«»:;()")
		if len([]rune(w)) < 4 {
			continue
		}
		total++
		if strings.Contains(text, w) {
			matched++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}
