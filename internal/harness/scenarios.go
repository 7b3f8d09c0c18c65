package harness

import "collection-agent-go/internal/types"

// DefaultCatalog is the built-in scenario set: three positive flows, two
// edge cases and one boundary case. Scenarios are static for a whole run.
func DefaultCatalog() []types.ScenarioDefinition {
	return []types.ScenarioDefinition{
		{
			Name:     "Client Agrees to Pay",
			Category: types.CategoryPositive,
			UserTurns: []string{
				"Bonjour.",
				"Oui, c'est moi qui suis responsable.",
				"D'accord, je comprends.",
				"Je peux payer immédiatement.",
				"Au revoir.",
			},
		},
		{
			Name:     "Client Asks for Time to Pay",
			Category: types.CategoryPositive,
			UserTurns: []string{
				"Bonjour.",
				"C'est moi.",
				"Je comprends, mais j'ai besoin de plus de temps.",
				"Je peux payer dans deux semaines.",
				"Merci, à bientôt.",
			},
		},
		{
			Name:     "Client Requests Payment Plan",
			Category: types.CategoryPositive,
			UserTurns: []string{
				"Oui, c'est pour mon compte.",
				"C'est beaucoup d'argent.",
				"Un plan de paiement serait mieux pour moi.",
				"Pouvez-vous proposer quelque chose?",
				"Au revoir.",
			},
		},
		{
			Name:     "Robot Question Detection",
			Category: types.CategoryEdge,
			UserTurns: []string{
				"Bonjour.",
				"Vous êtes un robot?",
				"D'accord, je comprends.",
				"Je peux payer demain.",
				"À bientôt.",
			},
		},
		{
			Name:     "Upset/Angry Client",
			Category: types.CategoryEdge,
			UserTurns: []string{
				"C'est qui?",
				"Je suis très en colère contre vous!",
				"C'est injuste!",
				"Je veux parler à un responsable.",
				"Au revoir.",
			},
		},
		{
			Name:     "Multiple Language Switches",
			Category: types.CategoryBoundary,
			UserTurns: []string{
				"Bonjour.",
				"Do you speak English?",
				"Je préfère parler en français.",
				"But can we switch?",
				"Non, seulement en français.",
				"D'accord.",
				"Je peux payer demain.",
				"Au revoir.",
			},
		},
	}
}
