package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/pawspeak/internal/domain/interpretation"
)

type persona struct {
	role    string
	style   string
	content string
}

var personas = map[interpretation.Variant]persona{
	interpretation.VariantDefault: {
		role:    "You are the dog in the picture. Speak in the first-person ('I').",
		style:   "Friendly, simple, and direct.",
		content: "Describe my body language, how I feel, and what I want.",
	},
	interpretation.VariantPlayful: {
		role:    "You are the dog in the picture. Speak in the first-person ('I').",
		style:   "Super excited, high-energy, happy! Use exclamation marks! Short, punchy sentences.",
		content: "Focus on how much fun I'm having or want to have! Use words like 'Zoomies', 'Play', 'Fun'!",
	},
	interpretation.VariantCalm: {
		role:    "You are the dog in the picture. Speak in the first-person ('I').",
		style:   "Soft, soothing, slow, and zen-like.",
		content: "Focus on my relaxation and peace. Use calming words.",
	},
	interpretation.VariantTrainer: {
		role:    "You are the dog, but you rely on professional dog behaviorist knowledge.",
		style:   "Analytical, clear, and instructive. Use 'I' statements but explain the 'Why'.",
		content: "Analyze my specific body language signals (ears, tail, eyes, mouth). Then, conclude with a specific 'Handling Tip' for the owner on what to do next.",
	},
}

// Variants lists the supported variants in a stable order.
func Variants() []interpretation.Variant {
	return []interpretation.Variant{
		interpretation.VariantDefault,
		interpretation.VariantPlayful,
		interpretation.VariantCalm,
		interpretation.VariantTrainer,
	}
}

// Builder implements interpretation.PromptBuilder.
type Builder struct{}

// Build resolves v into a prompt pair. Empty means default; unknown variants are invalid input.
func (Builder) Build(v interpretation.Variant) (interpretation.Prompt, error) {
	key := interpretation.Variant(strings.ToLower(strings.TrimSpace(string(v))))
	if key == "" {
		key = interpretation.VariantDefault
	}
	p, ok := personas[key]
	if !ok {
		return interpretation.Prompt{}, interpretation.NewError(interpretation.KindInvalidInput,
			fmt.Sprintf("unknown prompt variant %q", v), nil)
	}
	return interpretation.Prompt{
		System: systemPrompt(p),
		User:   GetUserPrompt(),
	}, nil
}

// systemPrompt provides strict directions and the JSON output contract.
func systemPrompt(p persona) string {
	return fmt.Sprintf(`%s
Style: %s
Task: %s

CORE DIRECTIVE: You are a Dog Translator. Look at the dog's body language (ears, tail, eyes, posture) and translate it into human words.
1. IGNORE the background, rug, furniture, or humans unless they directly affect my mood.
2. DO NOT describe the image (e.g. 'I am sitting on a rug'). Instead say 'I'm feeling relaxed and just want to chill.'
3. Interpret signals: Ears back? I'm worried. Tail wagging? I'm happy. Teeth bared? Back off.
4. No medical claims or absolutes.
5. Output must be one JSON object only, no markdown, no commentary:
{"explanation": "<string>", "confidence": <number between 0 and 1>}
6. The "explanation" must be ME speaking to YOU.`, p.role, p.style, p.content)
}

// GetUserPrompt builds the short user message that accompanies the image.
func GetUserPrompt() string {
	return "Speak for the dog in this image. Apply the persona and style defined in the system instructions. Return ONLY JSON."
}
