package respond

import (
	"strings"

	"github.com/elliotchance/pie/v2"
)

// Emotions reported for a user message.
const (
	EmotionFlirty    = "flirty"
	EmotionRomantic  = "romantic"
	EmotionSeductive = "seductive"
	EmotionPlayful   = "playful"
	EmotionNeutral   = "neutral"
)

var emotionStems = []struct {
	emotion string
	stems   []string
}{
	{EmotionFlirty, []string{"красив", "сексуальн", "привлекат"}},
	{EmotionRomantic, []string{"люблю", "обожаю", "дорог"}},
	{EmotionSeductive, []string{"хочу", "желаю", "страсть"}},
	{EmotionPlayful, []string{"играть", "шалить", "веселье"}},
}

// DetectEmotion tags a message by stem keywords. The first matching group
// wins; anything else is neutral.
func DetectEmotion(message string) string {
	lowered := strings.ToLower(message)
	for _, g := range emotionStems {
		if pie.Any(g.stems, func(s string) bool { return strings.Contains(lowered, s) }) {
			return g.emotion
		}
	}
	return EmotionNeutral
}
