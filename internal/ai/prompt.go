package ai

import (
	"fmt"
	"strings"

	"github.com/camuig/coin-sim/internal/market"
)

const systemPrompt = `You write breaking-news headlines for a joke crypto exchange.
You receive a market event with the coins it hit and how hard.
Rewrite it as one punchy headline of at most 20 words.
Keep the direction of the move: never call a crash a rally.
Do not give investment advice.

Answer strictly as JSON:
{"headline": "Your headline"}`

const maxHeadlineRunes = 200

// BuildEventPrompt describes ev for the model.
func BuildEventPrompt(ev market.Event) string {
	var sb strings.Builder

	direction := "up"
	if ev.Impact < 0 {
		direction = "down"
	}
	fmt.Fprintf(&sb, "Event: %s\n", ev.Message)
	fmt.Fprintf(&sb, "Move: %s %.1f%%\n", direction, abs(ev.Impact)*100)
	if len(ev.Affected) > 0 {
		fmt.Fprintf(&sb, "Coins: %s\n", strings.Join(ev.Affected, ", "))
	}

	return sb.String()
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
