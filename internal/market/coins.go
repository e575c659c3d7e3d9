package market

// Coin is a simulated tradable asset.
type Coin struct {
	Ticker      string `json:"ticker"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var DefaultCoins = []Coin{
	{Ticker: "DOGE2", Name: "DogeCoin 2.0", Description: "Much wow, very profit"},
	{Ticker: "MEME", Name: "MemeToken", Description: "To the moon!"},
	{Ticker: "BOOM", Name: "BoomerCoin", Description: "Back in my day..."},
	{Ticker: "YOLO", Name: "YoloCoin", Description: "You Only Live Once"},
	{Ticker: "HODL", Name: "HodlToken", Description: "Diamond hands forever"},
	{Ticker: "REKT", Name: "RektCoin", Description: "Get rekt or get rich"},
	{Ticker: "PUMP", Name: "PumpToken", Description: "Number go up"},
	{Ticker: "DUMP", Name: "DumpCoin", Description: "Gravity is real"},
	{Ticker: "MOON", Name: "MoonRocket", Description: "Destination: Moon"},
	{Ticker: "CHAD", Name: "ChadCoin", Description: "Alpha energy only"},
}

type Scope int

const (
	ScopeSingle Scope = iota
	ScopeAll
)

// EventKind is a market-moving headline with a base impact and a per-step probability.
type EventKind struct {
	Name        string
	Message     string
	Impact      float64
	Probability float64
	Scope       Scope
}

var DefaultEvents = []EventKind{
	{Name: "hack", Message: "BREAKING: Major exchange gets hacked!", Impact: -0.15, Probability: 0.02, Scope: ScopeAll},
	{Name: "elon", Message: "Elon Musk tweets about crypto!", Impact: 0.25, Probability: 0.03, Scope: ScopeSingle},
	{Name: "regulation", Message: "Government announces crypto regulation!", Impact: -0.10, Probability: 0.02, Scope: ScopeAll},
	{Name: "whale", Message: "Whale alert: Large transaction detected!", Impact: 0.08, Probability: 0.05, Scope: ScopeSingle},
	{Name: "institutional", Message: "Institutional investor enters the market!", Impact: 0.12, Probability: 0.03, Scope: ScopeAll},
	{Name: "congestion", Message: "Network congestion causes delays!", Impact: -0.08, Probability: 0.04, Scope: ScopeSingle},
	{Name: "partnership", Message: "New partnership announced!", Impact: 0.15, Probability: 0.03, Scope: ScopeSingle},
	{Name: "burn", Message: "Token burn event scheduled!", Impact: 0.20, Probability: 0.02, Scope: ScopeSingle},
	{Name: "fud", Message: "FUD spreads on social media!", Impact: -0.12, Probability: 0.04, Scope: ScopeAll},
	{Name: "botmalfunction", Message: "Trading bot malfunction causes chaos!", Impact: -0.18, Probability: 0.01, Scope: ScopeSingle},
}

// EventNames lists the names accepted by Simulator.TriggerEvent, plus "random".
func EventNames(events []EventKind) []string {
	out := make([]string, 0, len(events)+1)
	for _, ev := range events {
		out = append(out, ev.Name)
	}
	return append(out, "random")
}
