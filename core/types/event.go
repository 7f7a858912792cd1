package types

// Event is the generic attribute-bag representation of a state change, as
// surfaced to RPC consumers and log sinks.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
