package contextengine

import "github.com/Vamsirusheel01/sentinel-ai/internal/model"

// graph holds the per-context ordered event list. Kept as its own type
// (mirroring original_source's context_graph.py) even though it is a thin
// wrapper over a map, so the Manager can drain and discard a context's
// events in one step without touching the contexts table itself.
type graph struct {
	events map[string][]model.RawEvent
}

func newGraph() *graph {
	return &graph{events: make(map[string][]model.RawEvent)}
}

func (g *graph) append(contextID string, event model.RawEvent) {
	g.events[contextID] = append(g.events[contextID], event)
}

func (g *graph) snapshot(contextID string) []model.RawEvent {
	return g.events[contextID]
}

// drain returns contextID's accumulated events and removes them from the
// graph.
func (g *graph) drain(contextID string) []model.RawEvent {
	events := g.events[contextID]
	delete(g.events, contextID)
	return events
}
