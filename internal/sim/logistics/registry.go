package logistics

import "dronelogistics.ai/internal/sim/grid"

// Registry indexes the providers and requesters of one scan area. Each drone
// owns its own Registry and rebuilds it wholesale on every (re)start.
type Registry struct {
	providers  []Provider
	requesters []Requester
	seq        int
}

func NewRegistry() *Registry { return &Registry{} }

// Clear drops the current contents. Slices previously returned by Providers
// and Requesters are left untouched.
func (r *Registry) Clear() {
	r.providers = nil
	r.requesters = nil
	r.seq = 0
}

// Register adds e under every role it declares. Callers filter by area first.
func (r *Registry) Register(e Endpoint) {
	if e == nil {
		return
	}
	roles := e.Roles()
	if p, ok := e.(Provider); ok && roles.Has(RoleProvider) {
		r.providers = append(r.providers, p)
	}
	if q, ok := e.(Requester); ok && roles.Has(RoleRequester) {
		r.requesters = append(r.requesters, q)
	}
	r.seq++
}

// Rebuild replaces the registry contents with the endpoints located inside area.
// It returns the number of endpoints registered.
func (r *Registry) Rebuild(area grid.Area, endpoints []Endpoint) int {
	r.Clear()
	for _, e := range endpoints {
		if e == nil || !area.Contains(e.Pos()) {
			continue
		}
		r.Register(e)
	}
	return r.seq
}

func (r *Registry) Len() int { return r.seq }

func (r *Registry) Providers() []Provider { return r.providers }

func (r *Registry) Requesters() []Requester { return r.requesters }

// TasksFor returns every viable pairing for the held resource, in generation
// order (requesters, then providers, then offers, each in registration order).
// With empty cargo it pairs providers with open requesters; with cargo it only
// looks for requesters that accept it. Reserved requesters are skipped.
func (r *Registry) TasksFor(held Resource) []*Task {
	var out []*Task
	for _, q := range r.requesters {
		if !q.Valid() || !q.IncomingReservation().IsEmpty() {
			continue
		}
		if !held.IsEmpty() {
			if !q.FilterMatches(held) {
				continue
			}
			n := min(held.Amount, q.RequestedAmount(held))
			if n <= 0 {
				continue
			}
			out = append(out, &Task{Requester: q, Payload: held.WithAmount(n), Seq: len(out)})
			continue
		}
		for _, p := range r.providers {
			if !canProvideTo(p, q) {
				continue
			}
			for _, offer := range p.Offers() {
				if offer.IsEmpty() || !q.FilterMatches(offer) || !p.CanSupply(offer) {
					continue
				}
				n := min(p.AvailableAmount(offer), q.RequestedAmount(offer))
				if n <= 0 {
					continue
				}
				out = append(out, &Task{Provider: p, Requester: q, Payload: offer.WithAmount(n), Seq: len(out)})
			}
		}
	}
	return out
}

func canProvideTo(p Provider, q Requester) bool {
	if !p.Valid() || p.ID() == q.ID() {
		return false
	}
	// Storage only feeds requesters that outrank it.
	if p.Roles().Has(RoleRequester) {
		if pq, ok := p.(Requester); ok && pq.Priority() >= q.Priority() {
			return false
		}
	}
	return true
}
