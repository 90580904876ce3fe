package identity

import "encoding/json"

// IdentityCount is one identity's embedding count.
type IdentityCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Statistics summarizes the store. PerIdentity follows insertion order.
type Statistics struct {
	IdentityCount   int
	TotalEmbeddings int
	PerIdentity     []IdentityCount
}

// People returns the per-identity counts keyed by label.
func (st Statistics) People() map[string]int {
	people := make(map[string]int, len(st.PerIdentity))
	for _, c := range st.PerIdentity {
		people[c.Label] = c.Count
	}
	return people
}

// MarshalJSON renders the statistics in the public API shape:
// {"total_people": n, "total_embeddings": n, "people": {"label": count}}.
func (st Statistics) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TotalPeople     int            `json:"total_people"`
		TotalEmbeddings int            `json:"total_embeddings"`
		People          map[string]int `json:"people"`
	}{st.IdentityCount, st.TotalEmbeddings, st.People()})
}

// Statistics returns identity and embedding counts.
func (s *Store) Statistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Statistics{
		IdentityCount: len(s.order),
		PerIdentity:   make([]IdentityCount, len(s.order)),
	}
	for i, e := range s.order {
		st.PerIdentity[i] = IdentityCount{Label: e.label, Count: len(e.embeddings)}
		st.TotalEmbeddings += len(e.embeddings)
	}
	return st
}
