package models

import "sort"

// Registry maps a community identifier to its ordered, unique, upper-case tickers.
type Registry map[string][]string

// Clone returns a deep copy.
func (r Registry) Clone() Registry {
	out := make(Registry, len(r))
	for community, tickers := range r {
		out[community] = append([]string(nil), tickers...)
	}
	return out
}

// Contains reports whether the community tracks the ticker.
func (r Registry) Contains(community, ticker string) bool {
	for _, t := range r[community] {
		if t == ticker {
			return true
		}
	}
	return false
}

// Add appends ticker if absent and reports whether it changed the registry.
func (r Registry) Add(community, ticker string) bool {
	if r.Contains(community, ticker) {
		return false
	}
	r[community] = append(r[community], ticker)
	return true
}

// Remove deletes ticker and reports whether it was present. A community left
// with no tickers is dropped.
func (r Registry) Remove(community, ticker string) bool {
	tickers := r[community]
	for i, t := range tickers {
		if t != ticker {
			continue
		}
		rest := append(append([]string(nil), tickers[:i]...), tickers[i+1:]...)
		if len(rest) == 0 {
			delete(r, community)
		} else {
			r[community] = rest
		}
		return true
	}
	return false
}

// List returns a copy of the community's tickers, never nil.
func (r Registry) List(community string) []string {
	return append([]string{}, r[community]...)
}

// Communities returns community ids in ascending order.
func (r Registry) Communities() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Normalize upper-cases tickers and removes duplicates and empty entries,
// keeping first-seen order. Used on documents written by older versions.
func (r Registry) Normalize() {
	for community, tickers := range r {
		seen := make(map[string]bool, len(tickers))
		clean := make([]string, 0, len(tickers))
		for _, t := range tickers {
			t = NormalizeTicker(t)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			clean = append(clean, t)
		}
		if len(clean) == 0 {
			delete(r, community)
			continue
		}
		r[community] = clean
	}
}
