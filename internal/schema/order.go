package schema

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError lists tables whose foreign keys form at least one cycle.
// DependencyOrder still returns a complete order alongside it.
type CycleError struct {
	Tables []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular foreign key dependency between: %s", strings.Join(e.Tables, ", "))
}

// DependencyOrder sorts tables so that every table comes after the tables it
// references. Among tables that are ready at the same time, priority tables
// come first (in list order), then tables without foreign keys, then by name.
// Self-references and references to unknown tables are ignored.
//
// When a cycle exists the acyclic prefix is returned followed by the cycle
// members in heuristic order, together with a *CycleError.
func DependencyOrder(tables []*TableMetadata, priority []string) ([]*TableMetadata, error) {
	byKey := make(map[string]*TableMetadata, len(tables))
	for _, t := range tables {
		byKey[strings.ToLower(t.Name)] = t
	}
	rank := make(map[string]int, len(priority))
	for i, p := range priority {
		if _, ok := rank[strings.ToLower(p)]; !ok {
			rank[strings.ToLower(p)] = i
		}
	}

	deps := make(map[string][]string, len(tables))
	indegree := make(map[string]int, len(tables))
	dependents := make(map[string][]string, len(tables))
	for key, t := range byKey {
		indegree[key] = 0
		for _, dep := range t.Dependencies() {
			dk := strings.ToLower(dep)
			if _, known := byKey[dk]; !known {
				continue
			}
			deps[key] = append(deps[key], dk)
			indegree[key]++
			dependents[dk] = append(dependents[dk], key)
		}
	}

	less := func(a, b string) bool {
		ra, okA := rank[a]
		rb, okB := rank[b]
		switch {
		case okA && okB:
			return ra < rb
		case okA != okB:
			return okA
		}
		fa, fb := byKey[a].HasForeignKeys(), byKey[b].HasForeignKeys()
		if fa != fb {
			return !fa
		}
		return a < b
	}

	var ready []string
	for key, n := range indegree {
		if n == 0 {
			ready = append(ready, key)
		}
	}

	sorted := make([]*TableMetadata, 0, len(tables))
	done := make(map[string]bool, len(tables))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		key := ready[0]
		ready = ready[1:]
		sorted = append(sorted, byKey[key])
		done[key] = true
		for _, dependent := range dependents[key] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(sorted) == len(byKey) {
		return sorted, nil
	}

	var cycle []string
	for key := range byKey {
		if !done[key] {
			cycle = append(cycle, key)
		}
	}
	sort.Strings(cycle)
	cycErr := &CycleError{}
	for _, key := range cycle {
		cycErr.Tables = append(cycErr.Tables, byKey[key].Name)
	}

	// Break cycles greedily: prefer tables with fewer unresolved
	// dependencies, and among those the ones sitting on a two-table loop.
	for len(cycle) > 0 {
		var next string
		for _, key := range cycle {
			if readyAfter(key, deps, done) && (next == "" || less(key, next)) {
				next = key
			}
		}
		if next == "" {
			best := 0
			for _, key := range cycle {
				score := cycleScore(key, deps, done)
				if next == "" || score > best || (score == best && less(key, next)) {
					next, best = key, score
				}
			}
		}
		sorted = append(sorted, byKey[next])
		done[next] = true
		cycle = removeKey(cycle, next)
	}
	return sorted, cycErr
}

func readyAfter(key string, deps map[string][]string, done map[string]bool) bool {
	for _, d := range deps[key] {
		if !done[d] {
			return false
		}
	}
	return true
}

// cycleScore is -100 per unresolved dependency, +500 when one of them
// references key back.
func cycleScore(key string, deps map[string][]string, done map[string]bool) int {
	score := 0
	circular := false
	for _, d := range deps[key] {
		if done[d] {
			continue
		}
		score -= 100
		for _, back := range deps[d] {
			if back == key {
				circular = true
			}
		}
	}
	if circular {
		score += 500
	}
	return score
}

func removeKey(keys []string, key string) []string {
	out := keys[:0]
	for _, k := range keys {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}
