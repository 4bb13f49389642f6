package study

import (
	"fmt"
	"math/rand"
	"sort"
)

// bag deals names in shuffled order and reshuffles once the pool is
// exhausted. A name can therefore repeat only after a full pass over all
// names, which spreads sets as evenly as possible across a plan.
type bag struct {
	names  []string
	cursor int
	rng    *rand.Rand
}

func newBag(names []string, rng *rand.Rand) *bag {
	b := &bag{names: append([]string(nil), names...), rng: rng}
	b.shuffle()
	return b
}

func (b *bag) shuffle() {
	b.rng.Shuffle(len(b.names), func(i, j int) { b.names[i], b.names[j] = b.names[j], b.names[i] })
	b.cursor = 0
}

func (b *bag) next() string {
	if b.cursor == len(b.names) {
		b.shuffle()
	}
	n := b.names[b.cursor]
	b.cursor++
	return n
}

// Plan derives the frozen trial sequence for one participant. sets maps
// set name -> method name -> candidate video files (the loaded manifest).
// The output is deterministic for a given (sets, nTrials, seed): sets are
// drawn from a shuffled-without-replacement cycle, two distinct methods are
// sampled per trial, left/right assignment is a stored coin flip, and one
// concrete file is chosen per side, avoiding repeats within the participant
// until a method's pool is exhausted.
func Plan(sets map[string]map[string][]string, nTrials int, seed int64) ([]TrialSpec, error) {
	if nTrials <= 0 {
		return nil, NewPlanningError(fmt.Sprintf("trial count must be positive, got %d", nTrials))
	}
	if len(sets) == 0 {
		return nil, NewPlanningError("no sets available for planning")
	}

	names := make([]string, 0, len(sets))
	for set := range sets {
		names = append(names, set)
	}
	sort.Strings(names)

	rng := rand.New(rand.NewSource(seed))
	pool := newBag(names, rng)
	usedVideos := map[string]bool{}

	specs := make([]TrialSpec, 0, nTrials)
	for t := 0; t < nTrials; t++ {
		set := pool.next()
		methods := sortedKeys(sets[set])
		if len(methods) < 2 {
			// Unreachable with a validated manifest; guarded anyway.
			return nil, NewPlanningError(fmt.Sprintf("set %q has fewer than 2 methods", set))
		}

		perm := rng.Perm(len(methods))
		left := SideSpec{Method: methods[perm[0]]}
		right := SideSpec{Method: methods[perm[1]]}
		left.Video = pickVideo(rng, sets[set][left.Method], usedVideos)
		right.Video = pickVideo(rng, sets[set][right.Method], usedVideos)

		// Counterbalance which method lands on which side.
		if rng.Intn(2) == 1 {
			left, right = right, left
		}
		specs = append(specs, TrialSpec{Set: set, Left: left, Right: right})
	}
	return specs, nil
}

// pickVideo chooses one candidate, preferring files this participant has
// not seen yet. When every candidate was already used it falls back to a
// uniform pick.
func pickVideo(rng *rand.Rand, candidates []string, used map[string]bool) string {
	shuffled := append([]string(nil), candidates...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	for _, v := range shuffled {
		if !used[v] {
			used[v] = true
			return v
		}
	}
	v := candidates[rng.Intn(len(candidates))]
	used[v] = true
	return v
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
