package fsm

import "sort"

// unset marks a transition that has not been written yet. Canonize routes
// all unset transitions to a sink state.
const unset = ^uint32(0)

// Fsm is a deterministic finite automaton over bytes, the input to scanner
// construction. States are dense indices; every state carries the sorted set
// of regexp IDs it accepts (empty for non-accepting states).
//
// An Fsm is built incrementally via AddState/SetTransition/SetAccepts and
// must be canonized before use: Canonize completes the transition table,
// minimizes the automaton, computes the byte equivalence partition and flags
// dead states. Canonize is idempotent.
type Fsm struct {
	trans   []uint32   // size*256, row-major
	accepts [][]uint32 // sorted regexp IDs per state
	initial uint32
	regexps uint32

	canonized bool
	dead      []bool
	letters   *Partition
}

// New returns an empty automaton accepting IDs in [0, regexps).
func New(regexps uint32) *Fsm {
	return &Fsm{regexps: regexps}
}

// AddState appends a state with no accepts and all transitions unset,
// returning its index.
func (f *Fsm) AddState() uint32 {
	id := uint32(len(f.accepts))
	f.accepts = append(f.accepts, nil)
	row := make([]uint32, 256)
	for i := range row {
		row[i] = unset
	}
	f.trans = append(f.trans, row...)
	f.canonized = false
	return id
}

// SetInitial marks the start state.
func (f *Fsm) SetInitial(s uint32) {
	f.initial = s
	f.canonized = false
}

// SetTransition sets the successor of src on input byte c.
func (f *Fsm) SetTransition(src uint32, c byte, dst uint32) {
	f.trans[int(src)*256+int(c)] = dst
	f.canonized = false
}

// SetAccepts replaces the accepted regexp-ID set of state s.
// The IDs are copied, deduplicated and sorted.
func (f *Fsm) SetAccepts(s uint32, ids []uint32) {
	f.accepts[s] = normalizeIDs(ids)
	f.canonized = false
}

// Size returns the number of states.
func (f *Fsm) Size() int { return len(f.accepts) }

// Initial returns the start state.
func (f *Fsm) Initial() uint32 { return f.initial }

// RegexpsCount returns the number of regexps this automaton distinguishes.
func (f *Fsm) RegexpsCount() uint32 { return f.regexps }

// Next returns the successor of state s on input byte c.
func (f *Fsm) Next(s uint32, c byte) uint32 { return f.trans[int(s)*256+int(c)] }

// Accepts returns the sorted regexp IDs accepted at state s.
func (f *Fsm) Accepts(s uint32) []uint32 { return f.accepts[s] }

// Dead reports whether no accepting state is reachable from s.
// Valid only after Canonize.
func (f *Fsm) Dead(s uint32) bool { return f.dead[s] }

// Letters returns the byte equivalence partition. Valid only after Canonize.
func (f *Fsm) Letters() *Partition { return f.letters }

// FinalIDsTotal returns the total number of accepted IDs across all states,
// i.e. the length of the concatenated final lists before sentinels.
func (f *Fsm) FinalIDsTotal() int {
	n := 0
	for _, ids := range f.accepts {
		n += len(ids)
	}
	return n
}

// Run feeds input through the automaton from the initial state and returns
// the resulting state. Intended for tests and cross-checking the scanner.
func (f *Fsm) Run(input []byte) uint32 {
	s := f.initial
	for _, c := range input {
		s = f.Next(s, c)
	}
	return s
}

// Canonize completes the transition table, minimizes the automaton over the
// accept-set partition, flags dead states and computes the byte equivalence
// partition. Idempotent.
func (f *Fsm) Canonize() {
	if f.canonized {
		return
	}
	f.complete()
	f.minimize()
	f.computeDead()
	f.letters = computePartition(f)
	f.canonized = true
}

// complete routes all unset transitions to a sink state, creating one
// on demand.
func (f *Fsm) complete() {
	sink := unset
	for s := 0; s < f.Size(); s++ {
		for c := 0; c < 256; c++ {
			if f.trans[s*256+c] != unset {
				continue
			}
			if sink == unset {
				sink = f.AddState()
				for b := 0; b < 256; b++ {
					f.trans[int(sink)*256+b] = sink
				}
			}
			f.trans[s*256+c] = sink
		}
	}
}

// minimize merges equivalent states via Moore partition refinement, starting
// from the accept-set partition so agglutinated automatons keep their
// per-regexp accept distinctions.
func (f *Fsm) minimize() {
	n := f.Size()
	if n == 0 {
		return
	}

	class := make([]uint32, n)
	classes := 0
	{
		byKey := make(map[string]uint32)
		for s := 0; s < n; s++ {
			key := acceptKey(f.accepts[s])
			id, ok := byKey[key]
			if !ok {
				id = uint32(classes)
				classes++
				byKey[key] = id
			}
			class[s] = id
		}
	}

	for {
		next := make([]uint32, n)
		byKey := make(map[string]uint32, classes)
		count := 0
		sig := make([]byte, 0, 4*257)
		for s := 0; s < n; s++ {
			sig = sig[:0]
			sig = appendU32(sig, class[s])
			for c := 0; c < 256; c++ {
				sig = appendU32(sig, class[f.trans[s*256+c]])
			}
			id, ok := byKey[string(sig)]
			if !ok {
				id = uint32(count)
				count++
				byKey[string(sig)] = id
			}
			next[s] = id
		}
		class = next
		if count == classes {
			break
		}
		classes = count
	}

	if classes == n {
		return
	}

	// Rebuild the automaton over equivalence classes.
	trans := make([]uint32, classes*256)
	accepts := make([][]uint32, classes)
	seen := make([]bool, classes)
	for s := 0; s < n; s++ {
		c := class[s]
		if seen[c] {
			continue
		}
		seen[c] = true
		accepts[c] = f.accepts[s]
		for b := 0; b < 256; b++ {
			trans[int(c)*256+b] = class[f.trans[s*256+b]]
		}
	}
	f.trans = trans
	f.accepts = accepts
	f.initial = class[f.initial]
	f.dead = nil
}

// computeDead flags states from which no accepting state is reachable,
// via reverse reachability from the accepting set.
func (f *Fsm) computeDead() {
	n := f.Size()
	rev := make([][]uint32, n)
	for s := 0; s < n; s++ {
		for c := 0; c < 256; c++ {
			d := f.trans[s*256+c]
			rev[d] = append(rev[d], uint32(s))
		}
	}

	live := make([]bool, n)
	var queue []uint32
	for s := 0; s < n; s++ {
		if len(f.accepts[s]) > 0 {
			live[s] = true
			queue = append(queue, uint32(s))
		}
	}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		for _, p := range rev[s] {
			if !live[p] {
				live[p] = true
				queue = append(queue, p)
			}
		}
	}

	f.dead = make([]bool, n)
	for s := 0; s < n; s++ {
		f.dead[s] = !live[s]
	}
}

func normalizeIDs(ids []uint32) []uint32 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uint32, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	w := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[i-1] {
			out[w] = out[i]
			w++
		}
	}
	return out[:w]
}

func acceptKey(ids []uint32) string {
	b := make([]byte, 0, 4*len(ids))
	for _, id := range ids {
		b = appendU32(b, id)
	}
	return string(b)
}

func appendU32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
