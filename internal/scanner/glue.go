package scanner

import (
	"GoScan/internal/fsm"
)

// Glue agglutinates two scanners into one that checks both regexp sets in a
// single pass. The result's regexp IDs are a's IDs followed by b's shifted
// by a.RegexpsCount(); a state is final iff either contributing state was.
//
// The product automaton is minimized over the joined accept partition before
// the image is built. If maxSize > 0 and the product would exceed it, Glue
// returns an empty scanner and ErrGlueTooLarge.
func Glue[R Relocation](a, b *Scanner[R], maxSize int) (*Scanner[R], error) {
	var r R
	if a.Empty() || b.Empty() {
		return &Scanner[R]{m: locals{signature: r.signature()}}, nil
	}

	shift := uint32(a.RegexpsCount())
	f := fsm.New(uint32(a.RegexpsCount() + b.RegexpsCount()))

	type pair struct{ a, b State }
	index := make(map[pair]uint32)
	var pairs []pair

	intern := func(p pair) uint32 {
		if id, ok := index[p]; ok {
			return id
		}
		id := f.AddState()
		index[p] = id
		pairs = append(pairs, p)
		ids := a.AcceptedRegexps(p.a)
		for _, bid := range b.AcceptedRegexps(p.b) {
			ids = append(ids, bid+shift)
		}
		if len(ids) > 0 {
			f.SetAccepts(id, ids)
		}
		return id
	}

	var start pair
	var sa, sb State
	a.Initialize(&sa)
	b.Initialize(&sb)
	start.a, start.b = sa, sb
	f.SetInitial(intern(start))

	for done := 0; done < len(pairs); done++ {
		p := pairs[done]
		for c := 0; c < maxChar; c++ {
			na, nb := p.a, p.b
			a.Step(&na, byte(c))
			b.Step(&nb, byte(c))
			dst := intern(pair{na, nb})
			if maxSize > 0 && f.Size() > maxSize {
				tracer().Infof("glue aborted: product exceeds %d states", maxSize)
				return &Scanner[R]{m: locals{signature: r.signature()}}, ErrGlueTooLarge
			}
			f.SetTransition(uint32(done), byte(c), dst)
		}
	}

	return New[R](f)
}
