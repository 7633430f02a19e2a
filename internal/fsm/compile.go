package fsm

import (
	"errors"
	"fmt"
	"regexp/syntax"
	"sort"
	"unicode"
)

// Construction limits.
const (
	MaxDFAStates  = 1 << 16
	MaxRepeatSize = 1000
)

var (
	ErrDFAStateLimitExceeded = errors.New("DFA state limit exceeded during construction")
	ErrRepeatTooLarge        = errors.New("counted repetition too large")
	ErrNotByteRange          = errors.New("pattern requires runes above 0xFF")
	ErrUnsupportedSyntax     = errors.New("unsupported regexp construct")
)

// Compile builds a canonized automaton matching the whole input against
// pattern. Matching is byte-level: literals and classes must stay within
// 0x00..0xFF; class ranges reaching beyond 0xFF are clipped.
func Compile(pattern string) (*Fsm, error) {
	return CompileSet([]string{pattern})
}

// CompileSet builds one automaton matching all patterns at once. A state
// accepts regexp ID i iff the input so far is a whole-input match of
// patterns[i].
//
// Construction builds a byte-level Thompson NFA per pattern, joins them
// under a common start state, then converts to a DFA via subset construction.
func CompileSet(patterns []string) (*Fsm, error) {
	if len(patterns) == 0 {
		return nil, errors.New("no patterns")
	}

	n := &nfa{}
	start := n.newState()
	for i, pattern := range patterns {
		re, err := syntax.Parse(pattern, syntax.Perl)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", pattern, err)
		}
		s, e, err := n.add(re.Simplify())
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		n.states[start].epsilon = append(n.states[start].epsilon, s)
		n.states[e].accept = int32(i)
	}

	f, err := subsetConstruct(n, start, uint32(len(patterns)))
	if err != nil {
		return nil, err
	}
	f.Canonize()
	return f, nil
}

// --- byte-level Thompson NFA ---

type nfaState struct {
	edges   [256][]int // byte -> successor states
	epsilon []int
	accept  int32 // regexp ID, -1 if not accepting
}

type nfa struct {
	states []*nfaState
}

func (n *nfa) newState() int {
	n.states = append(n.states, &nfaState{accept: -1})
	return len(n.states) - 1
}

func (n *nfa) edge(from int, c byte, to int) {
	st := n.states[from]
	st.edges[c] = append(st.edges[c], to)
}

func (n *nfa) eps(from, to int) {
	st := n.states[from]
	st.epsilon = append(st.epsilon, to)
}

// add wires a fragment recognizing re between a fresh start and end state.
func (n *nfa) add(re *syntax.Regexp) (start, end int, err error) {
	switch re.Op {
	case syntax.OpEmptyMatch, syntax.OpBeginText, syntax.OpEndText,
		syntax.OpBeginLine, syntax.OpEndLine:
		// Whole-input matching makes anchors empty-width no-ops.
		start = n.newState()
		end = n.newState()
		n.eps(start, end)
		return start, end, nil

	case syntax.OpNoMatch:
		start = n.newState()
		end = n.newState()
		return start, end, nil

	case syntax.OpLiteral:
		start = n.newState()
		prev := start
		fold := re.Flags&syntax.FoldCase != 0
		for _, r := range re.Rune {
			next := n.newState()
			if err := n.literalEdge(prev, r, next, fold); err != nil {
				return 0, 0, err
			}
			prev = next
		}
		return start, prev, nil

	case syntax.OpCharClass:
		start = n.newState()
		end = n.newState()
		for i := 0; i+1 < len(re.Rune); i += 2 {
			lo, hi := re.Rune[i], re.Rune[i+1]
			if lo > 0xFF {
				continue
			}
			if hi > 0xFF {
				hi = 0xFF
			}
			for r := lo; r <= hi; r++ {
				n.edge(start, byte(r), end)
			}
		}
		return start, end, nil

	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		start = n.newState()
		end = n.newState()
		for c := 0; c < 256; c++ {
			if re.Op == syntax.OpAnyCharNotNL && c == '\n' {
				continue
			}
			n.edge(start, byte(c), end)
		}
		return start, end, nil

	case syntax.OpCapture:
		return n.add(re.Sub[0])

	case syntax.OpConcat:
		start = n.newState()
		prev := start
		for _, sub := range re.Sub {
			s, e, err := n.add(sub)
			if err != nil {
				return 0, 0, err
			}
			n.eps(prev, s)
			prev = e
		}
		return start, prev, nil

	case syntax.OpAlternate:
		start = n.newState()
		end = n.newState()
		for _, sub := range re.Sub {
			s, e, err := n.add(sub)
			if err != nil {
				return 0, 0, err
			}
			n.eps(start, s)
			n.eps(e, end)
		}
		return start, end, nil

	case syntax.OpStar:
		s, e, err := n.add(re.Sub[0])
		if err != nil {
			return 0, 0, err
		}
		start = n.newState()
		end = n.newState()
		n.eps(start, s)
		n.eps(start, end)
		n.eps(e, s)
		n.eps(e, end)
		return start, end, nil

	case syntax.OpPlus:
		s, e, err := n.add(re.Sub[0])
		if err != nil {
			return 0, 0, err
		}
		start = n.newState()
		end = n.newState()
		n.eps(start, s)
		n.eps(e, s)
		n.eps(e, end)
		return start, end, nil

	case syntax.OpQuest:
		s, e, err := n.add(re.Sub[0])
		if err != nil {
			return 0, 0, err
		}
		start = n.newState()
		end = n.newState()
		n.eps(start, s)
		n.eps(start, end)
		n.eps(e, end)
		return start, end, nil

	case syntax.OpRepeat:
		// Simplify normally rewrites OpRepeat; expand whatever remains.
		min, max := re.Min, re.Max
		if max == -1 {
			max = min
		}
		if max > MaxRepeatSize {
			return 0, 0, ErrRepeatTooLarge
		}
		start = n.newState()
		prev := start
		for i := 0; i < min; i++ {
			s, e, err := n.add(re.Sub[0])
			if err != nil {
				return 0, 0, err
			}
			n.eps(prev, s)
			prev = e
		}
		end = n.newState()
		n.eps(prev, end)
		for i := min; i < max; i++ {
			s, e, err := n.add(re.Sub[0])
			if err != nil {
				return 0, 0, err
			}
			n.eps(prev, s)
			n.eps(e, end)
			prev = e
		}
		if re.Max == -1 {
			// {min,}: loop the last copy.
			s, e, err := n.add(re.Sub[0])
			if err != nil {
				return 0, 0, err
			}
			n.eps(prev, s)
			n.eps(e, s)
			n.eps(e, end)
		}
		return start, end, nil

	default:
		return 0, 0, fmt.Errorf("%w: %v", ErrUnsupportedSyntax, re.Op)
	}
}

func (n *nfa) literalEdge(from int, r rune, to int, fold bool) error {
	if r > 0xFF {
		return fmt.Errorf("%w: %q", ErrNotByteRange, r)
	}
	n.edge(from, byte(r), to)
	if fold {
		for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
			if f <= 0xFF {
				n.edge(from, byte(f), to)
			}
		}
	}
	return nil
}

// --- subset construction ---

// subsetConstruct converts the NFA to a DFA. Each DFA state is an
// epsilon-closed set of NFA states; its accept set is the union of the
// member states' regexp IDs.
func subsetConstruct(n *nfa, start int, regexps uint32) (*Fsm, error) {
	f := New(regexps)

	seen := make(map[string]uint32)
	var sets [][]int

	intern := func(set []int) (uint32, bool) {
		key := setKey(set)
		if id, ok := seen[key]; ok {
			return id, false
		}
		id := f.AddState()
		seen[key] = id
		sets = append(sets, set)
		ids := acceptIDs(n, set)
		if len(ids) > 0 {
			f.SetAccepts(id, ids)
		}
		return id, true
	}

	first, _ := intern(closure(n, []int{start}))
	f.SetInitial(first)

	for done := 0; done < len(sets); done++ {
		set := sets[done]
		for c := 0; c < 256; c++ {
			var move []int
			for _, s := range set {
				move = append(move, n.states[s].edges[c]...)
			}
			id, fresh := intern(closure(n, move))
			if fresh && f.Size() > MaxDFAStates {
				return nil, ErrDFAStateLimitExceeded
			}
			f.SetTransition(uint32(done), byte(c), id)
		}
	}
	return f, nil
}

// closure returns the sorted, deduplicated epsilon closure of set.
func closure(n *nfa, set []int) []int {
	mark := make(map[int]bool, len(set))
	stack := append([]int(nil), set...)
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if mark[s] {
			continue
		}
		mark[s] = true
		stack = append(stack, n.states[s].epsilon...)
	}
	out := make([]int, 0, len(mark))
	for s := range mark {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

func acceptIDs(n *nfa, set []int) []uint32 {
	var ids []uint32
	for _, s := range set {
		if a := n.states[s].accept; a >= 0 {
			ids = append(ids, uint32(a))
		}
	}
	return normalizeIDs(ids)
}

func setKey(set []int) string {
	b := make([]byte, 0, 4*len(set))
	for _, s := range set {
		b = appendU32(b, uint32(s))
	}
	return string(b)
}
