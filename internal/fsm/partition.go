package fsm

// Partition groups input bytes into equivalence classes: two bytes belong to
// the same class iff every state of the automaton transitions identically on
// both. Classes are dense indices in [0, Size).
type Partition struct {
	classOf [256]uint16
	members [][]byte
}

// Size returns the number of classes.
func (p *Partition) Size() int { return len(p.members) }

// Class returns the class index of byte c.
func (p *Partition) Class(c byte) uint16 { return p.classOf[c] }

// Members returns the bytes belonging to class cls, in ascending order.
func (p *Partition) Members(cls uint16) []byte { return p.members[cls] }

// Representative returns the smallest byte of class cls.
func (p *Partition) Representative(cls uint16) byte { return p.members[cls][0] }

// computePartition groups bytes by their full transition column.
func computePartition(f *Fsm) *Partition {
	p := &Partition{}
	byKey := make(map[string]uint16)
	n := f.Size()
	col := make([]byte, 0, 4*n)
	for c := 0; c < 256; c++ {
		col = col[:0]
		for s := 0; s < n; s++ {
			col = appendU32(col, f.trans[s*256+c])
		}
		cls, ok := byKey[string(col)]
		if !ok {
			cls = uint16(len(p.members))
			byKey[string(col)] = cls
			p.members = append(p.members, nil)
		}
		p.classOf[c] = cls
		p.members[cls] = append(p.members[cls], byte(c))
	}
	return p
}
