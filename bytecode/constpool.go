package bytecode

import "github.com/corelang/pyaot/internal/hashkey"

// ConstantPool deduplicates Values during compilation: two structurally
// equal Values always resolve to the same index.
type ConstantPool struct {
	values []Value
	byHash map[uint64][]int
}

func NewConstantPool() *ConstantPool {
	return &ConstantPool{byHash: map[uint64][]int{}}
}

// Intern returns the index of v in the pool, appending it if no
// structurally-equal Value is already present.
func (p *ConstantPool) Intern(v Value) int {
	h := hashkey.Sum64(v.structuralKey())
	for _, idx := range p.byHash[h] {
		if p.values[idx].equal(v) {
			return idx
		}
	}
	idx := len(p.values)
	p.values = append(p.values, v)
	p.byHash[h] = append(p.byHash[h], idx)
	return idx
}

// Values returns the pool contents in insertion order, ready to hand off to
// a Program.
func (p *ConstantPool) Values() []Value {
	return p.values
}
