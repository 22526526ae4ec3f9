package permission

// MaxCapabilities is the number of bits available in a [Mask64].
const MaxCapabilities = 64

// Mask64 is a set of capability bits.
type Mask64 uint64

func (m Mask64) Has(bit int) bool {
	if bit < 0 || bit >= MaxCapabilities {
		return false
	}
	return m&(1<<bit) != 0
}

// HasAll reports whether every bit of other is set in m.
func (m Mask64) HasAll(other Mask64) bool {
	return m&other == other
}

func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= MaxCapabilities {
		return
	}
	*m |= 1 << bit
}

func (m *Mask64) Clear(bit int) {
	if bit < 0 || bit >= MaxCapabilities {
		return
	}
	*m &^= 1 << bit
}

// Union returns the bits set in either mask.
func (m Mask64) Union(other Mask64) Mask64 {
	return m | other
}

func (m Mask64) Raw() uint64 {
	return uint64(m)
}
