package indicator

import "github.com/moznion/go-optional"

// Series is an indicator output aligned index-for-index with its input.
// Leading entries the window cannot cover are None.
type Series []optional.Option[float64]

// At returns the value at i and whether it is defined.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s) || !s[i].IsSome() {
		return 0, false
	}
	return s[i].Unwrap(), true
}

// Defined counts the entries that carry a value.
func (s Series) Defined() int {
	n := 0
	for _, v := range s {
		if v.IsSome() {
			n++
		}
	}
	return n
}

// Fill returns plain floats, substituting fill for absent entries.
func (s Series) Fill(fill float64) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		if v.IsSome() {
			out[i] = v.Unwrap()
		} else {
			out[i] = fill
		}
	}
	return out
}
