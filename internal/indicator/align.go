package indicator

import "fmt"

// Aligned maps positions of an input series onto an indicator output that
// is shorter than its input and right-aligned to it.
type Aligned[T any] struct {
	out    []T
	offset int
}

// AlignToTail aligns out to the tail of an input of length inputLen. Input
// position i maps to out[i-(inputLen-len(out))]; a negative index is absent.
func AlignToTail[T any](inputLen int, out []T) Aligned[T] {
	if len(out) > inputLen {
		panic(fmt.Sprintf("indicator output (%d) is longer than its input (%d)", len(out), inputLen))
	}

	return Aligned[T]{
		out:    out,
		offset: inputLen - len(out),
	}
}

func (a Aligned[T]) At(i int) Optional[T] {
	j := i - a.offset
	if j < 0 || j >= len(a.out) {
		return None[T]()
	}
	return Some(a.out[j])
}
