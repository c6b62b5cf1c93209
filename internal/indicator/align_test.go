package indicator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlignToTail(t *testing.T) {
	tbl := []struct {
		inputLen int
		out      []int
		expected []Optional[int]
	}{
		{
			inputLen: 5,
			out:      []int{10, 20, 30},
			expected: []Optional[int]{None[int](), None[int](), Some(10), Some(20), Some(30)},
		},
		{
			inputLen: 3,
			out:      []int{1, 2, 3},
			expected: []Optional[int]{Some(1), Some(2), Some(3)},
		},
		{
			inputLen: 3,
			out:      []int{},
			expected: []Optional[int]{None[int](), None[int](), None[int]()},
		},
	}

	for i, c := range tbl {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			a := AlignToTail(c.inputLen, c.out)
			for j, e := range c.expected {
				assert.Equal(t, e, a.At(j), "position %d", j)
			}
			assert.False(t, a.At(c.inputLen).Present())
		})
	}
}

func TestAlignToTail_outputLongerThanInput(t *testing.T) {
	assert.Panics(t, func() { AlignToTail(2, []int{1, 2, 3}) })
}
