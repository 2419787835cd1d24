package weight

import (
	"testing"

	"github.com/mrjoshuak/jpegxs/internal/pi"
	"github.com/stretchr/testify/require"
)

func buildPI(t *testing.T, cfg pi.Config) *pi.PI {
	t.Helper()
	p, err := pi.Build(cfg)
	require.NoError(t, err)
	return p
}

func TestAssignGainWithinBounds(t *testing.T) {
	p := buildPI(t, pi.Config{
		Nc: 3, Ng: 4, Ss: 4, W: 1920, H: 1080, Nx: 5, Ny: 2,
		Sx: []int{1, 2, 2}, Sy: []int{1, 2, 2}, SliceHeight: 16,
	})
	Assign(p, []Class{ClassLuma, ClassChroma, ClassChroma})

	for _, c := range p.Components {
		for _, b := range c.Bands {
			require.LessOrEqual(t, b.Gain, 15)
			require.GreaterOrEqual(t, b.Gain, 0)
		}
	}
}

func TestAssignPriorityIsGlobalPermutation(t *testing.T) {
	p := buildPI(t, pi.Config{
		Nc: 3, Ng: 4, Ss: 4, W: 1920, H: 1080, Nx: 5, Ny: 2,
		Sx: []int{1, 2, 2}, Sy: []int{1, 2, 2}, SliceHeight: 16,
	})
	Assign(p, []Class{ClassLuma, ClassChroma, ClassChroma})

	seen := map[int]bool{}
	count := 0
	for _, c := range p.Components {
		for _, b := range c.Bands {
			require.False(t, seen[b.Priority], "duplicate priority %d", b.Priority)
			seen[b.Priority] = true
			count++
		}
	}
	for i := 0; i < count; i++ {
		require.True(t, seen[i], "priority %d missing from permutation", i)
	}
}

func TestAssignHandlesSuppressedComponents(t *testing.T) {
	p := buildPI(t, pi.Config{
		Nc: 4, Ng: 4, Ss: 4, W: 256, H: 256, Nx: 3, Ny: 1, Sd: 1,
		Sx: []int{1, 1, 1, 1}, Sy: []int{1, 1, 1, 1}, SliceHeight: 256,
	})
	Assign(p, []Class{ClassLuma, ClassChroma, ClassChroma, ClassOther})

	suppressed := p.Components[3]
	require.True(t, suppressed.Suppressed)
	require.GreaterOrEqual(t, suppressed.Bands[0].Priority, 0)
}
