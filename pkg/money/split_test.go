package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAmount(t *testing.T) {
	cases := []struct {
		name   string
		total  int64
		seller int64
		admin  int64
	}{
		{name: "round hundred", total: 10000, seller: 9500, admin: 500},
		{name: "zero", total: 0, seller: 0, admin: 0},
		{name: "half cent rounds up", total: 10, seller: 9, admin: 1},
		{name: "below half rounds down", total: 9, seller: 9, admin: 0},
		{name: "odd cents", total: 12345, seller: 11728, admin: 617},
		{name: "large amount", total: 99999999, seller: 94999999, admin: 5000000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			split, err := SplitAmount(tc.total)
			require.NoError(t, err)
			assert.Equal(t, tc.seller, split.SellerAmount)
			assert.Equal(t, tc.admin, split.AdminAmount)
			assert.Equal(t, tc.total, split.SellerAmount+split.AdminAmount)
		})
	}
}

func TestSplitAmountSumsExactly(t *testing.T) {
	for total := int64(0); total <= 5000; total++ {
		split, err := SplitAmount(total)
		require.NoError(t, err)
		if split.SellerAmount+split.AdminAmount != total {
			t.Fatalf("split of %d does not sum: %+v", total, split)
		}
		if split.SellerAmount < 0 || split.AdminAmount < 0 {
			t.Fatalf("split of %d went negative: %+v", total, split)
		}
	}
}

func TestSplitAmountRejectsNegative(t *testing.T) {
	_, err := SplitAmount(-1)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestLineTotal(t *testing.T) {
	total, err := LineTotal(2500, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(7500), total)

	_, err = LineTotal(-1, 1)
	assert.ErrorIs(t, err, ErrNegativeAmount)
	_, err = LineTotal(100, -2)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestPlusKeepsLineRounding(t *testing.T) {
	line, err := SplitAmount(10)
	require.NoError(t, err)

	group := line.Plus(line)
	assert.Equal(t, Split{Total: 20, SellerAmount: 18, AdminAmount: 2}, group)

	// splitting the sum instead would round once and disagree by a cent
	whole, err := SplitAmount(20)
	require.NoError(t, err)
	assert.Equal(t, int64(19), whole.SellerAmount)
}
