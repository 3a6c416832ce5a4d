package policy

import (
	"testing"

	"chunkvault/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize_Table(t *testing.T) {
	capped, err := Capped(2)
	require.NoError(t, err)

	tests := []struct {
		name    string
		policy  *Policy
		req     Request
		wantErr error
	}{
		{"open permits anyone", Open(), Request{Caller: "bob"}, nil},
		{"open ignores usage", Open(), Request{Usage: 1 << 40}, nil},
		{"capped below limit", capped, Request{Usage: 1}, nil},
		{"capped at limit", capped, Request{Usage: 2}, ErrMaxAccessReached},
		{"capped above limit", capped, Request{Usage: 3}, ErrMaxAccessReached},
		{"pay exact price", PayPerUse(10), Request{Value: 10}, nil},
		{"pay overpaid", PayPerUse(10), Request{Value: 11}, nil},
		{"pay underpaid", PayPerUse(10), Request{Value: 9}, ErrPaymentRequired},
		{"pay free content", PayPerUse(0), Request{Value: 0}, nil},
		{"whitelist member", Whitelisted("alice"), Request{Caller: "alice"}, nil},
		{"whitelist stranger", Whitelisted("alice"), Request{Caller: "mallory"}, ErrNotWhitelisted},
		{"whitelist empty", Whitelisted(), Request{Caller: "alice"}, ErrNotWhitelisted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Authorize(tt.req)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCapped_RejectsZeroLimit(t *testing.T) {
	_, err := Capped(0)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestAddToWhitelist(t *testing.T) {
	p := Whitelisted()

	added, err := p.AddToWhitelist("carol")
	require.NoError(t, err)
	assert.True(t, added)

	// 幂等：第二次添加没有额外效果
	added, err = p.AddToWhitelist("carol")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, []types.Identity{"carol"}, p.Whitelist())

	assert.NoError(t, p.Authorize(Request{Caller: "carol"}))
	assert.ErrorIs(t, p.Authorize(Request{Caller: "dave"}), ErrNotWhitelisted)

	_, err = p.AddToWhitelist("")
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestAddToWhitelist_Unsupported(t *testing.T) {
	capped, err := Capped(1)
	require.NoError(t, err)

	for _, p := range []*Policy{Open(), capped, PayPerUse(1)} {
		_, err := p.AddToWhitelist("x")
		assert.ErrorIs(t, err, ErrUnsupportedOperation, "kind=%s", p.Kind())
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"open":         KindOpen,
		"basic":        KindOpen,
		"Capped":       KindCapped,
		"pay-per-use":  KindPayPerUse,
		"PayPerUse":    KindPayPerUse,
		"whitelist":    KindWhitelisted,
		" whitelisted": KindWhitelisted,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseKind("auction")
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestSpec_RoundTrip(t *testing.T) {
	for _, spec := range []Spec{
		{Kind: KindOpen},
		{Kind: KindCapped, MaxUses: 3},
		{Kind: KindPayPerUse, PricePerUse: 7},
		{Kind: KindWhitelisted, Whitelist: []types.Identity{"a", "b"}},
	} {
		p, err := New(spec)
		require.NoError(t, err)
		assert.Equal(t, spec, p.Spec())
	}

	_, err := New(Spec{Kind: "lottery"})
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}
