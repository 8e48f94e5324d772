package pricing

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCaller answers latestRoundData and decimals calls with canned values.
type fakeCaller struct {
	answer   *big.Int
	decimals byte
	calls    int
}

func (f *fakeCaller) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if bytes.Equal(call.Data, selDecimals) {
		out := make([]byte, 32)
		out[31] = f.decimals
		return out, nil
	}
	// five words: roundId, answer, startedAt, updatedAt, answeredInRound
	out := make([]byte, 160)
	f.answer.FillBytes(out[32:64])
	return out, nil
}

func TestFeedSourcePrice(t *testing.T) {
	caller := &fakeCaller{
		answer:   big.NewInt(248550000000), // 2485.50 with 8 decimals
		decimals: 8,
	}
	src := NewFeedSource(map[string]FeedVenue{
		"uniswap_v3": {
			Caller: caller,
			Feeds:  map[string]common.Address{"WETH": common.HexToAddress("0x01")},
		},
	})

	price, err := src.Price(context.Background(), "uniswap_v3", "WETH")
	require.NoError(t, err)
	assert.InDelta(t, 2485.50, price, 1e-9)

	// decimals are cached after the first read
	callsAfterFirst := caller.calls
	_, err = src.Price(context.Background(), "uniswap_v3", "WETH")
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst+1, caller.calls)
}

func TestFeedSourceUnknownVenueOrToken(t *testing.T) {
	src := NewFeedSource(map[string]FeedVenue{
		"uniswap_v3": {Caller: &fakeCaller{answer: big.NewInt(1), decimals: 8}},
	})

	_, err := src.Price(context.Background(), "nope", "WETH")
	assert.Error(t, err)
	_, err = src.Price(context.Background(), "uniswap_v3", "WETH")
	assert.Error(t, err)
}

func TestSimSourceDeterministic(t *testing.T) {
	a := NewSimSource()
	b := NewSimSource()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		a.Advance()
		b.Advance()
	}

	pa, err := a.Price(ctx, "uniswap_v3", "WETH")
	require.NoError(t, err)
	pb, err := b.Price(ctx, "uniswap_v3", "WETH")
	require.NoError(t, err)
	assert.Equal(t, pa, pb)

	// venues diverge
	other, err := a.Price(ctx, "sushiswap", "WETH")
	require.NoError(t, err)
	assert.NotEqual(t, pa, other)

	// unknown token errors
	_, err = a.Price(ctx, "uniswap_v3", "DOGE")
	assert.Error(t, err)
}
