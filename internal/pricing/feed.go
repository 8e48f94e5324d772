package pricing

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Function selectors for the aggregator interface.
var (
	selLatestRoundData = []byte{0xfe, 0xaf, 0x96, 0x8c} // latestRoundData()
	selDecimals        = []byte{0x31, 0x3c, 0xe5, 0x67} // decimals()
)

// ContractCaller is the subset of the eth client used by FeedSource.
// *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// FeedVenue is one venue backed by an RPC endpoint and a set of
// token -> aggregator contract address mappings.
type FeedVenue struct {
	Caller ContractCaller
	Feeds  map[string]common.Address
}

// FeedSource reads prices from Chainlink-compatible aggregator contracts,
// one RPC client per venue. Decimals are fetched once per feed and cached.
type FeedSource struct {
	venues map[string]FeedVenue

	mu       sync.Mutex
	decimals map[common.Address]int32
}

// NewFeedSource creates a FeedSource over the given venues.
func NewFeedSource(venues map[string]FeedVenue) *FeedSource {
	return &FeedSource{
		venues:   venues,
		decimals: make(map[common.Address]int32),
	}
}

// VenueEndpoint describes how to reach one venue's feeds.
type VenueEndpoint struct {
	RPCURL string
	Feeds  map[string]string // token symbol -> aggregator address (hex)
}

// Dial connects RPC clients for each venue endpoint and builds a FeedSource.
func Dial(ctx context.Context, venues map[string]VenueEndpoint) (*FeedSource, error) {
	out := make(map[string]FeedVenue, len(venues))
	for name, v := range venues {
		client, err := ethclient.DialContext(ctx, v.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("pricing: dial venue %s: %w", name, err)
		}
		feeds := make(map[string]common.Address, len(v.Feeds))
		for token, addr := range v.Feeds {
			feeds[token] = common.HexToAddress(addr)
		}
		out[name] = FeedVenue{Caller: client, Feeds: feeds}
	}
	return NewFeedSource(out), nil
}

// Price returns the latest aggregator answer for the token on the venue,
// scaled to a USD float by the feed's decimals.
func (s *FeedSource) Price(ctx context.Context, venue, token string) (float64, error) {
	v, ok := s.venues[venue]
	if !ok {
		return 0, fmt.Errorf("pricing: unknown venue %q", venue)
	}
	feed, ok := v.Feeds[token]
	if !ok {
		return 0, fmt.Errorf("pricing: venue %s has no feed for token %q", venue, token)
	}

	dec, err := s.feedDecimals(ctx, v.Caller, feed)
	if err != nil {
		return 0, err
	}

	raw, err := v.Caller.CallContract(ctx, ethereum.CallMsg{
		To:   &feed,
		Data: selLatestRoundData,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("pricing: latestRoundData %s/%s: %w", venue, token, err)
	}
	// (roundId, answer, startedAt, updatedAt, answeredInRound), five 32-byte words
	if len(raw) < 160 {
		return 0, fmt.Errorf("pricing: latestRoundData %s/%s: short response (%d bytes)", venue, token, len(raw))
	}

	answer := new(big.Int).SetBytes(raw[32:64])
	// answer is int256; handle the (never expected) negative case
	if raw[32]&0x80 != 0 {
		answer.Sub(answer, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	if answer.Sign() <= 0 {
		return 0, fmt.Errorf("pricing: non-positive answer for %s/%s", venue, token)
	}

	price, _ := new(big.Float).SetInt(answer).Float64()
	return price / math.Pow10(int(dec)), nil
}

func (s *FeedSource) feedDecimals(ctx context.Context, caller ContractCaller, feed common.Address) (int32, error) {
	s.mu.Lock()
	dec, ok := s.decimals[feed]
	s.mu.Unlock()
	if ok {
		return dec, nil
	}

	raw, err := caller.CallContract(ctx, ethereum.CallMsg{
		To:   &feed,
		Data: selDecimals,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("pricing: decimals %s: %w", feed.Hex(), err)
	}
	if len(raw) < 32 {
		return 0, fmt.Errorf("pricing: decimals %s: short response", feed.Hex())
	}
	dec = int32(raw[31])

	s.mu.Lock()
	s.decimals[feed] = dec
	s.mu.Unlock()
	return dec, nil
}
