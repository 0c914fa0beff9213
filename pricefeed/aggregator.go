package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Selectors of the aggregator read methods, precomputed.
var (
	selLatestRoundData = hexutil.Bytes{0xfe, 0xaf, 0x96, 0x8c} // latestRoundData()
	selDecimals        = hexutil.Bytes{0x31, 0x3c, 0xe5, 0x67} // decimals()
)

var (
	ErrBadAggregatorReply = errors.New("pricefeed: malformed aggregator reply")

	wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	// int256 sign threshold for decoding the answer word.
	int256Half = new(big.Int).Lsh(big.NewInt(1), 255)
)

// Caller is the slice of go-ethereum's rpc.Client this feed needs.
// *rpc.Client satisfies it directly.
type Caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// AggregatorFeed reads Chainlink-compatible price aggregators over raw
// eth_call. Answers are rescaled from the aggregator's own decimals to wad.
type AggregatorFeed struct {
	client      Caller
	timeout     time.Duration
	aggregators map[common.Address]common.Address
	decimals    map[common.Address]uint8
}

// NewAggregatorFeed wraps an rpc caller. Assets are mapped to their
// aggregator contracts via Register before first use.
func NewAggregatorFeed(client Caller, timeout time.Duration) *AggregatorFeed {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AggregatorFeed{
		client:      client,
		timeout:     timeout,
		aggregators: make(map[common.Address]common.Address),
		decimals:    make(map[common.Address]uint8),
	}
}

// Register maps an asset to its aggregator contract and fetches the
// aggregator's decimals once.
func (f *AggregatorFeed) Register(ctx context.Context, asset, aggregator common.Address) error {
	reply, err := f.ethCall(ctx, aggregator, selDecimals)
	if err != nil {
		return fmt.Errorf("pricefeed: decimals query for %s: %w", aggregator, err)
	}
	if len(reply) != 32 {
		return fmt.Errorf("%w: decimals reply length %d", ErrBadAggregatorReply, len(reply))
	}
	f.aggregators[asset] = aggregator
	f.decimals[asset] = reply[31]
	return nil
}

func (f *AggregatorFeed) Latest(asset common.Address) (*big.Int, int64, error) {
	aggregator, ok := f.aggregators[asset]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	reply, err := f.ethCall(ctx, aggregator, selLatestRoundData)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, asset, err)
	}
	// latestRoundData returns (roundId, answer, startedAt, updatedAt, answeredInRound).
	if len(reply) != 5*32 {
		return nil, 0, fmt.Errorf("%w: reply length %d", ErrBadAggregatorReply, len(reply))
	}

	answer := new(big.Int).SetBytes(reply[32:64])
	if answer.Cmp(int256Half) >= 0 {
		// Negative answers signal a broken aggregator; refuse them.
		return nil, 0, fmt.Errorf("%w: negative answer for %s", ErrPriceUnavailable, asset)
	}
	if answer.Sign() == 0 {
		return nil, 0, fmt.Errorf("%w: zero answer for %s", ErrPriceUnavailable, asset)
	}

	updatedAt := new(big.Int).SetBytes(reply[96:128])

	price := new(big.Int).Mul(answer, wad)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(f.decimals[asset])), nil)
	price.Div(price, scale)

	return price, updatedAt.Int64(), nil
}

func (f *AggregatorFeed) ethCall(ctx context.Context, to common.Address, data hexutil.Bytes) ([]byte, error) {
	var result hexutil.Bytes
	call := map[string]any{
		"to":   to,
		"data": data,
	}
	if err := f.client.CallContext(ctx, &result, "eth_call", call, "latest"); err != nil {
		return nil, err
	}
	return result, nil
}
