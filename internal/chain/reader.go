// Package chain provides read-only access to DeFi contracts on the configured
// EVM network: ERC20 token metadata, Uniswap V2 style pair reserves, and
// factory-based pool discovery.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/risk-sentinel/internal/config"
	"github.com/risk-sentinel/internal/logging"
)

// ERC20 read-only ABI for token metadata and balance queries
const erc20ABI = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

// Uniswap V2 pair ABI for reserve queries
const pairABI = `[
	{"constant":true,"inputs":[],"name":"token0","outputs":[{"name":"","type":"address"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"token1","outputs":[{"name":"","type":"address"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"getReserves","outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

// Uniswap V2 factory ABI for pool discovery
const factoryABI = `[
	{"constant":true,"inputs":[],"name":"allPairsLength","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"","type":"uint256"}],"name":"allPairs","outputs":[{"name":"","type":"address"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"name":"getPair","outputs":[{"name":"pair","type":"address"}],"type":"function"}
]`

// TokenInfo holds ERC20 metadata read from the chain
type TokenInfo struct {
	Address     string   `json:"address"`
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Decimals    uint8    `json:"decimals"`
	TotalSupply *big.Int `json:"totalSupply"`
}

// LiquidityPool holds the on-chain state of a Uniswap V2 style pair
type LiquidityPool struct {
	PairAddress string    `json:"pairAddress"`
	Token0      TokenInfo `json:"token0"`
	Token1      TokenInfo `json:"token1"`
	Reserve0    *big.Int  `json:"reserve0"`
	Reserve1    *big.Int  `json:"reserve1"`
	TVL         string    `json:"tvl"`
	APY         string    `json:"apy"`
}

// EthClient is the subset of ethclient.Client the reader needs
type EthClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Reader performs read-only contract calls against a single configured
// network endpoint. Calls are paced by a token-bucket limiter so a scan
// burst does not trip public RPC rate limits.
type Reader struct {
	client       EthClient
	limiter      *rate.Limiter
	erc20        abi.ABI
	pair         abi.ABI
	factory      abi.ABI
	factories    []string
	pairsPerScan int
	logger       *logging.Logger
}

// NewReader dials the configured RPC endpoint and parses the contract ABIs.
func NewReader(cfg *config.ChainConfig, logger *logging.Logger) (*Reader, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC endpoint %s: %w", cfg.RPCURL, err)
	}
	return NewReaderWithClient(client, cfg, logger)
}

// NewReaderWithClient builds a reader around an existing client. Used by
// tests to substitute a stub client.
func NewReaderWithClient(client EthClient, cfg *config.ChainConfig, logger *logging.Logger) (*Reader, error) {
	parsedERC20, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	parsedPair, err := abi.JSON(strings.NewReader(pairABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}
	parsedFactory, err := abi.JSON(strings.NewReader(factoryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse factory ABI: %w", err)
	}

	return &Reader{
		client:       client,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.RequestsPerSec),
		erc20:        parsedERC20,
		pair:         parsedPair,
		factory:      parsedFactory,
		factories:    cfg.Factories,
		pairsPerScan: cfg.PairsPerScan,
		logger:       logger,
	}, nil
}

// call packs a method call, waits for a limiter slot, and executes eth_call.
func (r *Reader) call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := r.client.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call to %s failed: %w", method, contract.Hex(), err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%s call to %s returned no data", method, contract.Hex())
	}

	return parsed.Unpack(method, result)
}

// GetTokenInfo reads ERC20 metadata for a token contract. Fails if the
// contract does not implement the expected read functions.
func (r *Reader) GetTokenInfo(ctx context.Context, tokenAddress string) (*TokenInfo, error) {
	addr := common.HexToAddress(tokenAddress)

	nameOut, err := r.call(ctx, addr, r.erc20, "name")
	if err != nil {
		return nil, err
	}
	symbolOut, err := r.call(ctx, addr, r.erc20, "symbol")
	if err != nil {
		return nil, err
	}
	decimalsOut, err := r.call(ctx, addr, r.erc20, "decimals")
	if err != nil {
		return nil, err
	}
	supplyOut, err := r.call(ctx, addr, r.erc20, "totalSupply")
	if err != nil {
		return nil, err
	}

	return &TokenInfo{
		Address:     tokenAddress,
		Name:        nameOut[0].(string),
		Symbol:      symbolOut[0].(string),
		Decimals:    decimalsOut[0].(uint8),
		TotalSupply: supplyOut[0].(*big.Int),
	}, nil
}

// GetLiquidityPoolData reads the paired-token addresses and reserves of a
// pair contract, then resolves both tokens' metadata. Any underlying call
// failure fails the whole read; there is no partial result.
func (r *Reader) GetLiquidityPoolData(ctx context.Context, pairAddress string) (*LiquidityPool, error) {
	addr := common.HexToAddress(pairAddress)

	token0Out, err := r.call(ctx, addr, r.pair, "token0")
	if err != nil {
		return nil, err
	}
	token1Out, err := r.call(ctx, addr, r.pair, "token1")
	if err != nil {
		return nil, err
	}
	reservesOut, err := r.call(ctx, addr, r.pair, "getReserves")
	if err != nil {
		return nil, err
	}

	token0Addr := token0Out[0].(common.Address)
	token1Addr := token1Out[0].(common.Address)
	reserve0 := reservesOut[0].(*big.Int)
	reserve1 := reservesOut[1].(*big.Int)

	token0, err := r.GetTokenInfo(ctx, token0Addr.Hex())
	if err != nil {
		return nil, err
	}
	token1, err := r.GetTokenInfo(ctx, token1Addr.Hex())
	if err != nil {
		return nil, err
	}

	return &LiquidityPool{
		PairAddress: pairAddress,
		Token0:      *token0,
		Token1:      *token1,
		Reserve0:    reserve0,
		Reserve1:    reserve1,
	}, nil
}

// DiscoverPools reads the pair count of a Uniswap V2 style factory and
// returns up to limit pair addresses in index order. Discovery degrades
// silently: any error yields an empty list instead of propagating.
func (r *Reader) DiscoverPools(ctx context.Context, factoryAddress string, limit int) []string {
	addr := common.HexToAddress(factoryAddress)

	countOut, err := r.call(ctx, addr, r.factory, "allPairsLength")
	if err != nil {
		r.logger.WithError(err).WithField("factory", factoryAddress).Warn("Failed to read pair count from factory")
		return []string{}
	}

	total := int(countOut[0].(*big.Int).Int64())
	if total > limit {
		total = limit
	}

	pairs := make([]string, 0, total)
	for i := 0; i < total; i++ {
		pairOut, err := r.call(ctx, addr, r.factory, "allPairs", big.NewInt(int64(i)))
		if err != nil {
			r.logger.WithError(err).WithFields(map[string]interface{}{
				"factory": factoryAddress,
				"index":   i,
			}).Warn("Failed to read pair address from factory")
			return []string{}
		}
		pairs = append(pairs, pairOut[0].(common.Address).Hex())
	}

	return pairs
}

// GetUserTokenBalance reads an ERC20 balance for a wallet. Fails closed to
// zero on error so display paths never break on a bad token contract.
func (r *Reader) GetUserTokenBalance(ctx context.Context, tokenAddress, userAddress string) *big.Int {
	addr := common.HexToAddress(tokenAddress)

	out, err := r.call(ctx, addr, r.erc20, "balanceOf", common.HexToAddress(userAddress))
	if err != nil {
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"token":  tokenAddress,
			"wallet": userAddress,
		}).Warn("Failed to read token balance")
		return big.NewInt(0)
	}

	return out[0].(*big.Int)
}

// GetCurrentBlock returns the network's head block number. Failures propagate.
func (r *Reader) GetCurrentBlock(ctx context.Context) (uint64, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	blockNum, err := r.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get current block: %w", err)
	}
	return blockNum, nil
}

// ScanProtocols discovers pools from every known factory and fetches their
// state. A factory or pair error never aborts the scan: failed pairs are
// logged and skipped, failed factories contribute nothing.
func (r *Reader) ScanProtocols(ctx context.Context) []LiquidityPool {
	pools := make([]LiquidityPool, 0)

	for _, factoryAddress := range r.factories {
		if factoryAddress == "" {
			continue
		}
		r.logger.WithField("factory", factoryAddress).Info("Scanning factory for liquidity pools")

		pairAddresses := r.DiscoverPools(ctx, factoryAddress, r.pairsPerScan)

		for _, pairAddress := range pairAddresses {
			pool, err := r.GetLiquidityPoolData(ctx, pairAddress)
			if err != nil {
				r.logger.WithError(err).WithField("pair", pairAddress).Warn("Skipping pool with failed data fetch")
				continue
			}

			pool.TVL = EstimateTVL(pool.Reserve0, pool.Reserve1, pool.Token0.Decimals, pool.Token1.Decimals)
			pool.APY = "0"
			pools = append(pools, *pool)
		}
	}

	return pools
}
