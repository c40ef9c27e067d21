package dex

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"lpsim/internal/model"
)

// ContractCaller executes read-only contract calls. A nil block means latest.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error)
}

// Reader reads V3 pool configuration and state through eth_call.
type Reader struct {
	caller ContractCaller
	logger *zap.Logger

	mu       sync.RWMutex
	decimals map[common.Address]uint8
}

func NewReader(caller ContractCaller, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		caller:   caller,
		logger:   logger,
		decimals: make(map[common.Address]uint8),
	}
}

// Pool loads the immutable configuration of the pool at address.
func (r *Reader) Pool(ctx context.Context, chainID uint64, dexID string, address common.Address) (model.Pool, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.Pool{}, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := r.call(ctx, address, poolABI, "token0", nil)
	if err != nil {
		return model.Pool{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("token0: %w", err)
	}

	values, err = r.call(ctx, address, poolABI, "token1", nil)
	if err != nil {
		return model.Pool{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("token1: %w", err)
	}

	values, err = r.call(ctx, address, poolABI, "fee", nil)
	if err != nil {
		return model.Pool{}, err
	}
	feeInt, err := asBigInt(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("fee: %w", err)
	}

	values, err = r.call(ctx, address, poolABI, "tickSpacing", nil)
	if err != nil {
		return model.Pool{}, err
	}
	spacingInt, err := asBigInt(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("tick spacing: %w", err)
	}
	spacing, err := int24FromBig(spacingInt)
	if err != nil {
		return model.Pool{}, fmt.Errorf("tick spacing: %w", err)
	}
	if spacing <= 0 {
		return model.Pool{}, fmt.Errorf("tick spacing: must be positive, got %d", spacing)
	}

	dec0, err := r.tokenDecimals(ctx, token0)
	if err != nil {
		return model.Pool{}, fmt.Errorf("token0 decimals: %w", err)
	}
	dec1, err := r.tokenDecimals(ctx, token1)
	if err != nil {
		return model.Pool{}, fmt.Errorf("token1 decimals: %w", err)
	}

	return model.Pool{
		ChainID:        chainID,
		DexID:          dexID,
		Address:        strings.ToLower(address.Hex()),
		Token0Decimals: dec0,
		Token1Decimals: dec1,
		FeeTier:        uint32(feeInt.Uint64()),
		TickSpacing:    spacing,
	}, nil
}

// Snapshot reads slot0, liquidity and the global fee growth counters at
// block. Timestamp is left for the caller to fill in.
func (r *Reader) Snapshot(ctx context.Context, address common.Address, block uint64) (model.PoolSnapshot, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("parse pool abi: %w", err)
	}
	blockPtr := new(big.Int).SetUint64(block)
	snap := model.PoolSnapshot{BlockNumber: block}

	values, err := r.call(ctx, address, poolABI, "slot0", blockPtr)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	if len(values) < 2 {
		return model.PoolSnapshot{}, fmt.Errorf("slot0: unexpected output length %d", len(values))
	}
	if snap.SqrtPriceX96, err = asBigInt(values[0]); err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("slot0 sqrt price: %w", err)
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("slot0 tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("slot0 tick: %w", err)
	}
	snap.Tick = &tick

	values, err = r.call(ctx, address, poolABI, "liquidity", blockPtr)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	if snap.Liquidity, err = asBigInt(values[0]); err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("liquidity: %w", err)
	}

	if snap.FeeGrowthGlobal0X128, err = r.callUint256(ctx, address, poolABI, "feeGrowthGlobal0X128", blockPtr); err != nil {
		return model.PoolSnapshot{}, err
	}
	if snap.FeeGrowthGlobal1X128, err = r.callUint256(ctx, address, poolABI, "feeGrowthGlobal1X128", blockPtr); err != nil {
		return model.PoolSnapshot{}, err
	}
	return snap, nil
}

// Tick reads the fee growth outside counters of tick at block. Uninitialized
// ticks carry zero counters, which is also what the pool reads for them.
func (r *Reader) Tick(ctx context.Context, address common.Address, tick int32, block uint64) (*model.TickSnapshot, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := r.call(ctx, address, poolABI, "ticks", new(big.Int).SetUint64(block), big.NewInt(int64(tick)))
	if err != nil {
		return nil, err
	}
	if len(values) != 8 {
		return nil, fmt.Errorf("ticks: unexpected output length %d", len(values))
	}
	if initialized, _ := values[7].(bool); !initialized {
		r.logger.Debug("tick not initialized", zap.String("pool", address.Hex()), zap.Int32("tick", tick), zap.Uint64("block", block))
	}

	out0, err := asBigInt(values[2])
	if err != nil {
		return nil, fmt.Errorf("fee growth outside0: %w", err)
	}
	out1, err := asBigInt(values[3])
	if err != nil {
		return nil, fmt.Errorf("fee growth outside1: %w", err)
	}
	snap := &model.TickSnapshot{BlockNumber: block, TickIdx: tick}
	if snap.FeeGrowthOutside0X128, err = toUint256(out0); err != nil {
		return nil, fmt.Errorf("fee growth outside0: %w", err)
	}
	if snap.FeeGrowthOutside1X128, err = toUint256(out1); err != nil {
		return nil, fmt.Errorf("fee growth outside1: %w", err)
	}
	return snap, nil
}

func (r *Reader) tokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	r.mu.RLock()
	dec, ok := r.decimals[token]
	r.mu.RUnlock()
	if ok {
		return dec, nil
	}

	erc20, err := erc20ABIInstance()
	if err != nil {
		return 0, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := r.call(ctx, token, erc20, "decimals", nil)
	if err != nil {
		return 0, err
	}
	dec, err = asUint8(values[0])
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.decimals[token] = dec
	r.mu.Unlock()
	r.logger.Debug("token decimals loaded", zap.String("token", token.Hex()), zap.Uint8("decimals", dec))
	return dec, nil
}

func (r *Reader) callUint256(ctx context.Context, address common.Address, parsed abi.ABI, method string, block *big.Int) (*uint256.Int, error) {
	values, err := r.call(ctx, address, parsed, method, block)
	if err != nil {
		return nil, err
	}
	v, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	out, err := toUint256(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

func (r *Reader) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := r.caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty output", method)
	}
	return values, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("uint8 overflow: %s", v.String())
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s", v.String())
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("value %s exceeds 256 bits", v.String())
	}
	return out, nil
}
