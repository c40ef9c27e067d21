package dex

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpsim/internal/apperr"
	"lpsim/internal/model"
)

type fakeCaller struct {
	t      *testing.T
	abis   map[common.Address]abi.ABI
	out    map[common.Address]map[string]func(args []interface{}) []interface{}
	blocks []*big.Int
	calls  map[string]int
	err    error
}

func newFakeCaller(t *testing.T) *fakeCaller {
	return &fakeCaller{
		t:     t,
		abis:  make(map[common.Address]abi.ABI),
		out:   make(map[common.Address]map[string]func(args []interface{}) []interface{}),
		calls: make(map[string]int),
	}
}

func (f *fakeCaller) on(addr common.Address, parsed abi.ABI, method string, fn func(args []interface{}) []interface{}) {
	f.abis[addr] = parsed
	if f.out[addr] == nil {
		f.out[addr] = make(map[string]func(args []interface{}) []interface{})
	}
	f.out[addr][method] = fn
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	parsed, ok := f.abis[*msg.To]
	if !ok {
		return nil, fmt.Errorf("no contract at %s", msg.To.Hex())
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	fn, ok := f.out[*msg.To][method.Name]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	f.calls[method.Name]++
	f.blocks = append(f.blocks, block)
	return method.Outputs.Pack(fn(args)...)
}

var (
	poolAddr   = common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
	token0Addr = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	token1Addr = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

func seedCaller(t *testing.T) *fakeCaller {
	t.Helper()
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	erc20, err := erc20ABIInstance()
	if err != nil {
		t.Fatalf("erc20 abi parse: %v", err)
	}

	f := newFakeCaller(t)
	f.on(poolAddr, poolABI, "token0", func([]interface{}) []interface{} { return []interface{}{token0Addr} })
	f.on(poolAddr, poolABI, "token1", func([]interface{}) []interface{} { return []interface{}{token1Addr} })
	f.on(poolAddr, poolABI, "fee", func([]interface{}) []interface{} { return []interface{}{big.NewInt(500)} })
	f.on(poolAddr, poolABI, "tickSpacing", func([]interface{}) []interface{} { return []interface{}{big.NewInt(10)} })
	f.on(poolAddr, poolABI, "slot0", func([]interface{}) []interface{} {
		return []interface{}{
			new(big.Int).Lsh(big.NewInt(1), 96),
			big.NewInt(-201000),
			uint16(1), uint16(2), uint16(3), uint8(0), true,
		}
	})
	f.on(poolAddr, poolABI, "liquidity", func([]interface{}) []interface{} { return []interface{}{big.NewInt(123456)} })
	f.on(poolAddr, poolABI, "feeGrowthGlobal0X128", func([]interface{}) []interface{} {
		return []interface{}{new(big.Int).Lsh(big.NewInt(7), 128)}
	})
	f.on(poolAddr, poolABI, "feeGrowthGlobal1X128", func([]interface{}) []interface{} {
		return []interface{}{big.NewInt(9)}
	})
	f.on(poolAddr, poolABI, "ticks", func(args []interface{}) []interface{} {
		tick := args[0].(*big.Int).Int64()
		return []interface{}{
			big.NewInt(1), big.NewInt(-1),
			big.NewInt(1000 + tick), big.NewInt(2000 + tick),
			big.NewInt(0), big.NewInt(0), uint32(0), tick != 0,
		}
	})
	f.on(token0Addr, erc20, "decimals", func([]interface{}) []interface{} { return []interface{}{uint8(6)} })
	f.on(token1Addr, erc20, "decimals", func([]interface{}) []interface{} { return []interface{}{uint8(18)} })
	return f
}

func TestReaderPool(t *testing.T) {
	f := seedCaller(t)
	r := NewReader(f, zap.NewNop())

	pool, err := r.Pool(context.Background(), 1, "uniswap_v3", poolAddr)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	want := model.Pool{
		ChainID:        1,
		DexID:          "uniswap_v3",
		Address:        "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640",
		Token0Decimals: 6,
		Token1Decimals: 18,
		FeeTier:        500,
		TickSpacing:    10,
	}
	if pool != want {
		t.Fatalf("pool = %+v, want %+v", pool, want)
	}

	if _, err := r.Pool(context.Background(), 1, "uniswap_v3", poolAddr); err != nil {
		t.Fatalf("pool again: %v", err)
	}
	if f.calls["decimals"] != 2 {
		t.Fatalf("decimals should be cached, got %d calls", f.calls["decimals"])
	}
}

func TestReaderSnapshot(t *testing.T) {
	f := seedCaller(t)
	r := NewReader(f, nil)

	snap, err := r.Snapshot(context.Background(), poolAddr, 19_000_000)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.BlockNumber != 19_000_000 || snap.Tick == nil || *snap.Tick != -201000 {
		t.Fatalf("unexpected snapshot header: %+v", snap)
	}
	if snap.Liquidity.Int64() != 123456 {
		t.Fatalf("liquidity = %s", snap.Liquidity)
	}
	if snap.SqrtPriceX96.Cmp(new(big.Int).Lsh(big.NewInt(1), 96)) != 0 {
		t.Fatalf("sqrt price = %s", snap.SqrtPriceX96)
	}
	if snap.FeeGrowthGlobal0X128.ToBig().Cmp(new(big.Int).Lsh(big.NewInt(7), 128)) != 0 {
		t.Fatalf("fee growth 0 = %s", snap.FeeGrowthGlobal0X128.Dec())
	}
	if snap.FeeGrowthGlobal1X128.Uint64() != 9 {
		t.Fatalf("fee growth 1 = %s", snap.FeeGrowthGlobal1X128.Dec())
	}
	for _, b := range f.blocks {
		if b == nil || b.Uint64() != 19_000_000 {
			t.Fatalf("call not pinned to block: %v", b)
		}
	}
}

func TestReaderTick(t *testing.T) {
	f := seedCaller(t)
	r := NewReader(f, nil)

	snap, err := r.Tick(context.Background(), poolAddr, -60, 100)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if snap.Key() != (model.TickKey{BlockNumber: 100, TickIdx: -60}) {
		t.Fatalf("key = %v", snap.Key())
	}
	if snap.FeeGrowthOutside0X128.Uint64() != 940 || snap.FeeGrowthOutside1X128.Uint64() != 1940 {
		t.Fatalf("outside = %s/%s", snap.FeeGrowthOutside0X128.Dec(), snap.FeeGrowthOutside1X128.Dec())
	}

	// Uninitialized ticks still report their counters.
	snap, err = r.Tick(context.Background(), poolAddr, 0, 100)
	if err != nil || snap == nil {
		t.Fatalf("uninitialized tick: %v %v", snap, err)
	}
}

func TestTickSourceWrapsErrors(t *testing.T) {
	f := seedCaller(t)
	f.err = fmt.Errorf("missing trie node")
	src := NewTickSource(NewReader(f, nil))

	pool := model.Pool{Address: "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640"}
	_, err := src.TickByID(context.Background(), pool, model.TickKey{BlockNumber: 1, TickIdx: 10})
	if apperr.KindOf(err) != apperr.KindExternal {
		t.Fatalf("expected external error, got %v", err)
	}
}

func TestTickSourceCallsNodeOnce(t *testing.T) {
	f := seedCaller(t)
	src := NewTickSource(NewReader(f, nil))
	pool := model.Pool{Address: poolAddr.Hex()}
	key := model.TickKey{BlockNumber: 100, TickIdx: -60}

	snap, err := src.TickByID(context.Background(), pool, key)
	if err != nil || snap == nil {
		t.Fatalf("tick by id: %v %v", snap, err)
	}
	snap, err = src.TickByFilter(context.Background(), pool, key)
	if err != nil || snap != nil {
		t.Fatalf("tick by filter: %v %v", snap, err)
	}
	if f.calls["ticks"] != 1 {
		t.Fatalf("ticks called %d times, want 1", f.calls["ticks"])
	}
}

func TestReaderRejectsBadSpacing(t *testing.T) {
	f := seedCaller(t)
	poolABI, _ := V3PoolABI()
	f.on(poolAddr, poolABI, "tickSpacing", func([]interface{}) []interface{} { return []interface{}{big.NewInt(0)} })

	if _, err := NewReader(f, nil).Pool(context.Background(), 1, "uniswap_v3", poolAddr); err == nil {
		t.Fatalf("expected error for zero tick spacing")
	}
}
