package postgres

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpsim/internal/apperr"
	"lpsim/internal/model"
)

const testPoolAddress = "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"

func seedPool(t *testing.T, s *Store, chainID uint64, dexID string) model.Pool {
	t.Helper()
	pools, err := s.UpsertPools(context.Background(), []model.Pool{{
		ChainID:        chainID,
		DexID:          dexID,
		Address:        testPoolAddress,
		Token0Decimals: 6,
		Token1Decimals: 18,
		FeeTier:        500,
		TickSpacing:    10,
	}})
	require.NoError(t, err)
	require.Len(t, pools, 1)
	return pools[0]
}

func TestStore(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	t.Run("pools", func(t *testing.T) {
		pool := seedPool(t, s, 1, "uniswap_v3")
		assert.Positive(t, pool.ID)
		assert.Equal(t, "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640", pool.Address)

		again := seedPool(t, s, 1, "uniswap_v3")
		assert.Equal(t, pool.ID, again.ID)

		byID, err := s.ResolvePool(ctx, model.PoolRef{ID: pool.ID})
		require.NoError(t, err)
		assert.Equal(t, pool, byID)

		byAddr, err := s.ResolvePool(ctx, model.PoolRef{Address: testPoolAddress})
		require.NoError(t, err)
		assert.Equal(t, pool.ID, byAddr.ID)

		_, err = s.ResolvePool(ctx, model.PoolRef{ID: pool.ID + 1000})
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

		missing, err := s.GetPool(ctx, "0x0000000000000000000000000000000000000001", 0, "")
		require.NoError(t, err)
		assert.Nil(t, missing)

		seedPool(t, s, 8453, "uniswap_v3")
		_, err = s.ResolvePool(ctx, model.PoolRef{Address: testPoolAddress})
		assert.Equal(t, apperr.KindInput, apperr.KindOf(err))

		base, err := s.ResolvePool(ctx, model.PoolRef{Address: testPoolAddress, ChainID: 8453})
		require.NoError(t, err)
		assert.Equal(t, uint64(8453), base.ChainID)
	})

	t.Run("snapshots", func(t *testing.T) {
		pool := seedPool(t, s, 10, "uniswap_v3")
		g0 := new(uint256.Int).SetAllOne()
		err := s.UpsertSnapshots(ctx, pool, []model.PoolSnapshot{
			{
				BlockNumber:          100,
				Timestamp:            1_000,
				Tick:                 ptr(int32(-5)),
				Liquidity:            big.NewInt(42),
				FeeGrowthGlobal0X128: g0,
				FeeGrowthGlobal1X128: uint256.NewInt(7),
			},
			{
				BlockNumber:          200,
				Timestamp:            2_000,
				SqrtPriceX96:         new(big.Int).Lsh(big.NewInt(1), 96),
				FeeGrowthGlobal0X128: uint256.NewInt(1),
				FeeGrowthGlobal1X128: uint256.NewInt(2),
			},
		})
		require.NoError(t, err)

		latest, err := s.LatestSnapshot(ctx, pool)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, uint64(200), latest.BlockNumber)
		assert.Nil(t, latest.Tick)
		assert.Nil(t, latest.Liquidity)
		assert.Equal(t, 0, latest.SqrtPriceX96.Cmp(new(big.Int).Lsh(big.NewInt(1), 96)))

		before, err := s.SnapshotAtOrBefore(ctx, pool, 1_999)
		require.NoError(t, err)
		require.NotNil(t, before)
		assert.Equal(t, uint64(100), before.BlockNumber)
		assert.Equal(t, int32(-5), *before.Tick)
		assert.Equal(t, g0.Dec(), before.FeeGrowthGlobal0X128.Dec())

		none, err := s.SnapshotAtOrBefore(ctx, pool, 999)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("hourly series", func(t *testing.T) {
		pool := seedPool(t, s, 137, "uniswap_v3")
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		var fees []model.HourlyFee
		for i := 0; i < 5; i++ {
			fees = append(fees, model.HourlyFee{
				Hour:    base.Add(time.Duration(i) * time.Hour),
				FeesUSD: decimal.NewFromInt(int64(i + 1)),
			})
		}
		require.NoError(t, s.UpsertHourlyFees(ctx, pool, fees))

		got, err := s.HourlyFees(ctx, pool, 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.True(t, got[0].Hour.Equal(base.Add(2*time.Hour)))
		assert.True(t, got[2].FeesUSD.Equal(decimal.NewFromInt(5)))

		// Two snapshots in the first hour: the later block wins.
		ts := base.Unix()
		require.NoError(t, s.UpsertSnapshots(ctx, pool, []model.PoolSnapshot{
			{BlockNumber: 1, Timestamp: ts + 60, Tick: ptr(int32(10)), Liquidity: big.NewInt(1), FeeGrowthGlobal0X128: uint256.NewInt(0), FeeGrowthGlobal1X128: uint256.NewInt(0)},
			{BlockNumber: 2, Timestamp: ts + 120, Tick: ptr(int32(20)), Liquidity: big.NewInt(2), FeeGrowthGlobal0X128: uint256.NewInt(0), FeeGrowthGlobal1X128: uint256.NewInt(0)},
			{BlockNumber: 3, Timestamp: ts + 3_600, Tick: ptr(int32(30)), FeeGrowthGlobal0X128: uint256.NewInt(0), FeeGrowthGlobal1X128: uint256.NewInt(0)},
		}))

		ticks, err := s.HourlyTicks(ctx, pool, 24)
		require.NoError(t, err)
		require.Len(t, ticks, 2)
		assert.Equal(t, int32(20), ticks[0].Tick)
		assert.Equal(t, int64(2), ticks[0].Liquidity.Int64())
		assert.True(t, ticks[0].Hour.Equal(base))
		assert.Equal(t, int32(30), ticks[1].Tick)
		assert.Nil(t, ticks[1].Liquidity)
	})

	t.Run("initialized ticks", func(t *testing.T) {
		pool := seedPool(t, s, 42161, "uniswap_v3")
		require.NoError(t, s.UpsertInitializedTicks(ctx, pool, []model.InitializedTick{
			{TickIdx: 100, LiquidityNet: big.NewInt(-50)},
			{TickIdx: -100, LiquidityNet: big.NewInt(50)},
			{TickIdx: 900, LiquidityNet: big.NewInt(1)},
		}))

		got, err := s.InitializedTicks(ctx, pool, -200, 200)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, int32(-100), got[0].TickIdx)
		assert.Equal(t, int64(-50), got[1].LiquidityNet.Int64())
	})

	t.Run("tick snapshots and blocks", func(t *testing.T) {
		pool := seedPool(t, s, 56, "pancakeswap_v3")
		require.NoError(t, s.UpsertTickSnapshots(ctx, pool, []model.TickSnapshot{
			{BlockNumber: 10, TickIdx: -100, FeeGrowthOutside0X128: uint256.NewInt(3), FeeGrowthOutside1X128: uint256.NewInt(4)},
			{BlockNumber: 20, TickIdx: 100, FeeGrowthOutside0X128: uint256.NewInt(5), FeeGrowthOutside1X128: uint256.NewInt(6)},
		}))
		require.NoError(t, s.UpsertTickSnapshots(ctx, pool, []model.TickSnapshot{
			{BlockNumber: 10, TickIdx: -100, FeeGrowthOutside0X128: uint256.NewInt(30), FeeGrowthOutside1X128: uint256.NewInt(40)},
		}))

		keys, err := s.ExistingTickKeys(ctx, pool, []uint64{10, 20}, []int32{-100, 100})
		require.NoError(t, err)
		assert.Len(t, keys, 2)
		assert.Contains(t, keys, model.TickKey{BlockNumber: 10, TickIdx: -100})

		snap, err := s.TickSnapshot(ctx, pool, model.TickKey{BlockNumber: 10, TickIdx: -100})
		require.NoError(t, err)
		require.NotNil(t, snap)
		assert.Equal(t, uint64(30), snap.FeeGrowthOutside0X128.Uint64())

		missing, err := s.TickSnapshot(ctx, pool, model.TickKey{BlockNumber: 20, TickIdx: -100})
		require.NoError(t, err)
		assert.Nil(t, missing)

		err = s.UpsertTickSnapshots(ctx, pool, []model.TickSnapshot{{BlockNumber: 1, TickIdx: 1}})
		assert.Error(t, err)

		require.NoError(t, s.UpsertBlockMetas(ctx, []model.BlockMeta{{ChainID: 56, Number: 10, Timestamp: 1_700_000_000}}))
		blocks, err := s.ExistingBlocks(ctx, 56, []uint64{10, 20})
		require.NoError(t, err)
		assert.Equal(t, map[uint64]struct{}{10: {}}, blocks)

		meta, err := s.BlockMeta(ctx, 56, 10)
		require.NoError(t, err)
		require.NotNil(t, meta)
		assert.Equal(t, int64(1_700_000_000), meta.Timestamp)
	})
}
