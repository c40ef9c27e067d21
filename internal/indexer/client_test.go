package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"lpsim/internal/apperr"
	"lpsim/internal/model"
)

var testPool = model.Pool{ChainID: 1, DexID: "uniswap_v3", Address: "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640"}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := []Option{
		WithMaxAttempts(3),
		WithBackoff(time.Millisecond),
		WithMinInterval(0),
		WithBlocksEndpoint(srv.URL + "/blocks"),
		WithLogger(zaptest.NewLogger(t)),
	}
	c, err := NewClient(srv.URL+"/ticks", append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func decodeRequest(t *testing.T, r *http.Request) graphQLRequest {
	t.Helper()
	var req graphQLRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func TestTickByID_Success(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ticks", r.URL.Path)

		req := decodeRequest(t, r)
		assert.Contains(t, req.Query, "block: {number: $block}")
		assert.Equal(t, "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640#-60", req.Variables["id"])
		assert.Equal(t, float64(123), req.Variables["block"])

		_, _ = w.Write([]byte(`{"data":{"tick":{"tickIdx":"-60","feeGrowthOutside0X128":"340282366920938463463374607431768211456","feeGrowthOutside1X128":"7"}}}`))
	})
	c := newTestClient(t, handler)

	snap, err := c.TickByID(context.Background(), testPool, model.TickKey{BlockNumber: 123, TickIdx: -60})
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, uint64(123), snap.BlockNumber)
	assert.Equal(t, int32(-60), snap.TickIdx)
	assert.True(t, snap.FeeGrowthOutside0X128.Eq(new(uint256.Int).Lsh(uint256.NewInt(1), 128)))
	assert.True(t, snap.FeeGrowthOutside1X128.Eq(uint256.NewInt(7)))
}

func TestTickByID_NotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"tick":null}}`))
	})
	c := newTestClient(t, handler)

	snap, err := c.TickByID(context.Background(), testPool, model.TickKey{BlockNumber: 1, TickIdx: 60})
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestTickByFilter(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Contains(t, req.Query, "where: {pool: $pool, tickIdx: $tickIdx}")
		assert.Equal(t, testPool.Address, req.Variables["pool"])
		assert.Equal(t, "60", req.Variables["tickIdx"])

		if req.Variables["block"] == float64(1) {
			_, _ = w.Write([]byte(`{"data":{"ticks":[]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"ticks":[{"tickIdx":"60","feeGrowthOutside0X128":"1","feeGrowthOutside1X128":"2"}]}}`))
	})
	c := newTestClient(t, handler)
	ctx := context.Background()

	snap, err := c.TickByFilter(ctx, testPool, model.TickKey{BlockNumber: 1, TickIdx: 60})
	require.NoError(t, err)
	assert.Nil(t, snap)

	snap, err = c.TickByFilter(ctx, testPool, model.TickKey{BlockNumber: 2, TickIdx: 60})
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.FeeGrowthOutside1X128.Eq(uint256.NewInt(2)))
}

func TestQuery_BlockPinUnsupportedIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"errors":[{"message":"Unknown argument \"block\" on field \"tick\" of type \"Query\"."}]}`))
	})
	c := newTestClient(t, handler)

	_, err := c.TickByID(context.Background(), testPool, model.TickKey{BlockNumber: 1, TickIdx: 60})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBlockPinUnsupported))
	assert.Equal(t, int32(1), hits.Load())
}

func TestQuery_RetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"tick":{"tickIdx":"60","feeGrowthOutside0X128":"1","feeGrowthOutside1X128":"1"}}}`))
	})
	c := newTestClient(t, handler)

	snap, err := c.TickByID(context.Background(), testPool, model.TickKey{BlockNumber: 1, TickIdx: 60})
	require.NoError(t, err)
	assert.NotNil(t, snap)
	assert.Equal(t, int32(3), hits.Load())
}

func TestQuery_ExhaustedRetries(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"errors":[{"message":"indexing error: store unavailable"}]}`))
	})
	c := newTestClient(t, handler)

	_, err := c.TickByID(context.Background(), testPool, model.TickKey{BlockNumber: 1, TickIdx: 60})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBlockPinUnsupported))
	assert.Equal(t, apperr.KindExternal, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "store unavailable")
	assert.Equal(t, int32(3), hits.Load())
}

func TestQuery_InvalidCounterIsAnError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"tick":{"tickIdx":"60","feeGrowthOutside0X128":"-1","feeGrowthOutside1X128":"1"}}}`))
	})
	c := newTestClient(t, handler)

	_, err := c.TickByID(context.Background(), testPool, model.TickKey{BlockNumber: 1, TickIdx: 60})
	require.Error(t, err)
}

func TestBlockMetas(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/blocks", r.URL.Path)
		req := decodeRequest(t, r)
		assert.Equal(t, []any{"20", "10"}, req.Variables["numbers"])
		_, _ = w.Write([]byte(`{"data":{"blocks":[{"number":"20","timestamp":"1700000240"},{"number":"10","timestamp":"1700000120"}]}}`))
	})
	c := newTestClient(t, handler)

	metas, err := c.BlockMetas(context.Background(), 1, []uint64{20, 10})
	require.NoError(t, err)
	assert.Equal(t, []model.BlockMeta{
		{ChainID: 1, Number: 10, Timestamp: 1700000120},
		{ChainID: 1, Number: 20, Timestamp: 1700000240},
	}, metas)
}

func TestBlockMetas_NotConfigured(t *testing.T) {
	c, err := NewClient("http://localhost:0/ticks")
	require.NoError(t, err)
	_, err = c.BlockMetas(context.Background(), 1, []uint64{1})
	require.Error(t, err)
}

func TestIsBlockPinError(t *testing.T) {
	assert.True(t, isBlockPinError(`Unknown argument "block" on field "ticks"`))
	assert.True(t, isBlockPinError(`Type mismatch on variable $block and argument block (Block_height)`))
	assert.False(t, isBlockPinError("store error: connection refused"))
	assert.False(t, isBlockPinError("block number 10 is not yet indexed"))
}

func TestRateLimiterSpacesRequests(t *testing.T) {
	limiter := NewRateLimiter(30 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, limiter.Wait(cancelled), context.Canceled)
}
