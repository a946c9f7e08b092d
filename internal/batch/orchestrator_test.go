package batch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/cache"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
	"github.com/joseph-ayodele/invoice-ocr/internal/resilience"
)

// fakeRecognizer treats the image bytes as a script: "slow*" blocks until
// the deadline, "flaky*" fails with engine errors before succeeding, "bad*"
// fails to decode, "down*" always fails in the engine.
type fakeRecognizer struct {
	mu       sync.Mutex
	calls    map[string]int
	active   int
	peak     int
	flakyFor int
	delay    time.Duration
}

func newFake() *fakeRecognizer { return &fakeRecognizer{calls: map[string]int{}} }

func (f *fakeRecognizer) Decode(_ context.Context, data []byte) (ocr.Image, error) {
	if strings.HasPrefix(string(data), "bad") {
		return ocr.Image{}, common.NewInputError(common.CodeDecodeError, "unreadable", nil)
	}
	return ocr.Image{Fingerprint: string(data)}, nil
}

func (f *fakeRecognizer) Process(ctx context.Context, img ocr.Image) (*entity.InvoiceRecord, error) {
	f.mu.Lock()
	f.calls[img.Fingerprint]++
	n := f.calls[img.Fingerprint]
	f.active++
	f.peak = max(f.peak, f.active)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	fp := img.Fingerprint
	switch {
	case strings.HasPrefix(fp, "slow"):
		<-ctx.Done()
		return nil, contextFailure(ctx)
	case strings.HasPrefix(fp, "down"):
		return nil, common.NewEngineError("engine unavailable", nil)
	case strings.HasPrefix(fp, "flaky") && n <= f.flakyFor:
		return nil, common.NewEngineError("engine hiccup", nil)
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &entity.InvoiceRecord{
		Type:        entity.InvoiceTypeCandidate{Code: constants.InvoiceTypeVATElectronicGeneral, Confidence: 1},
		Fingerprint: fp,
		Regions:     []entity.TextRegion{{Text: fp}},
	}, nil
}

func (f *fakeRecognizer) callsFor(fp string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[fp]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ItemTimeout = 2 * time.Second
	cfg.Retry = resilience.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	return cfg
}

func items(datas ...string) []Item {
	out := make([]Item, len(datas))
	for i, d := range datas {
		out[i] = Item{ID: "item-" + string(rune('a'+i)), Data: []byte(d)}
	}
	return out
}

func statuses(res *entity.BatchResult) []constants.ItemStatus {
	out := make([]constants.ItemStatus, len(res.Items))
	for i, it := range res.Items {
		out[i] = it.Status
	}
	return out
}

func TestRun_OneItemTimesOutOthersSucceedInOrder(t *testing.T) {
	f := newFake()
	o := New(f, testConfig(), zap.NewNop())

	res, err := o.Run(context.Background(), Request{
		Items:         items("one", "slow", "three"),
		ParallelCount: 2,
		ItemTimeout:   50 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, []constants.ItemStatus{
		constants.ItemStatusSuccess, constants.ItemStatusTimeout, constants.ItemStatusSuccess,
	}, statuses(res))
	assert.Equal(t, []string{"item-a", "item-b", "item-c"}, []string{res.Items[0].ID, res.Items[1].ID, res.Items[2].ID})
	assert.Equal(t, common.CodeTimeout, res.Items[1].Error.Code)
	assert.Nil(t, res.Items[1].Record)
	assert.NotNil(t, res.Items[0].Record)

	assert.Equal(t, constants.BatchStateCompleted, res.State)
	assert.Equal(t, 3, res.Stats.Total)
	assert.Equal(t, 2, res.Stats.Succeeded)
	assert.Equal(t, 1, res.Stats.TimedOut)
	assert.InDelta(t, 2.0/3, res.Stats.SuccessRate, 1e-9)
	assert.GreaterOrEqual(t, res.Stats.MaxItemDuration, 50*time.Millisecond)
	assert.LessOrEqual(t, res.Stats.MinItemDuration, res.Stats.AvgItemDuration)
	assert.Greater(t, res.Stats.Throughput, 0.0)
}

func TestRun_CacheHitSkipsEngine(t *testing.T) {
	f := newFake()
	f.delay = 20 * time.Millisecond
	o := New(f, testConfig(), nil, WithCache(cache.NewMemory(time.Hour, 0)))

	res, err := o.Run(context.Background(), Request{Items: items("same", "same", "same"), ParallelCount: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, f.callsFor("same"), "concurrent duplicates collapse into one engine call")
	for _, it := range res.Items {
		assert.Equal(t, constants.ItemStatusSuccess, it.Status)
	}

	res, err = o.Run(context.Background(), Request{Items: items("same")})
	require.NoError(t, err)
	assert.True(t, res.Items[0].CacheHit)
	assert.Zero(t, res.Items[0].Attempts)
	assert.Equal(t, 1, res.Stats.CacheHits)
	assert.Equal(t, 1, f.callsFor("same"))

	// records handed out are copies
	res.Items[0].Record.Type.Code = "tampered"
	again, err := o.Recognize(context.Background(), []byte("same"))
	require.NoError(t, err)
	assert.Equal(t, constants.InvoiceTypeVATElectronicGeneral, again.Type.Code)
}

func TestRun_FailuresAreIsolated(t *testing.T) {
	f := newFake()
	o := New(f, testConfig(), nil)

	res, err := o.Run(context.Background(), Request{Items: items("ok-1", "bad", "down", "ok-2"), ParallelCount: 4})
	require.NoError(t, err)
	assert.Equal(t, []constants.ItemStatus{
		constants.ItemStatusSuccess, constants.ItemStatusFailed, constants.ItemStatusFailed, constants.ItemStatusSuccess,
	}, statuses(res))
	assert.Equal(t, common.CodeDecodeError, res.Items[1].Error.Code)
	assert.Equal(t, common.CodeEngineError, res.Items[2].Error.Code)
	assert.Equal(t, 3, res.Items[2].Attempts)
	assert.Equal(t, 3, f.callsFor("down"))
	assert.Zero(t, f.callsFor("bad"))
}

func TestRun_RetriesEngineErrors(t *testing.T) {
	f := newFake()
	f.flakyFor = 2
	res, err := New(f, testConfig(), nil).Run(context.Background(), Request{Items: items("flaky")})
	require.NoError(t, err)
	assert.Equal(t, constants.ItemStatusSuccess, res.Items[0].Status)
	assert.Equal(t, 3, res.Items[0].Attempts)
}

func TestRun_TimeoutDuringBackoffKeepsAttempts(t *testing.T) {
	f := newFake()
	cfg := testConfig()
	cfg.Retry = resilience.RetryPolicy{MaxAttempts: 5, InitialBackoff: 200 * time.Millisecond, MaxBackoff: 200 * time.Millisecond}
	o := New(f, cfg, nil)

	res, err := o.Run(context.Background(), Request{Items: items("down"), ItemTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	it := res.Items[0]
	assert.Equal(t, constants.ItemStatusTimeout, it.Status)
	assert.Equal(t, common.CodeTimeout, it.Error.Code)
	assert.Equal(t, 1, it.Attempts)
	assert.Equal(t, 1, f.callsFor("down"))
}

func TestRun_MalformedBatch(t *testing.T) {
	o := New(newFake(), Config{MaxBatchSize: 2}, nil)
	cases := map[string][]Item{
		"empty":         nil,
		"too many":      items("a", "b", "c"),
		"duplicate ids": {{ID: "x", Data: []byte("a")}, {ID: "x", Data: []byte("b")}},
		"blank id":      {{ID: " ", Data: []byte("a")}},
		"no image":      {{ID: "x"}},
		"id too long":   {{ID: strings.Repeat("x", MaxItemIDLength+1), Data: []byte("a")}},
	}
	for name, its := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := o.Run(context.Background(), Request{Items: its})
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, common.CodeMalformedBatch, common.CodeOf(err))
		})
	}
}

func TestRun_OverallDeadlineFinalizesPending(t *testing.T) {
	f := newFake()
	o := New(f, testConfig(), nil)

	start := time.Now()
	res, err := o.Run(context.Background(), Request{
		Items:           items("ok", "slow-1", "slow-2", "slow-3"),
		ParallelCount:   2,
		ItemTimeout:     10 * time.Second,
		OverallDeadline: 80 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, constants.BatchStateExpired, res.State)
	assert.Equal(t, constants.ItemStatusSuccess, res.Items[0].Status)
	for _, it := range res.Items[1:] {
		assert.Equal(t, constants.ItemStatusTimeout, it.Status, it.ID)
		assert.Nil(t, it.Record)
	}
	assert.Zero(t, f.callsFor("slow-3"), "never dispatched")
}

func TestCancel(t *testing.T) {
	f := newFake()
	o := New(f, testConfig(), nil)

	type out struct {
		res *entity.BatchResult
		err error
	}
	ch := make(chan out, 1)
	go func() {
		res, err := o.Run(context.Background(), Request{
			BatchID:       "batch-1",
			Items:         items("slow-1", "slow-2", "slow-3"),
			ParallelCount: 1,
			ItemTimeout:   10 * time.Second,
		})
		ch <- out{res, err}
	}()

	require.Eventually(t, func() bool {
		p, err := o.Status("batch-1")
		return err == nil && p.State == constants.BatchStateRunning
	}, time.Second, 5*time.Millisecond)

	ok, err := o.Cancel("batch-1")
	require.NoError(t, err)
	assert.True(t, ok)

	var got out
	select {
	case got = <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("batch did not stop after cancel")
	}
	require.NoError(t, got.err)
	assert.Equal(t, constants.BatchStateCancelled, got.res.State)
	for _, it := range got.res.Items {
		assert.Equal(t, constants.ItemStatusFailed, it.Status)
		assert.Equal(t, common.CodeCancelled, it.Error.Code)
	}

	p, err := o.Status("batch-1")
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStateCancelled, p.State)
	assert.Equal(t, 3, p.Failed)
	assert.InDelta(t, 1.0, p.Progress, 1e-9)

	ok, err = o.Cancel("batch-1")
	require.NoError(t, err)
	assert.False(t, ok, "finished batches cannot be cancelled")
}

func TestStatus_UnknownBatch(t *testing.T) {
	o := New(newFake(), testConfig(), nil)
	_, err := o.Status("nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = o.Cancel("nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRun_RateLimitExhaustionIsTimeout(t *testing.T) {
	f := newFake()
	o := New(f, testConfig(), nil, WithLimiter(rate.NewLimiter(rate.Every(time.Hour), 1)))

	res, err := o.Run(context.Background(), Request{
		Items:         items("first", "second"),
		ParallelCount: 1,
		ItemTimeout:   100 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, constants.ItemStatusSuccess, res.Items[0].Status)
	assert.Equal(t, constants.ItemStatusTimeout, res.Items[1].Status)
	assert.Zero(t, f.callsFor("second"))
}

func TestRun_ParallelismIsBounded(t *testing.T) {
	f := newFake()
	f.delay = 15 * time.Millisecond
	o := New(f, testConfig(), nil)

	_, err := o.Run(context.Background(), Request{Items: items("a", "b", "c", "d", "e", "f"), ParallelCount: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, f.peak, 2)

	assert.Equal(t, 3, o.parallelism(0))
	assert.Equal(t, 1, o.parallelism(1))
	assert.Equal(t, 10, o.parallelism(64))
	assert.Equal(t, 7, o.parallelism(7))
}

func TestNew_ClampsConfiguredMaxParallel(t *testing.T) {
	cfg := testConfig()
	cfg.MaxParallel = 50
	cfg.DefaultParallel = 40
	o := New(newFake(), cfg, nil)

	assert.Equal(t, constants.MaxParallelCount, o.parallelism(25))
	assert.Equal(t, constants.MaxParallelCount, o.parallelism(0))
	assert.Equal(t, 4, o.parallelism(4))
}

type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	if v, ok := m[url]; ok {
		return []byte(v), nil
	}
	return nil, common.NewInputError(common.CodeFetchError, "not found", nil)
}

type recordingArchiver struct {
	mu    sync.Mutex
	saved []string
}

func (a *recordingArchiver) Save(_ context.Context, batchID, itemID string, _ *entity.InvoiceRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved = append(a.saved, batchID+"/"+itemID)
	return nil
}

func TestRun_URLItemsAndArchive(t *testing.T) {
	arch := &recordingArchiver{}
	o := New(newFake(), testConfig(), nil,
		WithFetcher(mapFetcher{"https://img/1.png": "remote"}),
		WithArchiver(arch))

	res, err := o.Run(context.Background(), Request{
		BatchID: "b",
		Items: []Item{
			{ID: "u1", URL: "https://img/1.png"},
			{ID: "u2", URL: "https://img/missing.png"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, constants.ItemStatusSuccess, res.Items[0].Status)
	assert.Equal(t, "remote", res.Items[0].Record.Fingerprint)
	assert.Equal(t, common.CodeFetchError, res.Items[1].Error.Code)
	assert.Equal(t, []string{"b/u1"}, arch.saved)
}

func TestRun_DuplicateBatchID(t *testing.T) {
	o := New(newFake(), testConfig(), nil)
	_, err := o.Run(context.Background(), Request{BatchID: "x", Items: items("a")})
	require.NoError(t, err)
	_, err = o.Run(context.Background(), Request{BatchID: "x", Items: items("a")})
	assert.Equal(t, common.CodeMalformedBatch, common.CodeOf(err))
}
