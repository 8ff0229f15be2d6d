package buffer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mimoring/mimoring"
	"github.com/mimoring/mimoring/internal/dtype"
)

func testConfig(name string, slots int) Config {
	return Config{
		Name:       name,
		SlotCount:  slots,
		DataLength: 4,
		DataDtype: []dtype.FieldSpec{
			{Name: "value", Code: dtype.F64},
		},
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestSingleProducerSingleConsumerEcho(t *testing.T) {
	b, err := New(testConfig("spsc", 4))
	require.NoError(t, err)
	defer b.Close()

	tok, ok := b.GetWriteToken()
	require.True(t, ok)
	data, _ := b.SlotView(tok)
	data.SetFloat64("value", 0, 42.0)
	b.ReturnWriteToken(tok)

	rtok, ok := b.GetReadToken()
	require.True(t, ok)
	rdata, meta := b.SlotView(rtok)
	require.Equal(t, 42.0, rdata.Float64("value", 0))
	require.Equal(t, uint64(1), meta.Counter())
	b.ReturnReadToken(rtok)

	st := b.Stats()
	require.Equal(t, uint64(1), st.EventCount)
}

// TestOverwritePressure implements spec §8's overwrite-pressure scenario:
// with overwrite enabled and no reader draining, writers recycle the oldest
// filled slot instead of blocking.
func TestOverwritePressure(t *testing.T) {
	cfg := testConfig("overwrite-pressure", 2)
	b, err := New(cfg)
	require.NoError(t, err)
	defer b.Close()

	for i := 0; i < 5; i++ {
		tok, ok := b.GetWriteToken()
		require.True(t, ok)
		data, _ := b.SlotView(tok)
		data.SetFloat64("value", 0, float64(i))
		b.ReturnWriteToken(tok)
	}

	st := b.Stats()
	require.Equal(t, uint64(5), st.EventCount)
	require.True(t, st.OverwriteCount > 0)
}

// TestNoOverwriteBackpressure implements spec §8's no-overwrite
// backpressure scenario: with overwrite disabled, a writer blocks once every
// slot is filled, until a reader frees one.
func TestNoOverwriteBackpressure(t *testing.T) {
	cfg := testConfig("no-overwrite", 1)
	cfg.OverwriteSet = true
	cfg.Overwrite = false
	b, err := New(cfg)
	require.NoError(t, err)
	defer b.Close()

	tok, ok := b.GetWriteToken()
	require.True(t, ok)
	b.ReturnWriteToken(tok)

	done := make(chan int32, 1)
	go func() {
		tok2, ok := b.GetWriteToken()
		require.True(t, ok)
		done <- tok2
	}()

	select {
	case <-done:
		t.Fatal("writer should have blocked with no free slots and overwrite disabled")
	case <-time.After(50 * time.Millisecond):
	}

	rtok, ok := b.GetReadToken()
	require.True(t, ok)
	b.ReturnReadToken(rtok)

	select {
	case tok2 := <-done:
		require.Equal(t, int32(0), tok2)
	case <-time.After(time.Second):
		t.Fatal("writer never woke after a slot was freed")
	}
}

// TestFlushCascade implements spec §8's flush scenario and "flush
// idempotence": every blocked reader wakes with (0, false), a second
// SendFlushEvent call changes nothing, and FlushReceived only flips once a
// reader actually consumes the sentinel.
func TestFlushCascade(t *testing.T) {
	b, err := New(testConfig("flush", 2))
	require.NoError(t, err)
	defer b.Close()

	require.False(t, b.FlushReceived())

	var wg sync.WaitGroup
	results := make([]bool, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok := b.GetReadToken()
			results[i] = ok
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	b.SendFlushEvent()
	b.SendFlushEvent() // idempotent
	wg.Wait()

	for _, ok := range results {
		require.False(t, ok, "every blocked reader must observe the flush, not a real token")
	}
	require.True(t, b.FlushReceived())
}

// TestObserverNonConsumption implements spec §8's observer-snapshot
// scenario: Observe never removes a token from circulation.
func TestObserverNonConsumption(t *testing.T) {
	b, err := New(testConfig("observe", 2))
	require.NoError(t, err)
	defer b.Close()

	wtok, _ := b.GetWriteToken()
	data, _ := b.SlotView(wtok)
	data.SetFloat64("value", 0, 7.0)
	b.ReturnWriteToken(wtok)

	otok, ok := b.GetObserveToken()
	require.True(t, ok)
	odata, _ := b.SlotView(otok)
	require.Equal(t, 7.0, odata.Float64("value", 0))
	b.ReturnObserveToken(otok)

	rtok, ok := b.GetReadToken()
	require.True(t, ok)
	require.Equal(t, otok, rtok, "the observed slot must still be readable afterward")
	b.ReturnReadToken(rtok)
}

// TestConcurrentWriters implements spec §8's concurrent-writers scenario
// and the token-conservation property: N writers racing for slot_count
// slots never duplicate or lose a token.
func TestConcurrentWriters(t *testing.T) {
	const slots = 8
	const writers = 16
	const perWriter = 50

	cfg := testConfig("concurrent", slots)
	cfg.OverwriteSet = true
	cfg.Overwrite = false
	b, err := New(cfg)
	require.NoError(t, err)
	defer b.Close()

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				tok, ok := b.GetWriteToken()
				require.True(t, ok)
				b.ReturnWriteToken(tok)
				rtok, ok := b.GetReadToken()
				require.True(t, ok)
				b.ReturnReadToken(rtok)
			}
		}()
	}
	wg.Wait()

	st := b.Stats()
	require.Equal(t, uint64(writers*perWriter), st.EventCount)
	require.Equal(t, uint64(slots), b.empty.Len()+b.filled.Len())
}

func TestPauseRoutesWritesToTrash(t *testing.T) {
	b, err := New(testConfig("pause", 2))
	require.NoError(t, err)
	defer b.Close()

	b.Pause()
	require.True(t, b.Paused())

	tok, ok := b.GetWriteToken()
	require.True(t, ok)
	require.Equal(t, TrashToken, tok)

	data, _ := b.TrashView()
	data.SetFloat64("value", 0, 99.0)
	b.ReturnWriteToken(tok)

	st := b.Stats()
	require.Equal(t, uint64(0), st.EventCount)
	require.Equal(t, uint64(1), st.PausedCount)

	b.Resume()
	require.False(t, b.Paused())

	tok2, ok := b.GetWriteToken()
	require.True(t, ok)
	require.NotEqual(t, TrashToken, tok2)
}

func TestSharedBufferAttachSeesWriterData(t *testing.T) {
	cfg := testConfig("shared-attach", 2)
	cfg.Shared = true

	owner, err := New(cfg)
	require.NoError(t, err)
	defer owner.Close()

	tok, ok := owner.GetWriteToken()
	require.True(t, ok)
	data, _ := owner.SlotView(tok)
	data.SetFloat64("value", 0, 11.0)
	owner.ReturnWriteToken(tok)

	peer, err := Attach(cfg)
	require.NoError(t, err)
	defer peer.Close()

	rtok, ok := peer.GetReadToken()
	require.True(t, ok)
	rdata, _ := peer.SlotView(rtok)
	require.Equal(t, 11.0, rdata.Float64("value", 0))
	peer.ReturnReadToken(rtok)
}

func TestAttachRejectsNonSharedConfig(t *testing.T) {
	_, err := Attach(testConfig("attach-non-shared", 2))
	require.Error(t, err)
}

// TestSharedBufferAttachAfterMultipleCycles regression-tests that a peer
// attaching after the owner has already run several full write/read cycles
// still sees the ring's actual physical position, not a logical position
// that starts counting from zero independently of the owner's.
func TestSharedBufferAttachAfterMultipleCycles(t *testing.T) {
	cfg := testConfig("shared-attach-multi-cycle", 2)
	cfg.Shared = true

	owner, err := New(cfg)
	require.NoError(t, err)
	defer owner.Close()

	for i := 0; i < 7; i++ {
		tok, ok := owner.GetWriteToken()
		require.True(t, ok)
		data, _ := owner.SlotView(tok)
		data.SetFloat64("value", 0, float64(i))
		owner.ReturnWriteToken(tok)

		rtok, ok := owner.GetReadToken()
		require.True(t, ok)
		rdata, _ := owner.SlotView(rtok)
		require.Equal(t, float64(i), rdata.Float64("value", 0))
		owner.ReturnReadToken(rtok)
	}

	peer, err := Attach(cfg)
	require.NoError(t, err)
	defer peer.Close()

	for i := 0; i < 7; i++ {
		tok, ok := owner.GetWriteToken()
		require.True(t, ok)
		data, _ := owner.SlotView(tok)
		data.SetFloat64("value", 0, float64(i))
		owner.ReturnWriteToken(tok)

		rtok, ok := peer.GetReadToken()
		require.True(t, ok)
		rdata, _ := peer.SlotView(rtok)
		require.Equal(t, float64(i), rdata.Float64("value", 0))
		peer.ReturnReadToken(rtok)
	}

	tok, ok := owner.GetWriteToken()
	require.True(t, ok)
	owner.ReturnWriteToken(tok)
	rtok, ok := peer.GetReadToken()
	require.True(t, ok)
	peer.ReturnReadToken(rtok)
}

// TestSharedBufferAttachSeesStats regression-tests that Stats, Pause, and
// Resume are visible across processes attached to the same segment, not
// just within the process that created it.
func TestSharedBufferAttachSeesStats(t *testing.T) {
	cfg := testConfig("shared-attach-stats", 2)
	cfg.Shared = true

	owner, err := New(cfg)
	require.NoError(t, err)
	defer owner.Close()

	peer, err := Attach(cfg)
	require.NoError(t, err)
	defer peer.Close()

	tok, ok := owner.GetWriteToken()
	require.True(t, ok)
	owner.ReturnWriteToken(tok)

	st := peer.Stats()
	require.Equal(t, uint64(1), st.EventCount)

	owner.Pause()
	require.True(t, peer.Paused())

	tok2, ok := peer.GetWriteToken()
	require.True(t, ok)
	require.Equal(t, TrashToken, tok2)
	peer.ReturnWriteToken(tok2)
	require.Equal(t, uint64(1), owner.Stats().PausedCount)

	owner.Resume()
	require.False(t, peer.Paused())
}

// TestSharedBufferAttachObservesFlush regression-tests that send_flush_event
// on the owning process propagates to an attached peer: a blocked reader on
// the peer wakes with the flush, and a writer on the peer that still has
// room is rejected rather than publishing a new token into filled (spec §3:
// "after flush_received is true, no new tokens are produced into filled").
func TestSharedBufferAttachObservesFlush(t *testing.T) {
	cfg := testConfig("shared-attach-flush", 2)
	cfg.Shared = true

	owner, err := New(cfg)
	require.NoError(t, err)
	defer owner.Close()

	peer, err := Attach(cfg)
	require.NoError(t, err)
	defer peer.Close()

	done := make(chan bool, 1)
	go func() {
		_, ok := peer.GetReadToken()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	owner.SendFlushEvent()

	select {
	case ok := <-done:
		require.False(t, ok, "peer reader must observe the owner's flush")
	case <-time.After(time.Second):
		t.Fatal("peer reader never woke after owner's send_flush_event")
	}
	require.True(t, peer.FlushReceived())

	_, ok := peer.GetWriteToken()
	require.False(t, ok, "a writer on the attached peer must be rejected once flush has been sent")
}

// TestOverwriteNeverBlocksWithoutReaders regression-tests spec §4.3's
// tie-break: when the overwrite reclaim races another writer and loses,
// GetWriteToken must retry from step 1 rather than falling through to the
// blocking empty wait, which nothing would ever wake since no reader is
// present to call ReturnReadToken.
func TestOverwriteNeverBlocksWithoutReaders(t *testing.T) {
	b, err := New(testConfig("overwrite-no-readers", 1))
	require.NoError(t, err)
	defer b.Close()

	const writers = 4
	const perWriter = 25

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				tok, ok := b.GetWriteToken()
				require.True(t, ok)
				data, _ := b.SlotView(tok)
				data.SetFloat64("value", 0, float64(i*perWriter+j))
				b.ReturnWriteToken(tok)
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writers deadlocked racing the single slot under overwrite=true with no readers")
	}

	st := b.Stats()
	require.Equal(t, uint64(writers*perWriter), st.EventCount)
}

// TestFlushWakesBlockedWriterUnderNoOverwrite regression-tests spec §4.6
// item 3: send_flush_event must wake a writer blocked on empty when
// overwrite=false, not just blocked readers on filled.
func TestFlushWakesBlockedWriterUnderNoOverwrite(t *testing.T) {
	cfg := testConfig("flush-wakes-writer", 1)
	cfg.OverwriteSet = true
	cfg.Overwrite = false

	b, err := New(cfg)
	require.NoError(t, err)
	defer b.Close()

	tok, ok := b.GetWriteToken()
	require.True(t, ok)
	b.ReturnWriteToken(tok) // fill the only slot; empty is now drained

	done := make(chan bool, 1)
	go func() {
		_, ok := b.GetWriteToken()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond) // let the goroutine park on empty
	b.SendFlushEvent()

	select {
	case ok := <-done:
		require.False(t, ok, "a writer blocked on empty must observe the flush shutdown, not a real token")
	case <-time.After(time.Second):
		t.Fatal("writer blocked on empty never woke after send_flush_event")
	}
}

func TestAuditLogRecordsOverwrite(t *testing.T) {
	cfg := testConfig("audit-overwrite", 1)
	b, err := New(cfg)
	require.NoError(t, err)
	defer b.Close()

	tok, _ := b.GetWriteToken()
	b.ReturnWriteToken(tok)
	_, ok := b.GetWriteToken() // overwrites the only filled slot
	require.True(t, ok)

	events := b.AuditEvents()
	require.NotEmpty(t, events)
	require.Equal(t, ringbuffer.AuditOverwrite, events[0].Kind)
}
