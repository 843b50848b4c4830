package dac

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type counter struct {
	n byte
}

func (c *counter) fill(dst []byte) {
	c.n++
	for i := range dst {
		dst[i] = c.n
	}
}

func newTestPipeline(t *testing.T, dev Device, c *counter) *Pipeline {
	t.Helper()
	p, err := New(dev, c.fill, WithBufferSize(8), WithDescriptors(4))
	require.NoError(t, err)
	return p
}

func TestNewValidates(t *testing.T) {
	fill := func([]byte) {}
	_, err := New(nil, fill)
	require.Error(t, err)
	_, err = New(&ManualDevice{}, nil)
	require.Error(t, err)
	_, err = New(&ManualDevice{}, fill, WithBufferSize(0))
	require.Error(t, err)
	_, err = New(&ManualDevice{}, fill, WithDescriptors(1))
	require.Error(t, err)
}

func TestStartPrimesEveryDescriptor(t *testing.T) {
	dev := &ManualDevice{}
	c := &counter{}
	p := newTestPipeline(t, dev, c)
	require.NoError(t, p.Start())
	require.Equal(t, byte(4), c.n)
	for i := 0; i < 4; i++ {
		require.True(t, p.Ring().Loaded(i))
	}

	buf := make([]byte, 8)
	dev.Pull(buf)
	require.Equal(t, bytes.Repeat([]byte{1}, 8), buf)
	require.Equal(t, 1, p.Pending())
	require.False(t, p.Ring().Loaded(0))
}

func TestPollFillsOneDescriptor(t *testing.T) {
	dev := &ManualDevice{}
	c := &counter{}
	p := newTestPipeline(t, dev, c)
	require.NoError(t, p.Start())
	require.False(t, p.Poll())

	buf := make([]byte, 16)
	dev.Pull(buf)
	require.Equal(t, 2, p.Pending())

	require.True(t, p.Poll())
	require.Equal(t, byte(5), c.n)
	require.True(t, p.Ring().Loaded(0))
	require.False(t, p.Ring().Loaded(1))
	require.Equal(t, 1, p.Pending())

	require.True(t, p.Poll())
	require.False(t, p.Poll())
	require.Equal(t, byte(6), c.n)
}

func TestUnderrunPlaysSilence(t *testing.T) {
	dev := &ManualDevice{}
	c := &counter{}
	p := newTestPipeline(t, dev, c)
	require.NoError(t, p.Start())

	buf := make([]byte, 40)
	dev.Pull(buf)
	for i := 0; i < 32; i++ {
		require.Equal(t, byte(i/8+1), buf[i])
	}
	require.Equal(t, bytes.Repeat([]byte{Silence}, 8), buf[32:])
	require.Equal(t, uint64(1), p.Ring().Underruns())
}

func TestRingRecyclesDescriptorAfterLostNotification(t *testing.T) {
	var notified []int
	r := NewRing(3, 4, func(i int) { notified = append(notified, i) })
	r.Load(1, []byte{1, 1, 1, 1})
	r.Load(2, []byte{2, 2, 2, 2})

	buf := make([]byte, 12)
	require.Equal(t, 12, r.Read(buf))
	require.Equal(t, []byte{1, 1, 1, 1, 2, 2, 2, 2, Silence, Silence, Silence, Silence}, buf)
	require.Equal(t, []int{0, 1, 2}, notified)
	require.Equal(t, uint64(1), r.Recycled())
	require.Equal(t, uint64(1), r.Underruns())
}

func TestPipelineRecoversFromDroppedNotification(t *testing.T) {
	dev := &ManualDevice{}
	c := &counter{}
	p := newTestPipeline(t, dev, c)
	require.NoError(t, p.Start())

	buf := make([]byte, 8)
	dev.Pull(buf)
	// lose the completion for descriptor 0
	<-p.queue
	for i := 0; i < 3; i++ {
		dev.Pull(buf)
		require.True(t, p.Poll())
	}
	dev.Pull(buf)
	require.True(t, p.Poll())
	require.Equal(t, uint64(1), p.Ring().Recycled())
	for p.Poll() {
	}

	// every descriptor is back in rotation
	for i := 0; i < 4; i++ {
		dev.Pull(buf)
		require.NotEqual(t, bytes.Repeat([]byte{Silence}, 8), buf)
		p.Poll()
	}
}

func TestNotifyDropsOldest(t *testing.T) {
	p := newTestPipeline(t, &ManualDevice{}, &counter{})
	for i := 0; i < 6; i++ {
		p.Notify(i % 4)
	}
	require.Equal(t, 4, p.Pending())
	require.Equal(t, uint64(2), p.Dropped())
	require.Equal(t, 2, <-p.queue)
	require.Equal(t, 3, <-p.queue)
	require.Equal(t, 0, <-p.queue)
	require.Equal(t, 1, <-p.queue)
}

func TestNotifyNeverBlocksUnderContention(t *testing.T) {
	p := newTestPipeline(t, &ManualDevice{}, &counter{})
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				p.Notify(i % 4)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 4, p.Pending())
	require.Equal(t, uint64(4000-4), p.Dropped())
}

func TestStartStopCloseAreIdempotent(t *testing.T) {
	dev := &ManualDevice{}
	p := newTestPipeline(t, dev, &counter{})
	require.NoError(t, p.Stop())
	require.NoError(t, p.Start())
	require.NoError(t, p.Start())
	require.Equal(t, 1, dev.Starts)
	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())
	require.Equal(t, 1, dev.Stops)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.Equal(t, 1, dev.Closes)
	require.Error(t, p.Start())

	buf := make([]byte, 4)
	dev.Pull(buf)
	require.Equal(t, []byte{Silence, Silence, Silence, Silence}, buf)
}

func TestRunRefillsUntilCancelled(t *testing.T) {
	dev := &ManualDevice{}
	c := &counter{}
	p := newTestPipeline(t, dev, c)
	require.NoError(t, p.Start())

	ctx, cancel := context.WithCancel(context.Background())
	control := make(chan func())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, control) }()

	buf := make([]byte, 8)
	dev.Pull(buf)
	require.Eventually(t, func() bool { return p.Ring().Loaded(0) }, time.Second, time.Millisecond)
	ran := make(chan byte, 1)
	control <- func() { ran <- c.n }
	require.Equal(t, byte(5), <-ran)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func TestWriterDeviceStreams(t *testing.T) {
	out := &syncBuffer{}
	dev := NewWriterDevice(out, 0, 8)
	p, err := New(dev, func(dst []byte) {
		for i := range dst {
			dst[i] = 0x90
		}
	}, WithBufferSize(8), WithDescriptors(2))
	require.NoError(t, err)
	require.NoError(t, p.Start())
	require.Eventually(t, func() bool { return out.Len() >= 64 }, time.Second, time.Millisecond)
	require.NoError(t, p.Close())
	require.NoError(t, dev.Err())
}
