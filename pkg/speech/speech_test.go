package speech_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/speech"
	"github.com/teslashibe/go-wayfinder/pkg/tts"
)

// blockingPlayer plays until its context is cancelled or release is closed.
type blockingPlayer struct {
	mu       sync.Mutex
	played   [][]byte
	cancels  int
	started  chan struct{}
	release  chan struct{}
	finished []error
}

func newBlockingPlayer() *blockingPlayer {
	return &blockingPlayer{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (p *blockingPlayer) Play(ctx context.Context, data []byte) error {
	p.mu.Lock()
	p.played = append(p.played, data)
	p.mu.Unlock()
	p.started <- struct{}{}

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-p.release:
	}

	p.mu.Lock()
	p.finished = append(p.finished, err)
	p.mu.Unlock()
	return err
}

func (p *blockingPlayer) Cancel() {
	p.mu.Lock()
	p.cancels++
	p.mu.Unlock()
}

func waitStarted(t *testing.T, p *blockingPlayer) {
	t.Helper()
	select {
	case <-p.started:
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not start")
	}
}

func TestChannel_SpeaksCleanedText(t *testing.T) {
	provider := tts.NewMock()
	player := newBlockingPlayer()
	ch := speech.NewChannel(provider, player, log.Discard())

	var hooked string
	ch.OnSpeak = func(s string) { hooked = s }

	require.NoError(t, ch.Speak(context.Background(), "Turn <b>left</b> onto Moi Ave"))
	waitStarted(t, player)
	close(player.release)
	ch.Wait()

	assert.Equal(t, []string{"Turn left onto Moi Ave"}, provider.Texts())
	assert.Equal(t, "Turn left onto Moi Ave", ch.Last())
	assert.Equal(t, "Turn left onto Moi Ave", hooked)
	assert.Len(t, player.played, 1)
}

func TestChannel_LastWriterWins(t *testing.T) {
	provider := tts.NewMock()
	player := newBlockingPlayer()
	ch := speech.NewChannel(provider, player, log.Discard())

	require.NoError(t, ch.Speak(context.Background(), "chair center, close"))
	waitStarted(t, player)

	require.NoError(t, ch.Speak(context.Background(), "person left, very close"))
	waitStarted(t, player)

	close(player.release)
	ch.Wait()

	player.mu.Lock()
	defer player.mu.Unlock()
	assert.ElementsMatch(t, []error{context.Canceled, nil}, player.finished, "first utterance should be interrupted")
	assert.GreaterOrEqual(t, player.cancels, 2, "each Speak stops the player first")
	assert.Equal(t, "person left, very close", ch.Last())
}

func TestChannel_StopInterrupts(t *testing.T) {
	player := newBlockingPlayer()
	ch := speech.NewChannel(tts.NewMock(), player, log.Discard())

	require.NoError(t, ch.Speak(context.Background(), "Navigation ended."))
	waitStarted(t, player)

	ch.Stop()
	ch.Wait()

	player.mu.Lock()
	defer player.mu.Unlock()
	assert.ErrorIs(t, player.finished[0], context.Canceled)
}

func TestChannel_OutlivesCallerContext(t *testing.T) {
	player := newBlockingPlayer()
	ch := speech.NewChannel(tts.NewMock(), player, log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, ch.Speak(ctx, "You have arrived at your destination."))
	waitStarted(t, player)
	cancel()

	close(player.release)
	ch.Wait()

	player.mu.Lock()
	defer player.mu.Unlock()
	assert.NoError(t, player.finished[0])
}

func TestChannel_EmptyTextOnlyStops(t *testing.T) {
	provider := tts.NewMock()
	player := newBlockingPlayer()
	ch := speech.NewChannel(provider, player, log.Discard())

	require.NoError(t, ch.Speak(context.Background(), "<b> </b>"))
	ch.Wait()

	assert.Empty(t, provider.Texts())
	assert.Equal(t, 1, player.cancels)
}

func TestChannel_SynthesisErrorSkipsPlayback(t *testing.T) {
	player := newBlockingPlayer()
	ch := speech.NewChannel(tts.Failing(errors.New("offline")), player, log.Discard())

	require.NoError(t, ch.Speak(context.Background(), "hello"))
	ch.Wait()

	assert.Empty(t, player.played)
	require.NoError(t, ch.Close())
}

func TestRecorder(t *testing.T) {
	r := speech.NewRecorder()
	ctx := context.Background()

	require.NoError(t, r.Speak(ctx, "Starting navigation to <b>Home</b>."))
	r.Stop()
	require.NoError(t, r.Speak(ctx, ""))

	assert.Equal(t, []speech.Event{
		{Kind: "speak", Text: "Starting navigation to Home."},
		{Kind: "stop"},
	}, r.Events())
	assert.Equal(t, "Starting navigation to Home.", r.Last())

	r.Err = errors.New("boom")
	assert.Error(t, r.Speak(ctx, "x"))

	r.Reset()
	assert.Empty(t, r.Events())
	assert.Equal(t, "", r.Last())
}
