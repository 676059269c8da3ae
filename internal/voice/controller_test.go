package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/discord-voice-bridge/internal/stt"
	"github.com/stretchr/testify/require"
)

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, wavPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, f.err
}

func (f *fakeTranscriber) Stop() {}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeBackend struct {
	mu     sync.Mutex
	reply  string
	err    error
	inputs []string
	users  []string
}

func (f *fakeBackend) Ask(ctx context.Context, input, sessionUser string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	f.users = append(f.users, sessionUser)
	return f.reply, f.err
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

type fakeSynth struct {
	mu    sync.Mutex
	audio []byte
	err   error
	texts []string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.audio, f.err
}

type fakePlayer struct {
	mu     sync.Mutex
	err    error
	played [][]byte
}

func (f *fakePlayer) Play(ctx context.Context, audio []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, audio)
	return f.err
}

func (f *fakePlayer) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.played)
}

type controllerFixture struct {
	ctrl    *Controller
	trans   *fakeTranscriber
	backend *fakeBackend
	synth   *fakeSynth
	player  *fakePlayer
	clock   *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		trans:   &fakeTranscriber{text: "what time is it"},
		backend: &fakeBackend{reply: "It's 3 PM."},
		synth:   &fakeSynth{audio: []byte("mp3-bytes")},
		player:  &fakePlayer{},
		clock:   &fakeClock{now: time.Unix(1700000000, 0)},
	}
	opts := Options{
		Silence:  50 * time.Millisecond,
		Channels: 1,
		NewDecoder: func() (Decoder, error) {
			return &passthroughDecoder{channels: 1}, nil
		},
	}
	f.ctrl = NewController(opts, f.backend, f.synth, f.player, func() stt.Transcriber {
		return f.trans
	})
	f.ctrl.now = f.clock.Now
	t.Cleanup(f.ctrl.Close)
	return f
}

func speaking(userID string, ssrc int) *discordgo.VoiceSpeakingUpdate {
	return &discordgo.VoiceSpeakingUpdate{UserID: userID, SSRC: ssrc, Speaking: true}
}

func TestControllerEndToEnd(t *testing.T) {
	f := newControllerFixture(t)
	sess := f.ctrl.Start("g1", "u1")

	f.ctrl.HandleSpeakingUpdate("g1", speaking("u1", 42))
	require.Equal(t, 1, sess.seg.ActiveCaptures())
	f.ctrl.HandleOpusPacket("g1", 42, []byte{0x01, 0x00, 0x02, 0x00})

	waitFor(t, func() bool { return f.player.playCount() == 1 })
	require.Equal(t, []byte("mp3-bytes"), f.player.played[0])
	require.Equal(t, []string{"what time is it"}, f.backend.inputs)
	require.Equal(t, []string{sess.Token}, f.backend.users)
	require.Equal(t, []string{"It's 3 PM."}, f.synth.texts)
	require.True(t, sess.InCooldown(f.clock.Now()))
}

func TestControllerCooldownSuppressesCapture(t *testing.T) {
	f := newControllerFixture(t)
	sess := f.ctrl.Start("g1", "u1")
	sess.markReply(f.clock.Now(), 800*time.Millisecond)

	f.ctrl.HandleSpeakingUpdate("g1", speaking("u1", 42))
	require.Equal(t, 0, sess.seg.ActiveCaptures())

	f.clock.Advance(801 * time.Millisecond)
	f.ctrl.HandleSpeakingUpdate("g1", speaking("u1", 42))
	require.Equal(t, 1, sess.seg.ActiveCaptures())
}

func TestControllerIgnoresOtherSpeakers(t *testing.T) {
	f := newControllerFixture(t)
	sess := f.ctrl.Start("g1", "u1")

	f.ctrl.HandleSpeakingUpdate("g1", speaking("someone-else", 42))
	require.Equal(t, 0, sess.seg.ActiveCaptures())
}

func TestControllerShortTranscriptDropped(t *testing.T) {
	f := newControllerFixture(t)
	f.trans.text = "hm"
	sess := f.ctrl.Start("g1", "u1")

	f.ctrl.processUtterance(sess, []byte{0x01, 0x00})
	require.Equal(t, 1, f.trans.callCount())
	require.Equal(t, 0, f.backend.callCount())
	require.False(t, sess.InCooldown(f.clock.Now()))
}

func TestControllerEmptyUtteranceSkipsTranscription(t *testing.T) {
	f := newControllerFixture(t)
	sess := f.ctrl.Start("g1", "u1")

	f.ctrl.processUtterance(sess, nil)
	require.Equal(t, 0, f.trans.callCount())
}

func TestControllerDeduplicatesWithinWindow(t *testing.T) {
	f := newControllerFixture(t)
	sess := f.ctrl.Start("g1", "u1")
	pcm := []byte{0x01, 0x00}

	f.ctrl.processUtterance(sess, pcm)
	f.clock.Advance(2 * time.Second)
	f.ctrl.processUtterance(sess, pcm)
	require.Equal(t, 1, f.backend.callCount())

	f.clock.Advance(6 * time.Second)
	f.ctrl.processUtterance(sess, pcm)
	require.Equal(t, 2, f.backend.callCount())
}

func TestControllerDedupIsCaseInsensitive(t *testing.T) {
	f := newControllerFixture(t)
	sess := f.ctrl.Start("g1", "u1")
	pcm := []byte{0x01, 0x00}

	f.trans.text = "What Time Is It"
	f.ctrl.processUtterance(sess, pcm)
	f.trans.text = "what time is it"
	f.clock.Advance(time.Second)
	f.ctrl.processUtterance(sess, pcm)
	require.Equal(t, 1, f.backend.callCount())
}

func TestControllerPlaybackErrorSkipsCooldown(t *testing.T) {
	f := newControllerFixture(t)
	f.player.err = errors.New("voice connection gone")
	sess := f.ctrl.Start("g1", "u1")

	f.ctrl.processUtterance(sess, []byte{0x01, 0x00})
	require.False(t, sess.InCooldown(f.clock.Now()))
}

func TestControllerEmptySanitizedReplyStillCoolsDown(t *testing.T) {
	f := newControllerFixture(t)
	f.backend.reply = "\U0001F600\U0001F44D"
	sess := f.ctrl.Start("g1", "u1")

	f.ctrl.processUtterance(sess, []byte{0x01, 0x00})
	require.Equal(t, 0, f.player.playCount())
	require.True(t, sess.InCooldown(f.clock.Now()))
}

func TestControllerRecognitionErrorAbandonsUtterance(t *testing.T) {
	f := newControllerFixture(t)
	f.trans.err = errors.New("worker crashed")
	sess := f.ctrl.Start("g1", "u1")

	f.ctrl.processUtterance(sess, []byte{0x01, 0x00})
	require.Equal(t, 0, f.backend.callCount())
	require.Equal(t, 0, f.player.playCount())
}

func TestControllerStartReplacesSession(t *testing.T) {
	f := newControllerFixture(t)
	first := f.ctrl.Start("g1", "u1")
	f.ctrl.HandleSpeakingUpdate("g1", speaking("u1", 42))
	require.Equal(t, 1, first.seg.ActiveCaptures())

	second := f.ctrl.Start("g1", "u2")
	require.False(t, first.Enabled())
	require.Equal(t, 0, first.seg.ActiveCaptures())
	require.True(t, second.Enabled())
	require.NotEqual(t, first.Token, second.Token)
}

func TestControllerStopDisablesPipeline(t *testing.T) {
	f := newControllerFixture(t)
	sess := f.ctrl.Start("g1", "u1")
	f.ctrl.Stop("g1")

	require.False(t, sess.Enabled())
	f.ctrl.HandleSpeakingUpdate("g1", speaking("u1", 42))
	require.Equal(t, 0, sess.seg.ActiveCaptures())

	// idempotent
	f.ctrl.Stop("g1")
}

func TestControllerStatus(t *testing.T) {
	f := newControllerFixture(t)

	st := f.ctrl.Status("g1")
	require.False(t, st.Enabled)

	sess := f.ctrl.Start("g1", "u1")
	f.ctrl.processUtterance(sess, []byte{0x01, 0x00})
	f.clock.Advance(100 * time.Millisecond)

	st = f.ctrl.Status("g1")
	require.True(t, st.Enabled)
	require.Equal(t, "u1", st.UserID)
	require.Equal(t, 100*time.Millisecond, st.LastTranscriptAge)
	require.Equal(t, 700*time.Millisecond, st.CooldownRemaining)
}

func TestControllerSpeak(t *testing.T) {
	f := newControllerFixture(t)
	require.NoError(t, f.ctrl.Speak(context.Background(), "  hello   there \U0001F600 "))
	require.Equal(t, []string{"hello there"}, f.synth.texts)
	require.Equal(t, 1, f.player.playCount())

	require.Error(t, f.ctrl.Speak(context.Background(), "\U0001F600"))
}
