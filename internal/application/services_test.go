package application

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frame-capture/internal/domain"
)

// fakeSource отдаёт кадры-заглушки; ширина кадра = индекс+1
type fakeSource struct {
	info    domain.VideoInfo
	pos     int
	fail    map[int]bool
	readErr error
	seeks   []int
	reads   []int
	closed  bool
}

func newFakeSource(frames int) *fakeSource {
	return &fakeSource{
		info: domain.VideoInfo{Path: "/videos/clip.mp4", FrameCount: frames, FPS: 1000, Width: 4, Height: 2},
		fail: map[int]bool{},
	}
}

func (f *fakeSource) Info() domain.VideoInfo { return f.info }
func (f *fakeSource) Position() int          { return f.pos }

func (f *fakeSource) Seek(index int) error {
	f.seeks = append(f.seeks, index)
	f.pos = index
	return nil
}

func (f *fakeSource) Read() (domain.Frame, error) {
	if f.readErr != nil {
		return domain.Frame{}, f.readErr
	}
	idx := f.pos
	f.reads = append(f.reads, idx)
	if f.fail[idx] || idx >= f.info.FrameCount {
		return domain.Frame{}, fmt.Errorf("%w: index %d", domain.ErrDecode, idx)
	}
	f.pos++
	return domain.Frame{Index: idx, Image: image.NewGray(image.Rect(0, 0, idx+1, 1))}, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

type fakeDisplay struct {
	opts       domain.DisplayOptions
	keys       []domain.Key
	fallback   domain.Key
	seekOnCall map[int]int
	calls      int
	shown      []image.Image
	seekbar    []int
	closed     bool
}

func (d *fakeDisplay) Show(img image.Image) error {
	d.shown = append(d.shown, img)
	return nil
}

func (d *fakeDisplay) SetSeekPosition(index int) error {
	d.seekbar = append(d.seekbar, index)
	return nil
}

func (d *fakeDisplay) WaitKey(time.Duration) domain.Key {
	d.calls++
	if v, ok := d.seekOnCall[d.calls]; ok {
		d.opts.OnSeek(v)
	}
	if len(d.keys) == 0 {
		return d.fallback
	}
	k := d.keys[0]
	d.keys = d.keys[1:]
	return k
}

func (d *fakeDisplay) Close() error {
	d.closed = true
	return nil
}

type fakeVideoOpener struct {
	src *fakeSource
	err error
}

func (o fakeVideoOpener) Open(context.Context, string) (domain.VideoSource, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.src, nil
}

type fakeDisplayOpener struct {
	d   *fakeDisplay
	err error
}

func (o fakeDisplayOpener) Open(_ context.Context, opts domain.DisplayOptions) (domain.Display, error) {
	if o.err != nil {
		return nil, o.err
	}
	o.d.opts = opts
	return o.d, nil
}

type fakeSaver struct {
	reqs   []domain.SaveRequest
	images []image.Image
	err    error
}

func (s *fakeSaver) Save(img image.Image, req domain.SaveRequest) (string, error) {
	s.reqs = append(s.reqs, req)
	s.images = append(s.images, img)
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("%s/clip_%d.%s", req.Dir, req.Index, req.Ext), nil
}

type fakeOverlay struct {
	lines [][]string
}

func (o *fakeOverlay) Draw(img image.Image, lines []string) image.Image {
	o.lines = append(o.lines, lines)
	return img
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}

type harness struct {
	src     *fakeSource
	display *fakeDisplay
	saver   *fakeSaver
	overlay *fakeOverlay
	svc     *CaptureService
}

func newHarness(frames int, keys ...domain.Key) *harness {
	h := &harness{
		src:     newFakeSource(frames),
		display: &fakeDisplay{keys: keys, fallback: 'q'},
		saver:   &fakeSaver{},
		overlay: &fakeOverlay{},
	}
	h.svc = NewCaptureService(
		fakeVideoOpener{src: h.src},
		fakeDisplayOpener{d: h.display},
		h.saver,
		h.overlay,
		nil,
		nopLogger{},
		SessionConfig{SaveDir: "/out"},
	)
	return h
}

// session собирает сессию напрямую, минуя Run, с контроллером на index
func (h *harness) session(index int) (*session, *domain.PlaybackController) {
	c := domain.NewPlaybackController(h.src.info.MaxFrameIndex())
	c.SetIndexFromExternalSeek(index)
	h.src.pos = index
	h.display.opts.OnSeek = c.SetIndexFromExternalSeek
	return h.svc.newSession(c, h.src, h.display), c
}

func frameWidth(img image.Image) int { return img.Bounds().Dx() }

func TestRun_QuitReleasesResources(t *testing.T) {
	h := newHarness(10, 'q')

	err := h.svc.Run(context.Background(), "/videos/clip.mp4")

	require.NoError(t, err)
	assert.True(t, h.src.closed)
	assert.True(t, h.display.closed)
	assert.Empty(t, h.display.shown)
	assert.Equal(t, domain.MainWindowName, h.display.opts.WindowName)
	assert.Equal(t, domain.SeekBarName, h.display.opts.SeekBarName)
	assert.Equal(t, 9, h.display.opts.SeekMax)
}

func TestRun_SequentialPlaybackDoesNotSeek(t *testing.T) {
	h := newHarness(10, domain.NoKey, domain.NoKey, 'q')

	require.NoError(t, h.svc.Run(context.Background(), "/videos/clip.mp4"))

	assert.Equal(t, []int{0, 1, 2}, h.src.reads)
	assert.Empty(t, h.src.seeks)
	require.Len(t, h.display.shown, 2)
	assert.Equal(t, 1, frameWidth(h.display.shown[0]))
	assert.Equal(t, 2, frameWidth(h.display.shown[1]))
	assert.Equal(t, []int{1, 2}, h.display.seekbar)
}

func TestRun_StepForwardSeeksOnce(t *testing.T) {
	h := newHarness(1000, 'd', 'q')

	require.NoError(t, h.svc.Run(context.Background(), "/videos/clip.mp4"))

	assert.Equal(t, []int{481}, h.src.seeks)
	assert.Equal(t, []int{0, 481}, h.src.reads)
	assert.Equal(t, []int{481}, h.display.seekbar)
}

func TestRun_SeekBarDragMovesIndex(t *testing.T) {
	h := newHarness(1000, domain.NoKey, 'q')
	h.display.seekOnCall = map[int]int{1: 700}

	require.NoError(t, h.svc.Run(context.Background(), "/videos/clip.mp4"))

	assert.Equal(t, []int{700}, h.display.seekbar)
	assert.Equal(t, []int{700}, h.src.seeks)
	assert.Equal(t, []int{0, 700}, h.src.reads)
}

func TestRun_ReadFailureReleasesResources(t *testing.T) {
	h := newHarness(10)
	h.src.readErr = errors.New("pipe broken")

	err := h.svc.Run(context.Background(), "/videos/clip.mp4")

	require.Error(t, err)
	assert.ErrorContains(t, err, "pipe broken")
	assert.True(t, h.src.closed)
	assert.True(t, h.display.closed)
}

func TestRun_DisplayOpenFailureClosesSource(t *testing.T) {
	src := newFakeSource(10)
	svc := NewCaptureService(
		fakeVideoOpener{src: src},
		fakeDisplayOpener{err: errors.New("no viewer")},
		&fakeSaver{}, &fakeOverlay{}, nil, nopLogger{}, SessionConfig{},
	)

	err := svc.Run(context.Background(), "/videos/clip.mp4")

	require.Error(t, err)
	assert.True(t, src.closed)
}

func TestRun_VideoOpenFailure(t *testing.T) {
	svc := NewCaptureService(
		fakeVideoOpener{err: errors.New("no such file")},
		fakeDisplayOpener{d: &fakeDisplay{}},
		&fakeSaver{}, &fakeOverlay{}, nil, nopLogger{}, SessionConfig{},
	)

	err := svc.Run(context.Background(), "/missing.mp4")

	assert.ErrorContains(t, err, "no such file")
}

func TestRun_CancelledContextStops(t *testing.T) {
	h := newHarness(10)
	h.display.fallback = domain.NoKey
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.svc.Run(ctx, "/videos/clip.mp4"))
	assert.True(t, h.src.closed)
	assert.True(t, h.display.closed)
}

func TestStep_DecodeFailureSkipsFrame(t *testing.T) {
	h := newHarness(1000)
	h.src.fail[50] = true
	sess, c := h.session(50)

	quit, err := sess.step()

	require.NoError(t, err)
	assert.False(t, quit)
	assert.Equal(t, 51, c.Index())
	assert.Equal(t, domain.Playing, c.State())
	assert.Empty(t, h.display.shown)
	assert.Zero(t, h.display.calls)
}

func TestStep_DecodeFailureAdvancesWhilePaused(t *testing.T) {
	h := newHarness(1000)
	h.src.fail[50] = true
	sess, c := h.session(50)
	c.ApplyCommand(domain.CommandTogglePlay, 1)

	_, err := sess.step()

	require.NoError(t, err)
	assert.Equal(t, 51, c.Index())
	assert.Equal(t, domain.Paused, c.State())
}

func TestStep_DecodeFailureAtEndStillPollsInput(t *testing.T) {
	h := newHarness(10, 'q')
	h.src.fail[9] = true
	sess, c := h.session(9)

	quit, err := sess.step()

	require.NoError(t, err)
	assert.True(t, quit)
	assert.Equal(t, 9, c.Index())
	assert.Equal(t, 1, h.display.calls)
	assert.Empty(t, h.display.shown)
}

func TestStep_PausedDoesNotAdvance(t *testing.T) {
	h := newHarness(100, domain.NoKey, domain.NoKey)
	sess, c := h.session(10)
	c.ApplyCommand(domain.CommandTogglePlay, 1)

	for i := 0; i < 2; i++ {
		_, err := sess.step()
		require.NoError(t, err)
	}

	assert.Equal(t, 10, c.Index())
	assert.Equal(t, []int{10, 10}, h.src.reads)
	assert.Equal(t, []int{10}, h.src.seeks)
	assert.Equal(t, "Pause", h.overlay.lines[0][2])
}

func TestStep_SaveWhilePaused(t *testing.T) {
	h := newHarness(1000, 's')
	sess, c := h.session(42)
	c.ApplyCommand(domain.CommandTogglePlay, 1)

	_, err := sess.step()

	require.NoError(t, err)
	require.Len(t, h.saver.reqs, 1)
	assert.Equal(t, domain.SaveRequest{Dir: "/out", SourcePath: "/videos/clip.mp4", Index: 42, Ext: "png"}, h.saver.reqs[0])
	assert.Equal(t, 43, frameWidth(h.saver.images[0]))
	assert.Equal(t, []string{
		"Frame:42/999",
		"a:<- d:-> s:saveimg space:play/pause q:quit",
		"Pause",
		"Save Image !!",
	}, h.overlay.lines[0])
}

// Во время воспроизведения индекс уже сдвинут на следующий кадр,
// а на диск пишется только что прочитанный.
func TestStep_SaveWhilePlayingWritesDecodedFrame(t *testing.T) {
	h := newHarness(1000, 's')
	sess, _ := h.session(41)

	_, err := sess.step()

	require.NoError(t, err)
	require.Len(t, h.saver.reqs, 1)
	assert.Equal(t, 42, h.saver.reqs[0].Index)
	assert.Equal(t, 42, frameWidth(h.saver.images[0]), "frame 41 is written")
}

func TestStep_SaveFailureIsSurfaced(t *testing.T) {
	h := newHarness(1000, 's')
	h.saver.err = errors.New("disk full")
	sess, _ := h.session(5)

	quit, err := sess.step()

	require.NoError(t, err)
	assert.False(t, quit)
	require.Len(t, h.display.shown, 1)
	assert.Contains(t, h.overlay.lines[0], "Save Failed !!")
	assert.NotContains(t, h.overlay.lines[0], "Save Image !!")
}

func TestStep_SaveFlagLastsOneIteration(t *testing.T) {
	h := newHarness(1000, 's', domain.NoKey)
	sess, _ := h.session(5)

	for i := 0; i < 2; i++ {
		_, err := sess.step()
		require.NoError(t, err)
	}

	assert.Contains(t, h.overlay.lines[0], "Save Image !!")
	assert.NotContains(t, h.overlay.lines[1], "Save Image !!")
}

func TestStatusLines(t *testing.T) {
	lines := StatusLines(domain.SessionStatus{FrameIndex: 3, MaxFrameIndex: 9, State: domain.Playing}, false)

	assert.Equal(t, []string{"Frame:3/9", keyHelpLine, "Play"}, lines)
}
