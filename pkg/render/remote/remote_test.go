package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
	"github.com/odvcencio/livewidgets/pkg/render"
)

type frameLog struct {
	frames []Frame
}

func (l *frameLog) Send(f Frame) { l.frames = append(l.frames, f) }

func (l *frameLog) ops() []string {
	out := make([]string, len(l.frames))
	for i, f := range l.frames {
		out[i] = f.Op
	}
	return out
}

func TestResourceLifecycleFrames(t *testing.T) {
	log := &frameLog{}
	b := New(log)

	res, err := b.Construct(render.Target{ID: "cpu", Width: 400, Height: 200}, render.ScalarSpec{Text: "1"})
	require.NoError(t, err)
	require.NoError(t, res.Update(render.ScalarSpec{Text: "2"}))
	require.NoError(t, res.Resize(640, 320))
	res.Destroy()
	res.Destroy()

	assert.Equal(t, []string{OpConstruct, OpUpdate, OpResize, OpDestroy}, log.ops())
	assert.Equal(t, render.KindScalar, log.frames[0].Kind)
	assert.Equal(t, 640.0, log.frames[2].Width)
	assert.Equal(t, 0, b.Live())
}

func TestReleasedResourceRejectsCalls(t *testing.T) {
	b := New(&frameLog{})
	res, err := b.Construct(render.Target{ID: "x"}, render.MarkupSpec{})
	require.NoError(t, err)
	res.Destroy()

	err = res.Update(render.MarkupSpec{HTML: "<p>"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeResourceReleased))
	assert.Error(t, res.Resize(1, 1))
}

func TestUnavailableBackend(t *testing.T) {
	b := New(&frameLog{})
	b.SetAvailable(false)
	_, err := b.Construct(render.Target{ID: "x"}, render.MarkupSpec{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBackendUnavailable))
	assert.False(t, New(nil).Available())
}

func TestSnapshotReflectsLatestSpec(t *testing.T) {
	b := New(&frameLog{})
	r1, _ := b.Construct(render.Target{ID: "b"}, render.ScalarSpec{Text: "old"})
	_, _ = b.Construct(render.Target{ID: "a"}, render.MarkupSpec{HTML: "<i>"})
	require.NoError(t, r1.Update(render.ScalarSpec{Text: "new"}))

	snap := b.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].Element)
	assert.Equal(t, render.ScalarSpec{Text: "new"}, snap[1].Spec)
}
