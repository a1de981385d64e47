package chart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natelewis/whalewatch-sub003/internal/ports"
)

func testRenderer(t *testing.T, surface Surface) *Renderer {
	t.Helper()
	logger := &mockLogger{}
	calc, err := NewCalculator(Config{Logger: logger})
	require.NoError(t, err)
	loader, err := NewEdgeLoader(EdgeLoaderConfig{
		Threshold: 10,
		Scheduler: syncScheduler{},
		Logger:    logger,
	})
	require.NoError(t, err)
	r, err := NewRenderer(RendererConfig{
		Calculator: calc,
		Surface:    surface,
		Loader:     loader,
		Logger:     logger,
	})
	require.NoError(t, err)
	return r
}

func TestRender_MissingSurface(t *testing.T) {
	r := testRenderer(t, nil)
	res := r.Render(context.Background(), Request{Op: OpInitial, Bars: makeBars(10, 100), Dims: testDims()})

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ports.ErrNoSurface)
	assert.Nil(t, res.State)
	assert.False(t, res.YDomainRecomputed)
}

func TestRender_EmptyDataset(t *testing.T) {
	surface := &mockSurface{}
	r := testRenderer(t, surface)
	res := r.Render(context.Background(), Request{Op: OpInitial, Dims: testDims()})

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ports.ErrNoData)
	assert.Empty(t, surface.draws, "no drawing may occur on a failed render")
}

func TestRender_InitialDerivesViewportAndDraws(t *testing.T) {
	surface := &mockSurface{}
	r := testRenderer(t, surface)
	bars := makeBars(200, 100)

	res := r.Render(context.Background(), Request{
		Op:     OpInitial,
		Bars:   bars,
		Dims:   testDims(),
		Domain: DynamicDomain(),
	})

	require.True(t, res.Success)
	assert.Equal(t, len(bars)-1, res.State.ViewEnd)
	assert.Equal(t, len(bars), surface.clipLen, "clip region must track the dataset length")
	require.Len(t, surface.draws, 1)
	assert.True(t, res.YDomainRecomputed)
	require.NotNil(t, res.FixedDomain)
	assert.True(t, res.FixedDomain.Fixed)
}

func TestRender_SkipToViewportFidelity(t *testing.T) {
	surface := &mockSurface{}
	r := testRenderer(t, surface)
	bars := makeBars(10, 100)

	res := r.Render(context.Background(), Request{
		Op:        OpSkipTo,
		Bars:      bars,
		Dims:      testDims(),
		Domain:    DynamicDomain(),
		ViewStart: 2,
		ViewEnd:   5,
	})

	require.True(t, res.Success)
	require.Len(t, res.State.Visible, 4)
	assert.Equal(t, bars[2], res.State.Visible[0])
	assert.Equal(t, bars[5], res.State.Visible[3])

	// The explicit range must differ from what the transform would derive.
	derived := r.Render(context.Background(), Request{
		Op:     OpInitial,
		Bars:   bars,
		Dims:   testDims(),
		Domain: DynamicDomain(),
	})
	require.True(t, derived.Success)
	assert.NotEqual(t, derived.State.ViewStart, res.State.ViewStart)
	assert.NotEqual(t, len(derived.State.Visible), len(res.State.Visible))
}

func TestRender_TransformResetPerPolicy(t *testing.T) {
	surface := &mockSurface{}
	r := testRenderer(t, surface)
	bars := makeBars(200, 100)

	// Every documented op resets the gesture transform to identity before
	// computing, so a stale transform cannot shift the derived viewport.
	res := r.Render(context.Background(), Request{
		Op:        OpStreaming,
		Bars:      bars,
		Dims:      testDims(),
		Transform: Transform{TranslateX: 500, Scale: 3},
		Domain:    DynamicDomain(),
	})
	require.True(t, res.Success)
	assert.Equal(t, len(bars)-1, res.State.ViewEnd)
	assert.Equal(t, Identity().String(), res.State.TransformString)
}

func TestRender_EdgeLoadPolicy(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		suppress bool
		wantFire bool
	}{
		{"initial triggers", OpInitial, false, true},
		{"streaming triggers", OpStreaming, false, true},
		{"skip-to triggers", OpSkipTo, false, true},
		{"panning never triggers", OpPanning, false, false},
		{"suppression wins", OpInitial, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface := &mockSurface{}
			r := testRenderer(t, surface)
			bars := makeBars(40, 100) // short dataset: viewport touches both edges
			fetch := &recordingFetch{loaded: true}

			res := r.Render(context.Background(), Request{
				Op:               tt.op,
				Bars:             bars,
				Dims:             testDims(),
				Domain:           DynamicDomain(),
				ViewStart:        0,
				ViewEnd:          len(bars) - 1,
				SuppressEdgeLoad: tt.suppress,
				Fetch:            fetch.fn,
			})
			require.True(t, res.Success)

			if tt.wantFire {
				assert.NotEmpty(t, fetch.calls)
			} else {
				assert.Empty(t, fetch.calls)
			}
		})
	}
}

func TestRender_FixedDomainSkipsRecomputeFlag(t *testing.T) {
	surface := &mockSurface{}
	r := testRenderer(t, surface)

	res := r.Render(context.Background(), Request{
		Op:     OpInitial,
		Bars:   makeBars(100, 100),
		Dims:   testDims(),
		Domain: FixedDomain(50, 150),
	})
	require.True(t, res.Success)
	assert.False(t, res.YDomainRecomputed)
	assert.Nil(t, res.FixedDomain)

	minP, maxP := res.State.BaseYScale.Domain()
	assert.Equal(t, 50.0, minP)
	assert.Equal(t, 150.0, maxP)
}

func TestRender_SurfaceDrawFailure(t *testing.T) {
	surface := &mockSurface{drawErr: errors.New("canvas detached")}
	r := testRenderer(t, surface)

	res := r.Render(context.Background(), Request{
		Op:     OpInitial,
		Bars:   makeBars(100, 100),
		Dims:   testDims(),
		Domain: DynamicDomain(),
	})
	assert.False(t, res.Success)
	assert.Error(t, res.Err)
}
