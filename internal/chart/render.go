package chart

import (
	"context"
	"fmt"

	"github.com/natelewis/whalewatch-sub003/internal/domain"
	"github.com/natelewis/whalewatch-sub003/internal/ports"
)

// Op identifies a render operation. Each op is a fixed bundle of policy
// flags; the closed set keeps the dispatch exhaustive and makes a new mode a
// compile-visible change instead of another boolean parameter.
type Op int

const (
	// OpInitial is the first render after a dataset loads.
	OpInitial Op = iota
	// OpPanning renders a caller-supplied index range during a pan gesture.
	OpPanning
	// OpSkipTo jumps the viewport to a caller-supplied index range.
	OpSkipTo
	// OpStreaming re-renders after a live bar update grows or replaces the
	// right edge of the dataset.
	OpStreaming
)

func (op Op) String() string {
	switch op {
	case OpInitial:
		return "initial"
	case OpPanning:
		return "panning"
	case OpSkipTo:
		return "skipTo"
	case OpStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// policy is the flag bundle an op expands to.
type policy struct {
	recomputeDomain   bool // recompute the Y domain for this render
	preserveTransform bool // keep the gesture transform instead of resetting to identity
	explicitViewport  bool // use the caller-supplied index range
	triggerEdgeLoad   bool // run the edge-trigger check after drawing
}

func (op Op) policy() policy {
	switch op {
	case OpInitial:
		return policy{recomputeDomain: true, triggerEdgeLoad: true}
	case OpPanning:
		return policy{recomputeDomain: true, explicitViewport: true}
	case OpSkipTo:
		return policy{recomputeDomain: true, explicitViewport: true, triggerEdgeLoad: true}
	case OpStreaming:
		return policy{recomputeDomain: true, triggerEdgeLoad: true}
	default:
		return policy{}
	}
}

// Surface is the external drawing layer: it accepts chart states and draws
// marks from them. The renderer only requires that the clip region track the
// dataset length and that Draw consume a State.
type Surface interface {
	// SetClipLength resizes the surface's clip/crop region to cover a
	// dataset of n bars. Called before every draw so a grown dataset is
	// never clipped to its old extent.
	SetClipLength(n int)
	// Draw renders marks for the given state.
	Draw(state *State) error
}

// Request carries one render operation's inputs.
type Request struct {
	Op        Op
	Bars      []*domain.Bar
	Dims      Dimensions
	Transform Transform
	Domain    PriceDomain

	// ViewStart/ViewEnd supply the index range for explicit-viewport ops
	// (OpPanning, OpSkipTo); ignored otherwise.
	ViewStart int
	ViewEnd   int

	// SuppressEdgeLoad skips the edge-trigger check even for ops that
	// normally run it.
	SuppressEdgeLoad bool
	// Fetch services edge-triggered loads. Nil disables edge loading for
	// this call.
	Fetch FetchFunc
}

// Result is the structured outcome of a render. Failures are reported here,
// never panicked: on Success=false no drawing occurred and the surface's
// previous state is retained.
type Result struct {
	Success bool
	State   *State
	Err     error

	// YDomainRecomputed reports that a dynamic Y domain was recalculated
	// for this render; FixedDomain then carries the resulting bounds as a
	// locked domain the caller can reuse for subsequent pans.
	YDomainRecomputed bool
	FixedDomain       *PriceDomain
}

// RendererConfig wires the dispatcher's collaborators.
type RendererConfig struct {
	Calculator *Calculator
	Surface    Surface
	Loader     *EdgeLoader
	Edges      EdgeStore // optional; defaults to a fresh EdgeState
	Logger     ports.Logger
}

// Renderer is the render-mode dispatcher: it expands the operation into its
// policy flags, invokes the calculator accordingly, updates the surface, and
// conditionally runs the edge-trigger check, in that fixed order.
type Renderer struct {
	calc    *Calculator
	surface Surface
	loader  *EdgeLoader
	edges   EdgeStore
	logger  ports.Logger
}

// NewRenderer creates a renderer.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for renderer")
	}
	if cfg.Calculator == nil {
		return nil, fmt.Errorf("calculator is required for renderer")
	}
	if cfg.Loader == nil {
		return nil, fmt.Errorf("edge loader is required for renderer")
	}
	edges := cfg.Edges
	if edges == nil {
		edges = NewEdgeState()
	}
	return &Renderer{
		calc:    cfg.Calculator,
		surface: cfg.Surface,
		loader:  cfg.Loader,
		edges:   edges,
		logger:  cfg.Logger,
	}, nil
}

// Edges exposes the renderer's edge-lock store, mainly for tests and for
// callers that reset it on dataset swap.
func (r *Renderer) Edges() EdgeStore { return r.edges }

// Render executes one operation. Within the call the order is fixed:
// calculate (cache-checked) -> clip update -> draw -> edge check; each stage
// consumes the previous stage's output.
func (r *Renderer) Render(ctx context.Context, req Request) Result {
	if r.surface == nil {
		return Result{Err: ports.ErrNoSurface}
	}
	if len(req.Bars) == 0 {
		return Result{Err: ports.ErrNoData}
	}

	p := req.Op.policy()

	t := req.Transform
	if !p.preserveTransform {
		t = Identity()
	}

	var (
		state *State
		err   error
	)
	if p.explicitViewport {
		state, err = r.calc.ComputeWithViewport(req.Bars, req.Dims, t, req.Domain, req.ViewStart, req.ViewEnd)
	} else {
		state, err = r.calc.Compute(req.Bars, req.Dims, t, req.Domain)
	}
	if err != nil {
		r.logger.Warn(ctx, "render calculation failed", map[string]interface{}{
			"op":    req.Op.String(),
			"bars":  len(req.Bars),
			"error": err.Error(),
		})
		return Result{Err: err}
	}

	res := Result{Success: true, State: state}
	if p.recomputeDomain && !req.Domain.Fixed {
		minP, maxP := state.BaseYScale.Domain()
		fixed := FixedDomain(minP, maxP)
		res.YDomainRecomputed = true
		res.FixedDomain = &fixed
	}

	// The clip region must cover the possibly-grown dataset before marks
	// are drawn into it.
	r.surface.SetClipLength(len(req.Bars))
	if err := r.surface.Draw(state); err != nil {
		return Result{Err: fmt.Errorf("surface draw failed: %w", err)}
	}

	if p.triggerEdgeLoad && !req.SuppressEdgeLoad {
		r.loader.Check(ctx, r.edges, state.ViewStart, state.ViewEnd, len(req.Bars), req.Fetch)
	}
	return res
}
