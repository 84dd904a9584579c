package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"poolcore/pkg/domain"
)

// Stage is a state of one planning run.
type Stage string

// Planning stages in order. Any stage may branch to StageFailed, which is
// terminal.
const (
	StageReady      Stage = "READY"
	StageValidating Stage = "VALIDATING"
	StageIngesting  Stage = "INGESTING"
	StagePlanning   Stage = "PLANNING"
	StageAssembling Stage = "ASSEMBLING"
	StageDone       Stage = "DONE"
	StageFailed     Stage = "FAILED"
)

// OperationPlan is the operation name reported to metrics recorders.
const OperationPlan = "plan"

// Settings are the read-only planner tables.
type Settings struct {
	// MinTransferVolume is the pipettor minimum in ul.
	MinTransferVolume float64
	// StockConcentrations holds default stock concentrations in nM.
	StockConcentrations StockConcentrationTable
	// Shape is the destination plate shape; Shape96 when zero.
	Shape domain.RackShape
	// Owner is the stock-management principal owning every plan.
	Owner domain.Principal
}

// Request is one user planning request in user units.
type Request struct {
	Label     string
	Requester domain.Principal
	// TargetVolume is the final pool stock volume in ul.
	TargetVolume int
	// TargetConcentration is the final pool concentration in nM.
	TargetConcentration int
	// PoolSet is the raw pool description handed to the parser.
	PoolSet io.Reader
}

// Planner turns requests into plans. It holds no per-run state and is safe
// for concurrent use.
type Planner struct {
	settings  Settings
	parser    Parser
	assembler Assembler
	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
	clock     Clock
	stageHook func(Stage)
}

// Option customises a Planner.
type Option func(*Planner)

// WithLogger sets the planner logger.
func WithLogger(l Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(p *Planner) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithTracer sets the stage tracer.
func WithTracer(t Tracer) Option {
	return func(p *Planner) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithClock overrides the clock used for durations.
func WithClock(c Clock) Option {
	return func(p *Planner) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithStageHook registers a function called on every stage transition.
func WithStageHook(fn func(Stage)) Option {
	return func(p *Planner) { p.stageHook = fn }
}

// NewPlanner validates settings and constructs a planner around parser.
func NewPlanner(settings Settings, parser Parser, opts ...Option) (*Planner, error) {
	if parser == nil {
		return nil, errors.New("pool set parser required")
	}
	if !(settings.MinTransferVolume > 0) {
		return nil, fmt.Errorf("minimum transfer volume must be positive, got %v", settings.MinTransferVolume)
	}
	if len(settings.StockConcentrations) == 0 {
		return nil, errors.New("stock concentration table empty")
	}
	if settings.Owner.IsZero() {
		return nil, errors.New("stock management owner required")
	}
	if settings.Shape.Size() == 0 {
		settings.Shape = domain.Shape96
	}
	settings.StockConcentrations = settings.StockConcentrations.Clone()
	p := &Planner{
		settings:  settings,
		parser:    parser,
		assembler: Assembler{Owner: settings.Owner},
		logger:    noopLogger{},
		metrics:   noopMetrics{},
		tracer:    noopTracer{},
		clock:     systemClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Settings returns a copy of the planner settings.
func (p *Planner) Settings() Settings {
	s := p.settings
	s.StockConcentrations = s.StockConcentrations.Clone()
	return s
}

// run carries the state of one Plan invocation.
type run struct {
	p      *Planner
	ctx    context.Context
	stage  Stage
	span   TraceSpan
	result domain.Result
}

func (r *run) enter(stage Stage) {
	r.endSpan(nil)
	r.stage = stage
	r.p.logger.Debug("planner stage", "stage", string(stage))
	if r.p.stageHook != nil {
		r.p.stageHook(stage)
	}
	if stage == StageDone || stage == StageFailed {
		return
	}
	_, r.span = r.p.tracer.Start(r.ctx, "plan."+string(stage))
}

func (r *run) endSpan(err error) {
	if r.span != nil {
		r.span.End(err)
		r.span = nil
	}
}

// fail ends the current stage with the accumulated error messages.
func (r *run) fail() {
	r.endSpan(errors.New(r.result.ErrorSummary()))
	r.enter(StageFailed)
}

// Plan runs one planning invocation. Expected failures are reported on the
// result with a nil plan; only a broken plan invariant is returned as error.
func (p *Planner) Plan(ctx context.Context, req Request) (*domain.Plan, domain.Result, error) {
	started := p.clock.Now()
	r := &run{p: p, ctx: ctx, stage: StageReady}
	if p.stageHook != nil {
		p.stageHook(StageReady)
	}
	plan, err := p.execute(r, req)
	success := err == nil && plan != nil
	p.metrics.Observe(ctx, OperationPlan, success, p.clock.Now().Sub(started))
	switch {
	case err != nil:
		p.logger.Error("plan invariant violated", "label", req.Label, "error", err)
	case plan == nil:
		p.logger.Warn("plan rejected", "label", req.Label, "errors", r.result.ErrorSummary())
	default:
		p.logger.Info("plan created", "label", req.Label, "plates", plan.PlateCount(), "pools", plan.Pools().Len())
	}
	return plan, r.result, err
}

func (p *Planner) execute(r *run, req Request) (*domain.Plan, error) {
	r.enter(StageValidating)
	r.result.Merge(ValidateRequest(req))
	if r.result.HasErrors() {
		r.fail()
		return nil, nil
	}

	r.enter(StageIngesting)
	ingestion, res := Ingest(p.parser, req.PoolSet, p.settings.StockConcentrations, p.logger)
	r.result.Merge(res)
	if r.result.HasErrors() {
		r.fail()
		return nil, nil
	}

	r.enter(StagePlanning)
	shape := p.settings.Shape
	targetVolume := domain.VolumeToCanonical(float64(req.TargetVolume))
	targetConcentration := domain.ConcentrationToCanonical(float64(req.TargetConcentration))
	minTransfer := domain.VolumeToCanonical(p.settings.MinTransferVolume)
	plateCount := PlateCount(ingestion.Pools.Len(), shape.Size())
	layout := GenerateLayout(shape)
	transfer, msg := CalculateTransfer(TransferInput{
		TargetVolume:        targetVolume,
		TargetConcentration: targetConcentration,
		DesignsPerPool:      ingestion.DesignsPerPool,
		StockConcentration:  ingestion.StockConcentration,
		MinTransferVolume:   minTransfer,
	})
	if msg != nil {
		r.result.Add(*msg)
		r.fail()
		return nil, nil
	}
	if transfer.BufferRoundedToZero {
		r.result.Add(domain.Infof(domain.KindNotice, "The buffer volume is below %s ul and has been rounded to zero; no buffer needs to be added.",
			trimFloat(domain.BufferZeroTolerance, 4)))
	}
	worklists, err := GenerateBufferWorklists(req.Label, layout, transfer.BufferVolume)
	if err != nil {
		r.endSpan(err)
		r.enter(StageFailed)
		return nil, &domain.InvariantViolationError{Invariant: "worklist-series", Detail: err.Error()}
	}

	r.enter(StageAssembling)
	plan, err := p.assembler.Assemble(PlanInput{
		Label:               req.Label,
		Requester:           req.Requester,
		Ingestion:           ingestion,
		TargetVolume:        targetVolume,
		TargetConcentration: targetConcentration,
		MinTransferVolume:   minTransfer,
		Transfer:            transfer,
		Layout:              layout,
		Worklists:           worklists,
		PlateCount:          plateCount,
	})
	if err != nil {
		r.endSpan(err)
		r.enter(StageFailed)
		return nil, err
	}
	r.enter(StageDone)
	return plan, nil
}

// ValidateRequest checks the required request fields and reports every
// offending field at once.
func ValidateRequest(req Request) domain.Result {
	var res domain.Result
	switch {
	case req.Label == "":
		res.Add(domain.Errorf(domain.KindInvalidInput, "The plan label must not be empty."))
	case strings.ContainsAny(req.Label, `/\`) || strings.Contains(req.Label, ".."):
		res.Add(domain.Errorf(domain.KindInvalidInput, "The plan label must not contain path separators or \"..\" (obtained: %q).", req.Label))
	}
	if req.Requester.IsZero() {
		res.Add(domain.Errorf(domain.KindInvalidInput, "The requester must be specified."))
	}
	if req.TargetVolume <= 0 {
		res.Add(domain.Errorf(domain.KindInvalidInput, "The target volume must be a positive number (obtained: %d).", req.TargetVolume))
	}
	if req.TargetConcentration <= 0 {
		res.Add(domain.Errorf(domain.KindInvalidInput, "The target concentration must be a positive number (obtained: %d).", req.TargetConcentration))
	}
	return res
}
