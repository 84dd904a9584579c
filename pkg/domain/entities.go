// Package domain defines the value types shared by the pool-creation planner:
// pools, rack positions, layouts, worklists, plans and the message channel.
package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// MoleculeType identifies the chemistry of the single designs in a pool. It
// determines the default stock concentration.
type MoleculeType string

// Molecule types known to the default configuration.
const (
	MoleculeTypeSiRNA          MoleculeType = "siRNA"
	MoleculeTypeMiRNAInhibitor MoleculeType = "miRNA inhibitor"
	MoleculeTypeMiRNAMimic     MoleculeType = "miRNA mimic"
	MoleculeTypeEsiRNA         MoleculeType = "esiRNA"
)

// DiluentAnnealingBuffer is the diluent tag of every buffer transfer.
const DiluentAnnealingBuffer = "annealing buffer"

// Principal is an identity supplied by the host environment.
type Principal struct {
	Username string `json:"username" yaml:"username"`
	Token    string `json:"token,omitempty" yaml:"token"`
}

// IsZero reports whether no username is set.
func (p Principal) IsZero() bool { return p.Username == "" }

// Pool is a target molecule-design pool made of several single designs that
// already exist as stock tubes.
type Pool struct {
	ID                string       `json:"id"`
	MoleculeDesignIDs []string     `json:"molecule_design_ids"`
	MoleculeType      MoleculeType `json:"molecule_type"`
}

// Size returns the number of single designs in the pool.
func (p Pool) Size() int { return len(p.MoleculeDesignIDs) }

// PoolSet is the collection of pools to create in one plan.
type PoolSet []Pool

// Len returns the cardinality of the pool set.
func (s PoolSet) Len() int { return len(s) }

// Clone returns a deep copy.
func (s PoolSet) Clone() PoolSet {
	if s == nil {
		return nil
	}
	out := make(PoolSet, len(s))
	for i, p := range s {
		p.MoleculeDesignIDs = slices.Clone(p.MoleculeDesignIDs)
		out[i] = p
	}
	return out
}

// BaseLayout is a rack shape plus the positions declared as valid destinations.
type BaseLayout struct {
	Shape     RackShape  `json:"shape"`
	Positions []Position `json:"positions"`
}

// Len returns the number of valid destination positions.
func (l BaseLayout) Len() int { return len(l.Positions) }

// Clone returns a deep copy.
func (l BaseLayout) Clone() BaseLayout {
	return BaseLayout{Shape: l.Shape, Positions: slices.Clone(l.Positions)}
}

// BufferTransferEntry plans the addition of buffer to one target position.
// Volume is in litres.
type BufferTransferEntry struct {
	Target  Position `json:"target"`
	Volume  float64  `json:"volume"`
	Diluent string   `json:"diluent"`
}

// Worklist is an ordered list of buffer transfers.
type Worklist struct {
	Label   string                `json:"label"`
	Index   int                   `json:"index"`
	Entries []BufferTransferEntry `json:"entries"`
}

// Clone returns a deep copy.
func (w Worklist) Clone() Worklist {
	w.Entries = slices.Clone(w.Entries)
	if w.Entries == nil {
		w.Entries = []BufferTransferEntry{}
	}
	return w
}

// WorklistSeries maps non-negative indexes to worklists. Indexes are unique;
// insertion order is kept for serialization.
type WorklistSeries struct {
	order []int
	items map[int]Worklist
}

// NewWorklistSeries returns an empty series.
func NewWorklistSeries() *WorklistSeries {
	return &WorklistSeries{items: make(map[int]Worklist)}
}

// Add appends a worklist under its index.
func (s *WorklistSeries) Add(w Worklist) error {
	if w.Index < 0 {
		return fmt.Errorf("worklist %q: negative index %d", w.Label, w.Index)
	}
	if s.items == nil {
		s.items = make(map[int]Worklist)
	}
	if _, exists := s.items[w.Index]; exists {
		return fmt.Errorf("worklist index %d already used", w.Index)
	}
	s.order = append(s.order, w.Index)
	s.items[w.Index] = w.Clone()
	return nil
}

// Get returns the worklist stored under index.
func (s *WorklistSeries) Get(index int) (Worklist, bool) {
	if s == nil {
		return Worklist{}, false
	}
	w, ok := s.items[index]
	if !ok {
		return Worklist{}, false
	}
	return w.Clone(), true
}

// Len returns the number of worklists.
func (s *WorklistSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Worklists returns copies of the worklists in insertion order.
func (s *WorklistSeries) Worklists() []Worklist {
	if s == nil {
		return nil
	}
	out := make([]Worklist, 0, len(s.order))
	for _, idx := range s.order {
		out = append(out, s.items[idx].Clone())
	}
	return out
}

// Clone returns a deep copy.
func (s *WorklistSeries) Clone() *WorklistSeries {
	out := NewWorklistSeries()
	for _, w := range s.Worklists() {
		_ = out.Add(w)
	}
	return out
}

// MarshalJSON encodes the series as an array in insertion order.
func (s *WorklistSeries) MarshalJSON() ([]byte, error) {
	lists := s.Worklists()
	if lists == nil {
		lists = []Worklist{}
	}
	return json.Marshal(lists)
}

// UnmarshalJSON decodes an array of worklists, rejecting duplicate indexes.
func (s *WorklistSeries) UnmarshalJSON(data []byte) error {
	var lists []Worklist
	if err := json.Unmarshal(data, &lists); err != nil {
		return err
	}
	*s = WorklistSeries{items: make(map[int]Worklist, len(lists))}
	for _, w := range lists {
		if err := s.Add(w); err != nil {
			return err
		}
	}
	return nil
}

// PlanParams carries the fields of a Plan at construction time. Volumes are
// in litres, concentrations in molar.
type PlanParams struct {
	Label               string
	Requester           Principal
	Owner               Principal
	PlateCount          int
	AliquotCount        int
	Worklists           *WorklistSeries
	Pools               PoolSet
	MoleculeType        MoleculeType
	DesignsPerPool      int
	FinalVolume         float64
	FinalConcentration  float64
	StockTransferVolume float64
	BufferVolume        float64
	Layout              BaseLayout
}

// Plan is the immutable ISO request computed for one production run. All
// quantities are in canonical units.
type Plan struct {
	p PlanParams
}

// NewPlan copies params into a new Plan.
func NewPlan(params PlanParams) *Plan {
	params.Pools = params.Pools.Clone()
	params.Layout = params.Layout.Clone()
	if params.Worklists == nil {
		params.Worklists = NewWorklistSeries()
	} else {
		params.Worklists = params.Worklists.Clone()
	}
	return &Plan{p: params}
}

// Label is the plate-set label and worklist name prefix.
func (p *Plan) Label() string { return p.p.Label }

// Requester is the principal who asked for the plan.
func (p *Plan) Requester() Principal { return p.p.Requester }

// Owner is the stock-management principal owning the plan.
func (p *Plan) Owner() Principal { return p.p.Owner }

// PlateCount is the number of 96-well destination plates.
func (p *Plan) PlateCount() int { return p.p.PlateCount }

// AliquotCount is the number of aliquot plates.
func (p *Plan) AliquotCount() int { return p.p.AliquotCount }

// Worklists returns a copy of the worklist series.
func (p *Plan) Worklists() *WorklistSeries { return p.p.Worklists.Clone() }

// Pools returns a copy of the pool set.
func (p *Plan) Pools() PoolSet { return p.p.Pools.Clone() }

// MoleculeType is the molecule type shared by all pools.
func (p *Plan) MoleculeType() MoleculeType { return p.p.MoleculeType }

// DesignsPerPool is the number of single designs per pool.
func (p *Plan) DesignsPerPool() int { return p.p.DesignsPerPool }

// FinalVolume is the target pool stock volume in litres.
func (p *Plan) FinalVolume() float64 { return p.p.FinalVolume }

// FinalConcentration is the target pool concentration in molar.
func (p *Plan) FinalConcentration() float64 { return p.p.FinalConcentration }

// StockTransferVolume is the volume taken from each single-design stock tube
// in litres.
func (p *Plan) StockTransferVolume() float64 { return p.p.StockTransferVolume }

// BufferVolume is the buffer volume per destination well in litres.
func (p *Plan) BufferVolume() float64 { return p.p.BufferVolume }

// Layout returns a copy of the base layout.
func (p *Plan) Layout() BaseLayout { return p.p.Layout.Clone() }

type planJSON struct {
	Label               string          `json:"label"`
	Requester           Principal       `json:"requester"`
	Owner               Principal       `json:"owner"`
	PlateCount          int             `json:"plate_count"`
	AliquotCount        int             `json:"aliquot_count"`
	Worklists           *WorklistSeries `json:"worklists"`
	Pools               PoolSet         `json:"pools"`
	MoleculeType        MoleculeType    `json:"molecule_type"`
	DesignsPerPool      int             `json:"designs_per_pool"`
	FinalVolume         float64         `json:"final_volume"`
	FinalConcentration  float64         `json:"final_concentration"`
	StockTransferVolume float64         `json:"stock_transfer_volume"`
	BufferVolume        float64         `json:"buffer_volume"`
	Layout              BaseLayout      `json:"layout"`
}

// MarshalJSON encodes the plan with canonical-unit values.
func (p *Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(planJSON(p.p))
}

// UnmarshalJSON hydrates a plan from its JSON encoding.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var aux planJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.p = NewPlan(PlanParams(aux)).p
	return nil
}

// PlanRecord is a plan as stored by a persistence collaborator.
type PlanRecord struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	Plan      *Plan     `json:"plan"`
}
