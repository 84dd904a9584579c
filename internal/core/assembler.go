package core

import (
	"fmt"

	"poolcore/pkg/domain"
)

// DefaultAliquotCount is the aliquot count recorded on every plan.
const DefaultAliquotCount = 1

// PlanInput gathers the outputs of the planning stages. Quantities are in
// canonical units.
type PlanInput struct {
	Label               string
	Requester           domain.Principal
	Ingestion           Ingestion
	TargetVolume        float64
	TargetConcentration float64
	MinTransferVolume   float64
	Transfer            TransferVolumes
	Layout              domain.BaseLayout
	Worklists           *domain.WorklistSeries
	PlateCount          int
}

// Assembler packages stage outputs into a Plan. Owner is the stock-management
// principal supplied by the host.
type Assembler struct {
	Owner domain.Principal
}

// Assemble builds the plan and verifies its post-conditions. A violation is a
// programming error and is returned as *domain.InvariantViolationError.
func (a Assembler) Assemble(in PlanInput) (*domain.Plan, error) {
	if err := a.check(in); err != nil {
		return nil, err
	}
	return domain.NewPlan(domain.PlanParams{
		Label:               in.Label,
		Requester:           in.Requester,
		Owner:               a.Owner,
		PlateCount:          in.PlateCount,
		AliquotCount:        DefaultAliquotCount,
		Worklists:           in.Worklists,
		Pools:               in.Ingestion.Pools,
		MoleculeType:        in.Ingestion.MoleculeType,
		DesignsPerPool:      in.Ingestion.DesignsPerPool,
		FinalVolume:         in.TargetVolume,
		FinalConcentration:  in.TargetConcentration,
		StockTransferVolume: in.Transfer.StockTransferVolume,
		BufferVolume:        in.Transfer.BufferVolume,
		Layout:              in.Layout,
	}), nil
}

func violation(invariant, format string, args ...any) error {
	return &domain.InvariantViolationError{Invariant: invariant, Detail: fmt.Sprintf(format, args...)}
}

func (a Assembler) check(in PlanInput) error {
	switch {
	case in.Label == "":
		return violation("label", "plan label missing")
	case a.Owner.IsZero():
		return violation("owner", "stock management owner missing")
	case in.Requester.IsZero():
		return violation("requester", "requester missing")
	case in.Worklists == nil:
		return violation("worklists", "worklist series missing")
	case in.Ingestion.Pools.Len() == 0:
		return violation("pools", "pool set empty")
	case in.PlateCount <= 0:
		return violation("plate-count", "plate count %d for %d pools", in.PlateCount, in.Ingestion.Pools.Len())
	case in.Layout.Len() == 0:
		return violation("layout", "layout has no positions")
	}
	if below(in.Transfer.StockTransferVolume, in.MinTransferVolume) {
		return violation("min-transfer", "stock transfer %g L below minimum %g L", in.Transfer.StockTransferVolume, in.MinTransferVolume)
	}
	if v := in.Transfer.BufferVolume; v != 0 && below(v, in.MinTransferVolume) {
		return violation("min-transfer", "buffer volume %g L neither zero nor above minimum %g L", v, in.MinTransferVolume)
	}
	for _, w := range in.Worklists.Worklists() {
		want := in.Layout.Len()
		if in.Transfer.BufferVolume == 0 {
			want = 0
		}
		if len(w.Entries) != want {
			return violation("worklist-size", "worklist %s has %d entries, want %d", w.Label, len(w.Entries), want)
		}
		for i, e := range w.Entries {
			if e.Target != in.Layout.Positions[i] || e.Volume != in.Transfer.BufferVolume || e.Diluent != domain.DiluentAnnealingBuffer {
				return violation("worklist-entry", "worklist %s entry %d (%s) does not match layout", w.Label, i, e.Target)
			}
		}
	}
	return nil
}
