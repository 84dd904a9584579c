package core

import (
	"fmt"

	"poolcore/pkg/domain"
)

// BufferWorklistIndex is the series index of the stock buffer worklist.
const BufferWorklistIndex = 0

const bufferWorklistSuffix = "_stock_buffer"

// BufferWorklistLabel names the buffer worklist of a plan.
func BufferWorklistLabel(planLabel string) string {
	return planLabel + bufferWorklistSuffix
}

// GenerateBufferWorklists builds the worklist series of a plan: one buffer
// worklist at index 0 with an entry per layout position. A zero buffer volume
// yields the same worklist without entries.
func GenerateBufferWorklists(planLabel string, layout domain.BaseLayout, bufferVolume float64) (*domain.WorklistSeries, error) {
	worklist := domain.Worklist{
		Label:   BufferWorklistLabel(planLabel),
		Index:   BufferWorklistIndex,
		Entries: []domain.BufferTransferEntry{},
	}
	if bufferVolume > 0 {
		worklist.Entries = make([]domain.BufferTransferEntry, 0, layout.Len())
		for _, pos := range layout.Positions {
			worklist.Entries = append(worklist.Entries, domain.BufferTransferEntry{
				Target:  pos,
				Volume:  bufferVolume,
				Diluent: domain.DiluentAnnealingBuffer,
			})
		}
	}
	series := domain.NewWorklistSeries()
	if err := series.Add(worklist); err != nil {
		return nil, fmt.Errorf("buffer worklist: %w", err)
	}
	return series, nil
}
