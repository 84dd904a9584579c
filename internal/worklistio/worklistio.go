// Package worklistio renders buffer worklists as robot-readable CSV and
// publishes them to a blob store.
package worklistio

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"poolcore/internal/blob/core"
	"poolcore/pkg/domain"
)

// ContentType is attached to every exported worklist.
const ContentType = "text/csv"

var header = []string{"position", "volume_ul", "diluent"}

// WriteCSV writes the worklist entries with volumes in ul.
func WriteCSV(w io.Writer, wl domain.Worklist) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, e := range wl.Entries {
		if err := cw.Write([]string{e.Target.Label(), formatMicrolitres(e.Volume), e.Diluent}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatMicrolitres(litres float64) string {
	ul := math.Round(domain.VolumeToUser(litres)*1e4) / 1e4
	return strconv.FormatFloat(ul, 'f', -1, 64)
}

// ReadCSV parses a worklist written by WriteCSV. Volumes come back in litres.
func ReadCSV(r io.Reader) ([]domain.BufferTransferEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read worklist csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("worklist csv has no header")
	}
	if strings.Join(rows[0], ",") != strings.Join(header, ",") {
		return nil, fmt.Errorf("unexpected worklist header %q", rows[0])
	}
	entries := make([]domain.BufferTransferEntry, 0, len(rows)-1)
	for i, row := range rows[1:] {
		pos, err := domain.ParsePosition(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		ul, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d volume: %w", i+2, err)
		}
		entries = append(entries, domain.BufferTransferEntry{Target: pos, Volume: domain.VolumeToCanonical(ul), Diluent: row[2]})
	}
	return entries, nil
}

// Key returns the blob key of a worklist within a plan.
func Key(planLabel string, wl domain.Worklist) string {
	return fmt.Sprintf("%s/%d_%s.csv", planLabel, wl.Index, wl.Label)
}

// Export uploads every worklist of plan in series order.
func Export(ctx context.Context, store core.Store, plan *domain.Plan) ([]core.Info, error) {
	if store == nil || plan == nil {
		return nil, errors.New("export requires a store and a plan")
	}
	lists := plan.Worklists().Worklists()
	out := make([]core.Info, 0, len(lists))
	for _, wl := range lists {
		var buf bytes.Buffer
		if err := WriteCSV(&buf, wl); err != nil {
			return out, fmt.Errorf("render %s: %w", wl.Label, err)
		}
		info, err := store.Put(ctx, Key(plan.Label(), wl), &buf, core.PutOptions{
			ContentType: ContentType,
			Metadata: map[string]string{
				"plan":     plan.Label(),
				"worklist": wl.Label,
				"entries":  strconv.Itoa(len(wl.Entries)),
			},
		})
		if err != nil {
			return out, fmt.Errorf("upload %s: %w", wl.Label, err)
		}
		out = append(out, info)
	}
	return out, nil
}

// Discard deletes previously exported artifacts. It attempts every key and
// joins the failures.
func Discard(ctx context.Context, store core.Store, infos []core.Info) error {
	var errs []error
	for _, info := range infos {
		if _, err := store.Delete(ctx, info.Key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", info.Key, err))
		}
	}
	return errors.Join(errs...)
}
