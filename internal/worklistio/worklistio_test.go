package worklistio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"poolcore/internal/blob/core"
	poolcore "poolcore/internal/core"
	"poolcore/internal/infra/blob/memory"
	"poolcore/pkg/domain"
)

func bufferWorklist(t *testing.T, label string, volume float64) domain.Worklist {
	t.Helper()
	series, err := poolcore.GenerateBufferWorklists(label, poolcore.GenerateLayout(domain.Shape96), volume)
	require.NoError(t, err)
	wl, ok := series.Get(poolcore.BufferWorklistIndex)
	require.True(t, ok)
	return wl
}

func TestWriteCSVGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, bufferWorklist(t, "lib-A", 7e-5)))
	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "buffer_worklist_96", buf.Bytes())
}

func TestWriteCSVRoundsVolumes(t *testing.T) {
	wl := domain.Worklist{Label: "x", Entries: []domain.BufferTransferEntry{
		{Target: domain.Position{Row: 7, Column: 11}, Volume: 1.2345678e-5, Diluent: domain.DiluentAnnealingBuffer},
		{Target: domain.Position{Row: 0, Column: 0}, Volume: 3.0e-5, Diluent: domain.DiluentAnnealingBuffer},
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, wl))
	require.Equal(t, "position,volume_ul,diluent\nH12,12.3457,annealing buffer\nA1,30,annealing buffer\n", buf.String())
}

func TestWriteCSVEmptyWorklist(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, bufferWorklist(t, "lib", 0)))
	require.Equal(t, "position,volume_ul,diluent\n", buf.String())
	entries, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestReadCSVRoundTrip(t *testing.T) {
	wl := bufferWorklist(t, "lib", 7e-5)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, wl))
	entries, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, entries, 96)
	for i, e := range entries {
		require.Equal(t, wl.Entries[i].Target, e.Target)
		require.InDelta(t, 7e-5, e.Volume, 1e-12)
		require.Equal(t, domain.DiluentAnnealingBuffer, e.Diluent)
	}
}

func TestReadCSVErrors(t *testing.T) {
	cases := map[string]string{
		"empty":    "",
		"header":   "well,volume,diluent\n",
		"position": "position,volume_ul,diluent\n11,70,annealing buffer\n",
		"volume":   "position,volume_ul,diluent\nA1,lots,annealing buffer\n",
		"columns":  "position,volume_ul,diluent\nA1,70\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func testPlan(t *testing.T, label string) *domain.Plan {
	t.Helper()
	layout := poolcore.GenerateLayout(domain.Shape96)
	series, err := poolcore.GenerateBufferWorklists(label, layout, 7e-5)
	require.NoError(t, err)
	return domain.NewPlan(domain.PlanParams{Label: label, Worklists: series, Layout: layout, BufferVolume: 7e-5})
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	infos, err := Export(ctx, store, testPlan(t, "lib-A"))
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "lib-A/0_lib-A_stock_buffer.csv", infos[0].Key)
	require.Equal(t, ContentType, infos[0].ContentType)
	require.Equal(t, "96", infos[0].Metadata["entries"])

	_, rc, err := store.Get(ctx, infos[0].Key)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(body), "position,volume_ul,diluent\nA1,70,annealing buffer\n"))

	_, err = Export(ctx, store, testPlan(t, "lib-A"))
	require.True(t, errors.Is(err, core.ErrExists), "got %v", err)

	_, err = Export(ctx, nil, testPlan(t, "lib-A"))
	require.Error(t, err)
}

type failingDeletes struct {
	core.Store
}

func (failingDeletes) Delete(context.Context, string) (bool, error) {
	return false, errors.New("backend down")
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	infos, err := Export(ctx, store, testPlan(t, "lib-D"))
	require.NoError(t, err)

	require.NoError(t, Discard(ctx, store, infos))
	left, err := store.List(ctx, "lib-D/")
	require.NoError(t, err)
	require.Empty(t, left)

	_, err = Export(ctx, store, testPlan(t, "lib-D"))
	require.NoError(t, err, "discarded keys can be exported again")

	err = Discard(ctx, failingDeletes{store}, infos)
	require.ErrorContains(t, err, "delete lib-D/0_lib-D_stock_buffer.csv")
	require.ErrorContains(t, err, "backend down")
}
