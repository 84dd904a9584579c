package core

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"poolcore/pkg/domain"
)

func poolSet(n, k int, mt domain.MoleculeType) domain.PoolSet {
	pools := make(domain.PoolSet, n)
	for i := range pools {
		ids := make([]string, k)
		for j := range ids {
			ids[j] = fmt.Sprintf("md-%d-%d", i, j)
		}
		pools[i] = domain.Pool{ID: fmt.Sprintf("pool-%d", i), MoleculeDesignIDs: ids, MoleculeType: mt}
	}
	return pools
}

func staticParser(parsed ParsedPoolSet, err error) Parser {
	return ParserFunc(func(r io.Reader, _ Logger) (ParsedPoolSet, error) {
		if _, rerr := io.ReadAll(r); rerr != nil {
			return ParsedPoolSet{}, rerr
		}
		return parsed, err
	})
}

var testStock = StockConcentrationTable{domain.MoleculeTypeSiRNA: 50000}

func TestIngestSuccess(t *testing.T) {
	parser := staticParser(ParsedPoolSet{Pools: poolSet(4, 3, domain.MoleculeTypeSiRNA), DesignsPerPool: 3, MoleculeType: domain.MoleculeTypeSiRNA}, nil)
	log := &captureLogger{}
	ing, res := Ingest(parser, strings.NewReader("ignored"), testStock, log)
	if res.HasErrors() {
		t.Fatalf("unexpected errors %+v", res.Messages)
	}
	if ing.Pools.Len() != 4 || ing.DesignsPerPool != 3 || ing.StockConcentration != 5e-5 {
		t.Fatalf("unexpected ingestion %+v", ing)
	}
	if len(log.calls) == 0 {
		t.Fatalf("expected ingestion to log")
	}
}

func TestIngestFailures(t *testing.T) {
	mixed := poolSet(3, 2, domain.MoleculeTypeSiRNA)
	mixed[1].MoleculeDesignIDs = mixed[1].MoleculeDesignIDs[:1]
	mixed[2].MoleculeType = domain.MoleculeTypeEsiRNA

	cases := []struct {
		name     string
		parser   Parser
		reader   io.Reader
		wantKind domain.Kind
		wantText string
		wantN    int
	}{
		{name: "parser error", parser: staticParser(ParsedPoolSet{}, errors.New("bad row")), reader: strings.NewReader("x"), wantKind: domain.KindParseFailure, wantText: MsgUnableToParse, wantN: 1},
		{name: "nil reader", parser: staticParser(ParsedPoolSet{}, nil), wantKind: domain.KindParseFailure, wantText: MsgUnableToParse, wantN: 1},
		{name: "nil parser", reader: strings.NewReader("x"), wantKind: domain.KindParseFailure, wantText: MsgUnableToParse, wantN: 1},
		{name: "empty pool set", parser: staticParser(ParsedPoolSet{DesignsPerPool: 3, MoleculeType: domain.MoleculeTypeSiRNA}, nil), reader: strings.NewReader("x"), wantKind: domain.KindInvalidInput, wantText: "does not contain any pools", wantN: 1},
		{name: "non-positive k", parser: staticParser(ParsedPoolSet{Pools: poolSet(1, 0, domain.MoleculeTypeSiRNA), MoleculeType: domain.MoleculeTypeSiRNA}, nil), reader: strings.NewReader("x"), wantKind: domain.KindInvalidInput, wantText: "designs per pool", wantN: 1},
		{name: "inconsistent pools", parser: staticParser(ParsedPoolSet{Pools: mixed, DesignsPerPool: 2, MoleculeType: domain.MoleculeTypeSiRNA}, nil), reader: strings.NewReader("x"), wantKind: domain.KindParseFailure, wantText: "pool-1", wantN: 2},
		{name: "unknown molecule type", parser: staticParser(ParsedPoolSet{Pools: poolSet(1, 2, "dsDNA"), DesignsPerPool: 2, MoleculeType: "dsDNA"}, nil), reader: strings.NewReader("x"), wantKind: domain.KindInvalidInput, wantText: "dsDNA", wantN: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, res := Ingest(tc.parser, tc.reader, testStock, nil)
			if !res.HasErrors() || len(res.Messages) != tc.wantN {
				t.Fatalf("expected %d errors, got %+v", tc.wantN, res.Messages)
			}
			first := res.Messages[0]
			if first.Kind != tc.wantKind || !strings.Contains(first.Text, tc.wantText) {
				t.Fatalf("unexpected message %+v", first)
			}
		})
	}
}

func TestStockConcentrationTableLookup(t *testing.T) {
	table := StockConcentrationTable{"a": 10, "zero": 0}
	if _, ok := table.Lookup("zero"); ok {
		t.Fatalf("zero concentrations are unusable")
	}
	if c, ok := table.Lookup("a"); !ok || c != 10 {
		t.Fatalf("unexpected lookup %v %v", c, ok)
	}
	clone := table.Clone()
	clone["a"] = 20
	if table["a"] != 10 {
		t.Fatalf("clone must not alias")
	}
}

type captureLogger struct{ calls []string }

func (c *captureLogger) Debug(msg string, _ ...any) { c.calls = append(c.calls, "d:"+msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.calls = append(c.calls, "i:"+msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.calls = append(c.calls, "w:"+msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.calls = append(c.calls, "e:"+msg) }
