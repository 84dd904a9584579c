package core

import (
	"io"
	"maps"

	"poolcore/pkg/domain"
)

// ParsedPoolSet is what a pool-set parser yields.
type ParsedPoolSet struct {
	Pools          domain.PoolSet
	DesignsPerPool int
	MoleculeType   domain.MoleculeType
}

// Parser turns an uploaded pool description into a pool set. The logger is
// the caller's logging channel.
type Parser interface {
	Parse(r io.Reader, log Logger) (ParsedPoolSet, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(r io.Reader, log Logger) (ParsedPoolSet, error)

// Parse implements Parser.
func (f ParserFunc) Parse(r io.Reader, log Logger) (ParsedPoolSet, error) { return f(r, log) }

// StockConcentrationTable maps molecule types to their default single-design
// stock concentration in nM.
type StockConcentrationTable map[domain.MoleculeType]float64

// Lookup returns the stock concentration of mt in nM.
func (t StockConcentrationTable) Lookup(mt domain.MoleculeType) (float64, bool) {
	c, ok := t[mt]
	return c, ok && c > 0
}

// Clone returns a copy of the table.
func (t StockConcentrationTable) Clone() StockConcentrationTable {
	return maps.Clone(t)
}

// MsgUnableToParse is recorded when the parser fails.
const MsgUnableToParse = "Unable to parse pool set"

// Ingestion is the validated pool set together with its stock concentration.
type Ingestion struct {
	Pools              domain.PoolSet
	DesignsPerPool     int
	MoleculeType       domain.MoleculeType
	StockConcentration float64 // M
}

// Ingest delegates to parser and checks that every pool shares the design
// count and molecule type, then resolves the stock concentration. Failures are
// recorded on the returned result.
func Ingest(parser Parser, r io.Reader, table StockConcentrationTable, log Logger) (Ingestion, domain.Result) {
	var res domain.Result
	if log == nil {
		log = noopLogger{}
	}
	if parser == nil || r == nil {
		res.Add(domain.Errorf(domain.KindParseFailure, MsgUnableToParse))
		return Ingestion{}, res
	}
	parsed, err := parser.Parse(r, log)
	if err != nil {
		log.Error("pool set parser failed", "error", err)
		res.Add(domain.Errorf(domain.KindParseFailure, MsgUnableToParse))
		return Ingestion{}, res
	}
	if parsed.Pools.Len() == 0 {
		res.Add(domain.Errorf(domain.KindInvalidInput, "The pool set does not contain any pools."))
		return Ingestion{}, res
	}
	if parsed.DesignsPerPool <= 0 {
		res.Add(domain.Errorf(domain.KindInvalidInput, "The number of designs per pool must be a positive number (obtained: %d).", parsed.DesignsPerPool))
		return Ingestion{}, res
	}
	for _, pool := range parsed.Pools {
		if pool.Size() != parsed.DesignsPerPool {
			res.Add(domain.Errorf(domain.KindParseFailure, "Pool %s has %d molecule designs, expected %d.", pool.ID, pool.Size(), parsed.DesignsPerPool))
		}
		if pool.MoleculeType != "" && pool.MoleculeType != parsed.MoleculeType {
			res.Add(domain.Errorf(domain.KindParseFailure, "Pool %s has molecule type %s, expected %s.", pool.ID, pool.MoleculeType, parsed.MoleculeType))
		}
	}
	if res.HasErrors() {
		return Ingestion{}, res
	}
	stock, ok := table.Lookup(parsed.MoleculeType)
	if !ok {
		res.Add(domain.Errorf(domain.KindInvalidInput, "There is no default stock concentration for molecule type %q.", parsed.MoleculeType))
		return Ingestion{}, res
	}
	log.Debug("pool set ingested", "pools", parsed.Pools.Len(), "designs_per_pool", parsed.DesignsPerPool, "molecule_type", string(parsed.MoleculeType))
	return Ingestion{
		Pools:              parsed.Pools.Clone(),
		DesignsPerPool:     parsed.DesignsPerPool,
		MoleculeType:       parsed.MoleculeType,
		StockConcentration: domain.ConcentrationToCanonical(stock),
	}, res
}
