// Package poolfile parses YAML pool-set uploads.
//
// A pool set file names one molecule type and lists the pools to create:
//
//	molecule_type: siRNA
//	pools:
//	  - id: "1063102"
//	    designs: ["10247990", "10331567", "10339513"]
//
// A pool may override molecule_type; ingestion rejects mixed sets.
package poolfile

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"poolcore/internal/core"
	"poolcore/pkg/domain"
)

type document struct {
	MoleculeType domain.MoleculeType `yaml:"molecule_type"`
	Pools        []poolEntry         `yaml:"pools"`
}

type poolEntry struct {
	ID           string              `yaml:"id"`
	Designs      []string            `yaml:"designs"`
	MoleculeType domain.MoleculeType `yaml:"molecule_type"`
}

// Parser implements core.Parser for YAML pool-set documents.
type Parser struct{}

var _ core.Parser = Parser{}

// Parse decodes r into a pool set. The designs-per-pool count is taken from
// the first pool.
func (Parser) Parse(r io.Reader, log core.Logger) (core.ParsedPoolSet, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return core.ParsedPoolSet{}, errors.New("pool set file is empty")
		}
		return core.ParsedPoolSet{}, fmt.Errorf("decode pool set: %w", err)
	}
	if strings.TrimSpace(string(doc.MoleculeType)) == "" {
		return core.ParsedPoolSet{}, errors.New("molecule_type is required")
	}

	var problems []error
	seen := make(map[string]struct{}, len(doc.Pools))
	pools := make(domain.PoolSet, 0, len(doc.Pools))
	for i, entry := range doc.Pools {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			problems = append(problems, fmt.Errorf("pool #%d has no id", i+1))
			continue
		}
		if _, dup := seen[id]; dup {
			problems = append(problems, fmt.Errorf("pool %s is listed more than once", id))
			continue
		}
		seen[id] = struct{}{}
		designs, err := normaliseDesigns(id, entry.Designs)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		mt := entry.MoleculeType
		if mt == "" {
			mt = doc.MoleculeType
		}
		pools = append(pools, domain.Pool{ID: id, MoleculeDesignIDs: designs, MoleculeType: mt})
	}
	if err := errors.Join(problems...); err != nil {
		return core.ParsedPoolSet{}, err
	}

	parsed := core.ParsedPoolSet{Pools: pools, MoleculeType: doc.MoleculeType}
	if len(pools) > 0 {
		parsed.DesignsPerPool = pools[0].Size()
	}
	if log != nil {
		log.Debug("pool set file parsed", "pools", len(pools), "molecule_type", string(doc.MoleculeType))
	}
	return parsed, nil
}

func normaliseDesigns(pool string, raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, d := range raw {
		d = strings.TrimSpace(d)
		if d == "" {
			return nil, fmt.Errorf("pool %s has a blank design id", pool)
		}
		if _, dup := seen[d]; dup {
			return nil, fmt.Errorf("pool %s lists design %s twice", pool, d)
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out, nil
}
