// Package config loads planner settings from YAML and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"poolcore/internal/core"
	"poolcore/pkg/domain"
)

// Pipettor names known to the default configuration.
const (
	PipettorBioMek = "BioMek"
	PipettorCyBio  = "CyBio"
)

// Storage drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config is the full process configuration.
type Config struct {
	// Pipettor selects the entry of MinTransferVolumes in use.
	Pipettor string `yaml:"pipettor"`
	// MinTransferVolumes maps pipettor names to their minimum transfer volume in ul.
	MinTransferVolumes map[string]float64 `yaml:"min_transfer_volumes_ul"`
	// StockConcentrations maps molecule types to single-design stock concentrations in nM.
	StockConcentrations map[domain.MoleculeType]float64 `yaml:"stock_concentrations_nm"`
	// Owner is the stock-management principal.
	Owner       domain.Principal `yaml:"owner"`
	Blob        BlobConfig       `yaml:"blob"`
	Persistence StoreConfig      `yaml:"persistence"`
}

// BlobConfig selects the worklist artifact backend.
type BlobConfig struct {
	Driver string   `yaml:"driver"`
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// S3Config carries S3 (or MinIO) connection parameters.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// StoreConfig selects the plan persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Pipettor: PipettorBioMek,
		MinTransferVolumes: map[string]float64{
			PipettorBioMek: 1.0,
			PipettorCyBio:  1.0,
		},
		StockConcentrations: map[domain.MoleculeType]float64{
			domain.MoleculeTypeSiRNA:          50000,
			domain.MoleculeTypeMiRNAInhibitor: 10000,
			domain.MoleculeTypeMiRNAMimic:     10000,
			domain.MoleculeTypeEsiRNA:         3800,
		},
		Owner:       domain.Principal{Username: "stockmanagement"},
		Blob:        BlobConfig{Driver: "fs", FSRoot: "./worklists"},
		Persistence: StoreConfig{Driver: StoreMemory, Path: "poolcore.db"},
	}
}

// Load reads a YAML file on top of the defaults. Tables in the file replace
// individual entries; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var file Config
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.merge(file)
	return cfg, nil
}

func (c *Config) merge(o Config) {
	if o.Pipettor != "" {
		c.Pipettor = o.Pipettor
	}
	maps.Copy(c.MinTransferVolumes, o.MinTransferVolumes)
	maps.Copy(c.StockConcentrations, o.StockConcentrations)
	if !o.Owner.IsZero() {
		c.Owner = o.Owner
	}
	if o.Blob.Driver != "" {
		c.Blob.Driver = o.Blob.Driver
	}
	if o.Blob.FSRoot != "" {
		c.Blob.FSRoot = o.Blob.FSRoot
	}
	if o.Blob.S3 != (S3Config{}) {
		c.Blob.S3 = o.Blob.S3
	}
	if o.Persistence.Driver != "" {
		c.Persistence.Driver = o.Persistence.Driver
	}
	if o.Persistence.Path != "" {
		c.Persistence.Path = o.Persistence.Path
	}
	if o.Persistence.DSN != "" {
		c.Persistence.DSN = o.Persistence.DSN
	}
}

// Environment variables honoured by ApplyEnv.
const (
	EnvPipettor     = "POOLCORE_PIPETTOR"
	EnvOwner        = "POOLCORE_OWNER"
	EnvOwnerToken   = "POOLCORE_OWNER_TOKEN"
	EnvBlobDriver   = "POOLCORE_BLOB_DRIVER"
	EnvBlobFSRoot   = "POOLCORE_BLOB_FS_ROOT"
	EnvS3Bucket     = "POOLCORE_BLOB_S3_BUCKET"
	EnvS3Region     = "POOLCORE_BLOB_S3_REGION"
	EnvS3Endpoint   = "POOLCORE_BLOB_S3_ENDPOINT"
	EnvS3PathStyle  = "POOLCORE_BLOB_S3_PATH_STYLE"
	EnvStoreDriver  = "POOLCORE_STORE_DRIVER"
	EnvStorePath    = "POOLCORE_STORE_PATH"
	EnvStoreDSN     = "POOLCORE_STORE_DSN"
	envAWSAccessKey = "AWS_ACCESS_KEY_ID"
	envAWSSecretKey = "AWS_SECRET_ACCESS_KEY"
)

// ApplyEnv overrides fields from the environment. getenv is os.Getenv in
// production.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Pipettor, EnvPipettor)
	set(&c.Owner.Username, EnvOwner)
	set(&c.Owner.Token, EnvOwnerToken)
	set(&c.Blob.Driver, EnvBlobDriver)
	set(&c.Blob.FSRoot, EnvBlobFSRoot)
	set(&c.Blob.S3.Bucket, EnvS3Bucket)
	set(&c.Blob.S3.Region, EnvS3Region)
	set(&c.Blob.S3.Endpoint, EnvS3Endpoint)
	set(&c.Blob.S3.AccessKeyID, envAWSAccessKey)
	set(&c.Blob.S3.SecretAccessKey, envAWSSecretKey)
	if v := getenv(EnvS3PathStyle); v != "" {
		c.Blob.S3.PathStyle = strings.EqualFold(v, "true")
	}
	set(&c.Persistence.Driver, EnvStoreDriver)
	set(&c.Persistence.Path, EnvStorePath)
	set(&c.Persistence.DSN, EnvStoreDSN)
}

// MinTransferVolume returns the minimum transfer volume (ul) of the selected
// pipettor.
func (c Config) MinTransferVolume() (float64, error) {
	v, ok := c.MinTransferVolumes[c.Pipettor]
	if !ok {
		return 0, fmt.Errorf("unknown pipettor %q", c.Pipettor)
	}
	return v, nil
}

// Validate checks the configuration for planner use.
func (c Config) Validate() error {
	var errs []error
	if v, err := c.MinTransferVolume(); err != nil {
		errs = append(errs, err)
	} else if v <= 0 {
		errs = append(errs, fmt.Errorf("minimum transfer volume for %s must be positive", c.Pipettor))
	}
	if len(c.StockConcentrations) == 0 {
		errs = append(errs, errors.New("no stock concentrations configured"))
	}
	for mt, conc := range c.StockConcentrations {
		if conc <= 0 {
			errs = append(errs, fmt.Errorf("stock concentration for %s must be positive", mt))
		}
	}
	if c.Owner.IsZero() {
		errs = append(errs, errors.New("owner username required"))
	}
	switch c.Persistence.Driver {
	case StoreMemory, StoreSQLite, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown persistence driver %q", c.Persistence.Driver))
	}
	return errors.Join(errs...)
}

// Settings converts the configuration into planner settings.
func (c Config) Settings() (core.Settings, error) {
	if err := c.Validate(); err != nil {
		return core.Settings{}, err
	}
	minVolume, _ := c.MinTransferVolume()
	return core.Settings{
		MinTransferVolume:   minVolume,
		StockConcentrations: core.StockConcentrationTable(maps.Clone(c.StockConcentrations)),
		Shape:               domain.Shape96,
		Owner:               c.Owner,
	}, nil
}
