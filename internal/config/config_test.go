package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"poolcore/pkg/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "poolcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	v, err := cfg.MinTransferVolume()
	require.NoError(t, err)
	require.Equal(t, 1.0, v)
	require.Equal(t, 50000.0, cfg.StockConcentrations[domain.MoleculeTypeSiRNA])
	require.Equal(t, "stockmanagement", cfg.Owner.Username)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
pipettor: CyBio
min_transfer_volumes_ul:
  CyBio: 2.5
stock_concentrations_nm:
  esiRNA: 4000
owner:
  username: pools
persistence:
  driver: sqlite
  path: /tmp/plans.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, PipettorCyBio, cfg.Pipettor)
	v, err := cfg.MinTransferVolume()
	require.NoError(t, err)
	require.Equal(t, 2.5, v)
	require.Equal(t, 1.0, cfg.MinTransferVolumes[PipettorBioMek])
	require.Equal(t, 4000.0, cfg.StockConcentrations[domain.MoleculeTypeEsiRNA])
	require.Equal(t, 50000.0, cfg.StockConcentrations[domain.MoleculeTypeSiRNA])
	require.Equal(t, "pools", cfg.Owner.Username)
	require.Equal(t, StoreSQLite, cfg.Persistence.Driver)
	require.Equal(t, "fs", cfg.Blob.Driver)
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "pipetor: BioMek\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "pipetor")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvPipettor:     PipettorCyBio,
		EnvOwner:        "robot",
		EnvBlobDriver:   "s3",
		EnvS3Bucket:     "worklists",
		EnvS3PathStyle:  "TRUE",
		EnvStoreDriver:  StorePostgres,
		EnvStoreDSN:     "postgres://localhost/pools",
		envAWSAccessKey: "AKID",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })
	require.Equal(t, PipettorCyBio, cfg.Pipettor)
	require.Equal(t, "robot", cfg.Owner.Username)
	require.Equal(t, "s3", cfg.Blob.Driver)
	require.Equal(t, "worklists", cfg.Blob.S3.Bucket)
	require.True(t, cfg.Blob.S3.PathStyle)
	require.Equal(t, "AKID", cfg.Blob.S3.AccessKeyID)
	require.Equal(t, StorePostgres, cfg.Persistence.Driver)
	require.Equal(t, "postgres://localhost/pools", cfg.Persistence.DSN)
	require.Equal(t, "./worklists", cfg.Blob.FSRoot)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Pipettor = "Hamilton"
	cfg.StockConcentrations[domain.MoleculeTypeEsiRNA] = 0
	cfg.Owner = domain.Principal{}
	cfg.Persistence.Driver = "mongo"
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"unknown pipettor", "esiRNA", "owner", "mongo"} {
		require.True(t, strings.Contains(err.Error(), want), "missing %q in %v", want, err)
	}
	_, err = cfg.Settings()
	require.Error(t, err)
}

func TestSettings(t *testing.T) {
	cfg := Default()
	s, err := cfg.Settings()
	require.NoError(t, err)
	require.Equal(t, 1.0, s.MinTransferVolume)
	require.Equal(t, domain.Shape96, s.Shape)
	require.Equal(t, cfg.Owner, s.Owner)
	s.StockConcentrations[domain.MoleculeTypeSiRNA] = 1
	require.Equal(t, 50000.0, cfg.StockConcentrations[domain.MoleculeTypeSiRNA])
}
