package core

import (
	"math"
	"strconv"

	"poolcore/pkg/domain"
)

// TransferInput holds the calculator inputs in canonical units.
type TransferInput struct {
	TargetVolume        float64 // L
	TargetConcentration float64 // M
	DesignsPerPool      int
	StockConcentration  float64 // M, single-design stock
	MinTransferVolume   float64 // L, pipettor minimum
}

// TransferVolumes are the calculated volumes in litres.
type TransferVolumes struct {
	// PoolStockVolume is the summed stock volume of all designs of one pool.
	PoolStockVolume float64
	// StockTransferVolume is taken from each single-design stock tube.
	StockTransferVolume float64
	// BufferVolume is added to each destination well. It is exactly zero when
	// the computed buffer fell below BufferZeroTolerance.
	BufferVolume        float64
	BufferRoundedToZero bool
}

// relative tolerance for comparisons against the pipettor minimum and for
// float residue of a buffer volume that should be exactly zero
const compareTolerance = 1e-9

// CalculateTransfer balances volume and concentration for one pool and checks
// the result against the pipettor minimum. An infeasible request yields a
// non-nil error message carrying a correction for the user.
func CalculateTransfer(in TransferInput) (TransferVolumes, *domain.Message) {
	if !(in.TargetVolume > 0) || !(in.TargetConcentration > 0) || in.DesignsPerPool <= 0 ||
		!(in.StockConcentration > 0) || !(in.MinTransferVolume > 0) {
		msg := domain.Errorf(domain.KindInvalidInput, "Transfer volumes can only be calculated for positive volumes, concentrations and design counts.")
		return TransferVolumes{}, &msg
	}
	k := float64(in.DesignsPerPool)
	poolStock := in.TargetVolume * in.TargetConcentration / in.StockConcentration
	out := TransferVolumes{
		PoolStockVolume:     poolStock,
		StockTransferVolume: poolStock / k,
		BufferVolume:        in.TargetVolume - poolStock,
	}
	eps := domain.VolumeToCanonical(domain.BufferZeroTolerance)

	if below(out.StockTransferVolume, in.MinTransferVolume) {
		minTarget := in.TargetVolume * in.MinTransferVolume / out.StockTransferVolume
		msg := domain.Errorf(domain.KindInfeasibleTransfer,
			"The target volume you have requested (%s ul) is too low for the required dilution (1:%s) since the volume "+
				"to transfer per single molecule design (%s ul) would be less than the minimum pipetting volume of the robot (%.1f ul). "+
				"Increase the target volume to at least %d ul or lower the target concentration.",
			formatVolume(in.TargetVolume), trimFloat(dilutionFactor(in), 1), formatVolume(out.StockTransferVolume),
			domain.VolumeToUser(in.MinTransferVolume), roundUpMicrolitres(minTarget))
		return out, &msg
	}

	if out.BufferVolume < -compareTolerance*in.TargetVolume {
		msg := domain.Errorf(domain.KindInfeasibleConcentration,
			"The requested target concentration (%s nM) cannot be reached from single molecule design stocks at %s nM: "+
				"the stock volume per pool (%s ul) would exceed the target volume (%s ul). The maximum pool concentration is %s nM.",
			formatConcentration(in.TargetConcentration), formatConcentration(in.StockConcentration),
			formatVolume(poolStock), formatVolume(in.TargetVolume), formatConcentration(in.StockConcentration))
		return out, &msg
	}

	if out.BufferVolume < eps {
		out.BufferVolume = 0
		out.BufferRoundedToZero = true
		return out, nil
	}

	if below(out.BufferVolume, in.MinTransferVolume) {
		correction := in.MinTransferVolume / out.BufferVolume
		adjustedTransfer := out.StockTransferVolume * correction
		adjustedTarget := k * adjustedTransfer * dilutionFactor(in)
		msg := domain.Errorf(domain.KindInfeasibleTransfer,
			"The target volume you have requested (%s ul) leaves a buffer volume of %s ul per well, which is less than "+
				"the minimum pipetting volume of the robot (%.1f ul). Increase the target volume to at least %d ul.",
			formatVolume(in.TargetVolume), formatVolume(out.BufferVolume),
			domain.VolumeToUser(in.MinTransferVolume), roundUpMicrolitres(adjustedTarget))
		return out, &msg
	}
	return out, nil
}

// dilutionFactor is the stock concentration over the per-design target
// concentration.
func dilutionFactor(in TransferInput) float64 {
	single := in.TargetConcentration / float64(in.DesignsPerPool)
	return in.StockConcentration / single
}

func below(v, limit float64) bool {
	return v < limit && limit-v > compareTolerance*limit
}

// roundUpMicrolitres converts litres to whole ul, rounding up. Values are
// first snapped to 1e-6 ul so floating residue does not add a microlitre.
func roundUpMicrolitres(l float64) int {
	ul := math.Round(domain.VolumeToUser(l)*1e6) / 1e6
	return int(math.Ceil(ul))
}

func formatVolume(l float64) string {
	return trimFloat(domain.VolumeToUser(l), 4)
}

func formatConcentration(m float64) string {
	return trimFloat(domain.ConcentrationToUser(m), 4)
}

// trimFloat rounds v to the given decimals and drops trailing zeros.
func trimFloat(v float64, decimals int) string {
	scale := math.Pow(10, float64(decimals))
	return strconv.FormatFloat(math.Round(v*scale)/scale, 'f', -1, 64)
}
