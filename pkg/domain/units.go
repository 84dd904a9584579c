package domain

// Conversion factors between user-facing units (ul, nM) and the canonical
// units (L, M) used for all planning arithmetic.
const (
	// VolumeScale is the number of microlitres per litre.
	VolumeScale = 1e6
	// ConcentrationScale is the number of nanomolar per molar.
	ConcentrationScale = 1e9
)

// BufferZeroTolerance is the buffer volume (in ul) below which a buffer
// transfer is treated as zero.
const BufferZeroTolerance = 0.01

// VolumeToCanonical converts a volume in ul to litres.
func VolumeToCanonical(ul float64) float64 { return ul / VolumeScale }

// VolumeToUser converts a volume in litres to ul.
func VolumeToUser(l float64) float64 { return l * VolumeScale }

// ConcentrationToCanonical converts a concentration in nM to molar.
func ConcentrationToCanonical(nm float64) float64 { return nm / ConcentrationScale }

// ConcentrationToUser converts a molar concentration to nM.
func ConcentrationToUser(m float64) float64 { return m * ConcentrationScale }
