package hazard

// ThreatLevel is the Saffir-Simpson wind class from TD through CAT5.
type ThreatLevel string

const (
	ThreatTD   ThreatLevel = "TD"
	ThreatTS   ThreatLevel = "TS"
	ThreatCat1 ThreatLevel = "CAT1"
	ThreatCat2 ThreatLevel = "CAT2"
	ThreatCat3 ThreatLevel = "CAT3"
	ThreatCat4 ThreatLevel = "CAT4"
	ThreatCat5 ThreatLevel = "CAT5"
)

// KnotsPerMS converts metres per second to knots.
const KnotsPerMS = 1.9438

// ClassifyWindKt maps a maximum sustained wind in knots onto the
// Saffir-Simpson scale.
func ClassifyWindKt(kt float64) ThreatLevel {
	switch {
	case kt >= 137:
		return ThreatCat5
	case kt >= 113:
		return ThreatCat4
	case kt >= 96:
		return ThreatCat3
	case kt >= 83:
		return ThreatCat2
	case kt >= 64:
		return ThreatCat1
	case kt >= 34:
		return ThreatTS
	default:
		return ThreatTD
	}
}

// Rank orders threat levels, TD lowest.
func (t ThreatLevel) Rank() int {
	switch t {
	case ThreatCat5:
		return 6
	case ThreatCat4:
		return 5
	case ThreatCat3:
		return 4
	case ThreatCat2:
		return 3
	case ThreatCat1:
		return 2
	case ThreatTS:
		return 1
	default:
		return 0
	}
}

// CycloneConfidence scores a gridded detection from its pressure deficit
// and wind strength, half weight each.
func CycloneConfidence(pressureHPa, windMS float64) float64 {
	return clip((1010-pressureHPa)/30, 0, 1)*0.5 + clip(windMS/33, 0, 1)*0.5
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
