package utils

// ToMinorUnits converts whole currency units to the gateway's smallest unit
func ToMinorUnits(amount, minorUnits int64) int64 {
	if minorUnits <= 0 {
		return amount
	}
	return amount * minorUnits
}
