package address

// Resolve returns the unit, sub-id multiplier and value count of an address.
//
// The multiplier is InvalidMultiplier when the combination is not in the
// table. For SYSTEM! the count is 6 even when the sub-id base is unknown.
func Resolve(group Group, requestID string, subIDBase int, mechID int) (unit int, multiplier int, count int) {
	unit = 1
	multiplier = InvalidMultiplier
	count = -1

	switch group {
	case GroupSpecial:
		switch {
		case subIDBase == 1 && (requestID == "dTorque" || requestID == "dLifeSpan"):
			multiplier, count = 1, 6
		case subIDBase == 0 && (requestID == "dAccuracy" || requestID == "nToolNr" || requestID == "nInterpolation"):
			multiplier, count = 0, 1
			unit = mechID
		}

	case GroupGeneric:
		switch requestID {
		case "SYSTEM!":
			switch subIDBase {
			case 3021, 3041, 3051: // amp value, axis speed, axis order speed
				multiplier = 100
			case 900, 810, 400, 310: // theta order, tool tip, theta, order tool tip
				multiplier = 10
			case 800: // tcp speed
				multiplier = 1
			}
			count = 6

		case "SYSTEM%":
			switch subIDBase {
			case 200: // axis encoder
				multiplier, count = 10, 6
			case 171: // servo motor on/off
				multiplier, count = 1, 1
			case 6, 5: // saving energy, slow playback
				multiplier, count = 0, 1
			}
		}

	case GroupFixedIO:
		switch {
		case requestID == "FI" && (subIDBase == 8 || subIDBase == 16),
			requestID == "FO" && (subIDBase == 1 || subIDBase == 3):
			multiplier, count = 0, 1
		}
	}

	return unit, multiplier, count
}
