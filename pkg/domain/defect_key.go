package domain

// DefectKey identifies a repairable defect category found during
// inspection. The set is closed: free-text categories from upstream are
// validated against it at the boundary and unrecognized values are
// reported, never priced by guesswork.
type DefectKey string

const (
	DefectRoof        DefectKey = "roof"
	DefectHVAC        DefectKey = "hvac"
	DefectPlumbing    DefectKey = "plumbing"
	DefectElectrical  DefectKey = "electrical"
	DefectFlooring    DefectKey = "flooring"
	DefectSubfloor    DefectKey = "subfloor"
	DefectWindows     DefectKey = "windows"
	DefectDoors       DefectKey = "doors"
	DefectSiding      DefectKey = "siding"
	DefectSkirting    DefectKey = "skirting"
	DefectWaterHeater DefectKey = "water_heater"
	DefectDeck        DefectKey = "deck"
	DefectPaint       DefectKey = "paint"
	DefectAppliances  DefectKey = "appliances"
)

var validDefectKeys = map[DefectKey]bool{
	DefectRoof:        true,
	DefectHVAC:        true,
	DefectPlumbing:    true,
	DefectElectrical:  true,
	DefectFlooring:    true,
	DefectSubfloor:    true,
	DefectWindows:     true,
	DefectDoors:       true,
	DefectSiding:      true,
	DefectSkirting:    true,
	DefectWaterHeater: true,
	DefectDeck:        true,
	DefectPaint:       true,
	DefectAppliances:  true,
}

// ParseDefectKey reports whether s names a known defect category.
// Unknown keys are not an error at this level; the aggregator surfaces
// them to the caller.
func ParseDefectKey(s string) (DefectKey, bool) {
	k := DefectKey(s)
	return k, validDefectKeys[k]
}

func (k DefectKey) String() string { return string(k) }
