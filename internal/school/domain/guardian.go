package domain

import "sort"

var guardianTypeRank = map[GuardianType]int{
	GuardianTypeParent:        0,
	GuardianTypeLegalGuardian: 1,
	GuardianTypeRelative:      2,
	GuardianTypeOther:         3,
}

func rankOf(t GuardianType) int {
	if r, ok := guardianTypeRank[t]; ok {
		return r
	}
	return len(guardianTypeRank)
}

// SortGuardians orders guardians by priority: an explicit isPrimary flag
// first, then guardianType rank (parent, legal_guardian, relative, other,
// unknown), then original position. The first element is the primary
// guardian everywhere one is needed.
func SortGuardians(guardians []Guardian) []Guardian {
	out := make([]Guardian, len(guardians))
	copy(out, guardians)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		return rankOf(out[i].GuardianType) < rankOf(out[j].GuardianType)
	})
	return out
}

// PrimaryGuardian returns the highest-priority guardian, or nil.
func PrimaryGuardian(guardians []Guardian) *Guardian {
	if len(guardians) == 0 {
		return nil
	}
	sorted := SortGuardians(guardians)
	return &sorted[0]
}
