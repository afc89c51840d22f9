package confidence

import (
	"fmt"

	"github.com/Strob0t/Sentinel/internal/domain/action"
)

// Band is one configured tier band: a contiguous confidence range starting
// at Min, conferring a fixed set of permitted action classes. Bands are
// configuration, not hardcoded logic.
type Band struct {
	Name    string         `yaml:"name"`
	Min     int            `yaml:"min"`
	Permits []action.Class `yaml:"permits"`
}

// Tier is the derived tier for a score. Never stored; always recomputed.
type Tier struct {
	Name    string         `json:"name"`
	Rank    int            `json:"rank"`
	Top     bool           `json:"top"`
	Permits []action.Class `json:"permits"`
}

// Allows reports whether the tier's permitted-action set includes the class.
func (t Tier) Allows(class action.Class) bool {
	for _, c := range t.Permits {
		if c == class {
			return true
		}
	}
	return false
}

// DefaultBands returns the built-in tier partition of [0,100].
func DefaultBands() []Band {
	return []Band{
		{Name: "baseline", Min: 0, Permits: []action.Class{action.ClassRead}},
		{Name: "working", Min: 25, Permits: []action.Class{action.ClassRead, action.ClassMutate}},
		{Name: "trusted", Min: 60, Permits: []action.Class{action.ClassRead, action.ClassMutate, action.ClassCommand}},
		{Name: "verified", Min: 85, Permits: []action.Class{action.ClassRead, action.ClassMutate, action.ClassCommand, action.ClassDelete}},
	}
}

// ValidateBands checks that bands partition [0,100] usably: at least three
// bands, the first at 0, strictly increasing minimums, and permitted-action
// sets that grow monotonically (each band a superset of the previous).
func ValidateBands(bands []Band) error {
	if len(bands) < 3 {
		return fmt.Errorf("at least 3 tier bands required, got %d", len(bands))
	}
	if bands[0].Min != 0 {
		return fmt.Errorf("first tier band must start at 0, got %d", bands[0].Min)
	}
	for i := 1; i < len(bands); i++ {
		if bands[i].Min <= bands[i-1].Min {
			return fmt.Errorf("tier band %q min %d must exceed previous min %d",
				bands[i].Name, bands[i].Min, bands[i-1].Min)
		}
		if !supersetOf(bands[i].Permits, bands[i-1].Permits) {
			return fmt.Errorf("tier band %q permits must include all of band %q",
				bands[i].Name, bands[i-1].Name)
		}
	}
	return nil
}

// tierFor picks the highest band whose minimum is at or below the score.
func tierFor(bands []Band, conf int) Tier {
	idx := 0
	for i := range bands {
		if conf >= bands[i].Min {
			idx = i
		}
	}
	return Tier{
		Name:    bands[idx].Name,
		Rank:    idx,
		Top:     idx == len(bands)-1,
		Permits: bands[idx].Permits,
	}
}

func supersetOf(super, sub []action.Class) bool {
	for _, c := range sub {
		found := false
		for _, s := range super {
			if s == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
