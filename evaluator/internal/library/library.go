package library

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/vvmguard/vvmguard/pkg/types"
)

// Default values applied when a profile omits the field.
const (
	DefaultRangeMin          = 2.0
	DefaultRangeMax          = 8.0
	DefaultFreezeThreshold   = -0.5
	DefaultCCMLimit          = 600.0
	DefaultCriticalTempLimit = 10.0
	DefaultThawDurationDays  = 70.0
)

var (
	// ErrInvalidProfile is returned for a profile that cannot drive the
	// degradation model or the rule chain.
	ErrInvalidProfile = errors.New("library: invalid profile")

	// ErrInvalidLot is returned for a lot without an id or with an unknown profile.
	ErrInvalidLot = errors.New("library: invalid lot")
)

// Library is a read-only set of reference profiles and lots.
type Library struct {
	profiles map[string]types.ReferenceProfile
	lots     []types.Lot
}

// document is the on-disk layout.
type document struct {
	Profiles []profileEntry `yaml:"profiles"`
	Lots     []types.Lot    `yaml:"lots"`
}

// profileEntry decodes one profile on top of the defaults.
type profileEntry types.ReferenceProfile

func (p *profileEntry) UnmarshalYAML(node *yaml.Node) error {
	type plain profileEntry
	*p = profileEntry(defaultProfile())
	return node.Decode((*plain)(p))
}

func defaultProfile() types.ReferenceProfile {
	return types.ReferenceProfile{
		TemperatureRange: types.TemperatureRange{Min: DefaultRangeMin, Max: DefaultRangeMax},
		DecisionThresholds: types.DecisionThresholds{
			FreezeThreshold:   DefaultFreezeThreshold,
			CCMLimit:          DefaultCCMLimit,
			CriticalTempLimit: DefaultCriticalTempLimit,
		},
		ThawPolicy: types.ThawPolicy{ThawDurationDays: DefaultThawDurationDays},
	}
}

// Load reads and parses the library file at path.
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("library: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a library document. Omitted profile fields get the package
// defaults; the result is validated before it is returned.
func Parse(data []byte) (*Library, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("library: parse yaml: %w", err)
	}
	profiles := make([]types.ReferenceProfile, len(doc.Profiles))
	for i, p := range doc.Profiles {
		profiles[i] = types.ReferenceProfile(p)
	}
	return New(profiles, doc.Lots)
}

// New builds a Library from already decoded values. Profiles are taken as
// given; no defaults are applied.
func New(profiles []types.ReferenceProfile, lots []types.Lot) (*Library, error) {
	l := &Library{
		profiles: make(map[string]types.ReferenceProfile, len(profiles)),
		lots:     make([]types.Lot, 0, len(lots)),
	}
	for i, p := range profiles {
		if err := validateProfile(p); err != nil {
			return nil, fmt.Errorf("profiles[%d] %q: %w", i, p.ID, err)
		}
		if _, dup := l.profiles[p.ID]; dup {
			return nil, fmt.Errorf("profiles[%d]: %w: duplicate id %q", i, ErrInvalidProfile, p.ID)
		}
		l.profiles[p.ID] = p
	}

	seen := make(map[string]bool, len(lots))
	for i, lot := range lots {
		switch {
		case lot.ID == "":
			return nil, fmt.Errorf("lots[%d]: %w: id is required", i, ErrInvalidLot)
		case seen[lot.ID]:
			return nil, fmt.Errorf("lots[%d]: %w: duplicate id %q", i, ErrInvalidLot, lot.ID)
		}
		if _, ok := l.profiles[lot.ProfileID]; !ok {
			return nil, fmt.Errorf("lots[%d] %q: %w: unknown profile %q", i, lot.ID, ErrInvalidLot, lot.ProfileID)
		}
		seen[lot.ID] = true
		l.lots = append(l.lots, lot)
	}
	sort.Slice(l.lots, func(i, j int) bool { return l.lots[i].ID < l.lots[j].ID })
	return l, nil
}

// validateProfile checks the fields the evaluator cannot work around.
// Expiry dates are not checked here: a malformed date is rejection evidence.
func validateProfile(p types.ReferenceProfile) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidProfile)
	case !(p.Q10Value > 0) || math.IsInf(p.Q10Value, 0):
		return fmt.Errorf("%w: q10_value must be positive, got %v", ErrInvalidProfile, p.Q10Value)
	case math.IsNaN(p.IdealTemp) || math.IsInf(p.IdealTemp, 0):
		return fmt.Errorf("%w: ideal_temp must be finite", ErrInvalidProfile)
	case !(p.ShelfLifeDays > 0) || math.IsInf(p.ShelfLifeDays, 0):
		return fmt.Errorf("%w: shelf_life_days must be positive and finite, got %v", ErrInvalidProfile, p.ShelfLifeDays)
	case p.TemperatureRange.Min >= p.TemperatureRange.Max:
		return fmt.Errorf("%w: temperature_range min %.1f must be below max %.1f",
			ErrInvalidProfile, p.TemperatureRange.Min, p.TemperatureRange.Max)
	case p.DecisionThresholds.CCMLimit < 0:
		return fmt.Errorf("%w: ccm_limit must not be negative", ErrInvalidProfile)
	case p.ThawPolicy.UltraColdRequired && !(p.ThawPolicy.ThawDurationDays > 0):
		return fmt.Errorf("%w: thaw_duration_days must be positive for ultra-cold products", ErrInvalidProfile)
	}
	return nil
}

// Profile returns the profile with the given id.
func (l *Library) Profile(id string) (types.ReferenceProfile, bool) {
	p, ok := l.profiles[id]
	return p, ok
}

// Profiles returns every profile sorted by id.
func (l *Library) Profiles() []types.ReferenceProfile {
	out := make([]types.ReferenceProfile, 0, len(l.profiles))
	for _, p := range l.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Lots returns a copy of the lots sorted by id.
func (l *Library) Lots() []types.Lot {
	out := make([]types.Lot, len(l.lots))
	copy(out, l.lots)
	return out
}

// Lot returns the lot with the given id.
func (l *Library) Lot(id string) (types.Lot, bool) {
	i := sort.Search(len(l.lots), func(i int) bool { return l.lots[i].ID >= id })
	if i < len(l.lots) && l.lots[i].ID == id {
		return l.lots[i], true
	}
	return types.Lot{}, false
}
