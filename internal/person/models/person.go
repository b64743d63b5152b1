package models

import (
	"strings"
	"time"

	dErrors "lineage/pkg/domain-errors"
)

// Gender is the fixed enumeration for a person's recorded gender.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "O"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Date is a calendar date serialized as YYYY-MM-DD. Time-of-day and zone
// are deliberately absent; callers hand the core already-validated dates.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Person is one individual's node within a chart.
//
// Invariants:
//   - (ChartID, PersonID) is globally unique; both are immutable after creation
//   - PersonID is assigned once by the allocator, never reused or renumbered
//   - Name is non-empty
//   - Gender is one of {M, F, O}
//   - Level is >= 0; it is caller-supplied generational depth, not derived,
//     and therefore advisory: the reachability check remains the sole cycle
//     guard
//
// No ordering constraint is enforced between DOB and DOD.
type Person struct {
	PersonID    int64   `json:"personId"`
	ChartID     string  `json:"chartId"`
	OwnerID     string  `json:"ownerId"`
	Name        string  `json:"name"`
	Gender      Gender  `json:"gender"`
	Level       int     `json:"level"`
	DOB         *Date   `json:"dob"`
	DOD         *Date   `json:"dod"`
	Description *string `json:"description"`
	PhotoURL    *string `json:"photoUrl"`
}

// NewPerson constructs a Person, enforcing field invariants. The caller
// supplies the already-allocated id.
func NewPerson(personID int64, chartID, ownerID, name string, gender Gender, level int) (*Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "name must not be empty")
	}
	if !gender.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "gender must be one of M, F, O, got %q", gender)
	}
	if level < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "level must be >= 0")
	}
	return &Person{
		PersonID: personID,
		ChartID:  chartID,
		OwnerID:  ownerID,
		Name:     name,
		Gender:   gender,
		Level:    level,
	}, nil
}

// Clone returns a deep copy so store internals never alias caller state.
func (p *Person) Clone() *Person {
	cp := *p
	if p.DOB != nil {
		d := *p.DOB
		cp.DOB = &d
	}
	if p.DOD != nil {
		d := *p.DOD
		cp.DOD = &d
	}
	if p.Description != nil {
		s := *p.Description
		cp.Description = &s
	}
	if p.PhotoURL != nil {
		s := *p.PhotoURL
		cp.PhotoURL = &s
	}
	return &cp
}

// Patch carries the mutable-field subset of an update request. Identity
// fields (personId, chartId, ownerId) have no representation here, so a
// caller including them in a request body sees them silently dropped.
type Patch struct {
	Name        *string `json:"name"`
	Gender      *Gender `json:"gender"`
	Level       *int    `json:"level"`
	DOB         *Date   `json:"dob"`
	DOD         *Date   `json:"dod"`
	Description *string `json:"description"`
	PhotoURL    *string `json:"photoUrl"`
}

// IsEmpty reports whether the patch names no recognized field.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Gender == nil && p.Level == nil &&
		p.DOB == nil && p.DOD == nil && p.Description == nil && p.PhotoURL == nil
}

// Apply validates and applies the patch to a copy of target, returning the
// patched record. The target is not mutated.
func (p Patch) Apply(target *Person) (*Person, error) {
	out := target.Clone()
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "name must not be empty")
		}
		out.Name = name
	}
	if p.Gender != nil {
		if !p.Gender.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeValidation, "gender must be one of M, F, O, got %q", *p.Gender)
		}
		out.Gender = *p.Gender
	}
	if p.Level != nil {
		if *p.Level < 0 {
			return nil, dErrors.New(dErrors.CodeValidation, "level must be >= 0")
		}
		out.Level = *p.Level
	}
	if p.DOB != nil {
		d := *p.DOB
		out.DOB = &d
	}
	if p.DOD != nil {
		d := *p.DOD
		out.DOD = &d
	}
	if p.Description != nil {
		s := *p.Description
		out.Description = &s
	}
	if p.PhotoURL != nil {
		s := *p.PhotoURL
		out.PhotoURL = &s
	}
	return out, nil
}

// Filter narrows a chart listing. Zero value matches everything.
type Filter struct {
	NameContains string  // case-insensitive substring
	Gender       *Gender // exact
	Level        *int    // exact
}

// Matches reports whether the person satisfies every set criterion.
func (f Filter) Matches(p *Person) bool {
	if f.NameContains != "" &&
		!strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.NameContains)) {
		return false
	}
	if f.Gender != nil && p.Gender != *f.Gender {
		return false
	}
	if f.Level != nil && p.Level != *f.Level {
		return false
	}
	return true
}
