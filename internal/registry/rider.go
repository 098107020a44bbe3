package registry

import (
	"time"

	"github.com/elfrances/grs/internal/network"
)

// RiderState is the per-connection lifecycle state.
type RiderState int

const (
	StateUnknown RiderState = iota
	StateConnected
	StateRegistered
	StateActive // reserved, never entered in the base flow
)

var riderStateNames = map[RiderState]string{
	StateUnknown:    "unknown",
	StateConnected:  "connected",
	StateRegistered: "registered",
	StateActive:     "active",
}

func (s RiderState) String() string {
	if name, ok := riderStateNames[s]; ok {
		return name
	}
	return "invalid"
}

type Gender int

const (
	GenderUnspec Gender = iota
	GenderFemale
	GenderMale

	genderCount
)

// GenderFromWire maps the wire value of a registration request's gender
// field. Anything other than "male" or "female" counts as unspecified,
// which is a valid dedicated category.
func GenderFromWire(val string) Gender {
	switch val {
	case "male":
		return GenderMale
	case "female":
		return GenderFemale
	default:
		return GenderUnspec
	}
}

func (g Gender) String() string {
	switch g {
	case GenderFemale:
		return "female"
	case GenderMale:
		return "male"
	default:
		return "unspec"
	}
}

// Code is the single-letter prefix of a category label: M for men,
// W for women, U for unspecified.
func (g Gender) Code() string {
	switch g {
	case GenderFemale:
		return "W"
	case GenderMale:
		return "M"
	default:
		return "U"
	}
}

// AgeGroup is one of the 16 discrete age brackets riders are grouped
// into for the leaderboard broadcast.
type AgeGroup int

const (
	AgeGroupUndef AgeGroup = iota // age out of the 1-99 range
	AgeGroupU19                   // 1-18
	AgeGroupU35                   // 19-34
	AgeGroupU40                   // 35-39
	AgeGroupU45                   // 40-44
	AgeGroupU50                   // 45-49
	AgeGroupU55                   // 50-54
	AgeGroupU60                   // 55-59
	AgeGroupU65                   // 60-64
	AgeGroupU70                   // 65-69
	AgeGroupU75                   // 70-74
	AgeGroupU80                   // 75-79
	AgeGroupU85                   // 80-84
	AgeGroupU90                   // 85-89
	AgeGroupU95                   // 90-94
	AgeGroupU100                  // 95-99

	ageGroupCount
)

var ageGroupCodes = [ageGroupCount]string{
	"UNDEF", "U19", "U35", "U40", "U45", "U50", "U55", "U60",
	"U65", "U70", "U75", "U80", "U85", "U90", "U95", "U100",
}

// Code is the bracket part of a category label, e.g. "U35".
func (a AgeGroup) Code() string {
	if a < 0 || a >= ageGroupCount {
		return "UNDEF"
	}
	return ageGroupCodes[a]
}

// AgeToAgeGroup maps an age in years to its bracket. The first bracket
// spans ages 1-18; the rest are 5-year bands up to 99. Ages outside
// 1-99 fall into the undefined bracket.
func AgeToAgeGroup(age int) AgeGroup {
	switch {
	case age <= 0 || age > 99:
		return AgeGroupUndef
	case age <= 18:
		return AgeGroupU19
	case age <= 34:
		return AgeGroupU35
	default:
		// 5-year bands starting at 35.
		return AgeGroupU40 + AgeGroup((age-35)/5)
	}
}

// Category is the (gender, age group) pair used as the broadcast
// grouping key.
type Category struct {
	Gender   Gender
	AgeGroup AgeGroup
}

// Label is the wire form of the category, e.g. "WU35" or "MU65".
func (c Category) Label() string {
	return c.Gender.Code() + c.AgeGroup.Code()
}

// AllCategories enumerates every category in a fixed gender-major
// order, which sets the broadcast order across categories.
func AllCategories() []Category {
	cats := make([]Category, 0, int(genderCount)*int(ageGroupCount))
	for g := GenderUnspec; g < genderCount; g++ {
		for a := AgeGroupUndef; a < ageGroupCount; a++ {
			cats = append(cats, Category{Gender: g, AgeGroup: a})
		}
	}
	return cats
}

// Rider is one accepted connection and, once registered, one
// leaderboard participant.
type Rider struct {
	ID         string // opaque connection handle, owned by the registry
	Conn       network.ConnectionInterface
	RemoteAddr string // for logging only
	State      RiderState
	Name       string // set once at registration
	Gender     Gender
	Age        int
	AgeGroup   AgeGroup
	BibNum     int // assigned at registration, strictly increasing, never reused
	Distance   int // meters, rider-reported, last write wins
	Power      int // watts, rider-reported, last write wins
	RegTime    time.Time
}

// Category is the bucket key the rider belongs to once registered.
func (r *Rider) Category() Category {
	return Category{Gender: r.Gender, AgeGroup: r.AgeGroup}
}
