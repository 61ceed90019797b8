// Package profile normalizes peer registration input into the immutable
// profile the matching engine and scorer consume (spec.md section 4.A).
package profile

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidProfile is wrapped by every validation failure in this package.
var ErrInvalidProfile = errors.New("invalid profile")

// Gender is one of the four normalized gender values a peer may declare.
type Gender string

const (
	GenderMale         Gender = "male"
	GenderFemale       Gender = "female"
	GenderOther        Gender = "other"
	GenderUnspecified  Gender = "not-specified"
)

// ChatMode is the kind of conversation a peer wants: text or video.
type ChatMode string

const (
	ModeText  ChatMode = "text"
	ModeVideo ChatMode = "video"
)

// GenderPreference constrains which partner genders a peer will accept.
type GenderPreference string

const (
	PreferenceAny    GenderPreference = "any"
	PreferenceMale   GenderPreference = "male"
	PreferenceFemale GenderPreference = "female"
	PreferenceOther  GenderPreference = "other"
)

// AgeRange is the inclusive [Min, Max] band of acceptable partner ages.
type AgeRange struct {
	Min int
	Max int
}

const (
	MinAge = 13
	MaxAge = 120

	// DefaultPriority is the baseline priority for a non-premium peer.
	DefaultPriority = 1.0
)

// Profile is the normalized, (mostly) immutable registration record for one
// peer. Every field except ChatMode is fixed for the lifetime of the
// session; ChatMode may be overridden at search time (spec.md section 3).
type Profile struct {
	ID               string
	Username         string
	Gender           Gender
	Age              int
	Interests        []string // sorted, deduplicated, lowercase
	ChatMode         ChatMode
	GenderPreference GenderPreference
	AgeRange         AgeRange
	Priority         float64
}

// Input is the raw registration payload before normalization.
type Input struct {
	Username         string
	Gender           string
	Age              int
	Interests        []string
	ChatMode         string
	GenderPreference string
	AgeRange         *AgeRange
	Priority         float64
}

// IsPremium reports whether the profile's priority exceeds the baseline.
func (p Profile) IsPremium() bool {
	return p.Priority > DefaultPriority
}

// WithChatMode returns a copy of p with ChatMode overridden, used when a
// peer re-specifies mode at search time without re-registering.
func (p Profile) WithChatMode(mode ChatMode) Profile {
	p.ChatMode = mode
	return p
}

// HasInterest reports whether name (case-insensitive) is in the profile's
// interest set.
func (p Profile) HasInterest(name string) bool {
	name = normalizeInterest(name)
	for _, i := range p.Interests {
		if i == name {
			return true
		}
	}
	return false
}

// SharedInterests returns the sorted intersection of p's and other's
// interest sets.
func (p Profile) SharedInterests(other Profile) []string {
	set := make(map[string]struct{}, len(other.Interests))
	for _, i := range other.Interests {
		set[i] = struct{}{}
	}
	var shared []string
	for _, i := range p.Interests {
		if _, ok := set[i]; ok {
			shared = append(shared, i)
		}
	}
	sort.Strings(shared)
	return shared
}

// New validates and normalizes a registration Input into a Profile bound
// to id. It fails with ErrInvalidProfile when required fields are
// malformed.
func New(id string, in Input) (Profile, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return Profile{}, fmt.Errorf("%w: username is required", ErrInvalidProfile)
	}

	mode, err := normalizeChatMode(in.ChatMode)
	if err != nil {
		return Profile{}, err
	}

	ageRange, err := normalizeAgeRange(in.AgeRange)
	if err != nil {
		return Profile{}, err
	}

	priority := in.Priority
	if priority <= 0 {
		priority = DefaultPriority
	}

	return Profile{
		ID:               id,
		Username:         username,
		Gender:           normalizeGender(in.Gender),
		Age:              clamp(in.Age, MinAge, MaxAge),
		Interests:        normalizeInterests(in.Interests),
		ChatMode:         mode,
		GenderPreference: normalizeGenderPreference(in.GenderPreference),
		AgeRange:         ageRange,
		Priority:         priority,
	}, nil
}

func normalizeInterests(raw []string) []string {
	set := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		n := normalizeInterest(r)
		if n == "" {
			continue
		}
		set[n] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Strings(out)
	return out
}

func normalizeInterest(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeGender(s string) Gender {
	switch Gender(strings.ToLower(strings.TrimSpace(s))) {
	case GenderMale:
		return GenderMale
	case GenderFemale:
		return GenderFemale
	case GenderOther:
		return GenderOther
	default:
		return GenderUnspecified
	}
}

func normalizeGenderPreference(s string) GenderPreference {
	switch GenderPreference(strings.ToLower(strings.TrimSpace(s))) {
	case PreferenceMale:
		return PreferenceMale
	case PreferenceFemale:
		return PreferenceFemale
	case PreferenceOther:
		return PreferenceOther
	default:
		return PreferenceAny
	}
}

func normalizeChatMode(s string) (ChatMode, error) {
	switch ChatMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeVideo:
		return ModeVideo, nil
	case ModeText, "":
		return ModeText, nil
	default:
		return "", fmt.Errorf("%w: unknown chatMode %q", ErrInvalidProfile, s)
	}
}

func normalizeAgeRange(r *AgeRange) (AgeRange, error) {
	if r == nil {
		return AgeRange{Min: MinAge, Max: MaxAge}, nil
	}
	out := AgeRange{Min: clamp(r.Min, MinAge, MaxAge), Max: clamp(r.Max, MinAge, MaxAge)}
	if out.Min > out.Max {
		return AgeRange{}, fmt.Errorf("%w: ageRange.min (%d) > ageRange.max (%d)", ErrInvalidProfile, r.Min, r.Max)
	}
	return out, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// InRange reports whether age falls within r, inclusive.
func (r AgeRange) InRange(age int) bool {
	return age >= r.Min && age <= r.Max
}
