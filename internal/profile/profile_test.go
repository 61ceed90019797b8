package profile

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewNormalizesInput(t *testing.T) {
	p, err := New("peer-1", Input{
		Username:  "  Alex  ",
		Gender:    "MALE",
		Age:       200,
		Interests: []string{"Movies", "movies", " Hiking ", ""},
		ChatMode:  "",
		Priority:  0,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if p.Username != "Alex" {
		t.Fatalf("username = %q, want %q", p.Username, "Alex")
	}
	if p.Gender != GenderMale {
		t.Fatalf("gender = %q, want %q", p.Gender, GenderMale)
	}
	if p.Age != MaxAge {
		t.Fatalf("age = %d, want clamped to %d", p.Age, MaxAge)
	}
	want := []string{"hiking", "movies"}
	if !reflect.DeepEqual(p.Interests, want) {
		t.Fatalf("interests = %v, want %v", p.Interests, want)
	}
	if p.ChatMode != ModeText {
		t.Fatalf("chatMode = %q, want default %q", p.ChatMode, ModeText)
	}
	if p.GenderPreference != PreferenceAny {
		t.Fatalf("genderPreference = %q, want default %q", p.GenderPreference, PreferenceAny)
	}
	if p.AgeRange != (AgeRange{Min: MinAge, Max: MaxAge}) {
		t.Fatalf("ageRange = %+v, want default full range", p.AgeRange)
	}
	if p.Priority != DefaultPriority {
		t.Fatalf("priority = %v, want default %v", p.Priority, DefaultPriority)
	}
}

func TestNewRejectsEmptyUsername(t *testing.T) {
	_, err := New("peer-1", Input{Username: "   "})
	if !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("err = %v, want ErrInvalidProfile", err)
	}
}

func TestNewRejectsUnknownChatMode(t *testing.T) {
	_, err := New("peer-1", Input{Username: "a", ChatMode: "audio"})
	if !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("err = %v, want ErrInvalidProfile", err)
	}
}

func TestNewRejectsInvertedAgeRange(t *testing.T) {
	_, err := New("peer-1", Input{
		Username: "a",
		AgeRange: &AgeRange{Min: 40, Max: 20},
	})
	if !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("err = %v, want ErrInvalidProfile", err)
	}
}

func TestSharedInterests(t *testing.T) {
	a, _ := New("a", Input{Username: "a", Interests: []string{"movies", "hiking", "chess"}})
	b, _ := New("b", Input{Username: "b", Interests: []string{"Chess", "Movies", "running"}})
	got := a.SharedInterests(b)
	want := []string{"chess", "movies"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("shared = %v, want %v", got, want)
	}
}

func TestIsPremium(t *testing.T) {
	p, _ := New("a", Input{Username: "a", Priority: 2.5})
	if !p.IsPremium() {
		t.Fatalf("expected priority %v to be premium", p.Priority)
	}
	p2, _ := New("a", Input{Username: "a"})
	if p2.IsPremium() {
		t.Fatalf("default priority should not be premium")
	}
}

func TestAgeRangeInRange(t *testing.T) {
	r := AgeRange{Min: 18, Max: 30}
	if !r.InRange(18) || !r.InRange(30) || !r.InRange(24) {
		t.Fatalf("expected bounds inclusive")
	}
	if r.InRange(17) || r.InRange(31) {
		t.Fatalf("expected out-of-bounds ages rejected")
	}
}
