// Package profile holds the static identity directory: descriptive
// metadata about known server members, used to personalize replies.
// Profiles are loaded once at startup and never mutated at runtime.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

type Profile struct {
	Names        []string `json:"names"`
	Age          int      `json:"age,omitempty"`
	Birthday     string   `json:"birthday,omitempty"`
	Location     string   `json:"location,omitempty"`
	Likes        []string `json:"likes,omitempty"`
	Personality  string   `json:"personality,omitempty"`
	Relationship string   `json:"relationship,omitempty"`
	CloseFriends []string `json:"close_friends,omitempty"`
}

type Directory struct {
	profiles map[string]Profile
}

func NewDirectory(profiles map[string]Profile) *Directory {
	if profiles == nil {
		profiles = map[string]Profile{}
	}
	return &Directory{profiles: profiles}
}

// Load reads the profile directory from a JSON file mapping member key
// to profile. A missing file yields an empty directory, not an error.
func Load(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDirectory(nil), nil
		}
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	var profiles map[string]Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parse profiles file: %w", err)
	}
	return NewDirectory(profiles), nil
}

func (d *Directory) Len() int {
	return len(d.profiles)
}

// Resolve matches a display name or username against every profile's
// known-names set, case-insensitively. First match wins.
func (d *Directory) Resolve(displayName, username string) (string, Profile, bool) {
	displayLower := strings.ToLower(displayName)
	usernameLower := strings.ToLower(username)

	for key, p := range d.profiles {
		for _, name := range p.Names {
			nameLower := strings.ToLower(name)
			if nameLower == displayLower || nameLower == usernameLower {
				return key, p, true
			}
		}
	}
	return "", Profile{}, false
}

const maxSummaryLikes = 5

// Summary renders a one-line context string for a known member, fields
// joined by " | ". Absent fields are skipped.
func (d *Directory) Summary(key string) string {
	p, ok := d.profiles[key]
	if !ok {
		return ""
	}

	parts := []string{fmt.Sprintf("This is %s", titleCase(key))}

	if p.Age > 0 {
		parts = append(parts, fmt.Sprintf("Age: %d", p.Age))
	}
	if p.Birthday != "" {
		parts = append(parts, "Birthday: "+p.Birthday)
	}
	if p.Location != "" {
		parts = append(parts, "Location: "+p.Location)
	}
	if len(p.Likes) > 0 {
		likes := p.Likes
		if len(likes) > maxSummaryLikes {
			likes = likes[:maxSummaryLikes]
		}
		parts = append(parts, "Interests: "+strings.Join(likes, ", "))
	}
	if p.Personality != "" {
		parts = append(parts, "Personality: "+p.Personality)
	}
	if p.Relationship != "" {
		parts = append(parts, "Relationship to others: "+p.Relationship)
	}
	if len(p.CloseFriends) > 0 {
		parts = append(parts, "Close friends: "+strings.Join(p.CloseFriends, ", "))
	}

	return strings.Join(parts, " | ")
}

// titleCase upper-cases the first letter of every word, where words are
// delimited by any non-letter rune ("person_1" becomes "Person_1").
func titleCase(s string) string {
	var sb strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) && !prevLetter {
			sb.WriteRune(unicode.ToUpper(r))
		} else {
			sb.WriteRune(r)
		}
		prevLetter = unicode.IsLetter(r)
	}
	return sb.String()
}
