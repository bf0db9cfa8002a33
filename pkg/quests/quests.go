// Package quests holds the progression rules: the fixed quest catalog,
// artifact validation, level calculation and the unlock predicate.
package quests

import (
	"fmt"
	"unicode/utf8"
)

// ArtifactField names the team record field a quest writes
type ArtifactField string

const (
	FieldIdea      ArtifactField = "idea_text"
	FieldRoles     ArtifactField = "roles_text"
	FieldRepoLink  ArtifactField = "github_link"
	FieldPitchLink ArtifactField = "pitch_link"
)

const (
	// DefaultMaxLength is the longest artifact accepted, in characters
	DefaultMaxLength = 1000
	// XPPerLevel is the XP needed per level
	XPPerLevel = 100
	// FirstStage is the stage of a freshly created team
	FirstStage = 1
	// MaxStage is the highest stage a team can reach
	MaxStage = 4
)

// Quest is one fixed progression milestone
type Quest struct {
	Number      int
	Title       string
	Description string
	Field       ArtifactField
	Tag         string // metrics tag, reported as stage:<tag>
	XPReward    int
}

// Catalog is the ordered quest list. Catalog[i].Number == i+1.
var Catalog = [MaxStage]Quest{
	{
		Number:      1,
		Title:       "The Call to Adventure",
		Description: "Submit your hackathon idea",
		Field:       FieldIdea,
		Tag:         "idea",
		XPReward:    100,
	},
	{
		Number:      2,
		Title:       "Gathering the Party",
		Description: "Define your team roles",
		Field:       FieldRoles,
		Tag:         "team",
		XPReward:    100,
	},
	{
		Number:      3,
		Title:       "The Road of Trials",
		Description: "Submit your GitHub repository",
		Field:       FieldRepoLink,
		Tag:         "mvp",
		XPReward:    100,
	},
	{
		Number:      4,
		Title:       "The Return",
		Description: "Submit your presentation link",
		Field:       FieldPitchLink,
		Tag:         "pitch",
		XPReward:    100,
	},
}

// Lookup returns the quest with the given number
func Lookup(number int) (Quest, bool) {
	if number < 1 || number > len(Catalog) {
		return Quest{}, false
	}
	return Catalog[number-1], true
}

// TotalXP is the XP earned by completing every quest
func TotalXP() int {
	total := 0
	for _, q := range Catalog {
		total += q.XPReward
	}
	return total
}

// ValidateArtifact checks that text is non-empty and at most maxLength
// characters. It returns an empty message when the artifact is valid.
func ValidateArtifact(text string, maxLength int) (bool, string) {
	if text == "" {
		return false, "Artifact cannot be empty"
	}
	if n := utf8.RuneCountInString(text); n > maxLength {
		return false, fmt.Sprintf("Artifact must be between 1 and %d characters (current: %d)", maxLength, n)
	}
	return true, ""
}

// CalculateLevel returns xp / 100, rounded down
func CalculateLevel(xp int) int {
	return xp / XPPerLevel
}

// IsUnlocked reports whether quest is reachable from stage
func IsUnlocked(stage, quest int) bool {
	return quest <= stage
}
