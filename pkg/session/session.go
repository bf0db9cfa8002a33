// Package session runs the team-facing transactions: login or implicit
// registration, quest submission with rollback, and admin PIN recovery.
package session

import (
	"github.com/hackquest/hackquest/pkg/quests"
	"github.com/hackquest/hackquest/pkg/teams"
)

// Artifacts holds the four quest submissions of a team
type Artifacts struct {
	Idea      string
	Roles     string
	RepoLink  string
	PitchLink string
}

// Get returns the artifact recorded for field
func (a Artifacts) Get(field quests.ArtifactField) string {
	switch field {
	case quests.FieldIdea:
		return a.Idea
	case quests.FieldRoles:
		return a.Roles
	case quests.FieldRepoLink:
		return a.RepoLink
	case quests.FieldPitchLink:
		return a.PitchLink
	}
	return ""
}

func (a *Artifacts) set(field quests.ArtifactField, value string) {
	switch field {
	case quests.FieldIdea:
		a.Idea = value
	case quests.FieldRoles:
		a.Roles = value
	case quests.FieldRepoLink:
		a.RepoLink = value
	case quests.FieldPitchLink:
		a.PitchLink = value
	}
}

// Session is the state of one logged-in team. It is a value: transactions
// take a Session and return the next one.
type Session struct {
	Authenticated bool
	TeamName      string
	Stage         int
	XP            int
	Level         int
	Artifacts     Artifacts
}

// Logout returns the logged-out session
func (s Session) Logout() Session {
	return Session{}
}

func fromRecord(r *teams.Record) Session {
	return Session{
		Authenticated: true,
		TeamName:      r.TeamName,
		Stage:         r.Stage,
		XP:            r.XP,
		Level:         quests.CalculateLevel(r.XP),
		Artifacts: Artifacts{
			Idea:      r.Idea,
			Roles:     r.Roles,
			RepoLink:  r.RepoLink,
			PitchLink: r.PitchLink,
		},
	}
}

// QuestStatus is the read-only state of one quest for display
type QuestStatus struct {
	Number      int
	Title       string
	Description string
	Unlocked    bool
	Completed   bool
	Artifact    string
}

// Overview is the read-only state of a session for display
type Overview struct {
	TeamName string
	Stage    int
	XP       int
	Level    int
	TotalXP  int
	Quests   []QuestStatus
}

// View renders s for the presentation layer. A logged-out session shows the
// catalog with every quest locked.
func View(s Session) Overview {
	o := Overview{
		TeamName: s.TeamName,
		Stage:    s.Stage,
		XP:       s.XP,
		Level:    s.Level,
		TotalXP:  quests.TotalXP(),
		Quests:   make([]QuestStatus, 0, len(quests.Catalog)),
	}
	for _, q := range quests.Catalog {
		status := QuestStatus{
			Number:      q.Number,
			Title:       q.Title,
			Description: q.Description,
		}
		if s.Authenticated {
			status.Unlocked = quests.IsUnlocked(s.Stage, q.Number)
			status.Artifact = s.Artifacts.Get(q.Field)
			status.Completed = status.Artifact != ""
		}
		o.Quests = append(o.Quests, status)
	}
	return o
}
