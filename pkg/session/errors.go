package session

import (
	"errors"

	"github.com/hackquest/hackquest/pkg/retry"
	"github.com/hackquest/hackquest/pkg/teams"
)

var (
	// ErrValidation is matched by every ValidationError
	ErrValidation = errors.New("validation failed")

	// ErrQuestLocked is returned when the team's stage has not reached the quest
	ErrQuestLocked = errors.New("quest is locked")

	// ErrQuestCompleted is returned when the quest's artifact is already recorded
	ErrQuestCompleted = errors.New("quest already completed")

	// ErrUnknownQuest is returned for a quest number outside the catalog
	ErrUnknownQuest = errors.New("unknown quest")

	// ErrNotAuthenticated is returned for transactions on a logged-out session
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAuthentication is returned when a PIN does not match. It never says
	// whether the team exists.
	ErrAuthentication = errors.New("invalid team name or PIN")
)

// ValidationError carries a message suitable for showing to the team
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrValidation) hold
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}

// UserMessage maps an error from this package to text that can be shown to
// a team. Internal error text is never included.
func UserMessage(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, ErrAuthentication):
		return "Invalid team name or PIN"
	case errors.Is(err, ErrNotAuthenticated):
		return "Please login or create a team to begin your quest!"
	case errors.Is(err, ErrQuestLocked):
		return "This quest is locked. Complete previous quests first."
	case errors.Is(err, ErrQuestCompleted):
		return "This quest is already completed."
	case errors.Is(err, ErrUnknownQuest):
		return "There is no such quest."
	case errors.Is(err, teams.ErrIsolationViolation):
		return "An unexpected error occurred. Please contact support."
	case errors.Is(err, retry.ErrRateLimitExceeded):
		return "System is busy. Please wait a moment and try again."
	case errors.Is(err, retry.ErrPersistence):
		return "Unable to connect to database. Please try again."
	}
	return "An unexpected error occurred. Please contact support."
}
