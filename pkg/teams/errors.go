package teams

import "errors"

var (
	// ErrTeamNotFound is returned when no row carries the requested team name
	ErrTeamNotFound = errors.New("team not found")

	// ErrIsolationViolation means a record for a different team than the one
	// requested was about to be handed out. It never occurs in correct operation.
	ErrIsolationViolation = errors.New("team data isolation violation")

	// ErrMalformedRow is returned when a stored row cannot be decoded
	ErrMalformedRow = errors.New("malformed team row")

	// ErrUnknownField is returned for an artifact field with no column
	ErrUnknownField = errors.New("unknown artifact field")

	// ErrCellOutOfRange is returned by row stores for a row or column outside the sheet
	ErrCellOutOfRange = errors.New("cell out of range")
)
