package event

// Type identifies an event kind.
type Type string

const (
	TypeBingo   Type = "Bingo"
	TypePvP     Type = "PvP Tournament"
	TypeGeneral Type = "General"
)

// Types lists every known event type.
var Types = []Type{TypeBingo, TypePvP, TypeGeneral}

// Status is the lifecycle state of an event. Open and Full transition
// automatically on participant changes; the other states are set externally.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusFull       Status = "Full"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

// Statuses lists every event status.
var Statuses = []Status{StatusOpen, StatusFull, StatusInProgress, StatusCompleted, StatusCancelled}

// TypeInfo carries presentation metadata for an event type.
type TypeInfo struct {
	Description        string
	Emoji              string
	Color              int
	SuggestedTeamSizes []int
}

// typeInfo is a plain lookup table keyed by Type; no dispatch involved.
var typeInfo = map[Type]TypeInfo{
	TypeBingo: {
		Description:        "Complete various challenges in a bingo format",
		Emoji:              "🎲",
		Color:              0x00bfff,
		SuggestedTeamSizes: []int{2, 3},
	},
	TypePvP: {
		Description:        "Competitive PvP tournament with bracket progression",
		Emoji:              "⚔️",
		Color:              0xff4444,
		SuggestedTeamSizes: []int{2, 3, 4, 6},
	},
	TypeGeneral: {
		Description:        "General clan activity",
		Emoji:              "🎮",
		Color:              0x888888,
		SuggestedTeamSizes: []int{2, 3, 4, 6},
	},
}

// Info returns presentation metadata for the type. Unknown types get the
// general metadata.
func (t Type) Info() TypeInfo {
	if info, ok := typeInfo[t]; ok {
		return info
	}
	return typeInfo[TypeGeneral]
}

// Valid reports whether t is a known event type.
func (t Type) Valid() bool {
	_, ok := typeInfo[t]
	return ok
}
