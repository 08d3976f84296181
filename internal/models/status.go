package models

// Level is the closed set of indicator statuses the renderer knows about.
type Level int

const (
	LevelNormal Level = iota
	LevelWarning
	LevelCritical
	// LevelUnrecognized covers any status string outside the three above.
	LevelUnrecognized
)

const (
	StatusNormal   = "Normal"
	StatusWarning  = "Warning"
	StatusCritical = "Critical"
)

// ClassifyStatus matches the raw status exactly; case and spacing variants
// are unrecognized.
func ClassifyStatus(raw string) Level {
	switch raw {
	case StatusNormal:
		return LevelNormal
	case StatusWarning:
		return LevelWarning
	case StatusCritical:
		return LevelCritical
	default:
		return LevelUnrecognized
	}
}

func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "unrecognized"
	}
}

// Treatment is the visual cue a card gets.
type Treatment struct {
	Color    string
	Class    string
	Label    string
	Abnormal bool
}

// Treatment maps every level to its visual cue. Unrecognized statuses are
// shown like Critical.
func (l Level) Treatment() Treatment {
	switch l {
	case LevelNormal:
		return Treatment{Color: "green", Class: "bg-emerald-100 text-emerald-700 border-emerald-200", Label: "正常"}
	case LevelWarning:
		return Treatment{Color: "orange", Class: "bg-amber-100 text-amber-700 border-amber-200", Label: "需注意", Abnormal: true}
	case LevelCritical:
		return Treatment{Color: "red", Class: "bg-red-100 text-red-700 border-red-200", Label: "异常", Abnormal: true}
	default:
		return Treatment{Color: "red", Class: "bg-red-100 text-red-700 border-red-200", Label: "未知状态", Abnormal: true}
	}
}
