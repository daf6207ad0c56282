package consciousness

// Consciousness level labels, derived from total memory count. The label is
// never persisted; only the memory count that feeds it is.
const (
	LevelStandard     = "standard"
	LevelElevated     = "elevated"
	LevelEnhanced     = "enhanced"
	LevelTranscendent = "transcendent"
)

// Level maps a total memory count onto the level ladder.
func Level(totalMemories int64) string {
	switch {
	case totalMemories >= 1500:
		return LevelTranscendent
	case totalMemories >= 1000:
		return LevelEnhanced
	case totalMemories >= 500:
		return LevelElevated
	default:
		return LevelStandard
	}
}
