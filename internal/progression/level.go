package progression

// MaxLevel is the highest reachable level. The level loop never runs past it.
const MaxLevel = 100

// capRequirement is returned as the requirement at the cap so callers can
// never accumulate enough XP to advance.
const capRequirement = 1<<31 - 1

// LevelInfo is the projection of a total XP value onto the level curve
type LevelInfo struct {
	Level           int     `json:"level"`
	Title           string  `json:"title"`
	XPForCurrent    int     `json:"xp_for_current"`
	XPForNext       int     `json:"xp_for_next"`
	ProgressPercent float64 `json:"progress_percent"`
}

// Requirement returns the XP needed to go from level to level+1.
func Requirement(level int) int {
	if level < 1 {
		level = 1
	}
	if level >= MaxLevel {
		return capRequirement
	}
	return level*100 + (level-1)*50
}

// ComputeLevel walks the level curve. Negative totals are treated as zero.
// At MaxLevel XPForNext is 0 and ProgressPercent is 0.
func ComputeLevel(totalXP int) LevelInfo {
	remainder := max(totalXP, 0)
	level := 1
	for level < MaxLevel && remainder >= Requirement(level) {
		remainder -= Requirement(level)
		level++
	}

	info := LevelInfo{
		Level:        level,
		Title:        Title(level),
		XPForCurrent: remainder,
	}
	if level < MaxLevel {
		info.XPForNext = Requirement(level)
	}
	info.ProgressPercent = ProgressPercent(info.XPForCurrent, info.XPForNext)
	return info
}

// ProgressPercent returns current/next*100, or 0 when next is not positive.
func ProgressPercent(current, next int) float64 {
	if next <= 0 {
		return 0
	}
	pct := float64(current) / float64(next) * 100
	return min(max(pct, 0), 100)
}

// XPToReach returns the cumulative XP at which level is first reached
func XPToReach(level int) int {
	level = min(max(level, 1), MaxLevel)
	total := 0
	for l := 1; l < level; l++ {
		total += Requirement(l)
	}
	return total
}

type titleBucket struct {
	upTo  int
	title string
}

var titleBuckets = []titleBucket{
	{5, "Prompt Rookie"},
	{10, "Prompt Apprentice"},
	{20, "Prompt Crafter"},
	{35, "Prompt Engineer"},
	{50, "Prompt Architect"},
	{75, "Prompt Master"},
	{MaxLevel, "Prompt Legend"},
}

// Title returns the title for a level
func Title(level int) string {
	for _, b := range titleBuckets {
		if level <= b.upTo {
			return b.title
		}
	}
	return titleBuckets[len(titleBuckets)-1].title
}
