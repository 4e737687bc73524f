package model

// Mode selects which feature set a room runs.
type Mode string

const (
	ModeHub        Mode = "hub"
	ModeChat       Mode = "chat"
	ModePlatformer Mode = "platformer"
	ModeFarm       Mode = "farm"
)

// SpawnPoint is one deterministic spawn slot.
type SpawnPoint struct {
	X float64
	Y float64
}

// Ruleset parameterizes the shared session document so the four room
// flavors stay one implementation with different knobs.
type Ruleset struct {
	Mode        Mode
	MessageCap  int
	PostCap     int
	ActivityCap int
	EventCap    int

	EnablePosts bool
	EnableGame  bool

	MaxPlayers   int
	GameMode     string
	InitialLives int
	InitialLevel int
	DefaultState string
	Spawns       []SpawnPoint
}

// SpawnFor allocates a spawn slot deterministically from the current
// occupancy count so every replica agrees on placement.
func (r Ruleset) SpawnFor(occupancy int) SpawnPoint {
	if len(r.Spawns) == 0 {
		return SpawnPoint{}
	}
	return r.Spawns[occupancy%len(r.Spawns)]
}

// ValidMode reports whether the mode names a known ruleset.
func ValidMode(mode Mode) bool {
	switch mode {
	case ModeHub, ModeChat, ModePlatformer, ModeFarm:
		return true
	}
	return false
}

// RulesetFor returns the ruleset for a room mode. Unknown modes fall back
// to the social hub ruleset.
func RulesetFor(mode Mode) Ruleset {
	switch mode {
	case ModeChat:
		return Ruleset{
			Mode:        ModeChat,
			MessageCap:  500,
			ActivityCap: 50,
		}
	case ModePlatformer:
		return Ruleset{
			Mode:         ModePlatformer,
			MessageCap:   100,
			ActivityCap:  50,
			EventCap:     100,
			EnableGame:   true,
			MaxPlayers:   4,
			GameMode:     "platformer",
			InitialLives: 3,
			InitialLevel: 1,
			DefaultState: "idle",
			Spawns: []SpawnPoint{
				{X: 100, Y: 450},
				{X: 200, Y: 450},
				{X: 600, Y: 450},
				{X: 700, Y: 450},
			},
		}
	case ModeFarm:
		return Ruleset{
			Mode:         ModeFarm,
			MessageCap:   100,
			ActivityCap:  50,
			EventCap:     100,
			EnableGame:   true,
			MaxPlayers:   4,
			GameMode:     "farm-defense",
			InitialLives: 3,
			InitialLevel: 1,
			DefaultState: "empty",
			Spawns: []SpawnPoint{
				{X: 160, Y: 300},
				{X: 320, Y: 300},
				{X: 480, Y: 300},
				{X: 640, Y: 300},
			},
		}
	default:
		return Ruleset{
			Mode:        ModeHub,
			MessageCap:  100,
			PostCap:     50,
			ActivityCap: 50,
			EnablePosts: true,
		}
	}
}
