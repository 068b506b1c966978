// File path: internal/history/history.go
package history

// MaxTurns caps how many of the most recent turns are forwarded to the model.
const MaxTurns = 5

// Turn is one caller-supplied conversation entry.
type Turn struct {
	Role    string `json:"role" validate:"required"`
	Content string `json:"content"`
}

// Window returns a copy of the last min(len(turns), n) turns in their
// original order. Older turns are dropped. n <= 0 or n > MaxTurns uses
// MaxTurns.
func Window(turns []Turn, n int) []Turn {
	if n <= 0 || n > MaxTurns {
		n = MaxTurns
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
