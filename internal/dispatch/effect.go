package dispatch

// Effect classifies whether a tool can run concurrently with others in
// its batch. Pure tools (read-only) may run in parallel; Mutating tools
// (anything that can change state) force the whole batch sequential.
type Effect string

const (
	Pure     Effect = "pure"
	Mutating Effect = "mutating"
)

// AllPure reports whether every effect in the batch is Pure. An empty
// batch is vacuously pure.
func AllPure(effects []Effect) bool {
	for _, e := range effects {
		if e != Pure {
			return false
		}
	}
	return true
}
