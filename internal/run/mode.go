package run

// Mode selects how both pipelines treat items that already carry artifacts.
// It is resolved once at the command boundary and threaded through uniformly;
// the pipelines never consult raw flags.
type Mode string

const (
	// CreateMissingOnly skips items that already have the artifact a stage
	// would produce, and treats artifact filename collisions as conflicts.
	CreateMissingOnly Mode = "create-missing"
	// Regenerate processes every item regardless of prior progress.
	Regenerate Mode = "regenerate"
)

// ModeFor maps the user-facing force flag onto a Mode.
func ModeFor(force bool) Mode {
	if force {
		return Regenerate
	}
	return CreateMissingOnly
}
