package orchestrator

// State is a step of the search workflow:
//
//	Idle -> Validating -> Resolving -> {NoResults | Disambiguating | Fetching} -> {Rendered | APIError}
//
// Saved-location, geolocation and favorite re-entries start at Fetching.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateResolving
	StateNoResults
	StateDisambiguating
	StateFetching
	StateRendered
	StateAPIError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateResolving:
		return "resolving"
	case StateNoResults:
		return "no_results"
	case StateDisambiguating:
		return "disambiguating"
	case StateFetching:
		return "fetching"
	case StateRendered:
		return "rendered"
	case StateAPIError:
		return "api_error"
	default:
		return "unknown"
	}
}
