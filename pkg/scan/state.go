package scan

// State tracks where the pagination driver is in a scan's lifecycle.
//
// Transitions for DataServices:
//
//	Idle -> FetchingPage          scan opens, skip = 0
//	FetchingPage -> Draining      page fetched with at least one item
//	FetchingPage -> Exhausted     page fetched with zero items
//	Draining -> FetchingPage      page drained, returned count == take
//	Draining -> Exhausted         page drained, returned count < take
//
// Exhausted is terminal. The catalog endpoint skips FetchingPage cycling:
// it loads once and moves straight to Draining.
type State uint8

const (
	// StateIdle means the scan is open but no fetch has happened yet.
	StateIdle State = iota

	// StateFetchingPage means the next pull will request a page upstream.
	StateFetchingPage

	// StateDraining means buffered rows are being yielded one at a time.
	StateDraining

	// StateExhausted means the source reported end-of-data. Terminal.
	StateExhausted
)

// String implements fmt.Stringer for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingPage:
		return "fetching_page"
	case StateDraining:
		return "draining"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}
