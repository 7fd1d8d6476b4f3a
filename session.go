package authclient

// Status is the session lifecycle state.
type Status string

const (
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
	StatusRefreshing     Status = "refreshing"
)

// statusTransitions is the allowed lifecycle graph. Logout is not in the
// table: it forces anonymous from any state.
var statusTransitions = map[Status]map[Status]struct{}{
	StatusAnonymous: {
		StatusAuthenticating: {},
	},
	StatusAuthenticating: {
		StatusAuthenticated: {},
		StatusAnonymous:     {},
	},
	StatusAuthenticated: {
		StatusRefreshing: {},
	},
	StatusRefreshing: {
		StatusAuthenticated: {},
		StatusAnonymous:     {},
	},
}

func canTransition(from, to Status) bool {
	if from == to {
		return true
	}
	allowed, ok := statusTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// Session is the process-wide snapshot of the authenticated session. Only
// the SessionManager mutates it; everyone else reads copies.
type Session struct {
	User            *User
	IsAuthenticated bool
	IsLoading       bool
	Err             error
	Status          Status
}

// SessionStorageKey is where the persisted subset lives in the Persistence
// store.
const SessionStorageKey = "auth-storage"

// persistedSession is the durable subset of Session. Transient fields
// (loading, error) are never written.
type persistedSession struct {
	User            *User `json:"user"`
	IsAuthenticated bool  `json:"isAuthenticated"`
}
