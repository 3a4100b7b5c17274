package login

// State is one step of the login attempt machine. Attempts move strictly
// forward: Idle, Navigating, AwaitingAuth (optionally via MFAPending),
// Authenticated, Extracting, then Done or Failed.
type State string

const (
	StateIdle          State = "idle"
	StateNavigating    State = "navigating"
	StateAwaitingAuth  State = "awaiting_auth"
	StateMFAPending    State = "mfa_pending"
	StateAuthenticated State = "authenticated"
	StateExtracting    State = "extracting"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Observer receives every state transition of an attempt. Detail strings
// are safe to log and stream; they never carry credentials or cookies.
type Observer func(state State, detail string)
