package session

import (
	"github.com/abhisek/hangeul/internal/mediacache"
	sess "github.com/abhisek/hangeul/internal/session"
)

// stateMsg carries a controller snapshot into the update loop.
type stateMsg struct {
	State sess.State
}

// statesClosedMsg is sent when the controller closed the subscription.
type statesClosedMsg struct{}

// mediaMsg reports a fetch outcome so the media lines re-render.
type mediaMsg struct {
	Event mediacache.Event
}

type mediaClosedMsg struct{}

// closedMsg is sent once the controller finished shutting down.
type closedMsg struct {
	Err error
}
