package consensus

import (
	"encoding/json"
	"fmt"

	"github.com/bitcraps/core/craps"
)

// PeekGame decodes just enough of a mesh-delivered consensus payload to
// learn which game it targets, without fully unmarshaling the body.
// node does not call it: a Node runs a single Engine and hands every
// delivery straight to Engine.HandleInbound.
func PeekGame(payload []byte) (craps.GameId, error) {
	var msg wireMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return craps.GameId{}, fmt.Errorf("consensus: peek wire message: %w", err)
	}
	var tagged struct {
		Game craps.GameId `json:"game"`
	}
	if err := json.Unmarshal(msg.Body, &tagged); err != nil {
		return craps.GameId{}, fmt.Errorf("consensus: peek game id: %w", err)
	}
	return tagged.Game, nil
}
