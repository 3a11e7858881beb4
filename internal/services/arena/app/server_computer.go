package server

import (
	"log"
	"time"
)

// scheduleComputerReply queues the scripted opponent's answer after the
// configured delay. The callback holds no room reference: it resolves the
// key again when it fires, so a room deleted during the delay is a no-op
// and never resurrected.
func (a *arena) scheduleComputerReply(key string) {
	time.AfterFunc(a.computerDelay, func() {
		room := a.hub.lookup(key)
		if room == nil {
			return
		}
		res := room.computerMove(a.pickMove)
		if !res.ok {
			return
		}

		for _, peer := range res.recipients {
			_ = peer.writeFrame(res.update)
		}

		if res.tauntPeer != nil {
			line, err := a.tauntLine()
			if err != nil {
				log.Printf("arena: read taunts: %v", err)
			} else if line != "" {
				_ = res.tauntPeer.writeFrame(wsFrame{
					Type:    "flavor-text",
					Payload: mustJSON(flavorTextPayload{Text: line}),
				})
			}
		}

		if res.ratingWinner != "" {
			a.applyResult(res.ratingWinner, res.ratingLoser)
		}
	})
}
