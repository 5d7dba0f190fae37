package utils

import (
	"github.com/denisbrodbeck/machineid"
)

// HWID is a stable, privacy-preserving identifier for this device. Sent with
// every API call so the server can tell multiple agents of one user apart.
var HWID = getHWID()

func getHWID() string {
	id, err := machineid.ProtectedID("beacon-agent")
	if err != nil {
		return "unknown"
	}
	return id
}
