package service

import "strconv"

// Lock key helpers shared by every service that acquires the per-player or
// per-phraseset locks required by spec.md §5.

func phrasesetLockKey(phrasesetID string) string {
	return "phraseset:" + phrasesetID
}

func playerLockKeyFor(playerID int64) string {
	return "player:" + strconv.FormatInt(playerID, 10)
}
