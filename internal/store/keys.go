package store

import "time"

// Key layout. Timestamps are fixed-width UTC so lexicographic key order
// matches chronological order within a prefix.
const keyTimeLayout = "2006-01-02T15:04:05.000Z"

// TradeKey builds the store key for one trade in a bot's tape.
func TradeKey(botID string, ts time.Time) string {
	return TradePrefix(botID) + ts.UTC().Format(keyTimeLayout)
}

// TradePrefix is the range prefix covering a bot's full trade tape.
func TradePrefix(botID string) string {
	return "trade#" + botID + "#"
}

// BotSnapshotKey builds the store key for a bot-level performance snapshot.
func BotSnapshotKey(botID string, ts time.Time) string {
	return BotSnapshotPrefix(botID) + ts.UTC().Format(keyTimeLayout)
}

// BotSnapshotPrefix is the range prefix covering a bot's snapshot series.
func BotSnapshotPrefix(botID string) string {
	return "snapshot#bot#" + botID + "#"
}

// UserSnapshotKey builds the store key for a portfolio-level snapshot.
func UserSnapshotKey(userID string, ts time.Time) string {
	return UserSnapshotPrefix(userID) + ts.UTC().Format(keyTimeLayout)
}

// UserSnapshotPrefix is the range prefix covering a user's portfolio series.
func UserSnapshotPrefix(userID string) string {
	return "snapshot#user#" + userID + "#"
}
