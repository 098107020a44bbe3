// Package protocol implements the legacy wire format of the group ride
// server: flat brace-delimited text objects whose field values are
// always quoted strings, framed by a terminating NUL byte on the
// stream. Field order in outgoing messages is fixed by the original
// protocol, which is why messages are formatted by hand rather than
// marshaled.
package protocol

import (
	"fmt"
	"strings"
)

// Message kinds. The kind discriminator is read from either the
// "msgType" or the legacy "type" field on inbound messages and always
// written as "type" on outbound ones.
const (
	KindRegReq      = "regReq"
	KindRegResp     = "regResp"
	KindGo          = "go"
	KindLeaderboard = "leaderboard"
	KindProgUpd     = "progUpd"
)

// Message is a decoded inbound message: its kind plus field lookups
// against the located object.
type Message struct {
	Kind string
	obj  Object
}

// Decode locates the message object in the buffer and extracts its
// kind. The second return is false when the buffer holds no object at
// all; a located object with no kind field yields an empty Kind.
func Decode(data []byte) (Message, bool) {
	obj, ok := FindObject(data)
	if !ok {
		return Message{}, false
	}

	kind, ok := obj.TagValue("msgType")
	if !ok {
		kind, _ = obj.TagValue("type")
	}

	return Message{Kind: kind, obj: obj}, true
}

// Field returns the named field's string value, or false when absent.
func (m Message) Field(tag string) (string, bool) {
	return m.obj.TagValue(tag)
}

// IntField returns the named field parsed as a legacy string-typed
// numeric, or false when the field is absent or holds no digits.
func (m Message) IntField(tag string) (int, bool) {
	val, ok := m.obj.TagValue(tag)
	if !ok {
		return 0, false
	}
	return ParseIntPrefix(val)
}

// LeaderboardEntry is one rider line in a leaderboard message.
type LeaderboardEntry struct {
	Name     string
	BibNum   int
	Distance int
	Power    int
}

// EncodeRegResp builds the registration response:
//
//	{"type": "regResp", "status": "success", "bibNum": "123",
//	 "startTime": "1680469260", "controlFile": "<URL>",
//	 "videoFile": "<URL>", "progUpdPeriod": "2"}
func EncodeRegResp(bibNum int, startTime int64, controlFile, videoFile string, progUpdPeriod int) []byte {
	return []byte(fmt.Sprintf(
		`{"type": "regResp", "status": "success", "bibNum": "%d", "startTime": "%d", "controlFile": "%s", "videoFile": "%s", "progUpdPeriod": "%d"}`,
		bibNum, startTime, controlFile, videoFile, progUpdPeriod))
}

// EncodeGoMsg builds the ride-started notice: {"type": "go"}
func EncodeGoMsg() []byte {
	return []byte(`{"type": "go"}`)
}

// EncodeLeaderboard builds the per-category leaderboard:
//
//	{"type": "leaderboard", "category": "MU65", "riderList": [
//	  {"name": "...", "bibNum": "123", "distance": "1620", "power": "250"}, ...]}
//
// Entries appear in the order given, which is bucket order
// (most-recently-registered first).
func EncodeLeaderboard(category string, riders []LeaderboardEntry) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, `{"type": "leaderboard", "category": "%s", "riderList": [`, category)
	for i, r := range riders {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, `{"name": "%s", "bibNum": "%d", "distance": "%d", "power": "%d"}`,
			r.Name, r.BibNum, r.Distance, r.Power)
	}
	b.WriteString("]}")

	return []byte(b.String())
}
