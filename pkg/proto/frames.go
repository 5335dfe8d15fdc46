package proto

import "encoding/json"

// Command names accepted from clients.
const (
	CmdPing      = "ping"
	CmdJoin      = "join"
	CmdChat      = "chat"
	CmdInvite    = "invite"
	CmdStats     = "stats"
	CmdBan       = "ban"
	CmdUnban     = "unban"
	CmdListUsers = "listUsers"
	CmdBroadcast = "broadcast"
)

// MaxFrameSize is the ceiling on a single inbound frame. Larger frames are
// dropped before parsing; the connection stays open.
const MaxFrameSize = 64 * 1024

// ClientFrame is one inbound command frame. Cmd selects the handler; the
// remaining fields are command-specific and may be absent.
type ClientFrame struct {
	Cmd     string `json:"cmd"`
	Channel string `json:"channel,omitempty"`
	Nick    string `json:"nick,omitempty"`
	Text    string `json:"text,omitempty"`
	IP      string `json:"ip,omitempty"`
}

// Decode parses a raw inbound frame.
func Decode(data []byte) (*ClientFrame, error) {
	var f ClientFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Timestamp carries the server-assigned delivery time in Unix milliseconds.
// Every outbound frame embeds it and is stamped once, at delivery.
type Timestamp struct {
	Time int64 `json:"time"`
}

func (t *Timestamp) Stamp(ms int64) { t.Time = ms }

// Frame is any server-originated frame.
type Frame interface {
	Stamp(ms int64)
}

// Chat is a channel chat message attributed to a sender.
type Chat struct {
	Timestamp
	Cmd   string `json:"cmd"`
	Nick  string `json:"nick"`
	Trip  string `json:"trip,omitempty"`
	Admin bool   `json:"admin,omitempty"`
	Mod   bool   `json:"mod,omitempty"`
	Text  string `json:"text"`
}

// Info is a server notice.
type Info struct {
	Timestamp
	Cmd  string `json:"cmd"`
	Text string `json:"text"`
}

// Warn tells a client its action was rejected.
type Warn struct {
	Timestamp
	Cmd  string `json:"cmd"`
	Text string `json:"text"`
}

// OnlineSet is the full nick list of a channel, sent to a joining client.
type OnlineSet struct {
	Timestamp
	Cmd   string   `json:"cmd"`
	Nicks []string `json:"nicks"`
}

// OnlineAdd announces a nick joining the channel.
type OnlineAdd struct {
	Timestamp
	Cmd  string `json:"cmd"`
	Nick string `json:"nick"`
}

// OnlineRemove announces a nick leaving the channel.
type OnlineRemove struct {
	Timestamp
	Cmd  string `json:"cmd"`
	Nick string `json:"nick"`
}

func NewChat(nick, trip, text string) *Chat {
	return &Chat{Cmd: "chat", Nick: nick, Trip: trip, Text: text}
}

func NewInfo(text string) *Info { return &Info{Cmd: "info", Text: text} }

func NewWarn(text string) *Warn { return &Warn{Cmd: "warn", Text: text} }

func NewOnlineSet(nicks []string) *OnlineSet {
	return &OnlineSet{Cmd: "onlineSet", Nicks: nicks}
}

func NewOnlineAdd(nick string) *OnlineAdd {
	return &OnlineAdd{Cmd: "onlineAdd", Nick: nick}
}

func NewOnlineRemove(nick string) *OnlineRemove {
	return &OnlineRemove{Cmd: "onlineRemove", Nick: nick}
}
