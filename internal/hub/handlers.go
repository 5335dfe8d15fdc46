package hub

import (
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"relaychat/internal/identity"
	"relaychat/internal/registry"
	"relaychat/pkg/proto"
)

// Command costs charged against the police score.
const (
	joinCost   = 3
	inviteCost = 2
	// Chat cost scales with cleaned message length.
	chatCostDivisor = 83 * 4
)

// join moves an unjoined session into a channel. The nickname may carry a
// "#password" suffix that yields a trip code, or authenticates the admin.
func (h *Hub) join(sess *registry.Session, f *proto.ClientFrame) {
	if h.police.Frisk(sess.Addr(), joinCost) {
		h.send(proto.NewWarn("You are joining channels too fast. Wait a moment and try again."), sess)
		return
	}
	if sess.Joined() {
		return
	}
	if f.Channel == "" {
		return
	}

	nick, password := identity.SplitNick(f.Nick)
	if !identity.ValidNick(nick) {
		h.send(proto.NewWarn("Nickname must consist of up to 24 letters, numbers, and underscores"), sess)
		return
	}

	trip := ""
	if h.ident.IsAdminNick(nick) {
		if !h.ident.AdminJoin(password) {
			h.send(proto.NewWarn("Cannot impersonate the admin"), sess)
			return
		}
	} else if password != "" {
		trip = identity.Trip(password, h.salt)
	}

	if h.registry.FindNick(f.Channel, nick) != nil {
		h.send(proto.NewWarn("Nickname taken"), sess)
		return
	}

	h.registry.SetJoined(sess, f.Channel, nick, trip)
	log.Printf("%s joined ?%s as %q", sess.Addr(), f.Channel, nick)

	h.broadcast(proto.NewOnlineAdd(nick), f.Channel)

	members := h.registry.InChannel(f.Channel)
	nicks := make([]string, 0, len(members))
	for _, member := range members {
		nicks = append(nicks, member.Nick)
	}
	h.send(proto.NewOnlineSet(nicks), sess)
}

// chat fans a cleaned message out to the sender's channel, tagged with the
// sender's trip and rank flags.
func (h *Hub) chat(sess *registry.Session, f *proto.ClientFrame) {
	if !sess.Joined() {
		return
	}
	text := CleanText(f.Text)
	if text == "" {
		return
	}
	if h.police.Frisk(sess.Addr(), float64(len(text))/chatCostDivisor) {
		h.send(proto.NewWarn("You are sending too much text. Wait a moment and try again.\nPress the up arrow key to restore your last message."), sess)
		return
	}

	frame := proto.NewChat(sess.Nick, sess.Trip, text)
	switch h.ident.Rank(sess.Nick, sess.Trip) {
	case identity.RankAdmin:
		frame.Admin = true
	case identity.RankModerator:
		frame.Mod = true
	}
	h.broadcast(frame, sess.Channel)
}

// invite hands the inviter and the invitee a fresh private channel name.
// The name is random; nothing reserves it, joining is what creates it.
func (h *Hub) invite(sess *registry.Session, f *proto.ClientFrame) {
	if !sess.Joined() {
		return
	}
	if h.police.Frisk(sess.Addr(), inviteCost) {
		h.send(proto.NewWarn("You are sending invites too fast. Wait a moment before trying again."), sess)
		return
	}
	friend := h.registry.FindNick(sess.Channel, f.Nick)
	if friend == nil {
		h.send(proto.NewWarn("Could not find user in channel"), sess)
		return
	}
	if friend == sess {
		return
	}
	channel := newChannelName()
	h.send(proto.NewInfo(fmt.Sprintf("You invited %s to ?%s", friend.Nick, channel)), sess)
	h.send(proto.NewInfo(fmt.Sprintf("%s invited you to ?%s", sess.Nick, channel)), friend)
}

// newChannelName returns a short random channel identifier. Collisions with
// live channels are possible in principle and harmless: channels carry no
// state beyond their members.
func newChannelName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (h *Hub) stats(sess *registry.Session) {
	addrs, channels := h.registry.Stats()
	h.send(proto.NewInfo(fmt.Sprintf("%d unique IPs in %d channels", addrs, channels)), sess)
}

// ban arrests the address behind a nick in the moderator's channel.
// Moderators cannot ban each other.
func (h *Hub) ban(sess *registry.Session, f *proto.ClientFrame) {
	if h.ident.Rank(sess.Nick, sess.Trip) < identity.RankModerator {
		return
	}
	if !sess.Joined() {
		return
	}
	target := h.registry.FindNick(sess.Channel, f.Nick)
	if target == nil {
		h.send(proto.NewWarn(fmt.Sprintf("Could not find %s", f.Nick)), sess)
		return
	}
	if h.ident.Rank(target.Nick, target.Trip) >= identity.RankModerator {
		h.send(proto.NewWarn("Cannot ban moderator"), sess)
		return
	}
	h.police.Arrest(target.Addr())
	log.Printf("%s [%s] banned %s in ?%s", sess.Nick, sess.Trip, target.Nick, sess.Channel)
	h.broadcast(proto.NewInfo(fmt.Sprintf("Banned %s", target.Nick)), sess.Channel)
}

// unban pardons an address. The reply is private to the moderator.
func (h *Hub) unban(sess *registry.Session, f *proto.ClientFrame) {
	if h.ident.Rank(sess.Nick, sess.Trip) < identity.RankModerator {
		return
	}
	if !sess.Joined() {
		return
	}
	h.police.Pardon(f.IP)
	log.Printf("%s [%s] unbanned %s", sess.Nick, sess.Trip, f.IP)
	h.send(proto.NewInfo(fmt.Sprintf("Unbanned %s", f.IP)), sess)
}

// listUsers sends the admin a channel-by-channel listing of the whole
// server.
func (h *Hub) listUsers(sess *registry.Session) {
	if h.ident.Rank(sess.Nick, sess.Trip) != identity.RankAdmin {
		return
	}
	listing := h.registry.ChannelListing()
	lines := make([]string, 0, len(listing))
	for _, c := range listing {
		lines = append(lines, fmt.Sprintf("?%s %s", c.Channel, strings.Join(c.Nicks, ", ")))
	}
	text := fmt.Sprintf("%d users online:\n\n%s", h.registry.Len(), strings.Join(lines, "\n"))
	h.send(proto.NewInfo(text), sess)
}

// broadcastAll sends an admin notice to every joined session server-wide.
func (h *Hub) broadcastAll(sess *registry.Session, f *proto.ClientFrame) {
	if h.ident.Rank(sess.Nick, sess.Trip) != identity.RankAdmin {
		return
	}
	h.broadcast(proto.NewInfo(fmt.Sprintf("Server broadcast: %s", f.Text)), "")
}
