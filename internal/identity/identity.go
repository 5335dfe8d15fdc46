package identity

import (
	"crypto/sha256"
	"encoding/base64"
	"regexp"
	"strings"
)

// tripLen is the length of a trip code in characters.
const tripLen = 6

var nickPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,24}$`)

// ValidNick reports whether raw is a usable nickname: 1-24 characters of
// letters, digits, and underscores.
func ValidNick(raw string) bool {
	return nickPattern.MatchString(raw)
}

// SplitNick splits a raw "nick#password" join string on the first '#'.
// The nickname is whitespace-trimmed; the password is returned as typed and
// is empty when no '#' was present.
func SplitNick(raw string) (nick, password string) {
	parts := strings.SplitN(raw, "#", 2)
	nick = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		password = parts[1]
	}
	return nick, password
}

// Trip derives the short fingerprint shown next to a nick when the client
// supplied a password. The same password always maps to the same code, and
// the server salt keeps the mapping private to this deployment.
func Trip(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return base64.StdEncoding.EncodeToString(sum[:])[:tripLen]
}

// Rank is a session's authority level. Ranks are ordered: admin implies
// moderator wherever moderator is required.
type Rank int

const (
	RankNone Rank = iota
	RankModerator
	RankAdmin
)

func (r Rank) String() string {
	switch r {
	case RankAdmin:
		return "admin"
	case RankModerator:
		return "moderator"
	default:
		return "none"
	}
}

// Resolver decides ranks from the configured admin identity and moderator
// trip list. Rank is recomputed at every privileged action rather than
// cached on the session, so configuration changes take effect immediately.
type Resolver struct {
	adminName string
	adminPass string
	mods      map[string]struct{}
}

func NewResolver(adminName, adminPass string, mods []string) *Resolver {
	r := &Resolver{
		adminName: adminName,
		adminPass: adminPass,
		mods:      make(map[string]struct{}, len(mods)),
	}
	for _, trip := range mods {
		if trip != "" {
			r.mods[trip] = struct{}{}
		}
	}
	return r
}

// IsAdminNick reports whether nick is the configured admin nickname.
func (r *Resolver) IsAdminNick(nick string) bool {
	return nick != "" && nick == r.adminName
}

// AdminJoin reports whether a join as the admin nickname may proceed with
// the given password. An empty configured password disables admin login
// entirely rather than granting the rank to anyone who types the nick.
func (r *Resolver) AdminJoin(password string) bool {
	return r.adminPass != "" && password == r.adminPass
}

// Rank resolves the authority of a joined identity. The admin nickname can
// only be held by a session that passed AdminJoin, so the nick alone is
// sufficient evidence here.
func (r *Resolver) Rank(nick, trip string) Rank {
	if r.IsAdminNick(nick) {
		return RankAdmin
	}
	if trip != "" {
		if _, ok := r.mods[trip]; ok {
			return RankModerator
		}
	}
	return RankNone
}
