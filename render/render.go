// Package render turns events and timestamps into display strings. Every function is pure: nothing
// here feeds back into the sync state.
package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/matrix-org/sliding-sync-client/internal"
)

const mxcPrefix = "mxc://"

// Presenter renders for display relative to the current time, in a fixed location.
type Presenter struct {
	// base URL of the media repository, e.g https://matrix.org
	MediaBaseURL string
	Clock        clockwork.Clock
	Location     *time.Location
}

// NewPresenter returns a presenter for media on the given server, using the local time zone.
func NewPresenter(mediaBaseURL string) *Presenter {
	return &Presenter{
		MediaBaseURL: mediaBaseURL,
		Clock:        clockwork.NewRealClock(),
		Location:     time.Local,
	}
}

// TextForEvent returns a one line description of the event.
func (p *Presenter) TextForEvent(ev json.RawMessage) string {
	return TextForEvent(internal.ParseEvent(ev))
}

// FormatTimestamp returns the time of day for timestamps today, else the date.
func (p *Presenter) FormatTimestamp(originServerTS int64) string {
	if originServerTS <= 0 {
		return ""
	}
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	ts := time.UnixMilli(originServerTS).In(loc)
	now := p.Clock.Now().In(loc)
	switch {
	case ts.Year() == now.Year() && ts.YearDay() == now.YearDay():
		return ts.Format("15:04")
	case ts.Year() == now.Year():
		return ts.Format("Jan 2")
	default:
		return ts.Format("Jan 2 2006")
	}
}

// AvatarURL returns an HTTP URL for a thumbnail of the avatar, or "" if there is none.
func (p *Presenter) AvatarURL(mxc string) string {
	return MXCToURL(p.MediaBaseURL, mxc)
}

// MXCToURL converts an mxc:// URI into a 64x64 cropped thumbnail URL on the media server. Returns
// "" for anything which is not an mxc URI with a server and media ID.
func MXCToURL(mediaBaseURL, mxc string) string {
	if !strings.HasPrefix(mxc, mxcPrefix) {
		return ""
	}
	path := mxc[len(mxcPrefix):]
	serverName, mediaID, ok := strings.Cut(path, "/")
	if !ok || serverName == "" || mediaID == "" {
		return ""
	}
	return fmt.Sprintf(
		"%s/_matrix/media/r0/thumbnail/%s/%s?width=64&height=64&method=crop",
		strings.TrimSuffix(mediaBaseURL, "/"), serverName, mediaID,
	)
}

// TextForEvent describes an already parsed event.
func TextForEvent(ev internal.Event) string {
	switch ev.Type {
	case internal.EventTypeMessage:
		body := ev.Content.Get("body").Str
		switch ev.Content.Get("msgtype").Str {
		case "m.emote":
			return fmt.Sprintf("* %s %s", ev.Sender, body)
		case "m.image":
			return "sent an image."
		case "m.file":
			return "sent a file."
		}
		return body
	case internal.EventTypeMember:
		return textForMember(ev)
	case internal.EventTypeName:
		name := ev.Content.Get("name").Str
		if name == "" {
			return fmt.Sprintf("%s removed the room name", ev.Sender)
		}
		return fmt.Sprintf("%s changed the room name to %s", ev.Sender, name)
	case internal.EventTypeTopic:
		topic := ev.Content.Get("topic").Str
		if topic == "" {
			return fmt.Sprintf("%s removed the topic", ev.Sender)
		}
		return fmt.Sprintf("%s changed the topic to %s", ev.Sender, topic)
	case internal.EventTypeAvatar:
		return fmt.Sprintf("%s changed the room avatar", ev.Sender)
	case internal.EventTypeCreate:
		return fmt.Sprintf("%s created the room", ev.Sender)
	case internal.EventTypeEncrypted:
		return "Encrypted message"
	case internal.EventTypeTombstone:
		return fmt.Sprintf("%s upgraded the room", ev.Sender)
	}
	return ev.Type
}

func textForMember(ev internal.Event) string {
	target := ev.Sender
	if ev.StateKey != nil {
		target = *ev.StateKey
	}
	name := ev.Content.Get("displayname").Str
	if name == "" {
		name = target
	}
	prevMembership := ev.PrevContent.Get("membership").Str
	switch ev.Content.Get("membership").Str {
	case "join":
		if internal.IsMembershipChange(ev) {
			return fmt.Sprintf("%s joined the room", name)
		}
		prevName := ev.PrevContent.Get("displayname").Str
		if prevName != "" && prevName != name {
			return fmt.Sprintf("%s changed their display name to %s", prevName, name)
		}
		return fmt.Sprintf("%s changed their profile", name)
	case "invite":
		return fmt.Sprintf("%s invited %s", ev.Sender, name)
	case "leave":
		if ev.Sender == target {
			if prevMembership == "invite" {
				return fmt.Sprintf("%s rejected the invite", target)
			}
			return fmt.Sprintf("%s left the room", target)
		}
		if prevMembership == "ban" {
			return fmt.Sprintf("%s unbanned %s", ev.Sender, target)
		}
		return fmt.Sprintf("%s kicked %s", ev.Sender, target)
	case "ban":
		return fmt.Sprintf("%s banned %s", ev.Sender, target)
	case "knock":
		return fmt.Sprintf("%s asked to join", name)
	}
	return fmt.Sprintf("%s changed membership", target)
}
