package listview

import (
	"sync"

	"github.com/matrix-org/sliding-sync-client/internal"
)

// Message is one rendered timeline event.
type Message struct {
	EventID   string
	Sender    string
	Text      string
	Timestamp string
}

// RoomView is what is shown for the selected room.
type RoomView struct {
	RoomID    string
	Name      string
	AvatarURL string
	Topic     string
	Messages  []Message
}

// RoomViewer keeps the view of the selected room up to date. Messages are only ever appended:
// an event which has already been rendered is not rendered again.
type RoomViewer struct {
	rooms     Rooms
	presenter Presenter

	mu             *sync.Mutex
	selectedRoomID string
	view           RoomView
	renderedEvents map[string]struct{}
}

func NewRoomViewer(rooms Rooms, presenter Presenter) *RoomViewer {
	return &RoomViewer{
		rooms:          rooms,
		presenter:      presenter,
		mu:             &sync.Mutex{},
		renderedEvents: make(map[string]struct{}),
	}
}

// Select switches the view to a new room, discarding the old view.
func (v *RoomViewer) Select(roomID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selectedRoomID = roomID
	v.render(roomID, true)
}

// Selected returns the selected room ID, or "" if no room is selected.
func (v *RoomViewer) Selected() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selectedRoomID
}

// Update re-renders the view if roomID is the selected room. Returns false if it is not.
func (v *RoomViewer) Update(roomID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.render(roomID, false)
}

func (v *RoomViewer) render(roomID string, refresh bool) bool {
	if roomID == "" || roomID != v.selectedRoomID {
		return false
	}
	if refresh {
		v.view = RoomView{RoomID: roomID}
		v.renderedEvents = make(map[string]struct{})
	}
	room, ok := v.rooms.Get(roomID)
	if !ok {
		logger.Error().Str("room", roomID).Msg("RoomViewer: unknown selected room")
		return false
	}
	v.view.Name = room.DisplayName()
	v.view.AvatarURL = avatarURL(v.presenter, room.Avatar.Value)
	v.view.Topic = room.Topic.Value
	for _, raw := range room.Timeline {
		ev := internal.ParseEvent(raw)
		key := ev.ID
		if key == "" {
			key = string(raw)
		}
		if _, rendered := v.renderedEvents[key]; rendered {
			continue
		}
		v.renderedEvents[key] = struct{}{}
		v.view.Messages = append(v.view.Messages, Message{
			EventID:   ev.ID,
			Sender:    ev.Sender,
			Text:      v.presenter.TextForEvent(raw),
			Timestamp: v.presenter.FormatTimestamp(ev.OriginServerTS),
		})
	}
	return true
}

// View returns a copy of the current view.
func (v *RoomViewer) View() RoomView {
	v.mu.Lock()
	defer v.mu.Unlock()
	view := v.view
	view.Messages = append([]Message(nil), v.view.Messages...)
	return view
}
