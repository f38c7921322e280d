package store

import (
	"github.com/mschirtzinger/mdboard/internal/model"
)

// EventType names a store notification.
type EventType string

const (
	EventCardCreated  EventType = "card.created"
	EventCardUpdated  EventType = "card.updated"
	EventCardRemoved  EventType = "card.removed"
	EventBoardUpdated EventType = "board.updated"
	EventReconciled   EventType = "reconciled"
)

// Event is published after every mutation and every reconciliation pass.
// Card and Board are copies; subscribers may keep them.
type Event struct {
	Type   EventType
	Card   *model.Card
	Board  *model.Board
	Result *ReconcileResult
}

type subscriber struct {
	id int
	fn func(Event)
}

// Subscribe registers fn for every subsequent event and returns a function
// that cancels the subscription. Events are delivered in order after the
// store lock is released, so fn may read from the store. fn must not call a
// mutating method synchronously.
func (s *Store) Subscribe(fn func(Event)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// deliver runs subscribers. Callers hold pubMu.
func (s *Store) deliver(events []Event) {
	s.subMu.Lock()
	subs := append([]subscriber(nil), s.subs...)
	s.subMu.Unlock()

	for _, ev := range events {
		for _, sub := range subs {
			sub.fn(ev)
		}
	}
}

func cardEvent(t EventType, c *model.Card) Event {
	return Event{Type: t, Card: c.Clone()}
}

func boardEvent(b *model.Board) Event {
	return Event{Type: EventBoardUpdated, Board: b.Clone()}
}
