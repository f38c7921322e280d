package dashboard

import (
	"log/slog"

	"github.com/mschirtzinger/mdboard/internal/model"
	"github.com/mschirtzinger/mdboard/internal/store"
	"github.com/mschirtzinger/mdboard/internal/syncstatus"
)

// CardUpdateData contains card change information
type CardUpdateData struct {
	CardID string   `json:"card_id"`
	Action string   `json:"action"` // created, updated, removed
	Title  string   `json:"title"`
	Column string   `json:"column"`
	Labels []string `json:"labels,omitempty"`
	Order  int      `json:"order"`
}

// ColumnData describes one column and how many cards it holds.
type ColumnData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Cards int    `json:"cards"`
}

// LabelData describes one label.
type LabelData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// BoardUpdateData contains the board definition
type BoardUpdateData struct {
	Title   string       `json:"title"`
	Columns []ColumnData `json:"columns"`
	Labels  []LabelData  `json:"labels,omitempty"`
}

// ReconciledData summarizes a reconciliation pass
type ReconciledData struct {
	Inserted []string `json:"inserted,omitempty"`
	Updated  []string `json:"updated,omitempty"`
	Removed  []string `json:"removed,omitempty"`
	Skipped  []string `json:"skipped,omitempty"`
	Orphaned []string `json:"orphaned,omitempty"`
}

// SyncStateData contains a sync state transition
type SyncStateData struct {
	From syncstatus.State `json:"from"`
	To   syncstatus.State `json:"to"`
}

// SnapshotData is the full board as a newly connected client sees it.
type SnapshotData struct {
	Board BoardUpdateData  `json:"board"`
	Cards []CardUpdateData `json:"cards"`
	Sync  syncstatus.State `json:"sync"`
}

// Handler turns store events and sync transitions into dashboard messages.
type Handler struct {
	server *Server
	store  *store.Store
	logger *slog.Logger
	sync   func() syncstatus.State
}

// NewHandler creates a handler broadcasting through server. syncState may be
// nil when sync tracking is disabled.
func NewHandler(server *Server, st *store.Store, syncState func() syncstatus.State, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if syncState == nil {
		syncState = func() syncstatus.State { return syncstatus.NotConfigured }
	}
	return &Handler{server: server, store: st, logger: logger, sync: syncState}
}

// OnStoreEvent is a store subscriber.
func (h *Handler) OnStoreEvent(ev store.Event) {
	switch ev.Type {
	case store.EventCardCreated, store.EventCardUpdated, store.EventCardRemoved:
		h.send(MessageTypeCardUpdate, cardData(ev.Card, actionFor(ev.Type)))
	case store.EventBoardUpdated:
		h.send(MessageTypeBoardUpdate, h.boardData(ev.Board))
	case store.EventReconciled:
		if ev.Result == nil {
			return
		}
		h.send(MessageTypeReconciled, ReconciledData{
			Inserted: ev.Result.Inserted,
			Updated:  ev.Result.Updated,
			Removed:  ev.Result.Removed,
			Skipped:  ev.Result.Skipped,
			Orphaned: ev.Result.Orphaned,
		})
	}
}

// OnSyncState is a tracker state-change callback.
func (h *Handler) OnSyncState(from, to syncstatus.State) {
	h.send(MessageTypeSyncState, SyncStateData{From: from, To: to})
}

// Snapshot builds the welcome message.
func (h *Handler) Snapshot() (Message, error) {
	cards := h.store.Cards()
	data := SnapshotData{
		Board: h.boardData(h.store.Board()),
		Cards: make([]CardUpdateData, 0, len(cards)),
		Sync:  h.sync(),
	}
	for _, c := range cards {
		data.Cards = append(data.Cards, cardData(c, ""))
	}
	return NewMessage(MessageTypeSnapshot, data)
}

func (h *Handler) send(t MessageType, data any) {
	msg, err := NewMessage(t, data)
	if err != nil {
		h.logger.Warn("dropping dashboard message", "error", err)
		return
	}
	h.server.Broadcast(msg)
}

func (h *Handler) boardData(b *model.Board) BoardUpdateData {
	data := BoardUpdateData{Title: b.Title}
	for _, l := range b.Labels {
		data.Labels = append(data.Labels, LabelData{ID: l.ID, Name: l.Name, Color: l.Color})
	}
	for _, col := range b.Columns {
		data.Columns = append(data.Columns, ColumnData{
			ID:    col.ID,
			Name:  col.Name,
			Cards: len(h.store.CardsInColumn(col.ID)),
		})
	}
	return data
}

func cardData(c *model.Card, action string) CardUpdateData {
	return CardUpdateData{
		CardID: c.ID,
		Action: action,
		Title:  c.Title,
		Column: c.Column,
		Labels: c.Labels,
		Order:  c.Order,
	}
}

func actionFor(t store.EventType) string {
	switch t {
	case store.EventCardCreated:
		return "created"
	case store.EventCardRemoved:
		return "removed"
	default:
		return "updated"
	}
}
