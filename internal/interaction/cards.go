package interaction

import (
	"context"

	"github.com/inkforge/boardsync/internal/directory"
	"github.com/inkforge/boardsync/internal/history"
	"github.com/inkforge/boardsync/internal/scene"
)

// Directory is the read-only lookup collaborator for record and activity
// summaries.
type Directory interface {
	Get(ctx context.Context, kind directory.EntryKind, entryID string) (directory.Summary, error)
	Search(ctx context.Context, kind directory.EntryKind, query string) ([]directory.Summary, error)
}

const (
	cardWidth  = 180.0
	cardHeight = 80.0
)

// InsertRecordCard looks up a record summary and places it as a record
// object. The summary is embedded verbatim and syncs like any other object.
func (c *Controller) InsertRecordCard(ctx context.Context, recordID string, x, y float64) (*scene.CanvasObject, error) {
	return c.insertCard(ctx, directory.KindRecord, scene.ObjectTypeRecord, recordID, x, y)
}

// InsertActivityCard looks up an activity summary and places it as an
// activity object.
func (c *Controller) InsertActivityCard(ctx context.Context, activityID string, x, y float64) (*scene.CanvasObject, error) {
	return c.insertCard(ctx, directory.KindActivity, scene.ObjectTypeActivity, activityID, x, y)
}

func (c *Controller) insertCard(ctx context.Context, kind directory.EntryKind, objectType scene.ObjectType, entryID string, x, y float64) (*scene.CanvasObject, error) {
	summary, err := c.directory.Get(ctx, kind, entryID)
	if err != nil {
		return nil, err
	}
	objectID, err := c.ids.NewID()
	if err != nil {
		return nil, err
	}
	object := &scene.CanvasObject{
		ID:           objectID,
		Type:         objectType,
		X:            x,
		Y:            y,
		Width:        cardWidth,
		Height:       cardHeight,
		ZIndex:       c.store.NextZIndex(),
		Text:         summary.DisplayName,
		CardSubtitle: summary.Subtitle,
		CardIcon:     summary.Icon,
	}
	if !c.store.AddObject(object) {
		return nil, errIDCollision
	}
	c.sync.PublishObjectAdd(object)
	c.history.Record(history.ActionObjectAdd, history.ObjectRefData{ObjectID: object.ID})
	return object, nil
}
