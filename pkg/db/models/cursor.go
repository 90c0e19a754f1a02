package models

import (
	"time"

	"github.com/google/uuid"
)

// CursorKey implementations let list queries page by (created_at, id).

func (p Profile) CursorKey() (time.Time, uuid.UUID)          { return p.CreatedAt, p.ID }
func (o Order) CursorKey() (time.Time, uuid.UUID)            { return o.CreatedAt, o.ID }
func (t DeliveryTracking) CursorKey() (time.Time, uuid.UUID) { return t.CreatedAt, t.ID }
func (n Notification) CursorKey() (time.Time, uuid.UUID)     { return n.CreatedAt, n.ID }
func (m ContactMessage) CursorKey() (time.Time, uuid.UUID)   { return m.CreatedAt, m.ID }
func (a AccessRequest) CursorKey() (time.Time, uuid.UUID)    { return a.CreatedAt, a.ID }
func (p Product) CursorKey() (time.Time, uuid.UUID)          { return p.CreatedAt, p.ID }
func (m Message) CursorKey() (time.Time, uuid.UUID)          { return m.CreatedAt, m.ID }
func (v VisitReport) CursorKey() (time.Time, uuid.UUID)      { return v.CreatedAt, v.ID }
