package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionSnapshot is the durable subset of a studio session. It is what
// survives a server restart: the canvas binding, the script gate state
// and the last known credit balance. Slot version lists are rebuilt from
// Postgres, so only the active pointers are kept here.
type SessionSnapshot struct {
	SessionID     string             `json:"sessionId"`
	UserID        string             `json:"userId"`
	CanvasID      *uuid.UUID         `json:"canvasId,omitempty"`
	Script        *UGCScript         `json:"script,omitempty"`
	ScriptStage   ScriptStage        `json:"scriptStage"`
	Presenter     *PresenterSettings `json:"presenter,omitempty"`
	ActiveIndexes map[SlotID]int     `json:"activeIndexes,omitempty"`
	Balance       *CreditBalance     `json:"balance,omitempty"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}
