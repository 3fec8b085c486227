package npc

import (
	"github.com/google/uuid"

	"github.com/zeusync/behaviour/internal/core/blackboard"
)

// NPC is an owner entity: an identity plus the blackboard its behaviours
// read and write.
type NPC struct {
	id    string
	name  string
	state blackboard.Blackboard
}

// New creates an NPC with a random id.
func New(name string, initial map[string]any) *NPC {
	return NewWithID(uuid.NewString(), name, initial)
}

// NewWithID creates an NPC with a caller-chosen id, e.g. one restored from
// storage.
func NewWithID(id, name string, initial map[string]any) *NPC {
	return &NPC{id: id, name: name, state: blackboard.New(initial)}
}

func (n *NPC) ID() string                   { return n.id }
func (n *NPC) Name() string                 { return n.name }
func (n *NPC) State() blackboard.Blackboard { return n.state }
