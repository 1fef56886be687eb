package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID. Call once at
// process startup before any ID is generated.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a globally unique, time-ordered int64 ID. Used for
// workspaces and tasks; chat message IDs and event sequence numbers are
// per-workspace counters assigned by the store instead.
func New() int64 {
	return node.Generate().Int64()
}
