package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node    *snowflake.Node
	initErr error
	once    sync.Once
)

// Init initializes the Snowflake node with the given node ID.
// Only the first call has an effect.
func Init(nodeID int64) error {
	once.Do(func() {
		node, initErr = snowflake.NewNode(nodeID)
	})
	return initErr
}

// New generates a time-ordered int64 ID, initializing node 0 if Init
// was never called.
func New() int64 {
	return mustNode().Generate().Int64()
}

// Local returns an id for client-side messages that cannot collide with
// backend ids.
func Local() string {
	return "local-" + mustNode().Generate().String()
}

func mustNode() *snowflake.Node {
	if err := Init(0); err != nil {
		panic(err)
	}
	return node
}
