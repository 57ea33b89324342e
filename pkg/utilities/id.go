package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewRequestID returns a sortable, globally unique id for tagging a request.
func NewRequestID() string {
	return ksuid.New().String()
}

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// NewUserID generates a snowflake id for locally created accounts. The node
// number comes from SNOWFLAKE_NODE (default 1). If the node cannot be set up
// a KSUID is returned so callers always get a unique id.
func NewUserID() string {
	nodeOnce.Do(func() {
		nodeID := int64(1)
		if v := os.Getenv("SNOWFLAKE_NODE"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				nodeID = n
			}
		}
		node, _ = snowflake.NewNode(nodeID)
	})
	if node == nil {
		return NewRequestID()
	}
	return node.Generate().String()
}
