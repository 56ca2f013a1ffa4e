package streams

import (
	"errors"
	"fmt"

	"github.com/coldwave-io/qcore/internal/protocol"
)

// ErrTooManyOpenStreams is returned by OpenStream when the peer has not
// granted enough stream credit (OpenStreamSync blocks instead); it is a
// local error delivered to the caller and never placed on the wire.
var ErrTooManyOpenStreams = errors.New("streams: peer hasn't granted enough stream credit to open a new stream")

// unknownStreamError is returned by DeleteStream/GetStream for a stream
// number this map never opened.
type unknownStreamError struct {
	action string
	id     protocol.StreamID
}

func (e *unknownStreamError) Error() string {
	return fmt.Sprintf("streams: tried to %s unknown stream %d", e.action, e.id)
}
