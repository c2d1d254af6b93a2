// SPDX-License-Identifier: MIT

package receiver

import (
	"github.com/atsc3go/a3recv"
)

// Channel is one socket's worth of packets for a session: either an ALC
// file-delivery flow or an MMTP media-delivery flow. A Channel is owned
// exclusively by the Session that created it via Session.AddChannel.
type Channel struct {
	session  *Session
	src      a3recv.PacketSource
	protocol a3recv.Protocol
	sink     a3recv.OutputSink
}

// Protocol reports which wire format this channel decodes.
func (c *Channel) Protocol() a3recv.Protocol { return c.protocol }
