// SPDX-License-Identifier: MIT

// Package a3recv implements the receive-side core of an ATSC 3.0 broadcast
// transport stack: packet parsing, ALC/LCT object reassembly, MMTP fragment
// reassembly, and ISO-BMFF fragment synthesis for delivery to a player.
//
// Socket I/O, the ISO-BMFF atom writer, FEC algorithms and downstream
// playback are external collaborators, supplied by the embedding
// application through the PacketSource, isobmff.BoxBuilder, fec.Decoder
// and OutputSink interfaces.
package a3recv
