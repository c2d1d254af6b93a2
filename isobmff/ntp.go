// SPDX-License-Identifier: MIT

// Package isobmff assembles completed MMT media/movie-fragment units into
// ISO-BMFF fragments: init segment passthrough, moof/mdat construction
// with last-moof reuse, presentation-time stamping, and the external
// BoxBuilder collaborator boundary (spec.md §4.6).
package isobmff

// ntpUnixEpochDelta is the number of seconds between the NTP epoch
// (1900-01-01T00:00:00Z) and the Unix epoch (1970-01-01T00:00:00Z).
const ntpUnixEpochDelta = 2208988800

// NTP64ToSecUsec splits a 64-bit NTP timestamp (32-bit seconds since the
// NTP epoch, 32-bit binary fraction of a second) into Unix seconds and
// microseconds. ntp == 0x83AA7E8000000000 is the NTP epoch's 1970
// boundary and converts to (0, 0).
func NTP64ToSecUsec(ntp uint64) (sec int64, usec uint32) {
	ntpSec := uint32(ntp >> 32)
	frac := uint32(ntp)

	sec = int64(ntpSec) - ntpUnixEpochDelta
	usec = uint32((uint64(frac) * 1_000_000) >> 32)
	return sec, usec
}

// SecUsecToNTP64 is the inverse of NTP64ToSecUsec, used when stamping a
// presentation time derived from a Unix-epoch clock back into NTP-64.
func SecUsecToNTP64(sec int64, usec uint32) uint64 {
	ntpSec := uint32(sec + ntpUnixEpochDelta)
	frac := uint32((uint64(usec) << 32) / 1_000_000)
	return uint64(ntpSec)<<32 | uint64(frac)
}
