// SPDX-License-Identifier: MIT

package isobmff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNTP64ToSecUsecUnixEpochBoundary(t *testing.T) {
	sec, usec := NTP64ToSecUsec(0x83AA7E8000000000)
	assert.EqualValues(t, 0, sec)
	assert.EqualValues(t, 0, usec)
}

func TestNTP64ToSecUsecHalfSecondFraction(t *testing.T) {
	sec, usec := NTP64ToSecUsec(0x83AA7E8080000000)
	assert.EqualValues(t, 0, sec)
	assert.EqualValues(t, 500000, usec)
}

func TestNTP64RoundTripThroughSecUsec(t *testing.T) {
	const want uint64 = 0x83AA7E9080000000
	sec, usec := NTP64ToSecUsec(want)
	got := SecUsecToNTP64(sec, usec)

	// The fractional conversion is not bit-exact (32-bit fixed point
	// rounding), but must round-trip to within one microsecond tick.
	gotSec, gotUsec := NTP64ToSecUsec(got)
	assert.Equal(t, sec, gotSec)
	assert.InDelta(t, usec, gotUsec, 1)
}
