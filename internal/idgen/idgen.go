// SPDX-License-Identifier: MIT

// Package idgen provides small randomness helpers shared across the
// receiver; at present only the socket-retry jitter.
// It mirrors pion-rtp's use of a package-level math/rand generator
// (sequencer.go's globalMathRandomGenerator) rather than re-deriving one
// per call site.
package idgen

import "github.com/pion/randutil"

var globalMathRandomGenerator = randutil.NewMathRandomGenerator()

// JitterMillis returns a random delay in [0, maxMillis) used to stagger
// retrying a socket read after a transient failure, so that many channels
// on the same session don't all retry in lockstep.
func JitterMillis(maxMillis int) int {
	if maxMillis <= 0 {
		return 0
	}
	return globalMathRandomGenerator.Intn(maxMillis)
}
