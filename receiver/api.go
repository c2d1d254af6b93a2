// SPDX-License-Identifier: MIT

package receiver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atsc3go/a3recv"
	"github.com/atsc3go/a3recv/alc"
)

// Return codes mirroring original_source/atsc3_alc_rx.h's *retval
// out-parameter convention, for callers that bridge to a C-style ABI.
// Values match spec.md §6's table exactly: 0 success, -1 session closed,
// -2 incomplete at close, -3 malformed.
const (
	RetvalOK               = 0
	RetvalSessionClosed    = -1
	RetvalObjectIncomplete = -2
	RetvalMalformed        = -3
)

// Retval maps an error returned by this file's blocking receive calls to
// the original's numeric retval space. Context cancellation has no code of
// its own in spec.md §6's four-entry table; it is folded into
// RetvalObjectIncomplete since, like a close-time incompleteness, the call
// returns without the object ever reaching ObjectComplete.
func Retval(err error) int {
	switch {
	case err == nil:
		return RetvalOK
	case errors.Is(err, a3recv.ErrSessionClosed):
		return RetvalSessionClosed
	case errors.Is(err, a3recv.ErrIncomplete), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return RetvalObjectIncomplete
	default:
		return RetvalMalformed
	}
}

// AlcRecv blocks until toi's object completes and returns its assembled
// bytes, mirroring original_source/atsc3_alc_rx.h's alc_recv.
func (s *Session) AlcRecv(ctx context.Context, toi uint64) ([]byte, error) {
	ev, err := s.ALC.Wait(ctx, toi)
	if err != nil {
		return nil, err
	}
	if ev.State != alc.ObjectComplete {
		return nil, a3recv.ErrIncomplete
	}
	obj, ok := s.ALC.ObjectExists(toi)
	if !ok {
		return nil, a3recv.ErrIncomplete
	}
	return obj.Assemble(), nil
}

// AlcRecvAny blocks until any object completes, mirroring the original's
// alc_recv2.
func (s *Session) AlcRecvAny(ctx context.Context) (toi uint64, data []byte, err error) {
	ev, err := s.ALC.WaitAny(ctx)
	if err != nil {
		return 0, nil, err
	}
	if ev.State != alc.ObjectComplete {
		return ev.TOI, nil, a3recv.ErrIncomplete
	}
	obj, ok := s.ALC.ObjectExists(ev.TOI)
	if !ok {
		return ev.TOI, nil, a3recv.ErrIncomplete
	}
	return ev.TOI, obj.Assemble(), nil
}

// AlcRecvToTemp blocks until toi's object completes, spills it to
// <tmpDir>/<session-id>-<toi>.bin, and returns that path, mirroring the
// original's alc_recv3.
func (s *Session) AlcRecvToTemp(ctx context.Context, toi uint64, tmpDir string) (string, error) {
	data, err := s.AlcRecv(ctx, toi)
	if err != nil {
		return "", err
	}

	path := filepath.Join(tmpDir, fmt.Sprintf("%s-%d.bin", s.ID, toi))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("spill toi=%d to temp file: %w", toi, err)
	}
	return path, nil
}

// FdtRecv blocks until an FDT Instance is available, mirroring the
// original's fdt_recv.
func (s *Session) FdtRecv(ctx context.Context) (alc.FDTInstance, error) {
	return s.FDT.Wait(ctx)
}
