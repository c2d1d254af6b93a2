// SPDX-License-Identifier: MIT

package alc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
)

// ContentEncoding names the compression, if any, an FDT Instance was sent
// with, per original_source/atsc3_alc_rx.h's fdt_recv content_enc_algo.
type ContentEncoding uint8

const (
	ContentEncodingIdentity ContentEncoding = iota
	ContentEncodingBrotli
)

// FDTInstance is one parsed File Delivery Table instance (spec.md §3, §6).
type FDTInstance struct {
	InstanceID int
	Encoding   ContentEncoding
	Data       []byte // decompressed
}

// FDTStore holds the FDT Instances received on a session's reserved TOI,
// keyed by fdt_instance_id so fdt_recv can return the id the caller asked
// about (original_source/atsc3_alc_rx.h's fdt_recv signature, carried
// forward by SPEC_FULL.md §5).
type FDTStore struct {
	mu        sync.Mutex
	instances map[int]FDTInstance
	waiters   []chan FDTInstance
}

// NewFDTStore returns an empty store.
func NewFDTStore() *FDTStore {
	return &FDTStore{instances: make(map[int]FDTInstance)}
}

// Install decodes raw (decompressing if encoding is brotli) and stores it
// under instanceID, waking any blocked fdt_recv callers.
func (s *FDTStore) Install(instanceID int, encoding ContentEncoding, raw []byte) error {
	data, err := decode(encoding, raw)
	if err != nil {
		return err
	}
	inst := FDTInstance{InstanceID: instanceID, Encoding: encoding, Data: data}

	s.mu.Lock()
	s.instances[instanceID] = inst
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, ch := range waiters {
		ch <- inst
		close(ch)
	}
	return nil
}

func decode(encoding ContentEncoding, raw []byte) ([]byte, error) {
	switch encoding {
	case ContentEncodingIdentity:
		return raw, nil
	case ContentEncodingBrotli:
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
		if err != nil {
			return nil, fmt.Errorf("alc: brotli decode fdt: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("alc: unknown fdt content encoding %d", encoding)
	}
}

// Latest returns the installed FDT instance with the highest instance id,
// if any.
func (s *FDTStore) Latest() (FDTInstance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best FDTInstance
	found := false
	for _, inst := range s.instances {
		if !found || inst.InstanceID > best.InstanceID {
			best = inst
			found = true
		}
	}
	return best, found
}

// Wait blocks until any FDT instance is installed or ctx is cancelled,
// matching fdt_recv's blocking contract (spec.md §6).
func (s *FDTStore) Wait(ctx context.Context) (FDTInstance, error) {
	if inst, ok := s.Latest(); ok {
		return inst, nil
	}

	ch := make(chan FDTInstance, 1)
	s.mu.Lock()
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()

	select {
	case inst := <-ch:
		return inst, nil
	case <-ctx.Done():
		return FDTInstance{}, ctx.Err()
	}
}
