// SPDX-License-Identifier: MIT

package isobmff

import "sync"

// OutputBuffer holds one track's (audio or video) accumulated ISO-BMFF
// boxes across the init segment and a rolling window of media fragments,
// grounded on original_source's lls_sls_monitor_output_buffer_t and its
// reset_moof_and_fragment_position / reset_all_position operations.
//
// initBox is not cleared between MPUs (only ResetAllPosition clears it);
// moofBox/fragmentBox are replaced per MPU; lastMoofBox is kept so a later MPU missing its own
// moof can reuse the prior one (spec.md §4.6's last-moof-reuse fallback).
type OutputBuffer struct {
	mu sync.RWMutex

	initBox     []byte
	moofBox     []byte
	lastMoofBox []byte
	fragmentBox []byte

	mpuPresentationTime    uint64
	mpuPresentationTimeSet bool
}

// NewOutputBuffer returns an empty buffer.
func NewOutputBuffer() *OutputBuffer {
	return &OutputBuffer{}
}

// SetInitBox installs the track's init segment (ftyp+moov), overwriting
// any previous one.
func (b *OutputBuffer) SetInitBox(box []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initBox = append([]byte(nil), box...)
}

// InitBox returns the currently installed init segment, if any.
func (b *OutputBuffer) InitBox() ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initBox, b.initBox != nil
}

// SetMoofBox installs this MPU's moof box, moving the previous one into
// last-moof so a subsequent MPU with a missing moof can reuse it.
func (b *OutputBuffer) SetMoofBox(box []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.moofBox != nil {
		b.lastMoofBox = b.moofBox
	}
	b.moofBox = append([]byte(nil), box...)
}

// MoofBox returns this MPU's moof box, if one was installed.
func (b *OutputBuffer) MoofBox() ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.moofBox, b.moofBox != nil
}

// LastMoofBox returns the most recent prior MPU's moof box, used as a
// fallback when the current MPU arrived without its own.
func (b *OutputBuffer) LastMoofBox() ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastMoofBox, b.lastMoofBox != nil
}

// SetFragmentBox installs this MPU's mdat (media data) box.
func (b *OutputBuffer) SetFragmentBox(box []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fragmentBox = append([]byte(nil), box...)
}

// FragmentBox returns this MPU's mdat box, if any.
func (b *OutputBuffer) FragmentBox() ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fragmentBox, b.fragmentBox != nil
}

// SetPresentationTime stamps the NTP-64 presentation time resolved for
// this MPU (spec.md §4.5/§9).
func (b *OutputBuffer) SetPresentationTime(ntp64 uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mpuPresentationTime = ntp64
	b.mpuPresentationTimeSet = true
}

// PresentationTime returns the stamped presentation time, if one was set
// for the current MPU.
func (b *OutputBuffer) PresentationTime() (uint64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mpuPresentationTime, b.mpuPresentationTimeSet
}

// ResetMoofAndFragmentPosition clears the per-MPU moof/fragment/
// presentation-time state ahead of the next MPU, keeping initBox intact.
// The current moof, if any, moves into lastMoofBox.
func (b *OutputBuffer) ResetMoofAndFragmentPosition() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.moofBox != nil {
		b.lastMoofBox = b.moofBox
	}
	b.moofBox = nil
	b.fragmentBox = nil
	b.mpuPresentationTime = 0
	b.mpuPresentationTimeSet = false
}

// ResetAllPosition clears every position, including the init box and the
// last-moof fallback — used when a track is torn down or re-initialized.
func (b *OutputBuffer) ResetAllPosition() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initBox = nil
	b.moofBox = nil
	b.lastMoofBox = nil
	b.fragmentBox = nil
	b.mpuPresentationTime = 0
	b.mpuPresentationTimeSet = false
}
