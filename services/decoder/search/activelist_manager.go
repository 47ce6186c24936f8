// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"fmt"

	"github.com/AleutianAI/AleutianSpeech/services/decoder/linguist"
)

// ActiveListManager stratifies pending tokens by state class, one active
// list per class in the linguist's declared order. The last class is the
// emitting stratum; all earlier classes are non-emitting.
type ActiveListManager interface {
	// Add routes a token into the stratum of its state class.
	Add(t *Token) error

	// Replace swaps old for replacement within old's stratum.
	Replace(old, replacement *Token) error

	// EmittingList takes and clears the emitting stratum. All tokens in
	// it share one frame. Returns nil when no emitting tokens exist.
	EmittingList() ActiveList

	// NextNonEmittingList takes and clears the first non-empty
	// non-emitting stratum in class order, or returns nil when all
	// non-emitting strata are empty. Each returned stratum must be
	// grown to completion before the next call.
	NextNonEmittingList() ActiveList
}

// SimpleActiveListManager implements ActiveListManager with one lazily
// created slot per class-order index.
type SimpleActiveListManager struct {
	order      []linguist.StateClass
	classIndex map[linguist.StateClass]int
	lists      []ActiveList
	factory    ActiveListFactory
}

var _ ActiveListManager = (*SimpleActiveListManager)(nil)

// NewSimpleActiveListManager creates a manager over the given class
// order. The order must be non-empty; its last entry is treated as the
// emitting class.
func NewSimpleActiveListManager(order []linguist.StateClass, factory ActiveListFactory) (*SimpleActiveListManager, error) {
	if len(order) == 0 {
		return nil, ErrEmptyStateOrder
	}
	classIndex := make(map[linguist.StateClass]int, len(order))
	for i, c := range order {
		classIndex[c] = i
	}
	return &SimpleActiveListManager{
		order:      order,
		classIndex: classIndex,
		lists:      make([]ActiveList, len(order)),
		factory:    factory,
	}, nil
}

// Add implements ActiveListManager.
func (m *SimpleActiveListManager) Add(t *Token) error {
	idx, err := m.slot(t)
	if err != nil {
		return err
	}
	if m.lists[idx] == nil {
		m.lists[idx] = m.factory()
	}
	m.lists[idx].Add(t)
	return nil
}

// Replace implements ActiveListManager.
func (m *SimpleActiveListManager) Replace(old, replacement *Token) error {
	idx, err := m.slot(replacement)
	if err != nil {
		return err
	}
	if m.lists[idx] == nil {
		m.lists[idx] = m.factory()
	}
	m.lists[idx].Replace(old, replacement)
	return nil
}

// EmittingList implements ActiveListManager.
func (m *SimpleActiveListManager) EmittingList() ActiveList {
	idx := len(m.lists) - 1
	l := m.lists[idx]
	m.lists[idx] = nil
	return l
}

// NextNonEmittingList implements ActiveListManager.
func (m *SimpleActiveListManager) NextNonEmittingList() ActiveList {
	for i := 0; i < len(m.lists)-1; i++ {
		l := m.lists[i]
		if l != nil && l.Size() > 0 {
			m.lists[i] = nil
			return l
		}
	}
	return nil
}

func (m *SimpleActiveListManager) slot(t *Token) (int, error) {
	class := t.SearchState().Class()
	idx, ok := m.classIndex[class]
	if !ok {
		return 0, fmt.Errorf("%w: class %d (state %s)",
			ErrUnknownStateClass, class, t.SearchState())
	}
	return idx, nil
}
