// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"reflect"
)

type subscription struct {
	id    uint64
	check func(Reader) func()
}

// Subscribe registers onChange for the value selector derives from the
// store. The callback fires only when the selected value changes under
// Shallow equality, so a consumer selecting the status alone is not woken
// by streamed text. Selectors must be pure and must not call the store.
// The returned function cancels the subscription.
func Subscribe[T any](s *Store, selector func(Reader) T, onChange func(T)) (unsubscribe func()) {
	return SubscribeFunc(s, selector, Shallow[T], onChange)
}

// SubscribeFunc is Subscribe with a caller-supplied equality.
func SubscribeFunc[T any](s *Store, selector func(Reader) T, equal func(a, b T) bool, onChange func(T)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := selector(lockedReader{s})
	s.next++
	sub := &subscription{id: s.next}
	sub.check = func(r Reader) func() {
		cur := selector(r)
		if equal(prev, cur) {
			return nil
		}
		prev = cur
		return func() { onChange(cur) }
	}
	s.subs = append(s.subs, sub)

	return func() { s.unsubscribe(sub.id) }
}

// SubscribeID notifies onChange with the full state of id after every
// applied transition that changes it.
func SubscribeID(s *Store, id ID, onChange func(State)) (unsubscribe func()) {
	return SubscribeFunc(s, func(r Reader) State {
		st, _ := r.Get(id)
		return st
	}, sameState, onChange)
}

// Watch implements Observer with SubscribeID.
func (s *Store) Watch(id ID, onChange func(State)) (unsubscribe func()) {
	return SubscribeID(s, id, onChange)
}

func (s *Store) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// Shallow compares a and b one level deep. Struct fields, slice elements
// and map entries are compared with == when their dynamic values are
// comparable and with reflect.DeepEqual otherwise.
func Shallow[T any](a, b T) bool {
	va, vb := reflect.ValueOf(&a).Elem(), reflect.ValueOf(&b).Elem()
	switch va.Kind() {
	case reflect.Struct:
		for i := 0; i < va.NumField(); i++ {
			if !shallowField(va.Field(i), vb.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Slice:
		if va.Len() != vb.Len() {
			return false
		}
		for i := 0; i < va.Len(); i++ {
			if !shallowField(va.Index(i), vb.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if va.Len() != vb.Len() {
			return false
		}
		iter := va.MapRange()
		for iter.Next() {
			other := vb.MapIndex(iter.Key())
			if !other.IsValid() || !shallowField(iter.Value(), other) {
				return false
			}
		}
		return true
	default:
		return shallowField(va, vb)
	}
}

func shallowField(a, b reflect.Value) bool {
	if a.Comparable() && b.Comparable() {
		return a.Equal(b)
	}
	if a.CanInterface() && b.CanInterface() {
		return reflect.DeepEqual(a.Interface(), b.Interface())
	}
	return false
}

func sameState(a, b State) bool {
	return a.Status == b.Status &&
		a.StreamedText == b.StreamedText &&
		a.Err == b.Err &&
		a.Generation == b.Generation &&
		a.RunID == b.RunID &&
		reflect.DeepEqual(a.CurrentStep, b.CurrentStep)
}
