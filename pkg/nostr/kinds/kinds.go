package kinds

import (
	"github.com/nostrmq/nostrmq/pkg/nostr/kind"
	"github.com/nostrmq/nostrmq/pkg/nostr/wire/array"
)

type T []kind.T

// ToArray converts to the generic array.T type ([]interface{})
func (ar T) ToArray() (a array.T) {
	a = make(array.T, len(ar))
	for i := range ar {
		a[i] = ar[i]
	}
	return
}

func FromIntSlice(is []int) (k T) {
	for i := range is {
		k = append(k, kind.T(is[i]))
	}
	return
}

// Clone makes a new kinds.T with the same members.
func (ar T) Clone() (c T) {
	c = make(T, len(ar))
	for i := range ar {
		c[i] = ar[i]
	}
	return
}

// Contains returns true if the provided element is found in the kinds.T.
func (ar T) Contains(s kind.T) bool {
	for i := range ar {
		if ar[i] == s {
			return true
		}
	}
	return false
}

// Equals checks that the provided kinds.T matches element for element.
func (ar T) Equals(t1 T) bool {
	if len(ar) != len(t1) {
		return false
	}
	for i := range ar {
		if ar[i] != t1[i] {
			return false
		}
	}
	return true
}
