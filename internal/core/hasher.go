package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
)

// TaskHash is the deterministic cache identity of a task execution.
//
// It covers the operation, the parameters, the resolved input contents and the
// declared target paths. Any change to one of them produces a different hash.
type TaskHash string

// String returns the string representation of the TaskHash.
func (t TaskHash) String() string {
	return string(t)
}

// HashInput contains every component of a TaskHash.
type HashInput struct {
	Op      string
	Params  map[string]string
	Inputs  *InputSet
	Outputs []string
}

// TaskHasher computes deterministic hashes for task executions.
type TaskHasher struct{}

// NewTaskHasher creates a new TaskHasher.
func NewTaskHasher() *TaskHasher {
	return &TaskHasher{}
}

// ComputeHash computes the TaskHash of in.
//
// Components are written in a fixed order, each length-prefixed:
//  1. Op
//  2. Params sorted by key
//  3. Outputs sorted
//  4. Inputs (already sorted by InputResolver): path + digest
func (h *TaskHasher) ComputeHash(in HashInput) TaskHash {
	w := fieldWriter{h: sha256.New()}

	w.field([]byte(in.Op))

	keys := make([]string, 0, len(in.Params))
	for k := range in.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w.count(len(keys))
	for _, k := range keys {
		w.field([]byte(k))
		w.field([]byte(in.Params[k]))
	}

	outputs := make([]string, len(in.Outputs))
	copy(outputs, in.Outputs)
	sort.Strings(outputs)
	w.count(len(outputs))
	for _, o := range outputs {
		w.field([]byte(o))
	}

	if in.Inputs == nil {
		w.count(0)
	} else {
		w.count(len(in.Inputs.Inputs))
		for _, inp := range in.Inputs.Inputs {
			w.field([]byte(inp.Path))
			w.field([]byte(inp.Digest))
		}
	}

	return TaskHash(hex.EncodeToString(w.h.Sum(nil)))
}

// fieldWriter writes 8-byte big-endian length prefixes so that adjacent
// fields can never be confused with each other.
type fieldWriter struct {
	h hash.Hash
}

func (w fieldWriter) count(n int) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	w.h.Write(b[:])
}

func (w fieldWriter) field(data []byte) {
	w.count(len(data))
	w.h.Write(data)
}
