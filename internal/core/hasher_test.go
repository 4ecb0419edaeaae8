package core

import (
	"testing"
)

func baseHashInput() HashInput {
	return HashInput{
		Op:     "reclassify",
		Params: map[string]string{"table": "Carbon Pools", "column": "lucode"},
		Inputs: &InputSet{
			Inputs: []Input{
				{Path: "/w/lulc_a.tif", Digest: "aaaa"},
				{Path: "/w/lulc_b.tif", Digest: "bbbb"},
			},
		},
		Outputs: []string{"/w/out.tif"},
	}
}

func TestComputeHash_IdenticalInputsProduceSameHash(t *testing.T) {
	hasher := NewTaskHasher()

	hash1 := hasher.ComputeHash(baseHashInput())
	hash2 := hasher.ComputeHash(baseHashInput())

	if hash1 != hash2 {
		t.Errorf("identical inputs produced different hashes: %s != %s", hash1, hash2)
	}
	if len(hash1.String()) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(hash1.String()))
	}
}

func TestComputeHash_ContentChangeInvalidatesHash(t *testing.T) {
	hasher := NewTaskHasher()

	in := baseHashInput()
	changed := baseHashInput()
	changed.Inputs.Inputs[1].Digest = "cccc"

	if hasher.ComputeHash(in) == hasher.ComputeHash(changed) {
		t.Error("changed input content must change the hash")
	}
}

func TestComputeHash_ParamChangeInvalidatesHash(t *testing.T) {
	hasher := NewTaskHasher()

	in := baseHashInput()
	changed := baseHashInput()
	changed.Params["table"] = "Other"

	if hasher.ComputeHash(in) == hasher.ComputeHash(changed) {
		t.Error("changed params must change the hash")
	}
}

func TestComputeHash_OutputChangeInvalidatesHash(t *testing.T) {
	hasher := NewTaskHasher()

	in := baseHashInput()
	changed := baseHashInput()
	changed.Outputs = []string{"/w/out_suffix.tif"}

	if hasher.ComputeHash(in) == hasher.ComputeHash(changed) {
		t.Error("changed outputs must change the hash")
	}
}

func TestComputeHash_OutputOrderDoesNotMatter(t *testing.T) {
	hasher := NewTaskHasher()

	in := baseHashInput()
	in.Outputs = []string{"/w/a.tif", "/w/b.tif"}
	swapped := baseHashInput()
	swapped.Outputs = []string{"/w/b.tif", "/w/a.tif"}

	if hasher.ComputeHash(in) != hasher.ComputeHash(swapped) {
		t.Error("output declaration order must not affect the hash")
	}
}

func TestComputeHash_FieldBoundariesAreUnambiguous(t *testing.T) {
	hasher := NewTaskHasher()

	a := HashInput{Op: "ab", Params: map[string]string{"c": ""}}
	b := HashInput{Op: "a", Params: map[string]string{"bc": ""}}

	if hasher.ComputeHash(a) == hasher.ComputeHash(b) {
		t.Error("length prefixes must separate adjacent fields")
	}
}
