package core

import "context"

// TaskFunc performs the work of a task. It must write every declared output.
type TaskFunc func(ctx context.Context) error

// Task is a declarative unit of work in the pipeline's dependency graph.
//
// Identity is derived from Op, Params, the content of Inputs and the Outputs
// paths. Name only addresses the task in the graph and in logs.
type Task struct {
	// Name is the unique identifier of the task within a graph.
	Name string `json:"name" yaml:"name"`

	// Op names the operation performed, e.g. "reclassify" or "raster_sum".
	Op string `json:"op" yaml:"op"`

	// Params holds the canonical string form of every argument that is not a
	// file. Two tasks with equal Params and equal inputs compute equal outputs.
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`

	// Inputs lists the files read by the task.
	Inputs []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// Outputs lists the target files the task writes.
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	// Func does the work. It is not part of the task identity.
	Func TaskFunc `json:"-" yaml:"-"`
}
