// Package core provides the task model used by the carbon pipeline's task engine.
//
// # Design Principles
//
//  1. Task identity depends only on declared fields: operation, parameters,
//     input file contents and target paths. Timestamps never contribute.
//  2. Tasks communicate exclusively through files referenced by path.
//  3. A task whose hash is recorded in the Cache and whose targets still hold
//     the recorded contents does not run again.
//
// # Core Types
//
// Task: a named unit of deferred computation with declared inputs and targets.
// Input: a resolved input file and the digest of its content.
// Cache: persistent record of completed task hashes and their target digests.
// Runner: probes the Cache and executes tasks on a miss.
package core
