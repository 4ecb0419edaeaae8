package core

// Input is a resolved file whose content contributes to task identity.
type Input struct {
	// Path is the cleaned, slash-normalized file path.
	Path string

	// Digest is the hex sha256 of the file content.
	Digest string
}

// InputSet is the complete set of resolved inputs for a task, sorted by Path.
type InputSet struct {
	Inputs []Input
}
