// Package build parses a container-file (Dockerfile-compatible syntax)
// into an instruction list and evaluates it, single-stage, against the
// image and layer stores to produce a new image.
package build

// From is a FROM instruction: a base image reference and, for
// multi-stage files, an optional stage alias. Multi-stage aliases are
// parsed but evaluation is reduced to a single linear execution.
type From struct {
	BaseImage string
	StageName string
}

// Run is a RUN instruction. It is recorded but never executed: the host
// cannot safely execute arbitrary Linux RUN steps in a rootless fashion.
type Run struct {
	Command string
}

// Copy is a COPY instruction.
type Copy struct {
	Source string
	Target string
	Stage  string // --from=<stage>, empty if copying from the build context
}

// Add is an ADD instruction (treated identically to Copy at this
// simplified evaluation level; no remote-URL or archive-auto-extract
// handling).
type Add struct {
	Source string
	Target string
}

// Env is a single ENV key/value pair (multi-pair ENV lines are split
// into one Env instruction per pair by the reader).
type Env struct {
	Name  string
	Value string
}

// Workdir is a WORKDIR instruction.
type Workdir struct {
	Value string
}

// Cmd is a CMD instruction.
type Cmd struct {
	Values []string
}

// Entrypoint is an ENTRYPOINT instruction.
type Entrypoint struct {
	Values []string
}

// Expose is an EXPOSE instruction.
type Expose struct {
	RawValue string
}

// User is a USER instruction.
type User struct {
	Value string
}

// Label is a single LABEL key/value pair.
type Label struct {
	Key   string
	Value string
}

// Arg is an ARG instruction: a build-arg name with an optional default.
type Arg struct {
	Name         string
	DefaultValue string
	HasDefault   bool
}

// Volume is a VOLUME instruction.
type Volume struct {
	Values []string
}

// Instruction is the union of every recognised container-file
// instruction, as produced by Read and consumed by Evaluate.
type Instruction interface{}
