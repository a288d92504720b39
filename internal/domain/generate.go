package domain

import "context"

// Generator is the contract for local inference backends. Implementations send
// the assembled prompt to a locally running model server and return the
// generated text. Calls are side-effect free beyond the network request, so
// repeating a call with identical arguments is safe.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Kind returns the backend identifier, e.g. "ollama" or "lmstudio".
	Kind() string
}
