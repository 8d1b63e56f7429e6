// Package ollama implements the negotiation capability against a local Ollama server,
// using JSON-schema constrained output for structured answers.
package ollama

import (
	"procureagent"
	"procureagent/capability"
)

func NewCapability(llm capability.LLM) *capability.Adapter {
	return capability.NewAdapter(llm, procureagent.TracerNameOllama, capability.WithDocumentFilter(Attachable))
}
