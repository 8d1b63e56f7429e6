// Package bedrock implements the negotiation capability on the Amazon Bedrock Converse API.
package bedrock

import (
	"procureagent"
	"procureagent/capability"
)

// NewCapability answers capability requests with structured tool calls.
func NewCapability(llm capability.LLM) *capability.Adapter {
	return capability.NewAdapter(llm, procureagent.TracerNameBedrock)
}
