package generator

// Instruction templates sent to the generation model. Each one pins the
// output format the parsers in this package expect.

const metaPromptInstruction = `Given this basic prompt: "%s"

Expand it into a detailed system prompt that will guide an AI assistant to respond effectively. The system prompt should:
1. Define the assistant's role and expertise
2. Specify the tone and style of responses
3. Include any constraints or guidelines
4. Describe how to handle edge cases

Return only the expanded system prompt, without any preamble or explanation.`

const variationsInstruction = `Given this system prompt:

"%s"

Generate %d distinct variations of it. Each variation should preserve the core intent but differ in emphasis, structure, or style. Separate the variations with a line containing only three dashes:
---
Return only the variations, without numbering or commentary.`

const testCasesInstruction = `Given this system prompt:

"%s"

Generate %d diverse test inputs a user might send to an assistant configured with that prompt. Cover common cases and at least one edge case. Format them as a numbered list:
1. First test input
2. Second test input
Return only the numbered list.`

const (
	generationSystem = "You are a prompt engineering expert."
	evaluationSystem = "You are a prompt evaluation expert."
)
