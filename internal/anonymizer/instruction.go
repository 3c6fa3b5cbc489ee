package anonymizer

// defaultInstruction tells the model to treat placeholder tokens as opaque
// identifiers rather than values to paraphrase or invent plausible
// substitutes for.
const defaultInstruction = "Some values in this request have been replaced with placeholder" +
	" tokens like [EMAIL_1] or [PERSON_2] to protect personal information." +
	" Do NOT replace them with example values or any other substitutes." +
	" Treat [TYPE_N] tokens as opaque identifiers that must pass through unchanged."

// InstructionInjector appends a PII-handling instruction to an outbound
// request's system prompt, chosen by the request's model name. Generalizes
// the teacher's injectPIIInstruction/resolvePIIInstruction/
// SetPIIInstructions onto the [TYPE_N] placeholder grammar.
type InstructionInjector struct {
	// ByModelPrefix maps a model-name prefix to the instruction to use for
	// that model. The longest matching prefix wins.
	ByModelPrefix map[string]string
	// Default is used when no prefix in ByModelPrefix matches the model
	// name. If empty, defaultInstruction is used.
	Default string
}

// resolve returns the instruction to use for model, by longest matching
// prefix in ByModelPrefix, falling back to Default and then
// defaultInstruction.
func (inj *InstructionInjector) resolve(model string) string {
	best := ""
	bestLen := -1
	for prefix, instruction := range inj.ByModelPrefix {
		if len(prefix) <= bestLen {
			continue
		}
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			best = instruction
			bestLen = len(prefix)
		}
	}
	if bestLen >= 0 {
		return best
	}
	if inj.Default != "" {
		return inj.Default
	}
	return defaultInstruction
}

// Inject appends the resolved instruction to doc's system prompt, handling
// two request shapes:
//
//   - Anthropic messages API: a top-level "system" field, either a plain
//     string or a content-block array.
//   - OpenAI-compatible API: a "messages" array. The instruction is appended
//     to the first entry when its role is "system" and its content is a
//     string; otherwise a new system message is prepended.
//
// If neither shape is present (no "system" field and no non-empty
// "messages" array), Inject is a no-op — endpoints with no system prompt
// concept (embeddings, raw completions) have nothing to inject into.
func (inj *InstructionInjector) Inject(doc map[string]any, model string) {
	instruction := inj.resolve(model)
	if instruction == "" {
		return
	}

	if sys, ok := doc["system"]; ok {
		switch s := sys.(type) {
		case string:
			if s == "" {
				doc["system"] = instruction
			} else {
				doc["system"] = s + "\n\n" + instruction
			}
			return
		case []any:
			doc["system"] = append(s, map[string]any{"type": "text", "text": instruction})
			return
		}
	}

	messages, ok := doc["messages"].([]any)
	if !ok || len(messages) == 0 {
		return
	}
	first, ok := messages[0].(map[string]any)
	if !ok {
		return
	}
	if role, _ := first["role"].(string); role == "system" {
		if content, ok := first["content"].(string); ok {
			first["content"] = content + "\n\n" + instruction
			return
		}
	}

	// No existing system message: prepend one.
	system := map[string]any{"role": "system", "content": instruction}
	doc["messages"] = append([]any{system}, messages...)
}
