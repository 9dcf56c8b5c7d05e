package agent

import (
	"fmt"
	"regexp"

	"shopmate/pkg/llm"
	"shopmate/pkg/tools"

	jsoniter "github.com/json-iterator/go"
)

// payloadJSON keeps numeric ids exact when tool payloads are decoded.
var payloadJSON = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

var (
	memoryQuestion = regexp.MustCompile(`(?i)\b(what|which)\b.*\bproducts?\b`)
	// selfAction finds a first-person past-tense product action: "did I just
	// add", "I deleted", "I've created", "removed by me".
	selfAction = regexp.MustCompile(`(?i)\bdid\s+i\s+(?:just\s+|last\s+|recently\s+)?(add|create|delete|remove)\b` +
		`|\bhave\s+i\s+(?:just\s+|last\s+|recently\s+)?(added|created|deleted|removed)\b` +
		`|\bi(?:\s+have|'ve)?\s+(?:just\s+|last\s+|recently\s+)?(added|created|deleted|removed)\b` +
		`|\b(added|created|deleted|removed)\s+by\s+me\b`)
	addedVerb   = regexp.MustCompile(`(?i)\b(add|added|create|created)\b`)
	deletedVerb = regexp.MustCompile(`(?i)\b(delete|deleted|remove|removed)\b`)
)

// rememberedTools maps the tools whose successful results are remembered.
var rememberedTools = map[string]llm.MemoryKey{
	tools.NameAddProduct:    llm.MemoryLastAddedProduct,
	tools.NameRemoveProduct: llm.MemoryLastDeletedProduct,
}

// MatchMemoryQuery reports which memory entry a user utterance asks about.
// Only questions about the user's own past action match. Ambiguous
// questions (both add and delete) do not.
func MatchMemoryQuery(message string) (llm.MemoryKey, bool) {
	if !memoryQuestion.MatchString(message) {
		return "", false
	}
	var added, deleted bool
	for _, m := range selfAction.FindAllStringSubmatch(message, -1) {
		for _, verb := range m[1:] {
			switch {
			case verb == "":
			case addedVerb.MatchString(verb):
				added = true
			default:
				deleted = true
			}
		}
	}
	if !added && !deleted {
		return "", false
	}
	// A mention of the other action anywhere makes the question ambiguous.
	added = added || addedVerb.MatchString(message)
	deleted = deleted || deletedVerb.MatchString(message)
	switch {
	case added && !deleted:
		return llm.MemoryLastAddedProduct, true
	case deleted && !added:
		return llm.MemoryLastDeletedProduct, true
	default:
		return "", false
	}
}

// AnswerFromMemory answers a memory query without any remote call.
func AnswerFromMemory(key llm.MemoryKey, mem *llm.MemorySlot) string {
	v, ok := mem.Read(key)
	record, _ := v.(map[string]any)

	switch key {
	case llm.MemoryLastAddedProduct:
		if !ok || record == nil {
			return "Sorry, I couldn't find a record of a product you just added."
		}
		return fmt.Sprintf("The last product you added was '%s' (ID: %s, Price: %s).",
			display(record["title"]), display(record["id"]), display(record["price"]))
	default:
		if !ok || record == nil {
			return "Sorry, I couldn't find a record of a product you just deleted."
		}
		return fmt.Sprintf("The last product you deleted had ID %s.", display(record["id"]))
	}
}

// decodePayload turns a serialized tool payload back into a generic object.
// Non-object payloads give nil.
func decodePayload(payload string) map[string]any {
	var out map[string]any
	if err := payloadJSON.Unmarshal([]byte(payload), &out); err != nil {
		return nil
	}
	return out
}
