// Package autoload registers every built-in LLM provider.
package autoload

import (
	_ "shopmate/pkg/llm/gemini"
	_ "shopmate/pkg/llm/ollama"
	_ "shopmate/pkg/llm/openailm"
)
