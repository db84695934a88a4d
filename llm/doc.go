// Package llm provides a provider-neutral abstraction layer for text completion APIs.
//
// This package defines common types, interfaces, and utilities that allow the codebase
// to work with multiple LLM providers (Anthropic, OpenAI, Ollama) without being
// tightly coupled to any specific provider's SDK.
//
// # Core Concepts
//
//  1. Requests: a Request carries a model name, messages, an optional system prompt
//     and a maximum output length. NewPromptRequest builds the single-prompt form.
//
//  2. Client Interface: Client.Synchronous sends a request and returns the complete
//     response. Implementations live in the anthropic, openai and ollama subpackages.
//
//  3. Middleware: the Middleware interface adds cross-cutting concerns such as
//     logging without modifying provider implementations.
//
//  4. Errors: the Error type classifies provider failures (rate limit, request too
//     large, invalid request, provider, network, timeout).
//
//  5. Registry: ProviderRegistry answers whether a provider has credentials and
//     resolves the ClientKey used to construct its client.
//
// Usage Example
//
//	key, err := llm.NewProviderRegistry(cfg).Resolve(llm.ProviderAnthropic, "")
//	client, err := provider.New(key, logger)
//
//	resp, err := client.Synchronous(ctx, llm.NewPromptRequest(key.Model, prompt, 400))
//	text := resp.Text()
//
// Nothing in this package retries. A failed call is returned to the caller as-is.
package llm
