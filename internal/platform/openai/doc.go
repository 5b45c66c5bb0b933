// Package openai implements generation.Inferencer against an
// OpenAI-compatible chat-completions endpoint over plain HTTP. The same
// request shape is accepted by OpenAI, Azure deployments and Google's
// OpenAI compatibility layer for Gemini models.
package openai
