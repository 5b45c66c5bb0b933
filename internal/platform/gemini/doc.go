// Package gemini provides an implementation of the generation.Inferencer
// interface that uses Google's Gemini API through the genai client library.
//
// This package is an infrastructure adapter: it translates a
// generation.Request (instruction plus normalized images) into a single
// GenerateContent call with inline JPEG parts, and translates genai.APIError
// status codes into generation.StatusError so the shared retry policy
// classifies them exactly like the HTTP backend does.
//
// Key components:
//
// 1. Generator:
//   - Implements the generation.Inferencer interface
//   - Builds multimodal content from the request
//   - Runs every call through generation.RetryPolicy
//
// 2. Error Handling:
//   - Maps API error codes to generation.StatusError
//   - Treats all other failures as network errors
package gemini
