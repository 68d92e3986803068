// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package openai implements the ai package interfaces against any
// OpenAI-compatible API, including Ollama, LocalAI and vLLM.
//
// The package wraps github.com/tmc/langchaingo clients. Embedding and
// generation may target different hosts and models, which allows a small
// local embedding model to be paired with a remote generation model.
package openai
