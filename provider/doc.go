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


// Package provider routes generation calls across multiple AI backends.
//
// The Registry tracks per-provider statistics (request counts, errors and
// latency) and derives a ranking score from them:
//
//	score = 0.7 * success_rate + 0.3 * speed_score
//	speed_score = max(0, 1 - avg_latency / 10s)
//
// Providers with no history score 1.0 so a newly registered backend always
// gets an opportunity. Generate walks the ranking, falling back on failure;
// Compete races every provider concurrently and keeps the first success.
package provider
