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

// Package session answers questions with the chat history as context.
//
// Manager.Ask runs one conversational turn:
//
//  1. embed the question
//  2. retrieve related turns of the user with a hybrid query, falling back
//     to the recent transcript of the session when nothing is retrieved
//  3. ask the completion model with that history
//  4. store the answered turn, vector included, so later questions can
//     retrieve it
//
// A Monitor observes each step; the CLI uses one to show what was retrieved.
package session
