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

package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidChatDocument indicates a ChatDocument failed validation.
	ErrInvalidChatDocument = errors.New("invalid chat document")

	// ErrEmptyID indicates the Id field is empty.
	ErrEmptyID = errors.New("id is required")

	// ErrEmptyUserID indicates the UserId field is empty.
	ErrEmptyUserID = errors.New("userId is required")

	// ErrEmptyQuestion indicates the Question field is empty.
	ErrEmptyQuestion = errors.New("question is required")

	// ErrVectorDimension indicates the question vector has the wrong length.
	ErrVectorDimension = errors.New("questionVector has the wrong dimension")

	// ErrInvalidMessageType indicates an unknown MessageType value.
	ErrInvalidMessageType = errors.New("invalid message type")
)
