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

import (
	"fmt"
	"strings"
)

// ValidationError lists every rule a ChatDocument violated.
// It matches ErrInvalidChatDocument and each individual rule error with errors.Is.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Error()
	}
	return ErrInvalidChatDocument.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() []error {
	return append([]error{ErrInvalidChatDocument}, e.Problems...)
}

// ValidateChatDocument validates a ChatDocument according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - UserID must not be empty
//   - Question must not be empty
//   - QuestionVector, when present, must have exactly dimension entries
//
// A dimension of zero or less disables the vector length check.
// Content, SessionID and the provenance fields are not validated.
func ValidateChatDocument(doc *ChatDocument, dimension int) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidChatDocument)
	}

	var problems []error
	if strings.TrimSpace(doc.ID) == "" {
		problems = append(problems, ErrEmptyID)
	}
	if strings.TrimSpace(doc.UserID) == "" {
		problems = append(problems, ErrEmptyUserID)
	}
	if strings.TrimSpace(doc.Question) == "" {
		problems = append(problems, ErrEmptyQuestion)
	}
	if dimension > 0 && len(doc.QuestionVector) > 0 && len(doc.QuestionVector) != dimension {
		problems = append(problems, fmt.Errorf("%w: expected %d, got %d",
			ErrVectorDimension, dimension, len(doc.QuestionVector)))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
