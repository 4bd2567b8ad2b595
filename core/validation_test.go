package core

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateChatDocument(t *testing.T) {
	tests := []struct {
		name      string
		doc       *ChatDocument
		dimension int
		wantErrs  []error
	}{
		{
			name:     "valid document",
			doc:      &ChatDocument{ID: "d1", UserID: "u1", Question: "capital of France?"},
			wantErrs: nil,
		},
		{
			name:      "valid document with matching vector",
			doc:       &ChatDocument{ID: "d1", UserID: "u1", Question: "q", QuestionVector: []float32{0.1, 0.2, 0.3}},
			dimension: 3,
			wantErrs:  nil,
		},
		{
			name:      "vector check disabled without dimension",
			doc:       &ChatDocument{ID: "d1", UserID: "u1", Question: "q", QuestionVector: []float32{0.1}},
			dimension: 0,
			wantErrs:  nil,
		},
		{
			name:     "nil document",
			doc:      nil,
			wantErrs: []error{ErrInvalidChatDocument},
		},
		{
			name:     "empty id",
			doc:      &ChatDocument{UserID: "u1", Question: "q"},
			wantErrs: []error{ErrInvalidChatDocument, ErrEmptyID},
		},
		{
			name:     "blank user id",
			doc:      &ChatDocument{ID: "d1", UserID: "  ", Question: "q"},
			wantErrs: []error{ErrInvalidChatDocument, ErrEmptyUserID},
		},
		{
			name:     "empty question",
			doc:      &ChatDocument{ID: "d1", UserID: "u1"},
			wantErrs: []error{ErrInvalidChatDocument, ErrEmptyQuestion},
		},
		{
			name:      "wrong vector dimension",
			doc:       &ChatDocument{ID: "d1", UserID: "u1", Question: "q", QuestionVector: []float32{0.1, 0.2}},
			dimension: 3,
			wantErrs:  []error{ErrInvalidChatDocument, ErrVectorDimension},
		},
		{
			name:     "every required field missing",
			doc:      &ChatDocument{},
			wantErrs: []error{ErrInvalidChatDocument, ErrEmptyID, ErrEmptyUserID, ErrEmptyQuestion},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChatDocument(tt.doc, tt.dimension)
			if len(tt.wantErrs) == 0 {
				if err != nil {
					t.Fatalf("ValidateChatDocument() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateChatDocument() expected error, got nil")
			}
			for _, want := range tt.wantErrs {
				if !errors.Is(err, want) {
					t.Errorf("ValidateChatDocument() error = %v, want it to match %v", err, want)
				}
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := ValidateChatDocument(&ChatDocument{}, 0)
	if err == nil {
		t.Fatal("expected error")
	}

	want := "invalid chat document: id is required, userId is required, question is required"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Problems) != 3 {
		t.Errorf("expected 3 problems, got %d", len(verr.Problems))
	}
	if strings.Contains(err.Error(), "questionVector") {
		t.Errorf("vector problem reported without a vector: %q", err.Error())
	}
}
