package redis

import "errors"

var (
	ErrClientRequired   = errors.New("redis client is required")
	ErrRerankerRequired = errors.New("reranker is required")
)
