package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// PaperItemsKey returns the cache key for a question paper's ordered items.
func (r *CacheKeyStruct) PaperItemsKey(paperID string) string {
	return fmt.Sprintf("paper:%s:items", paperID)
}

// CatalogQuestionKey returns the cache key for a single catalog question.
func (r *CacheKeyStruct) CatalogQuestionKey(questionID string) string {
	return fmt.Sprintf("catalog:question:%s", questionID)
}

// ProctorChannel returns the Redis PubSub channel name for an exam's proctoring room.
func (r *CacheKeyStruct) ProctorChannel(examID string) string {
	return fmt.Sprintf("proctor:exam:%s", examID)
}

// ProctorChannelPattern matches every exam's proctoring channel.
func (r *CacheKeyStruct) ProctorChannelPattern() string {
	return "proctor:exam:*"
}

var CacheKey = NewCacheKeyStruct()
