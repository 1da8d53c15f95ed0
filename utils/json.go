package utils

import (
	"github.com/buger/jsonparser"
)

func JsonExtract(json []byte, key string) (string, error) {
	value, _, _, err := jsonparser.Get(json, key)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func JsonExtractStringOrDefault(json []byte, key string, def string) string {
	value, _, _, err := jsonparser.Get(json, key)
	if err != nil {
		return def
	}
	return string(value)
}

// JsonExtractBool extracts a boolean value with the specified key. If key does not exist, returns false
func JsonExtractBool(json []byte, key string) bool {
	value, err := jsonparser.GetBoolean(json, key)
	if err != nil {
		return false
	}
	return value
}
