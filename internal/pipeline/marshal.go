package pipeline

import (
	"encoding/json"

	"video-pipeline/internal/store"
)

func marshalKeyframes(keyframes []store.Keyframe) (string, error) {
	payload, err := json.Marshal(keyframes)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
