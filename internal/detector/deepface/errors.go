package deepface

import "errors"

var (
	ErrDetectorUnavailable = errors.New("deepface sidecar unavailable")
	ErrInvalidResponse     = errors.New("invalid response from deepface")
)
