package camera

import (
	"context"
	"time"
)

// StaticSource returns the same frame on every grab. Tests and dry runs.
type StaticSource struct {
	data []byte
}

func NewStaticSource(data []byte) *StaticSource {
	return &StaticSource{data: data}
}

var _ Source = (*StaticSource)(nil)

func (s *StaticSource) Grab(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.data) == 0 {
		return nil, nil
	}
	return &Frame{
		Data:       s.data,
		CapturedAt: time.Now().UTC(),
		Source:     "static",
	}, nil
}
