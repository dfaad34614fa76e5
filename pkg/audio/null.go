package audio

import "context"

// NullPlatform is a Platform with no device behind it: Capture produces no
// frames and Play discards chunks immediately. It keeps the pipeline runnable
// on hosts where no audio backend is wired up; pair it with an external
// capture bridge or swap in a real platform for production streams.
type NullPlatform struct{}

var _ Platform = (*NullPlatform)(nil)

// NewNullPlatform returns a Platform that captures silence and plays to
// nowhere.
func NewNullPlatform() *NullPlatform {
	return &NullPlatform{}
}

// Capture returns a channel that emits nothing and closes when ctx ends.
func (*NullPlatform) Capture(ctx context.Context) (<-chan Frame, error) {
	out := make(chan Frame)
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

// Play discards every chunk until pcm closes or ctx is cancelled.
func (*NullPlatform) Play(ctx context.Context, pcm <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-pcm:
			if !ok {
				return nil
			}
		}
	}
}

// Close implements Platform. It is a no-op.
func (*NullPlatform) Close() error { return nil }
