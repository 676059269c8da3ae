package voice

import "context"

// Player is the shared single-slot playback resource. Playing a new item
// preempts the active one; Play blocks until the item has finished (or was
// preempted, or the bounded start wait expired). The sharing policy is a
// deliberate choice: one player per process, arbitrated by the
// implementation's lock, since the bot occupies one voice channel at a time.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}
