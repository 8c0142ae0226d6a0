package audio

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/nudge/internal/engine"
)

// Sounder plays a sound file.
type Sounder interface {
	Play(path string) error
}

// Chime plays a sound whenever a celebration starts.
type Chime struct {
	player Sounder
	sound  string
	logger *slog.Logger
}

// NewChime creates a Chime playing sound through player.
func NewChime(player Sounder, sound string, logger *slog.Logger) *Chime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chime{player: player, sound: sound, logger: logger}
}

// Run plays the chime for every celebration on events until ctx is done
// or events is closed.
func (c *Chime) Run(ctx context.Context, events <-chan engine.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != engine.EventCelebrationStarted {
				continue
			}
			if err := c.player.Play(c.sound); err != nil {
				c.logger.Warn("failed to play celebration sound", "path", c.sound, "error", err)
			}
		}
	}
}
