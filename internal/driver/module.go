package driver

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	appconfig "github.com/Raikerian/go-voice-driver/internal/config"
)

// preloadLead is the SongPreloader lead time named in the design (5s
// before a queued track's reported end).
const preloadLead = 5 * time.Second

// Module wires the mixing/RTP-egress core into the application's fx graph:
// config resolution, the default container probe, the Interconnect, and
// the Mixer itself, with its tick loop started and stopped alongside the
// fx lifecycle.
var Module = fx.Module("driver",
	fx.Provide(
		provideConfig,
		provideProbe,
		provideInterconnect,
		provideMixer,
		provideTrackQueue,
	),
)

func provideTrackQueue(mixer *Mixer, probe Probe) *TrackQueue {
	return NewTrackQueue(mixer, probe, preloadLead)
}

func provideConfig(appCfg *appconfig.Config) (Config, error) {
	return NewConfigFromApp(appCfg.Driver.WithDefaults())
}

func provideProbe(cfg Config) Probe {
	return NewDefaultProbe(cfg.PassthroughCacheSize)
}

func provideInterconnect() *Interconnect {
	return NewInterconnect(64, 16, 64)
}

// provideMixer constructs the Mixer and ties cycle into the fx lifecycle:
// OnStart launches Run on its own goroutine bound to a context cancelled
// on OnStop.
func provideMixer(lc fx.Lifecycle, cfg Config, probe Probe, ic *Interconnect, log *zap.Logger) (*Mixer, error) {
	m, err := NewMixer(cfg, probe, ic, log)
	if err != nil {
		return nil, err
	}

	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())
			go m.Run(runCtx)

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			ic.Events.Close()

			return nil
		},
	})

	return m, nil
}
