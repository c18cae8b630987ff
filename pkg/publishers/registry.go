package publishers

import (
	"context"
	"fmt"
)

// Builder creates a Publisher from one validated config entry.
type Builder func(ctx context.Context, cfg Config, log Logger) (Publisher, error)

// builders maps the supported publisher types to their constructors.
var builders = map[string]Builder{
	TypeHTTP:  newHTTPPublisher,
	TypeQueue: newQueuePublisher,
}

// BuildAll instantiates one publisher per config entry. Construction is
// all-or-nothing: a single bad entry fails the whole set.
func BuildAll(ctx context.Context, cfgs []Config, log Logger) ([]Publisher, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	log = ensureLogger(log)

	pubs := make([]Publisher, 0, len(cfgs))
	for _, cfg := range cfgs {
		builder, ok := builders[cfg.Type]
		if !ok {
			return nil, fmt.Errorf("no builder for publisher type %q (publisher %q)", cfg.Type, cfg.ID)
		}
		pub, err := builder(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("build publisher %q: %w", cfg.ID, err)
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}
