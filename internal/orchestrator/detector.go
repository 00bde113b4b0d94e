package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/deepresearch/internal/worker"
)

// Detector decides how sub-research will run.
type Detector interface {
	// Detect probes the configured researcher endpoints and returns the
	// capability level together with the endpoints that answered.
	Detect(ctx context.Context) (CapabilityLevel, []string, error)
}

// Compile-time check.
var _ Detector = (*DefaultDetector)(nil)

// DefaultDetector probes researcher endpoints for their card.
type DefaultDetector struct {
	client       worker.Client
	endpoints    []string
	singleAgent  bool
	probeTimeout time.Duration
	logger       *zap.Logger
}

// NewDefaultDetector creates a DefaultDetector. With singleAgent set, Detect
// returns CapLocal without probing.
func NewDefaultDetector(client worker.Client, endpoints []string, singleAgent bool, logger *zap.Logger) *DefaultDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultDetector{
		client:       client,
		endpoints:    endpoints,
		singleAgent:  singleAgent,
		probeTimeout: 2 * time.Second,
		logger:       logger,
	}
}

// Detect implements Detector. Endpoints are returned in configured order.
func (d *DefaultDetector) Detect(ctx context.Context) (CapabilityLevel, []string, error) {
	if d.singleAgent || len(d.endpoints) == 0 {
		return CapLocal, nil, nil
	}

	alive := make([]bool, len(d.endpoints))
	var wg sync.WaitGroup
	for i, ep := range d.endpoints {
		wg.Add(1)
		go func() {
			defer wg.Done()
			alive[i] = d.probe(ctx, ep)
		}()
	}
	wg.Wait()

	var found []string
	for i, ok := range alive {
		if ok {
			found = append(found, d.endpoints[i])
		}
	}

	level := CapLocal
	if len(found) > 0 {
		level = CapRemote
	}
	d.logger.Info("detected researchers",
		zap.Stringer("level", level),
		zap.Int("configured", len(d.endpoints)),
		zap.Int("reachable", len(found)))
	return level, found, nil
}

func (d *DefaultDetector) probe(ctx context.Context, endpoint string) bool {
	pctx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()

	card, err := d.client.Discover(pctx, endpoint)
	if err != nil {
		d.logger.Debug("researcher probe failed", zap.String("endpoint", endpoint), zap.Error(err))
		return false
	}
	return card != nil
}
