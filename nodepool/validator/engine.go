package validator

import (
	"context"
	"math/rand"
	"os"
	"time"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/sync/errgroup"

	"nodesieve/internal/shared/logger"
	"nodesieve/internal/shared/types"
	"nodesieve/nodepool/model"
)

// StopReason 说明分批探测为何结束。
type StopReason string

const (
	StopGuaranteeMet StopReason = "guarantee_met"
	StopCeiling      StopReason = "ceiling_reached"
	StopExhausted    StopReason = "pool_exhausted"
	StopCanceled     StopReason = "canceled"
)

// Options 是探测引擎的行为参数。
type Options struct {
	Workers            int
	MaxLatency         float64 // 毫秒，<= 0 表示不限制
	FirstBatch         int
	BatchSize          int
	MaxTotal           int
	MinGuarantee       int
	PreferredOnly      bool
	PreferredProtocols []string
	SmartSampling      bool
	Seed               int64
	Progress           bool
}

// OptionsFromConfig 从 [quality_filter] 段构造引擎参数。
func OptionsFromConfig(cfg types.QualityFilterConf) Options {
	return Options{
		Workers:            cfg.MaxWorkers,
		MaxLatency:         cfg.MaxLatency,
		FirstBatch:         cfg.MaxTestNodes,
		BatchSize:          cfg.BatchSize,
		MaxTotal:           cfg.MaxTotalTestNodes,
		MinGuarantee:       cfg.MinGuarantee,
		PreferredOnly:      cfg.PreferredProtocolsOnly,
		PreferredProtocols: cfg.PreferredProtocols,
		SmartSampling:      cfg.SmartSampling,
		Seed:               cfg.Seed,
		Progress:           cfg.Progress,
	}
}

// Outcome 是一次完整探测的结果。
type Outcome struct {
	Available  []*model.Node
	Candidates int
	Probed     int
	Batches    int
	TooSlow    int
	StopReason StopReason
}

// Engine 按"最低保证"策略分批探测节点。
type Engine struct {
	prober Prober
	opts   Options
	rng    *rand.Rand
}

func NewEngine(prober Prober, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = opts.FirstBatch
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Engine{
		prober: prober,
		opts:   opts,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

type indexedResult struct {
	index  int
	result ProbeResult
}

// Run 分批探测，直到满足最低可用数、达到探测上限、候选耗尽或 ctx 被取消。
// 每批结束后只做一次停止判断，批内已启动的探测不会因目标达成而取消。
func (e *Engine) Run(ctx context.Context, nodes []*model.Node) Outcome {
	l := logger.WithComponent("NodePool/Validator")

	candidates := e.selectCandidates(nodes)
	out := Outcome{Candidates: len(candidates)}

	ceiling := e.opts.MaxTotal
	if ceiling <= 0 {
		ceiling = len(candidates)
	}

	l.Info().
		Int("candidates", len(candidates)).
		Int("min_guarantee", e.opts.MinGuarantee).
		Int("ceiling", ceiling).
		Int("workers", e.opts.Workers).
		Msg("Starting batched probing...")

	offset := 0
	for {
		if len(candidates)-offset <= 0 {
			out.StopReason = StopExhausted
			break
		}
		if ctx.Err() != nil {
			out.StopReason = StopCanceled
			break
		}

		size := e.opts.BatchSize
		if out.Batches == 0 {
			size = e.opts.FirstBatch
		}
		if size <= 0 {
			size = len(candidates)
		}
		size = min(size, len(candidates)-offset, ceiling-out.Probed)
		if size <= 0 {
			out.StopReason = StopCeiling
			break
		}

		batch := candidates[offset : offset+size]
		available, tooSlow := e.runBatch(ctx, batch)
		offset += size
		out.Probed += size
		out.Batches++
		out.TooSlow += tooSlow
		out.Available = append(out.Available, available...)

		l.Info().
			Int("batch", out.Batches).
			Int("size", size).
			Int("batch_available", len(available)).
			Int("available", len(out.Available)).
			Int("probed", out.Probed).
			Msg("Probe batch finished.")

		if len(out.Available) >= e.opts.MinGuarantee {
			out.StopReason = StopGuaranteeMet
			break
		}
		// 没有配置上限时，探测完全部候选只是池子耗尽
		if e.opts.MaxTotal <= 0 && offset >= len(candidates) {
			out.StopReason = StopExhausted
			break
		}
		if out.Probed >= ceiling {
			out.StopReason = StopCeiling
			l.Warn().
				Int("probed", out.Probed).
				Int("available", len(out.Available)).
				Int("min_guarantee", e.opts.MinGuarantee).
				Msg("Probe ceiling reached before the minimum guarantee, forcing termination.")
			break
		}
		if offset >= len(candidates) {
			out.StopReason = StopExhausted
			break
		}
		if ctx.Err() != nil {
			out.StopReason = StopCanceled
			break
		}
	}

	l.Info().
		Str("stop_reason", string(out.StopReason)).
		Int("batches", out.Batches).
		Int("probed", out.Probed).
		Int("available", len(out.Available)).
		Int("too_slow", out.TooSlow).
		Msg("Probing finished.")
	return out
}

// runBatch 并发探测一批节点，批次整体完成后由当前 goroutine 按批内顺序写回结果。
func (e *Engine) runBatch(ctx context.Context, batch []*model.Node) (available []*model.Node, tooSlow int) {
	var bar *pb.ProgressBar
	if e.opts.Progress {
		bar = pb.New(len(batch))
		bar.SetWriter(os.Stderr)
		bar.Start()
	}

	results := make(chan indexedResult, len(batch))
	var g errgroup.Group
	g.SetLimit(e.opts.Workers)

	for i, n := range batch {
		g.Go(func() error {
			results <- indexedResult{index: i, result: e.prober.Probe(ctx, n)}
			if bar != nil {
				bar.Increment()
			}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	if bar != nil {
		bar.Finish()
	}

	folded := make([]ProbeResult, len(batch))
	for r := range results {
		folded[r.index] = r.result
	}

	for i, n := range batch {
		r := folded[i]
		n.Status = r.Status
		n.LatencyMs = r.LatencyMs
		n.IP = r.IP
		n.Stage = model.StageProbed

		if !n.Online() {
			continue
		}
		if e.opts.MaxLatency > 0 && n.LatencyMs > e.opts.MaxLatency {
			tooSlow++
			continue
		}
		available = append(available, n)
	}
	return available, tooSlow
}

// selectCandidates 过滤首选协议并打乱顺序，不修改调用方的切片。
func (e *Engine) selectCandidates(nodes []*model.Node) []*model.Node {
	preferred := make(map[model.Protocol]struct{}, len(e.opts.PreferredProtocols))
	for _, name := range e.opts.PreferredProtocols {
		if p, ok := model.ParseProtocol(name); ok {
			preferred[p] = struct{}{}
		}
	}

	candidates := make([]*model.Node, 0, len(nodes))
	for _, n := range nodes {
		if e.opts.PreferredOnly && len(preferred) > 0 {
			if _, ok := preferred[n.Protocol]; !ok {
				continue
			}
		}
		candidates = append(candidates, n)
	}

	e.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	if e.opts.SmartSampling {
		candidates = interleaveByProtocol(candidates)
	}
	return candidates
}

// interleaveByProtocol 按协议基础分顺序轮流取节点，使每一批都覆盖多种协议。
func interleaveByProtocol(nodes []*model.Node) []*model.Node {
	groups := make(map[model.Protocol][]*model.Node)
	var unknown []*model.Node
	for _, n := range nodes {
		if n.Protocol.BaseScore() == 0 {
			unknown = append(unknown, n)
			continue
		}
		groups[n.Protocol] = append(groups[n.Protocol], n)
	}

	out := make([]*model.Node, 0, len(nodes))
	for len(out) < len(nodes)-len(unknown) {
		for _, p := range model.Protocols() {
			if g := groups[p]; len(g) > 0 {
				out = append(out, g[0])
				groups[p] = g[1:]
			}
		}
	}
	return append(out, unknown...)
}
