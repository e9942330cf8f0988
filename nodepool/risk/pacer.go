package risk

import (
	"time"

	"github.com/juju/ratelimit"
)

// Clock 抽象时间，测试中用假时钟替换。
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Pacer 是 provider 的调用节流器：每次外部调用后等待一个令牌。
// nil Pacer 不做任何等待。
type Pacer struct {
	bucket *ratelimit.Bucket
}

// NewPacer 创建容量为 1 的令牌桶，interval <= 0 时返回 nil。
func NewPacer(interval time.Duration, clock Clock) *Pacer {
	if interval <= 0 {
		return nil
	}
	var bucket *ratelimit.Bucket
	if clock == nil {
		bucket = ratelimit.NewBucket(interval, 1)
	} else {
		bucket = ratelimit.NewBucketWithClock(interval, 1, clock)
	}
	// 新桶是满的，先取走，保证第一次调用之后也要等满一个间隔
	bucket.TakeAvailable(1)
	return &Pacer{bucket: bucket}
}

// Wait 阻塞直到下一次调用被允许。
func (p *Pacer) Wait() {
	if p == nil {
		return
	}
	p.bucket.Wait(1)
}
