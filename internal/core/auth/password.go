package auth

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"instantclip/pkg/utils"
)

// Hasher 用信号量限制同时进行的 bcrypt 计算，多余的请求排队等待
type Hasher struct {
	cost int
	sem  *semaphore.Weighted

	dummyOnce sync.Once
	dummyHash string
}

// NewHasher workers <= 0 时取 GOMAXPROCS
func NewHasher(cost, workers int) *Hasher {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(workers))}
}

func (h *Hasher) Cost() int { return h.cost }

func (h *Hasher) Hash(ctx context.Context, pw string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)
	return utils.HashPassword(pw, h.cost)
}

// Verify hashed 为空（用户不存在）时仍比对一次假哈希
func (h *Hasher) Verify(ctx context.Context, pw, hashed string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)
	if hashed == "" {
		_ = utils.CheckPassword(pw, h.dummy())
		return false, nil
	}
	return utils.CheckPassword(pw, hashed), nil
}

// dummy 同 cost 的假哈希，仅用于拉平耗时
func (h *Hasher) dummy() string {
	h.dummyOnce.Do(func() {
		h.dummyHash, _ = utils.HashPassword("instantclip-dummy-password", h.cost)
	})
	return h.dummyHash
}
