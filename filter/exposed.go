package filter

import (
	"context"
	"time"

	"github.com/rushteam/tabrec/core"
)

// ExposedFilter 是已曝光过滤器，过滤掉用户在时间窗口内已经看过的物品。
// 曝光历史为有序集合 {KeyPrefix}:{UserID}，member 为物品 ID，score 为曝光时间（Unix 秒）。
type ExposedFilter struct {
	Store core.KeyValueStore

	// KeyPrefix 为空时使用 "tabrec:exposed:{project}"
	KeyPrefix string

	// TimeWindow 为曝光时间窗口，<= 0 表示不限时间
	TimeWindow time.Duration

	now func() time.Time
}

// NewExposedFilter 创建一个已曝光过滤器。
func NewExposedFilter(store core.KeyValueStore, keyPrefix string, window time.Duration) *ExposedFilter {
	return &ExposedFilter{Store: store, KeyPrefix: keyPrefix, TimeWindow: window, now: time.Now}
}

func (f *ExposedFilter) Name() string {
	return "filter.exposed"
}

func (f *ExposedFilter) key(rctx *core.RecommendContext) string {
	prefix := f.KeyPrefix
	if prefix == "" {
		prefix = "tabrec:exposed:" + rctx.Project
	}
	return prefix + ":" + rctx.UserID
}

func (f *ExposedFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil || rctx == nil || !rctx.HasUser || f.Store == nil {
		return false, nil
	}
	ts, err := f.Store.ZScore(ctx, f.key(rctx), item.ID)
	if core.IsStoreNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if f.TimeWindow <= 0 {
		return true, nil
	}
	now := time.Now
	if f.now != nil {
		now = f.now
	}
	cutoff := now().Add(-f.TimeWindow).Unix()
	return int64(ts) >= cutoff, nil
}

// RecordExposure 记录一次曝光，供 ExposedFilter 使用。
func RecordExposure(ctx context.Context, store core.KeyValueStore, key, itemID string, at time.Time) error {
	return store.ZAdd(ctx, key, float64(at.Unix()), itemID)
}
