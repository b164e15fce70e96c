package core

import "context"

// Predictor 是单方法预测接口：任何内部失败都必须体现在响应信封中，而不是以 error 返回。
//
// 实现：
//   - service.Dispatcher（绑定一个已加载的 artifact bundle）
//   - service.Server 通过 ProjectPredictor 适配（按项目加载当前版本）
type Predictor interface {
	Predict(ctx context.Context, req *PredictRequest) *PredictResponse
}

// PredictRequest 预测请求，字段为 nil 或空白表示未携带。
type PredictRequest struct {
	UserID    *string `json:"user_id"`
	ItemTitle *string `json:"item_title"`
	N         *int    `json:"n"`
}

// Recommendation 单条推荐记录。
type Recommendation struct {
	ItemID string   `json:"item_id"`
	Title  *string  `json:"title,omitempty"`
	Score  *float64 `json:"score,omitempty"`
}

// PredictResponse 预测响应信封：Error 非 nil 时 Recommendations 没有意义。
type PredictResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
	Error           *string          `json:"error"`
}

// OK 返回成功响应；recs 为 nil 时归一化为空列表，便于区分"无候选"与"请求错误"。
func OK(recs []Recommendation) *PredictResponse {
	if recs == nil {
		recs = []Recommendation{}
	}
	return &PredictResponse{Recommendations: recs}
}

// Fail 返回错误响应。
func Fail(err error) *PredictResponse {
	msg := err.Error()
	return &PredictResponse{Error: &msg}
}

// Failed 判断响应是否为错误。
func (r *PredictResponse) Failed() bool {
	return r != nil && r.Error != nil
}

// ItemIDs 返回推荐结果的物品 ID 列表（测试与日志使用）。
func (r *PredictResponse) ItemIDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.Recommendations))
	for _, rec := range r.Recommendations {
		ids = append(ids, rec.ItemID)
	}
	return ids
}
