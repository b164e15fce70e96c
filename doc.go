// Package tabrec 是按项目训练与服务的表格推荐系统。
//
// 设计要点：
// - 三种模型：内容相似（TF-IDF）、协同过滤（截断 SVD）、两者加权混合
// - 训练产出不可变的 artifact bundle，按 project@version 写入一次，由 Registry 指向当前版本
// - 预测走 Pipeline：recall → filter → rerank → postprocess，错误体现在响应信封中
package tabrec

import (
	"github.com/rushteam/tabrec/artifact"
	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/pipeline"
)

// 轻量 facade：便于直接 import "tabrec" 使用核心抽象。
type (
	Pipeline        = pipeline.Pipeline
	Node            = pipeline.Node
	Predictor       = core.Predictor
	PredictRequest  = core.PredictRequest
	PredictResponse = core.PredictResponse
	Bundle          = artifact.Bundle
	Kind            = artifact.Kind
)

const (
	KindContent       = artifact.KindContent
	KindCollaborative = artifact.KindCollaborative
	KindHybrid        = artifact.KindHybrid
)
