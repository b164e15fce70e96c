package core

// 默认值，与原始服务保持一致。
const (
	// DefaultTopN 是请求未指定 n 时返回的推荐数量
	DefaultTopN = 10

	// DefaultRank 是协同过滤 SVD 的默认秩（会被裁剪到 min(users, items) - 1）
	DefaultRank = 50

	// DefaultListLimit 是项目物品/用户列表接口的默认上限
	DefaultListLimit = 2000

	// DefaultHybridWeight 是混合模型中内容相似度的权重，协同分数权重为 1 - DefaultHybridWeight
	DefaultHybridWeight = 0.5
)

// TrainingConfig 是训练相关的配置接口，用于提供默认值。
type TrainingConfig interface {
	// DefaultRank 返回协同过滤默认秩
	DefaultRank() int
}

// ServingConfig 是预测相关的配置接口，用于提供默认值。
type ServingConfig interface {
	// DefaultTopN 返回默认推荐数量
	DefaultTopN() int

	// ContentWeight 返回混合模型内容相似度权重
	ContentWeight() float64
}

// DefaultConfig 是默认的训练与预测配置实现。
type DefaultConfig struct{}

func (c *DefaultConfig) DefaultRank() int { return DefaultRank }

func (c *DefaultConfig) DefaultTopN() int { return DefaultTopN }

func (c *DefaultConfig) ContentWeight() float64 { return DefaultHybridWeight }
