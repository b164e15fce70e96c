package recall

import (
	"context"

	"github.com/rushteam/tabrec/core"
	"github.com/rushteam/tabrec/pipeline"
)

// MetaLookup 按物品 ID 返回物品表中的整行，用于填充 Item.Meta。
type MetaLookup interface {
	Row(itemID string) (map[string]string, bool)
}

// Node 是一个 Recall Node：执行单个召回源，忽略上游 items。
// Meta 不为空时把物品表行写入 Item.Meta，供后续 CEL 过滤访问 item.meta.<列名>。
type Node struct {
	Source Source
	Meta   MetaLookup
}

func (n *Node) Name() string        { return "recall." + n.Source.Name() }
func (n *Node) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Node) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	items, err := n.Source.Recall(ctx, rctx)
	if err != nil {
		return nil, err
	}
	if n.Meta != nil {
		for _, it := range items {
			row, ok := n.Meta.Row(it.ID)
			if !ok {
				continue
			}
			for k, v := range row {
				it.Meta[k] = v
			}
		}
	}
	return items, nil
}
